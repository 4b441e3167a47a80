package evaluate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentuse/agentuse/model"
)

const judgePromptTemplate = `You are grading the output of an autonomous agent against a set of criteria.

Output:
%s

Criteria:
%s

Respond with a single JSON object of the form {"pass": boolean, "reasoning": string} and nothing else.`

// ModelJudge implements Judge on top of a model.Client, invoking the
// configured judge model with a fixed prompt and tolerantly extracting the
// first {...} JSON object from the response.
type ModelJudge struct {
	client model.Client
	model  string
}

// NewModelJudge constructs a ModelJudge. modelID is the judge model
// identifier sent with every judge request; a scenario's own
// OutputExpectation.Model is not applied.
func NewModelJudge(client model.Client, modelID string) *ModelJudge {
	return &ModelJudge{client: client, model: modelID}
}

type judgeVerdict struct {
	Pass      bool   `json:"pass"`
	Reasoning string `json:"reasoning"`
}

// Judge sends output and criteria to the configured judge model and parses
// its verdict. A response that cannot be parsed is a validation failure,
// never a crash.
func (j *ModelJudge) Judge(ctx context.Context, output, criteria string) (bool, string, error) {
	prompt := fmt.Sprintf(judgePromptTemplate, output, criteria)
	req := &model.Request{
		Model: j.model,
		Messages: []*model.Message{
			{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: prompt}}},
		},
		MaxTokens: 1024,
	}
	resp, err := j.client.Complete(ctx, req)
	if err != nil {
		return false, "", fmt.Errorf("judge model call failed: %w", err)
	}

	text := responseText(resp)
	verdict, err := extractVerdict(text)
	if err != nil {
		return false, "", fmt.Errorf("parsing judge response: %w", err)
	}
	return verdict.Pass, verdict.Reasoning, nil
}

func responseText(resp *model.Response) string {
	var sb strings.Builder
	for _, msg := range resp.Content {
		for _, p := range msg.Parts {
			if tp, ok := p.(model.TextPart); ok {
				sb.WriteString(tp.Text)
			}
		}
	}
	return sb.String()
}

// extractVerdict finds the first top-level {...} block in text and decodes
// it as a judgeVerdict, tolerating surrounding prose the judge model may
// add despite the prompt's instruction.
func extractVerdict(text string) (judgeVerdict, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return judgeVerdict{}, fmt.Errorf("no JSON object found in judge response")
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				var v judgeVerdict
				if err := json.Unmarshal([]byte(text[start:i+1]), &v); err != nil {
					return judgeVerdict{}, err
				}
				return v, nil
			}
		}
	}
	return judgeVerdict{}, fmt.Errorf("unterminated JSON object in judge response")
}
