// Package openai provides a model.Client implementation backed by the
// OpenAI Chat Completions API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	agmodel "github.com/agentuse/agentuse/model"
)

// ChatClient captures the subset of the OpenAI SDK used by the adapter.
type ChatClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client implements model.Client on top of OpenAI chat completions.
type Client struct {
	chat         ChatClient
	defaultModel string
}

// New builds a Client from an OpenAI chat client and default model.
func New(chat ChatClient, defaultModel string) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai client is required")
	}
	if defaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	return &Client{chat: chat, defaultModel: defaultModel}, nil
}

// NewFromAPIKey constructs a client from the given API key. It does not read
// the environment itself; the CLI passes OPENAI_API_KEY.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Chat.Completions, defaultModel)
}

// Complete issues a non-streaming chat completion request.
func (c *Client) Complete(ctx context.Context, req *agmodel.Request) (*agmodel.Response, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	params := openai.ChatCompletionNewParams{
		Model:    modelID,
		Messages: encodeMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(float64(req.Temperature))
	}
	if len(req.Tools) > 0 {
		params.Tools = encodeTools(req.Tools)
	}

	completion, err := c.chat.New(ctx, params)
	if err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", agmodel.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("openai chat.completions.new: %w", err)
	}
	return translateResponse(completion)
}

func encodeMessages(in []*agmodel.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(in))
	for _, m := range in {
		text := flattenText(m.Parts)
		switch m.Role {
		case agmodel.ConversationRoleSystem:
			out = append(out, openai.SystemMessage(text))
		case agmodel.ConversationRoleAssistant:
			out = append(out, openai.AssistantMessage(text))
		default:
			for _, p := range m.Parts {
				if tr, ok := p.(agmodel.ToolResultPart); ok {
					content, _ := json.Marshal(tr.Content)
					out = append(out, openai.ToolMessage(string(content), tr.ToolUseID))
				}
			}
			if text != "" {
				out = append(out, openai.UserMessage(text))
			}
		}
	}
	return out
}

func flattenText(parts []agmodel.Part) string {
	var text string
	for _, p := range parts {
		if tp, ok := p.(agmodel.TextPart); ok {
			text += tp.Text
		}
	}
	return text
}

func encodeTools(defs []*agmodel.ToolDefinition) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(defs))
	for _, d := range defs {
		out = append(out, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        d.Name,
			Description: openai.String(d.Description),
			Parameters:  openai.FunctionParameters{"properties": d.InputSchema},
		}))
	}
	return out
}

func translateResponse(c *openai.ChatCompletion) (*agmodel.Response, error) {
	resp := &agmodel.Response{
		Usage: agmodel.TokenUsage{
			InputTokens:  int(c.Usage.PromptTokens),
			OutputTokens: int(c.Usage.CompletionTokens),
			TotalTokens:  int(c.Usage.TotalTokens),
		},
	}
	if len(c.Choices) == 0 {
		return resp, nil
	}
	choice := c.Choices[0]
	resp.StopReason = string(choice.FinishReason)
	resp.Content = []agmodel.Message{{
		Role:  agmodel.ConversationRoleAssistant,
		Parts: []agmodel.Part{agmodel.TextPart{Text: choice.Message.Content}},
	}}
	for _, call := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, agmodel.ToolCall{
			Name:    call.Function.Name,
			Payload: json.RawMessage(call.Function.Arguments),
			ID:      call.ID,
		})
	}
	return resp, nil
}

func isRateLimited(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
