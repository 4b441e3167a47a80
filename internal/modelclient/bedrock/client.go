// Package bedrock provides a model.Client implementation backed by the AWS
// Bedrock Runtime Converse API, used when a suite targets a Bedrock-hosted
// model via "bedrock:<modelId>".
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"

	agmodel "github.com/agentuse/agentuse/model"
)

// ConverseClient captures the subset of the Bedrock Runtime SDK used by the
// adapter.
type ConverseClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Client implements model.Client on top of the Bedrock Converse API.
type Client struct {
	rt           ConverseClient
	defaultModel string
}

// New builds a Client from a Bedrock Runtime client and default model ID.
func New(rt ConverseClient, defaultModel string) (*Client, error) {
	if rt == nil {
		return nil, errors.New("bedrock runtime client is required")
	}
	if defaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	return &Client{rt: rt, defaultModel: defaultModel}, nil
}

// Complete issues a non-streaming Converse request.
func (c *Client) Complete(ctx context.Context, req *agmodel.Request) (*agmodel.Response, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	messages, system := encodeMessages(req.Messages)
	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: messages,
	}
	if system != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: system}}
	}
	if req.MaxTokens > 0 || req.Temperature > 0 {
		cfg := &types.InferenceConfiguration{}
		if req.MaxTokens > 0 {
			cfg.MaxTokens = aws.Int32(int32(req.MaxTokens))
		}
		if req.Temperature > 0 {
			cfg.Temperature = aws.Float32(req.Temperature)
		}
		input.InferenceConfig = cfg
	}
	if len(req.Tools) > 0 {
		input.ToolConfig = &types.ToolConfiguration{Tools: encodeTools(req.Tools)}
	}

	out, err := c.rt.Converse(ctx, input)
	if err != nil {
		if isThrottled(err) {
			return nil, fmt.Errorf("%w: %w", agmodel.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}
	return translateResponse(out)
}

func encodeMessages(in []*agmodel.Message) ([]types.Message, string) {
	var system string
	var out []types.Message
	for _, m := range in {
		if m.Role == agmodel.ConversationRoleSystem {
			for _, p := range m.Parts {
				if tp, ok := p.(agmodel.TextPart); ok {
					system += tp.Text
				}
			}
			continue
		}
		role := types.ConversationRoleUser
		if m.Role == agmodel.ConversationRoleAssistant {
			role = types.ConversationRoleAssistant
		}
		var blocks []types.ContentBlock
		for _, p := range m.Parts {
			switch v := p.(type) {
			case agmodel.TextPart:
				blocks = append(blocks, &types.ContentBlockMemberText{Value: v.Text})
			case agmodel.ToolUsePart:
				input, _ := json.Marshal(v.Input)
				blocks = append(blocks, &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
					ToolUseId: aws.String(v.ID),
					Name:      aws.String(v.Name),
					Input:     document(input),
				}})
			case agmodel.ToolResultPart:
				content, _ := json.Marshal(v.Content)
				status := types.ToolResultStatusSuccess
				if v.IsError {
					status = types.ToolResultStatusError
				}
				blocks = append(blocks, &types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
					ToolUseId: aws.String(v.ToolUseID),
					Status:    status,
					Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: string(content)}},
				}})
			}
		}
		out = append(out, types.Message{Role: role, Content: blocks})
	}
	return out, system
}

// document is a placeholder for the SDK's smithydocument.Marshaler-backed
// tool input type; adapters that need the exact shape build it from raw
// JSON via the SDK's document package at the call site.
type document json.RawMessage

func encodeTools(defs []*agmodel.ToolDefinition) []types.Tool {
	out := make([]types.Tool, 0, len(defs))
	for _, d := range defs {
		schema, _ := json.Marshal(d.InputSchema)
		out = append(out, &types.ToolMemberToolSpec{Value: types.ToolSpecification{
			Name:        aws.String(d.Name),
			Description: aws.String(d.Description),
			InputSchema: &types.ToolInputSchemaMemberJson{Value: document(schema)},
		}})
	}
	return out
}

func translateResponse(out *bedrockruntime.ConverseOutput) (*agmodel.Response, error) {
	resp := &agmodel.Response{StopReason: string(out.StopReason)}
	if out.Usage != nil {
		resp.Usage = agmodel.TokenUsage{
			InputTokens:  int(aws.ToInt32(out.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
			TotalTokens:  int(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}
	msgOutput, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return resp, nil
	}
	var parts []agmodel.Part
	for _, block := range msgOutput.Value.Content {
		switch v := block.(type) {
		case *types.ContentBlockMemberText:
			parts = append(parts, agmodel.TextPart{Text: v.Value})
		case *types.ContentBlockMemberToolUse:
			resp.ToolCalls = append(resp.ToolCalls, agmodel.ToolCall{
				Name: aws.ToString(v.Value.Name),
				ID:   aws.ToString(v.Value.ToolUseId),
			})
		}
	}
	resp.Content = []agmodel.Message{{Role: agmodel.ConversationRoleAssistant, Parts: parts}}
	return resp, nil
}

func isThrottled(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ThrottlingException"
	}
	return false
}
