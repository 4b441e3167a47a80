// Package anthropic provides a model.Client implementation backed by the
// Anthropic Claude Messages API, used by trials run against a live provider
// and by the LLM-judge evaluation strategy.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentuse/agentuse/model"
)

// MessagesClient captures the subset of the Anthropic SDK used by the
// adapter, satisfied by *sdk.MessageService so tests can substitute a mock.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Options configures optional adapter behavior.
type Options struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float64
}

// Client implements model.Client on top of Anthropic Claude Messages.
type Client struct {
	msg          MessagesClient
	defaultModel string
	maxTok       int
	temp         float64
}

// New builds a Client from an Anthropic Messages client and configuration.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{msg: msg, defaultModel: opts.DefaultModel, maxTok: maxTokens, temp: opts.Temperature}, nil
}

// NewFromAPIKey constructs a client using the default Anthropic HTTP client
// and the given API key. It does not read the environment itself; the CLI
// passes ANTHROPIC_API_KEY.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, Options{DefaultModel: defaultModel})
}

// Complete issues a non-streaming Messages.New request and translates the
// response into the generic model.Response.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("anthropic messages.new: %w", err)
	}
	return translateResponse(msg)
}

func (c *Client) prepareRequest(req *model.Request) (*sdk.MessageNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("anthropic: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	msgs, system, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTok
	}

	params := sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
		Model:     sdk.Model(modelID),
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 {
		params.Tools = encodeTools(req.Tools)
	}
	temp := req.Temperature
	if temp == 0 {
		temp = float32(c.temp)
	}
	if temp > 0 {
		params.Temperature = sdk.Float(float64(temp))
	}
	if req.Thinking != nil && req.Thinking.Enable && req.Thinking.BudgetTokens >= 1024 {
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(int64(req.Thinking.BudgetTokens))
	}
	return &params, nil
}

func encodeMessages(in []*model.Message) ([]sdk.MessageParam, string, error) {
	var system string
	var out []sdk.MessageParam
	for _, m := range in {
		if m.Role == model.ConversationRoleSystem {
			for _, p := range m.Parts {
				if tp, ok := p.(model.TextPart); ok {
					system += tp.Text
				}
			}
			continue
		}
		blocks, err := encodeParts(m.Parts)
		if err != nil {
			return nil, "", err
		}
		role := sdk.MessageParamRoleUser
		if m.Role == model.ConversationRoleAssistant {
			role = sdk.MessageParamRoleAssistant
		}
		out = append(out, sdk.MessageParam{Role: role, Content: blocks})
	}
	return out, system, nil
}

func encodeParts(parts []model.Part) ([]sdk.ContentBlockParamUnion, error) {
	var blocks []sdk.ContentBlockParamUnion
	for _, p := range parts {
		switch v := p.(type) {
		case model.TextPart:
			blocks = append(blocks, sdk.NewTextBlock(v.Text))
		case model.ToolUsePart:
			input, err := json.Marshal(v.Input)
			if err != nil {
				return nil, fmt.Errorf("anthropic: encoding tool use input: %w", err)
			}
			blocks = append(blocks, sdk.NewToolUseBlock(v.ID, json.RawMessage(input), v.Name))
		case model.ToolResultPart:
			content, err := stringifyToolResult(v.Content)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, sdk.NewToolResultBlock(v.ToolUseID, content, v.IsError))
		}
	}
	return blocks, nil
}

func stringifyToolResult(content any) (string, error) {
	switch v := content.(type) {
	case string:
		return v, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("anthropic: encoding tool result: %w", err)
		}
		return string(b), nil
	}
}

func encodeTools(defs []*model.ToolDefinition) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		out = append(out, sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{
			Properties: d.InputSchema,
		}, d.Name))
	}
	return out
}

func translateResponse(msg *sdk.Message) (*model.Response, error) {
	resp := &model.Response{
		Usage: model.TokenUsage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		StopReason: string(msg.StopReason),
	}
	var parts []model.Part
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case sdk.TextBlock:
			parts = append(parts, model.TextPart{Text: variant.Text})
		case sdk.ThinkingBlock:
			parts = append(parts, model.ThinkingPart{Text: variant.Thinking, Signature: variant.Signature})
		case sdk.ToolUseBlock:
			resp.ToolCalls = append(resp.ToolCalls, model.ToolCall{
				Name:    variant.Name,
				Payload: json.RawMessage(variant.Input),
				ID:      variant.ID,
			})
		}
	}
	resp.Content = []model.Message{{Role: model.ConversationRoleAssistant, Parts: parts}}
	return resp, nil
}

func isRateLimited(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
