// Package model defines the provider-agnostic request/response types used by
// the Trial Runner to drive an agent's LLM turn loop, and by the Evaluator
// to invoke an LLM-as-judge. It is a trimmed form of a richer conversation
// model: multimodal parts (images, documents, citations) have no scenario in
// this spec and are not carried here.
package model

import (
	"context"
	"encoding/json"
	"errors"
)

// ConversationRole is the role for a message in a conversation.
type ConversationRole string

const (
	ConversationRoleSystem    ConversationRole = "system"
	ConversationRoleUser      ConversationRole = "user"
	ConversationRoleAssistant ConversationRole = "assistant"
)

type (
	// Part is a marker interface implemented by every message content
	// block.
	Part interface {
		isPart()
	}

	// TextPart is plain text content.
	TextPart struct {
		Text string
	}

	// ThinkingPart carries provider-issued reasoning content, treated as
	// opaque metadata surfaced only for tracing.
	ThinkingPart struct {
		Text      string
		Signature string
	}

	// ToolUsePart declares a tool invocation requested by the assistant.
	ToolUsePart struct {
		// ID uniquely identifies this tool call within the trial.
		ID string
		// Name is the tool identifier requested by the model.
		Name string
		// Input is the JSON-compatible arguments object provided by the
		// model.
		Input any
	}

	// ToolResultPart carries a tool result supplied back to the model.
	ToolResultPart struct {
		// ToolUseID correlates this result to a prior ToolUsePart.
		ToolUseID string
		Content   any
		IsError   bool
	}

	// Message is a single chat message: an ordered list of typed content
	// blocks under one role.
	Message struct {
		Role  ConversationRole
		Parts []Part
	}

	// ToolDefinition describes one tool exposed to the model, including
	// the two goal-tracking tools injected by the Trial Runner.
	ToolDefinition struct {
		Name        string
		Description string
		InputSchema any
	}

	// ToolCall is a requested tool invocation from the model.
	ToolCall struct {
		Name    string
		Payload json.RawMessage
		ID      string
	}

	// ToolChoiceMode controls how the model is permitted to use tools for
	// a request.
	ToolChoiceMode string

	// ToolChoice optionally constrains tool-use behavior for a Request.
	ToolChoice struct {
		Mode ToolChoiceMode
		Name string
	}

	// TokenUsage tracks token counts for a model call.
	TokenUsage struct {
		InputTokens      int
		OutputTokens     int
		TotalTokens      int
		CacheReadTokens  int
		CacheWriteTokens int
	}

	// Request captures the inputs for one model invocation.
	Request struct {
		Model       string
		Messages    []*Message
		Temperature float32
		Tools       []*ToolDefinition
		ToolChoice  *ToolChoice
		MaxTokens   int
		Thinking    *ThinkingOptions
	}

	// Response is the result of a non-streaming invocation.
	Response struct {
		Content    []Message
		ToolCalls  []ToolCall
		Usage      TokenUsage
		StopReason string
	}

	// ThinkingOptions configures provider reasoning behavior.
	ThinkingOptions struct {
		Enable       bool
		BudgetTokens int
	}

	// Client is the provider-agnostic model client every model adapter
	// implements.
	Client interface {
		// Complete performs a non-streaming model invocation.
		Complete(ctx context.Context, req *Request) (*Response, error)
	}
)

const (
	ToolChoiceModeAuto ToolChoiceMode = "auto"
	ToolChoiceModeNone ToolChoiceMode = "none"
	ToolChoiceModeAny  ToolChoiceMode = "any"
	ToolChoiceModeTool ToolChoiceMode = "tool"
)

// ErrRateLimited indicates the provider rejected the request due to rate
// limiting after exhausting any configured retries.
var ErrRateLimited = errors.New("model: rate limited")

func (TextPart) isPart()       {}
func (ThinkingPart) isPart()   {}
func (ToolUsePart) isPart()    {}
func (ToolResultPart) isPart() {}
