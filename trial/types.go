// Package trial implements the Trial Runner: given one (agent, scenario,
// trial number) tuple, it executes the agent's LLM turn loop against the
// scenario input, supervises any declared MCP tool servers, tracks
// LLM-declared goals, evaluates the result, and returns a TrialResult. The
// Runner never returns an error for a failed trial; every failure mode is
// captured in the returned TrialResult.
package trial

import (
	"time"

	"github.com/agentuse/agentuse/goal"
	"github.com/agentuse/agentuse/trialerrors"
)

// TraceType is the closed set of tool-call trace kinds.
type TraceType string

const (
	TraceLLM      TraceType = "llm"
	TraceTool     TraceType = "tool"
	TraceSubagent TraceType = "subagent"
)

// ToolCallTrace is one entry in a trial's chronological trace timeline.
// Ordering within a trial is the order traces completed in and this order
// is preserved through goal reconciliation and into the stored TrialResult.
type ToolCallTrace struct {
	Type     TraceType      `json:"type"`
	Name     string         `json:"name"`
	Duration time.Duration  `json:"durationNs"`
	Input    map[string]any `json:"input,omitempty"`
	Success  *bool          `json:"success,omitempty"`
	Tokens   int            `json:"tokens,omitempty"`
}

// Execution captures the outcome of the trial's execution phase, distinct
// from output/artifact validity.
type Execution struct {
	Success      bool            `json:"success"`
	DurationMs   int64           `json:"durationMs"`
	FinishReason string          `json:"finishReason"`
	Error        *ExecutionError `json:"error,omitempty"`
}

// ExecutionError carries the classified failure for an unsuccessful
// execution.
type ExecutionError struct {
	Type     string               `json:"type"`
	Message  string               `json:"message"`
	Category trialerrors.Category `json:"category"`
}

// Usage aggregates token consumption for a trial.
type Usage struct {
	InputTokens      int      `json:"inputTokens"`
	OutputTokens     int      `json:"outputTokens"`
	TotalTokens      int      `json:"totalTokens"`
	EstimatedCostUSD *float64 `json:"estimatedCostUsd,omitempty"`
}

// ToolCalls summarizes the tool-call traces of a trial.
type ToolCalls struct {
	Total  int             `json:"total"`
	Names  []string        `json:"names,omitempty"`
	Traces []ToolCallTrace `json:"traces,omitempty"`
}

// Output captures the trial's final text output and its validation
// outcome.
type Output struct {
	Text              string   `json:"text"`
	Valid             bool     `json:"valid"`
	ValidationDetails []string `json:"validationDetails,omitempty"`
}

// Artifacts summarizes artifact-expectation validation.
type Artifacts struct {
	Checked int      `json:"checked"`
	Passed  int      `json:"passed"`
	Details []string `json:"details,omitempty"`
}

// Goals carries the tracked goal list and derived metrics for a trial, nil
// when the scenario made no goal declarations and the agent made no goal
// tool calls.
type Goals struct {
	Tracked []goal.Tracked `json:"tracked"`
	Metrics goal.Metrics   `json:"metrics"`
}

// Result is the complete record of one trial, the atomic unit of
// measurement for the benchmark.
type Result struct {
	TrialNumber int       `json:"trialNumber"`
	Execution   Execution `json:"execution"`
	Usage       Usage     `json:"usage"`
	ToolCalls   ToolCalls `json:"toolCalls"`
	Output      Output    `json:"output"`
	Artifacts   Artifacts `json:"artifacts"`
	Goals       *Goals    `json:"goals,omitempty"`
}
