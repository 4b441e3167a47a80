package trial

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentuse/agentuse/agentfile"
	"github.com/agentuse/agentuse/model"
	"github.com/agentuse/agentuse/runconfig"
	"github.com/agentuse/agentuse/suite"
)

// scriptedClient replays a fixed sequence of responses, one per Complete
// call, so the turn loop's behavior is fully deterministic in tests.
type scriptedClient struct {
	responses []*model.Response
	calls     int
}

func (s *scriptedClient) Complete(context.Context, *model.Request) (*model.Response, error) {
	if s.calls >= len(s.responses) {
		return &model.Response{StopReason: "end_turn"}, nil
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func textResponse(text string) *model.Response {
	return &model.Response{
		Content: []model.Message{
			{Role: model.ConversationRoleAssistant, Parts: []model.Part{model.TextPart{Text: text}}},
		},
		Usage: model.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}
}

func toolCallResponse(id, name string, input map[string]any) *model.Response {
	return &model.Response{
		Content: []model.Message{
			{Role: model.ConversationRoleAssistant, Parts: []model.Part{model.ToolUsePart{ID: id, Name: name, Input: input}}},
		},
		ToolCalls: []model.ToolCall{{ID: id, Name: name, Payload: mustMarshal(input)}},
		Usage:     model.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func testAgent() *agentfile.Agent {
	return &agentfile.Agent{Path: "agent.md", Model: "anthropic:claude-3-5-sonnet", MaxSteps: 10, Instructions: "You are a helpful assistant."}
}

func TestRunNoToolsImmediateStop(t *testing.T) {
	client := &scriptedClient{responses: []*model.Response{textResponse("the answer is 42")}}
	r := New(nil)

	res := r.Run(context.Background(), Params{
		Agent:       testAgent(),
		Scenario:    suite.Scenario{ID: "s1", Input: "what is the answer?"},
		TrialNumber: 1,
		RunConfig:   runconfig.Config{OutputDir: t.TempDir()},
		Client:      client,
	})

	require.True(t, res.Execution.Success)
	assert.Equal(t, "the answer is 42", res.Output.Text)
	assert.Equal(t, 0, res.ToolCalls.Total)
	assert.Nil(t, res.Goals)
	assert.Equal(t, 15, res.Usage.TotalTokens)
}

func TestRunGoalDeclareAndComplete(t *testing.T) {
	client := &scriptedClient{responses: []*model.Response{
		toolCallResponse("call-1", declareGoalTool, map[string]any{"name": "answer-question"}),
		toolCallResponse("call-2", completeGoalTool, map[string]any{"name": "answer-question", "success": true}),
		textResponse("done"),
	}}
	r := New(nil)

	res := r.Run(context.Background(), Params{
		Agent:       testAgent(),
		Scenario:    suite.Scenario{ID: "s1", Input: "do it"},
		TrialNumber: 1,
		RunConfig:   runconfig.Config{OutputDir: t.TempDir()},
		Client:      client,
	})

	require.True(t, res.Execution.Success)
	require.NotNil(t, res.Goals)
	require.Len(t, res.Goals.Tracked, 1)
	assert.Equal(t, "answer-question", res.Goals.Tracked[0].Name)
	assert.Equal(t, 1.0, res.Goals.Metrics.GoalCompletionRate)
	assert.Equal(t, 2, res.ToolCalls.Total)
}

func TestRunStepCapStopsLoop(t *testing.T) {
	responses := make([]*model.Response, 0, 5)
	for i := 0; i < 5; i++ {
		responses = append(responses, toolCallResponse("call", "benchmark__declare_goal", map[string]any{"name": "g"}))
	}
	client := &scriptedClient{responses: responses}
	agent := testAgent()
	agent.MaxSteps = 2
	r := New(nil)

	res := r.Run(context.Background(), Params{
		Agent:       agent,
		Scenario:    suite.Scenario{ID: "s1", Input: "loop forever"},
		TrialNumber: 1,
		RunConfig:   runconfig.Config{OutputDir: t.TempDir()},
		Client:      client,
	})

	require.True(t, res.Execution.Success)
	assert.Equal(t, "step_limit", res.Execution.FinishReason)
}

type erroringClient struct{ err error }

func (c erroringClient) Complete(context.Context, *model.Request) (*model.Response, error) {
	return nil, c.err
}

func TestRunModelErrorIsRuntimeFailure(t *testing.T) {
	r := New(nil)
	res := r.Run(context.Background(), Params{
		Agent:       testAgent(),
		Scenario:    suite.Scenario{ID: "s1", Input: "x"},
		TrialNumber: 1,
		RunConfig:   runconfig.Config{OutputDir: t.TempDir(), Timeout: time.Second},
		Client:      erroringClient{err: errProviderDown},
	})

	require.False(t, res.Execution.Success)
	require.NotNil(t, res.Execution.Error)
	assert.Equal(t, "runtime_error", res.Execution.Error.Type)
}

var errProviderDown = errors.New("provider unavailable")
