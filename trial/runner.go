package trial

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentuse/agentuse/agentfile"
	"github.com/agentuse/agentuse/evaluate"
	"github.com/agentuse/agentuse/goal"
	"github.com/agentuse/agentuse/internal/dynvar"
	"github.com/agentuse/agentuse/internal/mcpproc"
	"github.com/agentuse/agentuse/model"
	"github.com/agentuse/agentuse/runconfig"
	"github.com/agentuse/agentuse/suite"
	"github.com/agentuse/agentuse/telemetry"
	"github.com/agentuse/agentuse/trialerrors"
)

const (
	declareGoalTool  = "benchmark__declare_goal"
	completeGoalTool = "benchmark__complete_goal"
)

// goalTrackingPrompt is appended to the agent's system instructions for
// every trial so the model learns to declare and complete goals with the
// two injected tools.
const goalTrackingPrompt = `
You have access to two bookkeeping tools: benchmark__declare_goal(name, description?) and
benchmark__complete_goal(name, success). Call benchmark__declare_goal before starting a distinct
subtask, and benchmark__complete_goal once it is resolved (successfully or not). These calls do
not affect your other tools or the task itself; they exist purely to record your progress.`

// Params is the complete input to one trial execution.
type Params struct {
	Agent       *agentfile.Agent
	Scenario    suite.Scenario
	TrialNumber int
	RunConfig   runconfig.Config
	SuiteDir    string
	Client      model.Client
	Judge       evaluate.Judge
}

// Runner executes individual trials. It holds no per-trial state; a single
// Runner is reused across every trial in a run.
type Runner struct {
	subst  *dynvar.Substituter
	now    func() time.Time
	logger telemetry.Logger
}

// New constructs a Runner. A nil logger defaults to telemetry.NoopLogger.
func New(logger telemetry.Logger) *Runner {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &Runner{subst: dynvar.Default(), now: time.Now, logger: logger}
}

// Run executes one trial to completion and always returns a populated
// Result; it never returns an error. Every failure mode is captured in
// Result.Execution.
func (r *Runner) Run(ctx context.Context, p Params) Result {
	start := r.now()

	input, err := r.subst.Substitute(p.Scenario.Input)
	if err != nil {
		return r.failure(p, start, fmt.Errorf("substituting dynamic variables: %w", err))
	}

	// Namespaced by model as well as scenario and trial number: concurrent
	// scenario jobs for different models can share a scenario ID, and must
	// not share a scratch directory.
	scratchDir := filepath.Join(p.RunConfig.OutputDir, "trials", fmt.Sprintf("%s-%s-%d", sanitizeForPath(p.Agent.Model), p.Scenario.ID, p.TrialNumber))
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return r.failure(p, start, fmt.Errorf("creating scratch directory: %w", err))
	}
	defer os.RemoveAll(scratchDir)

	timeout := p.RunConfig.TimeoutOrDefault()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	callers, toolOwner, toolDefs, err := r.startMCPServers(runCtx, p)
	if err != nil {
		return r.failure(p, start, err)
	}
	defer func() {
		for _, c := range callers {
			_ = c.Close()
		}
	}()

	tracker := goal.New(r.now)
	toolDefs = append(toolDefs, goalTrackingToolDefs()...)

	maxSteps := p.Agent.MaxSteps
	if p.RunConfig.MaxSteps > 0 {
		maxSteps = p.RunConfig.MaxSteps
	}

	traces, finalText, finishReason, usage, runErr := r.driveTurnLoop(runCtx, turnLoopInput{
		agent:     p.Agent,
		input:     input,
		tools:     toolDefs,
		toolOwner: toolOwner,
		callers:   callers,
		tracker:   tracker,
		client:    p.Client,
		maxSteps:  maxSteps,
	})

	goalEvents := make([]goal.TraceEvent, 0, len(traces))
	for _, t := range traces {
		goalEvents = append(goalEvents, goal.TraceEvent{
			Kind:     string(t.Type),
			Name:     t.Name,
			Input:    t.Input,
			Success:  t.Success != nil && *t.Success,
			Duration: t.Duration,
		})
	}
	tracker.ProcessTraces(goalEvents)

	durationMs := r.now().Sub(start).Milliseconds()

	if runErr != nil {
		detail := trialerrors.Classify(runErr)
		if runCtx.Err() == context.DeadlineExceeded {
			finishReason = "timeout"
		}
		return Result{
			TrialNumber: p.TrialNumber,
			Execution: Execution{
				Success:      false,
				DurationMs:   durationMs,
				FinishReason: finishReason,
				Error: &ExecutionError{
					Type:     string(detail.Category),
					Message:  detail.Message,
					Category: detail.Category,
				},
			},
			ToolCalls: summarizeToolCalls(traces),
			Goals:     goalsOrNil(tracker),
		}
	}

	evaluator := evaluate.New(p.Judge)
	evalResult := evaluator.Evaluate(runCtx, finalText, p.Scenario.Expected, scratchDir)

	resultUsage := Usage{
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		TotalTokens:  usage.TotalTokens,
	}
	_, bareModel := suite.SplitModelID(p.Agent.Model)
	resultUsage.EstimatedCostUSD = estimateCostUSD(bareModel, resultUsage)

	return Result{
		TrialNumber: p.TrialNumber,
		Execution: Execution{
			Success:      true,
			DurationMs:   durationMs,
			FinishReason: finishReason,
		},
		Usage: resultUsage,
		ToolCalls: summarizeToolCalls(traces),
		Output: Output{
			Text:              finalText,
			Valid:             evalResult.Valid,
			ValidationDetails: evalResult.ValidationDetails,
		},
		Artifacts: Artifacts{
			Checked: evalResult.ArtifactsChecked,
			Passed:  evalResult.ArtifactsPassed,
			Details: evalResult.ValidationDetails,
		},
		Goals: goalsOrNil(tracker),
	}
}

func (r *Runner) failure(p Params, start time.Time, err error) Result {
	detail := trialerrors.Classify(err)
	return Result{
		TrialNumber: p.TrialNumber,
		Execution: Execution{
			Success:      false,
			DurationMs:   r.now().Sub(start).Milliseconds(),
			FinishReason: "error",
			Error: &ExecutionError{
				Type:     string(detail.Category),
				Message:  detail.Message,
				Category: detail.Category,
			},
		},
	}
}

// startMCPServers launches every MCP server declared by the agent and
// returns the live callers, a tool-name-to-server-name owner map, and the
// aggregated tool definitions advertised by those servers.
func (r *Runner) startMCPServers(ctx context.Context, p Params) (map[string]*mcpproc.Caller, map[string]string, []*model.ToolDefinition, error) {
	callers := make(map[string]*mcpproc.Caller, len(p.Agent.MCPServers))
	toolOwner := make(map[string]string)
	var defs []*model.ToolDefinition

	for _, srv := range p.Agent.MCPServers {
		caller, err := mcpproc.Launch(ctx, mcpproc.Options{
			Name:    srv.Name,
			Command: srv.Command,
			Args:    srv.Args,
			Env:     srv.Env,
			Dir:     p.SuiteDir,
		})
		if err != nil {
			for _, c := range callers {
				_ = c.Close()
			}
			return nil, nil, nil, fmt.Errorf("starting mcp server %s: %w", srv.Name, err)
		}
		callers[srv.Name] = caller

		specs, err := caller.ListTools(ctx)
		if err != nil {
			for _, c := range callers {
				_ = c.Close()
			}
			return nil, nil, nil, fmt.Errorf("listing tools for mcp server %s: %w", srv.Name, err)
		}
		for _, spec := range specs {
			toolOwner[spec.Name] = srv.Name
			defs = append(defs, &model.ToolDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				InputSchema: spec.InputSchema,
			})
		}
	}
	return callers, toolOwner, defs, nil
}

func goalTrackingToolDefs() []*model.ToolDefinition {
	return []*model.ToolDefinition{
		{
			Name:        declareGoalTool,
			Description: "Declare a new subtask goal you are about to work on.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":        map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
				},
				"required": []string{"name"},
			},
		},
		{
			Name:        completeGoalTool,
			Description: "Mark the named goal as complete, succeeded or failed.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":    map[string]any{"type": "string"},
					"success": map[string]any{"type": "boolean"},
				},
				"required": []string{"name", "success"},
			},
		},
	}
}

type turnLoopInput struct {
	agent     *agentfile.Agent
	input     string
	tools     []*model.ToolDefinition
	toolOwner map[string]string
	callers   map[string]*mcpproc.Caller
	tracker   *goal.Tracker
	client    model.Client
	maxSteps  int
}

// driveTurnLoop runs the LLM turn loop: send the conversation to the model,
// execute any requested tool calls, append their results, and repeat until
// the model stops calling tools, the step cap is reached, or the context is
// canceled. It returns the full chronological trace list alongside the
// final assistant text.
func (r *Runner) driveTurnLoop(ctx context.Context, in turnLoopInput) ([]ToolCallTrace, string, string, model.TokenUsage, error) {
	systemPrompt := in.agent.Instructions + "\n" + goalTrackingPrompt
	messages := []*model.Message{
		{Role: model.ConversationRoleSystem, Parts: []model.Part{model.TextPart{Text: systemPrompt}}},
		{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: in.input}}},
	}

	var traces []ToolCallTrace
	var lastText string
	var usage model.TokenUsage

	for step := 0; step < in.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return traces, lastText, "step_limit", usage, err
		}

		_, bareModel := suite.SplitModelID(in.agent.Model)
		req := &model.Request{
			Model:     bareModel,
			Messages:  messages,
			Tools:     in.tools,
			MaxTokens: 4096,
		}

		callStart := r.now()
		resp, err := in.client.Complete(ctx, req)
		duration := r.now().Sub(callStart)
		if err != nil {
			return traces, lastText, "error", usage, fmt.Errorf("model call failed: %w", err)
		}
		usage.InputTokens += resp.Usage.InputTokens
		usage.OutputTokens += resp.Usage.OutputTokens
		usage.TotalTokens += resp.Usage.TotalTokens
		traces = append(traces, ToolCallTrace{
			Type:     TraceLLM,
			Name:     in.agent.Model,
			Duration: duration,
			Tokens:   resp.Usage.TotalTokens,
		})

		for _, msg := range resp.Content {
			messages = append(messages, &msg)
			for _, part := range msg.Parts {
				if tp, ok := part.(model.TextPart); ok && tp.Text != "" {
					lastText = tp.Text
				}
			}
		}

		if len(resp.ToolCalls) == 0 {
			return traces, lastText, "stop", usage, nil
		}

		resultMsg := &model.Message{Role: model.ConversationRoleUser}
		for _, call := range resp.ToolCalls {
			trace, part := r.executeToolCall(ctx, in, call)
			traces = append(traces, trace)
			resultMsg.Parts = append(resultMsg.Parts, part)
		}
		messages = append(messages, resultMsg)
	}

	return traces, lastText, "step_limit", usage, nil
}

// executeToolCall dispatches one requested tool call to either the Goal
// Tracker (for the two injected bookkeeping tools) or the MCP server that
// owns it, and always returns a trace entry plus the ToolResultPart to feed
// back to the model, even on failure.
func (r *Runner) executeToolCall(ctx context.Context, in turnLoopInput, call model.ToolCall) (ToolCallTrace, model.ToolResultPart) {
	start := r.now()
	var args map[string]any
	_ = json.Unmarshal(call.Payload, &args)

	switch call.Name {
	case declareGoalTool:
		name, _ := args["name"].(string)
		desc, _ := args["description"].(string)
		in.tracker.DeclareGoal(name, desc)
		ok := true
		return ToolCallTrace{Type: TraceTool, Name: call.Name, Duration: r.now().Sub(start), Input: args, Success: &ok},
			model.ToolResultPart{ToolUseID: call.ID, Content: `{"success":true}`}
	case completeGoalTool:
		name, _ := args["name"].(string)
		success, _ := args["success"].(bool)
		in.tracker.CompleteGoal(name, success)
		ok := true
		return ToolCallTrace{Type: TraceTool, Name: call.Name, Duration: r.now().Sub(start), Input: args, Success: &ok},
			model.ToolResultPart{ToolUseID: call.ID, Content: `{"success":true}`}
	}

	owner, ok := in.toolOwner[call.Name]
	if !ok {
		failed := false
		msg := fmt.Sprintf("unknown tool %q", call.Name)
		return ToolCallTrace{Type: TraceTool, Name: call.Name, Duration: r.now().Sub(start), Input: args, Success: &failed},
			model.ToolResultPart{ToolUseID: call.ID, Content: msg, IsError: true}
	}
	caller := in.callers[owner]

	result, err := caller.CallTool(ctx, call.Name, call.Payload)
	duration := r.now().Sub(start)
	success := err == nil && !result.IsError
	trace := ToolCallTrace{Type: TraceTool, Name: call.Name, Duration: duration, Input: args, Success: &success}

	if err != nil {
		return trace, model.ToolResultPart{ToolUseID: call.ID, Content: err.Error(), IsError: true}
	}
	return trace, model.ToolResultPart{ToolUseID: call.ID, Content: result.Text, IsError: result.IsError}
}

func summarizeToolCalls(traces []ToolCallTrace) ToolCalls {
	var names []string
	total := 0
	for _, t := range traces {
		if t.Type == TraceTool {
			total++
			names = append(names, t.Name)
		}
	}
	return ToolCalls{Total: total, Names: names, Traces: traces}
}

func goalsOrNil(tracker *goal.Tracker) *Goals {
	tracked := tracker.Tracked()
	if len(tracked) == 0 {
		return nil
	}
	return &Goals{Tracked: tracked, Metrics: tracker.Metrics()}
}

// sanitizeForPath replaces path separators and other characters a model
// identifier like "provider:model-name" may contain with underscores, so it
// can be used as a scratch-directory path component.
func sanitizeForPath(s string) string {
	replacer := strings.NewReplacer(":", "_", "/", "_", "\\", "_")
	return replacer.Replace(s)
}
