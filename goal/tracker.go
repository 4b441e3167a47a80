package goal

import "time"

const (
	declareGoalTool  = "benchmark__declare_goal"
	completeGoalTool = "benchmark__complete_goal"
)

// TraceEvent is the minimal view of a trial trace entry the Goal Tracker
// needs to reconcile goal declarations against tool-call attribution. The
// Trial Runner converts its richer ToolCallTrace into this shape rather than
// the goal package depending on the trial package, avoiding an import
// cycle between the two core components.
type TraceEvent struct {
	// Kind is "llm", "tool", or "subagent", matching ToolCallTrace.Type.
	Kind string
	// Name is the tool or trace name; for Kind=="tool" this is the tool
	// identifier, including the two goal-tracking tool names.
	Name string
	// Input is the raw tool input, used to extract the "name" argument
	// from declare/complete calls.
	Input   map[string]any
	Success bool
	Duration time.Duration
}

// Tracker is a trial-local goal state machine. It is a single-owner actor:
// every method must be called from the trial's own goroutine. Nothing here
// is safe for concurrent use, matching the spec's treatment of the tracker
// as trial-scoped, non-shared state.
type Tracker struct {
	now func() time.Time

	nextID  int
	active  string // name of the currently active goal, "" if none
	byName  map[string]*Tracked
	order   []string // declaration order, for stable Tracked() output
}

// New constructs a Tracker for one trial. now defaults to time.Now; tests
// inject a fixed clock for deterministic StartTime/EndTime assertions.
func New(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now, byName: make(map[string]*Tracked)}
}

// DeclareGoal records a new goal declaration. If a goal is already active,
// it is marked Abandoned with EndTime set to now before the new goal is
// created. Duplicate declarations for the same name overwrite the prior
// entry, matching the spec's explicit "duplicate declarations overwrite"
// rule.
func (t *Tracker) DeclareGoal(name, description string) {
	if t.active != "" && t.active != name {
		t.abandon(t.active)
	}
	t.nextID++
	g := &Tracked{
		ID:          t.nextID,
		Name:        name,
		Description: description,
		StartTime:   t.now(),
		Status:      StatusActive,
	}
	if _, existed := t.byName[name]; !existed {
		t.order = append(t.order, name)
	}
	t.byName[name] = g
	t.active = name
}

// CompleteGoal records a completion or failure. If the named goal was never
// declared, it is created retroactively so the event is still accounted,
// matching the spec's "create it retroactively" rule.
func (t *Tracker) CompleteGoal(name string, success bool) {
	g, ok := t.byName[name]
	if !ok {
		t.nextID++
		g = &Tracked{ID: t.nextID, Name: name, StartTime: t.now()}
		t.byName[name] = g
		t.order = append(t.order, name)
	}
	if t.active == name {
		t.active = ""
	}
	if g.Status.terminal() {
		return
	}
	if success {
		g.Status = StatusCompleted
	} else {
		g.Status = StatusFailed
	}
	g.EndTime = t.now()
}

// RecordToolCall attributes a tool call to the currently active goal, if
// any. Calls made while no goal is active are not attributed to any goal.
func (t *Tracker) RecordToolCall(toolName string, success bool, duration time.Duration) {
	if t.active == "" {
		return
	}
	g := t.byName[t.active]
	g.ToolCalls = append(g.ToolCalls, ToolCallRecord{ToolName: toolName, Success: success, Duration: duration})
}

func (t *Tracker) abandon(name string) {
	g, ok := t.byName[name]
	if !ok || g.Status.terminal() {
		return
	}
	g.Status = StatusAbandoned
	g.EndTime = t.now()
}

// ProcessTraces reconciles a trial's full trace stream with the
// declare/complete tool calls already reflected by prior Declare/Complete
// calls during execution. It walks traces in order, tracking which goal is
// "current" so any other tool-typed trace can be attributed to it, then
// marks every goal still Active as Abandoned at the end.
//
// The declare/complete side effects themselves already ran during
// execution via DeclareGoal/CompleteGoal; this pass only derives
// ToolCallRecord attribution for traces whose tool calls happened outside
// of those two.
func (t *Tracker) ProcessTraces(traces []TraceEvent) {
	current := ""
	for _, tr := range traces {
		if tr.Kind != "tool" {
			continue
		}
		switch tr.Name {
		case declareGoalTool:
			if name, ok := tr.Input["name"].(string); ok {
				current = name
			}
			continue
		case completeGoalTool:
			current = ""
			continue
		}
		if current == "" {
			continue
		}
		g, ok := t.byName[current]
		if !ok {
			continue
		}
		g.ToolCalls = append(g.ToolCalls, ToolCallRecord{ToolName: tr.Name, Success: tr.Success, Duration: tr.Duration})
	}

	for _, name := range t.order {
		g := t.byName[name]
		if g.Status == StatusActive {
			g.Status = StatusAbandoned
			g.EndTime = t.now()
		}
	}
}

// Tracked returns every declared goal in declaration order.
func (t *Tracker) Tracked() []Tracked {
	out := make([]Tracked, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, *t.byName[name])
	}
	return out
}

// Metrics computes the GoalMetrics formulas from §4.C over the tracker's
// current state.
func (t *Tracker) Metrics() Metrics {
	goals := t.Tracked()
	m := Metrics{TotalGoals: len(goals)}
	if len(goals) == 0 {
		return m
	}

	var totalCalls, successfulCalls int
	var failedGoals, recoveredFailedGoals int
	for _, g := range goals {
		if g.Status == StatusCompleted {
			m.CompletedGoals++
		}
		totalCalls += len(g.ToolCalls)
		hadFailure := false
		for _, tc := range g.ToolCalls {
			if tc.Success {
				successfulCalls++
			} else {
				hadFailure = true
			}
		}
		if hadFailure {
			failedGoals++
			if g.Status == StatusCompleted {
				recoveredFailedGoals++
			}
		}
	}

	m.GoalCompletionRate = float64(m.CompletedGoals) / float64(m.TotalGoals)
	m.AvgAttemptsPerGoal = float64(totalCalls) / float64(m.TotalGoals)
	if totalCalls > 0 {
		m.ToolCallSuccessRate = float64(successfulCalls) / float64(totalCalls)
	}
	m.ToolCallFailureRate = 1 - m.ToolCallSuccessRate
	if failedGoals == 0 {
		m.RecoveryRate = 1
	} else {
		m.RecoveryRate = float64(recoveredFailedGoals) / float64(failedGoals)
	}
	return m
}
