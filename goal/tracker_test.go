package goal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestDeclareGoalAbandonsPriorActive(t *testing.T) {
	tr := New(fixedClock(time.Unix(0, 0)))
	tr.DeclareGoal("first", "")
	tr.DeclareGoal("second", "")

	goals := tr.Tracked()
	require.Len(t, goals, 2)
	assert.Equal(t, StatusAbandoned, goals[0].Status)
	assert.Equal(t, StatusActive, goals[1].Status)
}

func TestCompleteGoalRetroactive(t *testing.T) {
	tr := New(fixedClock(time.Unix(0, 0)))
	tr.CompleteGoal("never-declared", true)

	goals := tr.Tracked()
	require.Len(t, goals, 1)
	assert.Equal(t, StatusCompleted, goals[0].Status)
}

func TestRecordToolCallOnlyWhenActive(t *testing.T) {
	tr := New(fixedClock(time.Unix(0, 0)))
	tr.RecordToolCall("ignored", true, time.Millisecond)
	tr.DeclareGoal("g1", "")
	tr.RecordToolCall("read_file", true, time.Millisecond)
	tr.CompleteGoal("g1", true)

	goals := tr.Tracked()
	require.Len(t, goals, 1)
	assert.Len(t, goals[0].ToolCalls, 1)
}

func TestMetricsRecoveryRateDefaultsToOneWithNoFailures(t *testing.T) {
	tr := New(fixedClock(time.Unix(0, 0)))
	tr.DeclareGoal("g1", "")
	tr.RecordToolCall("ok", true, time.Millisecond)
	tr.CompleteGoal("g1", true)

	m := tr.Metrics()
	assert.Equal(t, 1.0, m.RecoveryRate)
	assert.Equal(t, 1.0, m.GoalCompletionRate)
	assert.Equal(t, 1.0, m.ToolCallSuccessRate)
}

func TestMetricsRecoveryRateWithFailedAndRecoveredGoal(t *testing.T) {
	tr := New(fixedClock(time.Unix(0, 0)))
	tr.DeclareGoal("g1", "")
	tr.RecordToolCall("bad", false, time.Millisecond)
	tr.RecordToolCall("good", true, time.Millisecond)
	tr.CompleteGoal("g1", true)

	tr.DeclareGoal("g2", "")
	tr.RecordToolCall("bad", false, time.Millisecond)
	tr.CompleteGoal("g2", false)

	m := tr.Metrics()
	assert.Equal(t, 0.5, m.GoalCompletionRate)
	assert.InDelta(t, 0.5, m.RecoveryRate, 1e-9)
}

func TestCompleteGoalIsNoopOnceTerminal(t *testing.T) {
	tick := 0
	clock := func() time.Time {
		tick++
		return time.Unix(int64(tick), 0)
	}
	tr := New(clock)
	tr.DeclareGoal("g1", "")
	tr.CompleteGoal("g1", true)

	goals := tr.Tracked()
	require.Len(t, goals, 1)
	firstEnd := goals[0].EndTime

	// A second completion for the same goal (e.g. a duplicate
	// benchmark__complete_goal call) must not transition the goal again.
	tr.CompleteGoal("g1", false)

	goals = tr.Tracked()
	require.Len(t, goals, 1)
	assert.Equal(t, StatusCompleted, goals[0].Status)
	assert.Equal(t, firstEnd, goals[0].EndTime)
}

func TestProcessTracesAbandonsStillActiveGoalsAtEnd(t *testing.T) {
	tr := New(fixedClock(time.Unix(0, 0)))
	tr.DeclareGoal("g1", "")

	tr.ProcessTraces([]TraceEvent{
		{Kind: "tool", Name: declareGoalTool, Input: map[string]any{"name": "g1"}},
		{Kind: "tool", Name: "read_file", Success: true, Duration: time.Millisecond},
	})

	goals := tr.Tracked()
	require.Len(t, goals, 1)
	assert.Equal(t, StatusAbandoned, goals[0].Status)
	assert.Len(t, goals[0].ToolCalls, 1)
}

func TestMetricsEmptyIsZeroValue(t *testing.T) {
	tr := New(fixedClock(time.Unix(0, 0)))
	m := tr.Metrics()
	assert.Equal(t, 0, m.TotalGoals)
	assert.Equal(t, 0.0, m.RecoveryRate)
}
