package goal

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// goalEvent is one synthetic declare/complete/tool-call event used to drive
// a Tracker through an arbitrary sequence, then check that ProcessTraces
// always closes every goal.
type goalEvent struct {
	kind    string // "declare", "complete", "tool"
	name    string
	success bool
}

func genGoalEvent() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf("declare", "complete", "tool"),
		gen.OneConstOf("alpha", "beta", "gamma"),
		gen.Bool(),
	).Map(func(vals []any) goalEvent {
		return goalEvent{kind: vals[0].(string), name: vals[1].(string), success: vals[2].(bool)}
	})
}

// TestProcessTracesClosesEveryGoal verifies testable property 2 from the
// spec's goal-state closure invariant: after ProcessTraces, no goal has
// status "active", and every goal's end time is defined iff its status is
// terminal.
func TestProcessTracesClosesEveryGoal(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("no active goals survive ProcessTraces, end times match terminal status", prop.ForAll(
		func(events []goalEvent) bool {
			clockTick := 0
			clock := func() time.Time {
				clockTick++
				return time.Unix(int64(clockTick), 0)
			}
			tr := New(clock)

			var traces []TraceEvent
			for _, e := range events {
				switch e.kind {
				case "declare":
					tr.DeclareGoal(e.name, "")
					traces = append(traces, TraceEvent{Kind: "tool", Name: declareGoalTool, Input: map[string]any{"name": e.name}})
				case "complete":
					tr.CompleteGoal(e.name, e.success)
					traces = append(traces, TraceEvent{Kind: "tool", Name: completeGoalTool})
				case "tool":
					tr.RecordToolCall(e.name, e.success, time.Millisecond)
					traces = append(traces, TraceEvent{Kind: "tool", Name: e.name, Success: e.success})
				}
			}

			tr.ProcessTraces(traces)

			for _, g := range tr.Tracked() {
				if g.Status == StatusActive {
					return false
				}
				endDefined := !g.EndTime.IsZero()
				terminal := g.Status.terminal()
				if endDefined != terminal {
					return false
				}
				if g.EndTime.Before(g.StartTime) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genGoalEvent()),
	))

	properties.TestingRun(t)
}
