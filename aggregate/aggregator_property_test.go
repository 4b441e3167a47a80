package aggregate

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/agentuse/agentuse/suite"
	"github.com/agentuse/agentuse/trial"
)

func trialsWithSuccesses(n, successes int) []trial.Result {
	out := make([]trial.Result, n)
	for i := 0; i < n; i++ {
		out[i] = trial.Result{
			TrialNumber: i + 1,
			Execution:   trial.Execution{Success: i < successes, DurationMs: 100},
			Output:      trial.Output{Valid: i < successes},
		}
	}
	return out
}

// TestPassKIdentityProperty verifies testable property 3: for every
// scenario, passK = 1 - (1 - completionRate)^runs to within 1e-9.
func TestPassKIdentityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("passK matches the closed-form identity", prop.ForAll(
		func(n, successes int) bool {
			if successes > n {
				successes = n
			}
			group := TrialGroup{
				Model:     "model-a",
				AgentPath: "agent.md",
				Scenario:  suite.Scenario{ID: "s1", Name: "s1"},
				Trials:    trialsWithSuccesses(n, successes),
			}
			result := New().Aggregate("suite-1", "Suite", []TrialGroup{group})

			sr := result.Models[0].Agents[0].Scenarios[0]
			p := float64(successes) / float64(n)
			want := 1 - math.Pow(1-p, float64(n))
			return math.Abs(sr.PassK-want) < 1e-9
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}

// TestRankingTotalityProperty verifies testable property 4: every model
// appears exactly once in the ranking, and ranks are a permutation of
// 1..|models|.
func TestRankingTotalityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("ranks form a permutation of 1..N", prop.ForAll(
		func(successCounts []int) bool {
			var groups []TrialGroup
			for i, sc := range successCounts {
				modelID := modelName(i)
				groups = append(groups, TrialGroup{
					Model:     modelID,
					AgentPath: "agent.md",
					Scenario:  suite.Scenario{ID: "s1", Name: "s1"},
					Trials:    trialsWithSuccesses(5, clamp(sc, 0, 5)),
				})
			}
			result := New().Aggregate("suite-1", "Suite", groups)

			seen := make(map[int]bool)
			seenModel := make(map[string]int)
			for _, m := range result.Models {
				seenModel[m.Model]++
				seen[m.Rank] = true
			}
			for _, count := range seenModel {
				if count != 1 {
					return false
				}
			}
			if len(seen) != len(result.Models) {
				return false
			}
			for rank := 1; rank <= len(result.Models); rank++ {
				if !seen[rank] {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(5, gen.IntRange(0, 5)),
	))

	properties.TestingRun(t)
}

// TestRelativeEfficiencyReferentProperty verifies testable property 5: for
// each scenario where at least one model has a successful trial (hence a
// positive mean tool-call count), at least one model's scenario efficiency
// equals 1.0.
func TestRelativeEfficiencyReferentProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("at least one model reaches efficiency 1.0 when any model succeeded", prop.ForAll(
		func(toolCallCounts []int) bool {
			var groups []TrialGroup
			anyPositive := false
			for i, tc := range toolCallCounts {
				if tc > 0 {
					anyPositive = true
				}
				groups = append(groups, TrialGroup{
					Model:     modelName(i),
					AgentPath: "agent.md",
					Scenario:  suite.Scenario{ID: "s1", Name: "s1"},
					Trials:    []trial.Result{successfulWithToolCalls(tc)},
				})
			}
			if !anyPositive {
				return true // vacuously satisfied; no model had a successful trial
			}

			result := New().Aggregate("suite-1", "Suite", groups)
			for _, m := range result.Models {
				for _, ag := range m.Agents {
					for _, sr := range ag.Scenarios {
						if sr.Efficiency == 1.0 {
							return true
						}
					}
				}
			}
			return false
		},
		gen.SliceOfN(5, gen.IntRange(0, 10)),
	))

	properties.TestingRun(t)
}

func successfulWithToolCalls(toolCalls int) trial.Result {
	return trial.Result{
		TrialNumber: 1,
		Execution:   trial.Execution{Success: toolCalls > 0, DurationMs: 100},
		Output:      trial.Output{Valid: toolCalls > 0},
		ToolCalls:   trial.ToolCalls{Total: toolCalls},
	}
}

func modelName(i int) string {
	names := []string{"model-a", "model-b", "model-c", "model-d", "model-e"}
	return names[i%len(names)]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
