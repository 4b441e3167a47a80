package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentuse/agentuse/goal"
	"github.com/agentuse/agentuse/suite"
	"github.com/agentuse/agentuse/trial"
	"github.com/agentuse/agentuse/trialerrors"
)

func successTrial(n int, toolCalls int) trial.Result {
	cost := 0.01
	return trial.Result{
		TrialNumber: n,
		Execution:   trial.Execution{Success: true, DurationMs: 1000},
		Usage:       trial.Usage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150, EstimatedCostUSD: &cost},
		ToolCalls:   trial.ToolCalls{Total: toolCalls},
		Output:      trial.Output{Valid: true},
	}
}

func failedTrial(n int, category trialerrors.Category) trial.Result {
	return trial.Result{
		TrialNumber: n,
		Execution: trial.Execution{
			Success: false, DurationMs: 500,
			Error: &trial.ExecutionError{Type: string(category), Category: category},
		},
	}
}

func TestAggregateScenarioBasic(t *testing.T) {
	groups := []TrialGroup{
		{
			Model:     "anthropic:claude",
			AgentPath: "agents/a.md",
			Scenario:  suite.Scenario{ID: "s1", Name: "scenario one"},
			Trials:    []trial.Result{successTrial(1, 2), successTrial(2, 2), failedTrial(3, "runtime_error")},
		},
	}

	result := New().Aggregate("suite-1", "Suite One", groups)
	require.Len(t, result.Models, 1)
	m := result.Models[0]
	require.Len(t, m.Agents, 1)
	require.Len(t, m.Agents[0].Scenarios, 1)

	sc := m.Agents[0].Scenarios[0]
	assert.InDelta(t, 2.0/3.0, sc.CompletionRate, 1e-9)
	assert.Equal(t, 1, m.Errors.CountsByCategory["runtime_error"])
	assert.Equal(t, 1, result.Models[0].Rank)
}

func TestCrossModelEfficiencyReferencesSmallestMean(t *testing.T) {
	groups := []TrialGroup{
		{
			Model: "fast-model", AgentPath: "agents/a.md",
			Scenario: suite.Scenario{ID: "s1"},
			Trials:   []trial.Result{successTrial(1, 2)},
		},
		{
			Model: "slow-model", AgentPath: "agents/a.md",
			Scenario: suite.Scenario{ID: "s1"},
			Trials:   []trial.Result{successTrial(1, 4)},
		},
	}

	result := New().Aggregate("suite-1", "Suite One", groups)
	byModel := map[string]ModelResult{}
	for _, m := range result.Models {
		byModel[m.Model] = m
	}

	fast := byModel["fast-model"].Agents[0].Scenarios[0]
	slow := byModel["slow-model"].Agents[0].Scenarios[0]
	assert.Equal(t, 1.0, fast.Efficiency)
	assert.InDelta(t, 0.5, slow.Efficiency, 1e-9)
}

func TestRankingOrdersByOverallScoreDescending(t *testing.T) {
	groups := []TrialGroup{
		{Model: "a", AgentPath: "x.md", Scenario: suite.Scenario{ID: "s"}, Trials: []trial.Result{successTrial(1, 1)}},
		{Model: "b", AgentPath: "x.md", Scenario: suite.Scenario{ID: "s"}, Trials: []trial.Result{failedTrial(1, "timeout")}},
	}
	result := New().Aggregate("suite-1", "Suite", groups)
	require.Len(t, result.Models, 2)
	assert.Equal(t, "a", result.Models[0].Model)
	assert.Equal(t, 1, result.Models[0].Rank)
	assert.Equal(t, 2, result.Models[1].Rank)
}

func TestGoalMetricsAveragedAcrossTrials(t *testing.T) {
	tr1 := successTrial(1, 1)
	tr1.Goals = &trial.Goals{Metrics: goal.Metrics{GoalCompletionRate: 1.0}}
	tr2 := successTrial(2, 1)
	tr2.Goals = &trial.Goals{Metrics: goal.Metrics{GoalCompletionRate: 0.0}}

	groups := []TrialGroup{
		{Model: "m", AgentPath: "x.md", Scenario: suite.Scenario{ID: "s"}, Trials: []trial.Result{tr1, tr2}},
	}
	result := New().Aggregate("suite-1", "Suite", groups)
	sc := result.Models[0].Agents[0].Scenarios[0]
	assert.InDelta(t, 0.5, sc.GoalMetrics.GoalCompletionRate, 1e-9)
}
