// Package aggregate implements the Aggregator: it rolls per-trial results up
// to scenario, agent, and model level, computes cross-model relative
// efficiency, and ranks models by overall score.
package aggregate

import (
	"github.com/agentuse/agentuse/goal"
	"github.com/agentuse/agentuse/suite"
	"github.com/agentuse/agentuse/trialerrors"
)

// Stats is a small latency/cost summary over a sample.
type Stats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median,omitempty"`
	P95    float64 `json:"p95,omitempty"`
	StdDev float64 `json:"stdDev,omitempty"`
	Total  float64 `json:"total,omitempty"`
}

// TokenEfficiency reports mean token consumption per successful trial.
type TokenEfficiency struct {
	InputPerSuccess float64 `json:"inputPerSuccess"`
	OutputPerSuccess float64 `json:"outputPerSuccess"`
	TotalPerSuccess  float64 `json:"totalPerSuccess"`
}

// ToolStat is the per-tool performance breakdown within one scenario
// aggregate.
type ToolStat struct {
	Total          int     `json:"total"`
	Successful     int     `json:"successful"`
	Failed         int     `json:"failed"`
	SuccessRate    float64 `json:"successRate"`
	MeanDurationMs float64 `json:"meanDurationMs"`
	P95DurationMs  float64 `json:"p95DurationMs"`
}

// ErrorDetail is one reported failure. At most the first ten failures per
// model, in trial-group order, are kept as details per §7's "user-visible
// behavior" contract; later ones only increment ErrorSummary.Overflow.
type ErrorDetail struct {
	Scenario string               `json:"scenario"`
	Trial    int                  `json:"trial"`
	Category trialerrors.Category `json:"category"`
	Message  string               `json:"message"`
}

// ErrorSummary rolls up trial failures by category with a bounded detail
// list and an overflow count.
type ErrorSummary struct {
	CountsByCategory map[trialerrors.Category]int `json:"countsByCategory,omitempty"`
	Details          []ErrorDetail                `json:"details,omitempty"`
	Overflow         int                           `json:"overflow,omitempty"`
}

const maxErrorDetails = 10

// ScenarioResult is the per-scenario aggregate for one (model, agent)
// combination.
type ScenarioResult struct {
	ScenarioID   string          `json:"scenarioId"`
	ScenarioName string          `json:"scenarioName"`
	Difficulty   suite.Difficulty `json:"difficulty,omitempty"`
	Trials       int             `json:"trials"`

	CompletionRate float64 `json:"completionRate"`
	PassK          float64 `json:"passK"`
	Consistency    float64 `json:"consistency"`

	Latency Stats `json:"latency"`
	Cost    Stats `json:"cost"`

	CostPerSuccess float64 `json:"costPerSuccess,omitempty"`

	Tools map[string]ToolStat `json:"tools,omitempty"`

	ErrorsByCategory map[trialerrors.Category]int `json:"errorsByCategory,omitempty"`

	TokenEfficiency TokenEfficiency `json:"tokenEfficiency"`
	GoalMetrics     goal.Metrics    `json:"goalMetrics"`

	// Efficiency and ToolCallEfficiency are populated by the cross-model
	// relative-efficiency pass; zero until that pass runs.
	Efficiency         float64 `json:"efficiency"`
	ToolCallEfficiency float64 `json:"toolCallEfficiency"`

	meanToolCalls   float64
	meanAvgAttempts float64
}

// AgentResult is the per-agent aggregate: means of its scenarios' metrics.
type AgentResult struct {
	AgentPath string           `json:"agentPath"`
	Scenarios []ScenarioResult `json:"scenarios"`

	PassK          float64 `json:"passK"`
	CompletionRate float64 `json:"completionRate"`
	Efficiency     float64 `json:"efficiency"`
	WeightedPassK  float64 `json:"weightedPassK"`
}

// ModelResult is the per-model aggregate: means of its agents' metrics,
// the overall and weighted scores, and this model's rank.
type ModelResult struct {
	Model string        `json:"model"`
	Agents []AgentResult `json:"agents"`

	PassK          float64 `json:"passK"`
	CompletionRate float64 `json:"completionRate"`
	Efficiency     float64 `json:"efficiency"`

	OverallScore   float64 `json:"overallScore"`
	WeightedScore  float64 `json:"weightedScore"`
	Rank           int     `json:"rank"`

	Errors ErrorSummary `json:"errors"`
}

// SuiteResult is the complete aggregate for one suite run across every
// model under test.
type SuiteResult struct {
	SuiteID string        `json:"suiteId"`
	Name    string        `json:"name"`
	Models  []ModelResult `json:"models"`
}
