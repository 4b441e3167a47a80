package aggregate

import (
	"math"
	"sort"

	"github.com/agentuse/agentuse/goal"
	"github.com/agentuse/agentuse/suite"
	"github.com/agentuse/agentuse/trial"
	"github.com/agentuse/agentuse/trialerrors"
)

// TrialGroup is every trial executed for one (model, agent, scenario)
// combination: the unit the Aggregator folds into one ScenarioResult.
type TrialGroup struct {
	Model     string
	AgentPath string
	Scenario  suite.Scenario
	Trials    []trial.Result
}

// agentKey identifies one (model, agent) combination while grouping
// scenario aggregates before the per-agent rollup.
type agentKey struct{ model, agent string }

// Aggregator rolls trial results up into a ranked SuiteResult.
type Aggregator struct{}

// New constructs an Aggregator. It holds no state; a single instance may be
// reused across runs.
func New() *Aggregator { return &Aggregator{} }

// Aggregate folds every TrialGroup from one suite run into a ranked
// SuiteResult: per-scenario aggregates, per-agent and per-model rollups,
// the cross-model relative-efficiency pass, and final ranking.
func (a *Aggregator) Aggregate(suiteID, name string, groups []TrialGroup) SuiteResult {
	scenariosByAgent := make(map[agentKey][]*ScenarioResult)

	var modelOrder []string
	modelSeen := make(map[string]bool)
	var agentOrderByModel = make(map[string][]string)
	agentSeen := make(map[agentKey]bool)

	for _, g := range groups {
		sr := aggregateScenario(g)
		key := agentKey{g.Model, g.AgentPath}
		scenariosByAgent[key] = append(scenariosByAgent[key], sr)

		if !modelSeen[g.Model] {
			modelSeen[g.Model] = true
			modelOrder = append(modelOrder, g.Model)
		}
		if !agentSeen[key] {
			agentSeen[key] = true
			agentOrderByModel[g.Model] = append(agentOrderByModel[g.Model], g.AgentPath)
		}
	}

	applyCrossModelEfficiency(scenariosByAgent)

	models := make([]ModelResult, 0, len(modelOrder))
	for _, m := range modelOrder {
		var agents []AgentResult
		for _, ap := range agentOrderByModel[m] {
			scenarios := scenariosByAgent[agentKey{m, ap}]
			agents = append(agents, aggregateAgent(ap, scenarios))
		}
		models = append(models, aggregateModel(m, agents, groups))
	}

	rankModels(models)

	return SuiteResult{SuiteID: suiteID, Name: name, Models: models}
}

func aggregateScenario(g TrialGroup) *ScenarioResult {
	n := len(g.Trials)
	sr := &ScenarioResult{
		ScenarioID:   g.Scenario.ID,
		ScenarioName: g.Scenario.Name,
		Difficulty:   g.Scenario.Difficulty,
		Trials:       n,
		Tools:        map[string]ToolStat{},
	}
	if n == 0 {
		return sr
	}

	var successes int
	outcomes := make([]float64, n)
	var latencies, costs []float64
	var inputTok, outputTok, totalTok []float64
	errorsByCategory := map[trialerrors.Category]int{}
	toolAgg := map[string]*toolAccum{}
	var goalMetricsSum goal.Metrics
	var goalSamples int
	var toolCallCounts []float64
	var avgAttempts []float64

	for i, t := range g.Trials {
		latencies = append(latencies, float64(t.Execution.DurationMs))
		if t.Execution.Success {
			successes++
			outcomes[i] = 1
		}
		if t.Usage.EstimatedCostUSD != nil {
			costs = append(costs, *t.Usage.EstimatedCostUSD)
		}
		if t.Execution.Error != nil {
			errorsByCategory[t.Execution.Error.Category]++
		}

		validSuccess := t.Execution.Success && t.Output.Valid
		if validSuccess {
			inputTok = append(inputTok, float64(t.Usage.InputTokens))
			outputTok = append(outputTok, float64(t.Usage.OutputTokens))
			totalTok = append(totalTok, float64(t.Usage.TotalTokens))
			toolCallCounts = append(toolCallCounts, float64(t.ToolCalls.Total))
		}

		for _, tc := range t.ToolCalls.Traces {
			if tc.Type != trial.TraceTool {
				continue
			}
			acc := toolAgg[tc.Name]
			if acc == nil {
				acc = &toolAccum{}
				toolAgg[tc.Name] = acc
			}
			acc.total++
			if tc.Success != nil && *tc.Success {
				acc.successful++
			} else {
				acc.failed++
			}
			acc.durationsMs = append(acc.durationsMs, float64(tc.Duration.Milliseconds()))
		}

		if t.Goals != nil {
			goalSamples++
			goalMetricsSum.GoalCompletionRate += t.Goals.Metrics.GoalCompletionRate
			goalMetricsSum.AvgAttemptsPerGoal += t.Goals.Metrics.AvgAttemptsPerGoal
			goalMetricsSum.ToolCallSuccessRate += t.Goals.Metrics.ToolCallSuccessRate
			goalMetricsSum.ToolCallFailureRate += t.Goals.Metrics.ToolCallFailureRate
			goalMetricsSum.RecoveryRate += t.Goals.Metrics.RecoveryRate
			goalMetricsSum.TotalGoals += t.Goals.Metrics.TotalGoals
			goalMetricsSum.CompletedGoals += t.Goals.Metrics.CompletedGoals
			if validSuccess {
				avgAttempts = append(avgAttempts, t.Goals.Metrics.AvgAttemptsPerGoal)
			}
		}
	}

	p := float64(successes) / float64(n)
	sr.CompletionRate = p
	sr.PassK = 1 - math.Pow(1-p, float64(n))
	sr.Consistency = 1 - stddev(outcomes)

	sr.Latency = summarize(latencies)
	sr.Cost = summarize(costs)
	if len(costs) > 0 {
		sr.Cost.Total = sum(costs)
	}
	if successes > 0 && len(costs) > 0 {
		var successCosts []float64
		for _, t := range g.Trials {
			if t.Execution.Success && t.Usage.EstimatedCostUSD != nil {
				successCosts = append(successCosts, *t.Usage.EstimatedCostUSD)
			}
		}
		sr.CostPerSuccess = mean(successCosts)
	}

	sr.ErrorsByCategory = errorsByCategory

	for name, acc := range toolAgg {
		rate := 0.0
		if acc.total > 0 {
			rate = float64(acc.successful) / float64(acc.total)
		}
		st := summarize(acc.durationsMs)
		sr.Tools[name] = ToolStat{
			Total:          acc.total,
			Successful:     acc.successful,
			Failed:         acc.failed,
			SuccessRate:    rate,
			MeanDurationMs: st.Mean,
			P95DurationMs:  st.P95,
		}
	}

	sr.TokenEfficiency = TokenEfficiency{
		InputPerSuccess:  mean(inputTok),
		OutputPerSuccess: mean(outputTok),
		TotalPerSuccess:  mean(totalTok),
	}

	if goalSamples > 0 {
		sr.GoalMetrics = goal.Metrics{
			TotalGoals:          goalMetricsSum.TotalGoals,
			CompletedGoals:      goalMetricsSum.CompletedGoals,
			GoalCompletionRate:  goalMetricsSum.GoalCompletionRate / float64(goalSamples),
			AvgAttemptsPerGoal:  goalMetricsSum.AvgAttemptsPerGoal / float64(goalSamples),
			ToolCallSuccessRate: goalMetricsSum.ToolCallSuccessRate / float64(goalSamples),
			ToolCallFailureRate: goalMetricsSum.ToolCallFailureRate / float64(goalSamples),
			RecoveryRate:        goalMetricsSum.RecoveryRate / float64(goalSamples),
		}
	}

	sr.meanToolCalls = mean(toolCallCounts)
	sr.meanAvgAttempts = mean(avgAttempts)

	return sr
}

type toolAccum struct {
	total, successful, failed int
	durationsMs                []float64
}

// applyCrossModelEfficiency runs the second aggregation pass: for each
// scenario identity (agent path + scenario ID) shared across models, the
// model with the smallest mean successful-trial tool-call count becomes the
// reference and every model's efficiency is min/theirMean (0 if theirs is
// 0). A parallel pass computes toolCallEfficiency the same way using
// avgAttemptsPerGoal.
func applyCrossModelEfficiency(byAgent map[agentKey][]*ScenarioResult) {
	type identity struct{ agent, scenario string }
	byIdentity := make(map[identity][]*ScenarioResult)
	for key, scenarios := range byAgent {
		for _, sr := range scenarios {
			id := identity{key.agent, sr.ScenarioID}
			byIdentity[id] = append(byIdentity[id], sr)
		}
	}

	for _, scenarios := range byIdentity {
		minToolCalls := minPositive(extract(scenarios, func(s *ScenarioResult) float64 { return s.meanToolCalls }))
		minAttempts := minPositive(extract(scenarios, func(s *ScenarioResult) float64 { return s.meanAvgAttempts }))
		for _, sr := range scenarios {
			sr.Efficiency = relativeEfficiency(sr.meanToolCalls, minToolCalls)
			sr.ToolCallEfficiency = relativeEfficiency(sr.meanAvgAttempts, minAttempts)
		}
	}
}

func relativeEfficiency(mine, min float64) float64 {
	if mine == 0 {
		return 0
	}
	return min / mine
}

func extract(scenarios []*ScenarioResult, f func(*ScenarioResult) float64) []float64 {
	out := make([]float64, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, f(s))
	}
	return out
}

func minPositive(values []float64) float64 {
	min := 0.0
	found := false
	for _, v := range values {
		if v <= 0 {
			continue
		}
		if !found || v < min {
			min = v
			found = true
		}
	}
	return min
}

func aggregateAgent(agentPath string, scenarios []*ScenarioResult) AgentResult {
	flat := make([]ScenarioResult, 0, len(scenarios))
	var passK, completion, efficiency, weightedPassK float64
	var weightTotal float64
	for _, s := range scenarios {
		flat = append(flat, *s)
		passK += s.PassK
		completion += s.CompletionRate
		efficiency += s.Efficiency
		w := float64(s.Difficulty.Weight())
		weightedPassK += s.PassK * w
		weightTotal += w
	}
	n := float64(len(scenarios))
	result := AgentResult{AgentPath: agentPath, Scenarios: flat}
	if n > 0 {
		result.PassK = passK / n
		result.CompletionRate = completion / n
		result.Efficiency = efficiency / n
	}
	if weightTotal > 0 {
		result.WeightedPassK = weightedPassK / weightTotal
	}
	return result
}

func aggregateModel(m string, agents []AgentResult, groups []TrialGroup) ModelResult {
	var passK, completion, efficiency float64
	n := float64(len(agents))
	for _, ag := range agents {
		passK += ag.PassK
		completion += ag.CompletionRate
		efficiency += ag.Efficiency
	}
	result := ModelResult{Model: m, Agents: agents}
	if n > 0 {
		result.PassK = passK / n
		result.CompletionRate = completion / n
		result.Efficiency = efficiency / n
	}
	result.OverallScore = 60*result.PassK + 40*result.Efficiency
	result.WeightedScore = weightedScore(agents)
	result.Errors = buildErrorSummary(m, groups)
	return result
}

func weightedScore(agents []AgentResult) float64 {
	var weightedPassK float64
	n := float64(len(agents))
	if n == 0 {
		return 0
	}
	var efficiency float64
	for _, ag := range agents {
		weightedPassK += ag.WeightedPassK
		efficiency += ag.Efficiency
	}
	return 60*(weightedPassK/n) + 40*(efficiency/n)
}

func buildErrorSummary(m string, groups []TrialGroup) ErrorSummary {
	summary := ErrorSummary{CountsByCategory: map[trialerrors.Category]int{}}
	for _, g := range groups {
		if g.Model != m {
			continue
		}
		for _, t := range g.Trials {
			if t.Execution.Error == nil {
				continue
			}
			summary.CountsByCategory[t.Execution.Error.Category]++
			if len(summary.Details) < maxErrorDetails {
				summary.Details = append(summary.Details, ErrorDetail{
					Scenario: g.Scenario.ID,
					Trial:    t.TrialNumber,
					Category: t.Execution.Error.Category,
					Message:  t.Execution.Error.Message,
				})
			} else {
				summary.Overflow++
			}
		}
	}
	return summary
}

func rankModels(models []ModelResult) {
	sort.SliceStable(models, func(i, j int) bool {
		return models[i].OverallScore > models[j].OverallScore
	})
	for i := range models {
		models[i].Rank = i + 1
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sq float64
	for _, v := range values {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func summarize(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	return Stats{
		Mean:   mean(values),
		Median: median(values),
		P95:    percentile(values, 0.95),
		StdDev: stddev(values),
	}
}
