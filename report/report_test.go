package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentuse/agentuse/aggregate"
	"github.com/agentuse/agentuse/trialerrors"
)

func sampleResult() aggregate.SuiteResult {
	return aggregate.SuiteResult{
		SuiteID: "suite-1",
		Name:    "Sample Suite",
		Models: []aggregate.ModelResult{
			{
				Model: "anthropic:claude",
				Rank:  1,
				PassK: 0.9, CompletionRate: 0.8, Efficiency: 1.0, OverallScore: 94,
				Agents: []aggregate.AgentResult{
					{
						AgentPath: "agents/researcher.md",
						Scenarios: []aggregate.ScenarioResult{
							{
								ScenarioID: "s1", ScenarioName: "find the file", Trials: 3,
								CompletionRate: 1, PassK: 1, Consistency: 1,
								Latency: aggregate.Stats{Mean: 1200},
								Cost:    aggregate.Stats{Mean: 0.002},
								Efficiency: 1,
							},
						},
					},
				},
				Errors: aggregate.ErrorSummary{
					CountsByCategory: map[trialerrors.Category]int{"timeout": 1},
					Details: []aggregate.ErrorDetail{
						{Scenario: "s1", Trial: 2, Category: "timeout", Message: "deadline exceeded"},
					},
				},
			},
		},
	}
}

func TestBuildAndFileName(t *testing.T) {
	data := Build(sampleResult(), "run-42", "2026-07-31T00:00:00Z")
	assert.Equal(t, "suite-1", data.SuiteID)
	assert.Equal(t, "suite-1-run-42.json", data.FileName("json"))
	assert.Equal(t, "suite-1-run-42.md", data.FileName("md"))
}

func TestRenderJSONIncludesSuiteAndRunIDs(t *testing.T) {
	data := Build(sampleResult(), "run-42", "2026-07-31T00:00:00Z")
	out, err := RenderJSON(data)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"suiteId": "suite-1"`)
	assert.Contains(t, string(out), `"runId": "run-42"`)
}

func TestRenderMarkdownIncludesLeaderboardAndScenario(t *testing.T) {
	data := Build(sampleResult(), "run-42", "2026-07-31T00:00:00Z")
	out := string(RenderMarkdown(data))
	assert.Contains(t, out, "## Leaderboard")
	assert.Contains(t, out, "anthropic:claude")
	assert.Contains(t, out, "find the file")
	assert.Contains(t, out, "deadline exceeded")
}

func TestRenderHTMLEscapesUntrustedContent(t *testing.T) {
	result := sampleResult()
	result.Models[0].Errors.Details[0].Message = "<script>alert(1)</script>"
	data := Build(result, "run-42", "2026-07-31T00:00:00Z")
	out, err := RenderHTML(data)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<script>alert(1)</script>")
	assert.Contains(t, string(out), "&lt;script&gt;")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "500ms", formatDuration(500))
	assert.Equal(t, "1.5s", formatDuration(1500))
	assert.Equal(t, "1m 5s", formatDuration(65000))

	assert.Equal(t, "$0.0050", formatCost(0.005))
	assert.Equal(t, "$0.500", formatCost(0.5))
	assert.Equal(t, "$5.00", formatCost(5))

	assert.Equal(t, "50.0%", formatPercent(0.5))

	assert.Equal(t, "500", formatTokens(500))
	assert.Equal(t, "1.5K", formatTokens(1500))
	assert.Equal(t, "2.0M", formatTokens(2_000_000))
}
