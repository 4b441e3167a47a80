package report

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders a tabular Markdown report: a leaderboard table
// ranking every model, followed by one section per model breaking its
// result down by agent and scenario.
func RenderMarkdown(data ReportData) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", data.SuiteName)
	fmt.Fprintf(&b, "Run `%s` generated %s.\n\n", data.RunID, data.GeneratedAt)

	b.WriteString("## Leaderboard\n\n")
	b.WriteString("| Rank | Model | Pass@k | Completion | Efficiency | Overall | Errors |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, m := range data.Result.Models {
		errCount := 0
		for _, c := range m.Errors.CountsByCategory {
			errCount += c
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %.1f | %d |\n",
			m.Rank, m.Model,
			formatPercent(m.PassK), formatPercent(m.CompletionRate), formatPercent(m.Efficiency),
			m.OverallScore, errCount)
	}
	b.WriteString("\n")

	for _, m := range data.Result.Models {
		fmt.Fprintf(&b, "## %s\n\n", m.Model)
		for _, ag := range m.Agents {
			fmt.Fprintf(&b, "### %s\n\n", ag.AgentPath)
			b.WriteString("| Scenario | Trials | Completion | Pass@k | Consistency | Latency (mean) | Cost (mean) | Efficiency |\n")
			b.WriteString("|---|---|---|---|---|---|---|---|\n")
			for _, sc := range ag.Scenarios {
				fmt.Fprintf(&b, "| %s | %d | %s | %s | %s | %s | %s | %s |\n",
					sc.ScenarioName, sc.Trials,
					formatPercent(sc.CompletionRate), formatPercent(sc.PassK), formatPercent(sc.Consistency),
					formatDuration(sc.Latency.Mean), formatCost(sc.Cost.Mean), formatPercent(sc.Efficiency))
			}
			b.WriteString("\n")
		}

		if len(m.Errors.Details) > 0 {
			b.WriteString("#### Errors\n\n")
			b.WriteString("| Scenario | Trial | Category | Message |\n")
			b.WriteString("|---|---|---|---|\n")
			for _, e := range m.Errors.Details {
				fmt.Fprintf(&b, "| %s | %d | %s | %s |\n", e.Scenario, e.Trial, e.Category, escapeTableCell(e.Message))
			}
			if m.Errors.Overflow > 0 {
				fmt.Fprintf(&b, "\n_%d additional error(s) omitted._\n", m.Errors.Overflow)
			}
			b.WriteString("\n")
		}
	}

	return []byte(b.String())
}

func escapeTableCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
