package report

import (
	"bytes"
	"html/template"
)

// htmlFuncs mirrors the formatting helpers available to the Markdown
// renderer so the HTML template can render the same numbers the same way.
var htmlFuncs = template.FuncMap{
	"duration": formatDuration,
	"cost":     formatCost,
	"percent":  formatPercent,
	"tokens":   formatTokens,
}

var htmlReportTemplate = template.Must(template.New("report").Funcs(htmlFuncs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.SuiteName}}</title>
<style>
body { font-family: -apple-system, sans-serif; margin: 2rem; color: #1a1a1a; }
table { border-collapse: collapse; margin-bottom: 1.5rem; width: 100%; }
th, td { border: 1px solid #ddd; padding: 0.4rem 0.6rem; text-align: left; font-size: 0.9rem; }
th { background: #f4f4f4; }
h1, h2, h3 { margin-top: 2rem; }
.meta { color: #666; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>{{.SuiteName}}</h1>
<p class="meta">Run {{.RunID}} generated {{.GeneratedAt}}.</p>

<h2>Leaderboard</h2>
<table>
<tr><th>Rank</th><th>Model</th><th>Pass@k</th><th>Completion</th><th>Efficiency</th><th>Overall</th></tr>
{{range .Result.Models}}<tr>
<td>{{.Rank}}</td><td>{{.Model}}</td><td>{{percent .PassK}}</td><td>{{percent .CompletionRate}}</td>
<td>{{percent .Efficiency}}</td><td>{{printf "%.1f" .OverallScore}}</td>
</tr>{{end}}
</table>

{{range .Result.Models}}
<h2>{{.Model}}</h2>
{{range .Agents}}
<h3>{{.AgentPath}}</h3>
<table>
<tr><th>Scenario</th><th>Trials</th><th>Completion</th><th>Pass@k</th><th>Consistency</th><th>Latency</th><th>Cost</th><th>Efficiency</th></tr>
{{range .Scenarios}}<tr>
<td>{{.ScenarioName}}</td><td>{{.Trials}}</td><td>{{percent .CompletionRate}}</td><td>{{percent .PassK}}</td>
<td>{{percent .Consistency}}</td><td>{{duration .Latency.Mean}}</td><td>{{cost .Cost.Mean}}</td><td>{{percent .Efficiency}}</td>
</tr>{{end}}
</table>
{{end}}
{{if .Errors.Details}}
<h4>Errors</h4>
<table>
<tr><th>Scenario</th><th>Trial</th><th>Category</th><th>Message</th></tr>
{{range .Errors.Details}}<tr><td>{{.Scenario}}</td><td>{{.Trial}}</td><td>{{.Category}}</td><td>{{.Message}}</td></tr>{{end}}
</table>
{{if .Errors.Overflow}}<p class="meta">{{.Errors.Overflow}} additional error(s) omitted.</p>{{end}}
{{end}}
{{end}}
</body>
</html>
`))

// RenderHTML renders a self-contained styled HTML report. html/template's
// contextual auto-escaping is the reason for using it rather than
// text/template: this is the one renderer whose output is untrusted
// HTML (scenario names, error messages) destined for a browser.
func RenderHTML(data ReportData) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlReportTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
