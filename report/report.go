// Package report builds the single intermediate ReportData record from a
// SuiteResult and renders it to JSON, Markdown, and HTML. The three
// renderers are pure functions over ReportData; none perform their own I/O
// or depend on wall-clock time beyond the single GeneratedAt field already
// stamped into the record.
package report

import (
	"fmt"

	"github.com/agentuse/agentuse/aggregate"
)

// ReportData is the stable intermediate record every renderer consumes. It
// carries no time-dependent fields other than GeneratedAt, set once when
// the record is built.
type ReportData struct {
	SuiteID     string                `json:"suiteId"`
	SuiteName   string                `json:"suiteName"`
	RunID       string                `json:"runId"`
	GeneratedAt string                `json:"generatedAt"` // RFC3339, stamped once by Build
	Result      aggregate.SuiteResult `json:"result"`
}

// Build assembles a ReportData from an aggregated SuiteResult. generatedAt
// is passed in already formatted (RFC3339) so callers control the time
// source and tests can pin it.
func Build(result aggregate.SuiteResult, runID, generatedAt string) ReportData {
	return ReportData{
		SuiteID:     result.SuiteID,
		SuiteName:   result.Name,
		RunID:       runID,
		GeneratedAt: generatedAt,
		Result:      result,
	}
}

// FileName returns the report artifact's file name for the given
// extension ("json", "md", "html"), per the fixed "{suiteId}-{runId}.{ext}"
// naming contract.
func (d ReportData) FileName(ext string) string {
	return fmt.Sprintf("%s-%s.%s", d.SuiteID, d.RunID, ext)
}
