package report

import "encoding/json"

// RenderJSON emits the suite result verbatim: the JSON form is the
// canonical, authoritative representation of a run's outcome, so this
// renderer does nothing but marshal the record with stable field order and
// human-readable indentation.
func RenderJSON(data ReportData) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}
