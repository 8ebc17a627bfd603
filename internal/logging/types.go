package logging

import "time"

// #region run-entry
// RunEntry is a single row in the report_runs table.
type RunEntry struct {
	RunID        string
	Mode         string // "db" | "fixture"
	Metric       string
	Selected     int
	Excluded     int
	AssessmentID string
	SummaryJSON  string
	Integrity    string // "pass" | "fail"
	Reason       string
	CreatedAt    time.Time
}
// #endregion run-entry
