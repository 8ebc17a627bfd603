package logging

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// createdLayout is fixed width so created_at sorts chronologically as text.
const createdLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region log-run
// LogRun writes a report run to the report_runs table and returns its ID.
func LogRun(db *sql.DB, entry RunEntry) (string, error) {
	if entry.RunID == "" {
		entry.RunID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO report_runs (run_id, mode, metric, selected, excluded, assessment_id, summary_json, integrity, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Mode,
		entry.Metric,
		entry.Selected,
		entry.Excluded,
		nullIfEmpty(entry.AssessmentID),
		nullIfEmpty(entry.SummaryJSON),
		entry.Integrity,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.UTC().Format(createdLayout),
	)
	if err != nil {
		return "", fmt.Errorf("log run: %w", err)
	}
	return entry.RunID, nil
}
// #endregion log-run

// #region list-runs
// ListRuns returns the most recent report runs.
func ListRuns(db *sql.DB, limit int) ([]RunEntry, error) {
	rows, err := db.Query(
		`SELECT run_id, mode, metric, selected, excluded, assessment_id, summary_json, integrity, reason, created_at
		 FROM report_runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunEntry
	for rows.Next() {
		var e RunEntry
		var assessment, summary, reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.RunID, &e.Mode, &e.Metric, &e.Selected, &e.Excluded,
			&assessment, &summary, &e.Integrity, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.AssessmentID = assessment.String
		e.SummaryJSON = summary.String
		e.Reason = reason.String
		if e.CreatedAt, err = time.Parse(createdLayout, createdStr); err != nil {
			return nil, fmt.Errorf("run %s created_at: %w", e.RunID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
// #endregion list-runs

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
