package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/process-compliance/internal/compliance"
	"github.com/danielpatrickdp/process-compliance/internal/deviation"
	"github.com/danielpatrickdp/process-compliance/internal/faults"
	"github.com/danielpatrickdp/process-compliance/internal/incident"
	"github.com/danielpatrickdp/process-compliance/internal/process"
	"github.com/danielpatrickdp/process-compliance/internal/threshold"
	"github.com/danielpatrickdp/process-compliance/internal/variant"
)

// dateLayout is the calendar-day prefix of stored timestamps.
const dateLayout = "2006-01-02"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS incidents (
	incident_id          TEXT PRIMARY KEY,
	opened_at            TEXT NOT NULL,
	closed_at            TEXT,
	fitness              REAL NOT NULL CHECK (fitness >= 0 AND fitness <= 1),
	cost                 REAL NOT NULL CHECK (cost >= 0),
	variant              TEXT NOT NULL DEFAULT '',
	alignment            TEXT,
	missing_deviation    TEXT,
	repetition_deviation TEXT,
	mismatch_deviation   TEXT
);

CREATE INDEX IF NOT EXISTS idx_incidents_closed ON incidents(closed_at);

CREATE TABLE IF NOT EXISTS assessments (
	assessment_id TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	kind          TEXT NOT NULL CHECK (kind IN ('finding', 'area_of_concern', 'non_conformity')),
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS assessment_incidents (
	assessment_id TEXT NOT NULL,
	incident_id   TEXT NOT NULL,
	position      INTEGER NOT NULL,
	PRIMARY KEY (assessment_id, incident_id),
	FOREIGN KEY (assessment_id) REFERENCES assessments(assessment_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS report_runs (
	run_id        TEXT PRIMARY KEY,
	mode          TEXT NOT NULL,
	metric        TEXT NOT NULL,
	selected      INTEGER NOT NULL,
	excluded      INTEGER NOT NULL,
	assessment_id TEXT,
	summary_json  TEXT,
	integrity     TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL
);
`
// #endregion schema

// #region store-struct
// Store is the SQLite-backed incident, deviation and assessment store.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region put-incident
// PutIncidents upserts incidents in one transaction.
func (s *Store) PutIncidents(incs []incident.Incident) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, inc := range incs {
		if err := putIncident(tx, inc); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// PutIncident upserts a single incident.
func (s *Store) PutIncident(inc incident.Incident) error {
	return s.PutIncidents([]incident.Incident{inc})
}

func putIncident(tx *sql.Tx, inc incident.Incident) error {
	if inc.ID == "" {
		return faults.DataFormat("incident", "", "empty incident id")
	}
	var closed interface{}
	if inc.ClosedAt != nil {
		closed = inc.ClosedAt.Format(time.RFC3339Nano)
	}
	_, err := tx.Exec(
		`INSERT INTO incidents (incident_id, opened_at, closed_at, fitness, cost, variant, alignment,
		                        missing_deviation, repetition_deviation, mismatch_deviation)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(incident_id) DO UPDATE SET
		   opened_at = excluded.opened_at,
		   closed_at = excluded.closed_at,
		   fitness = excluded.fitness,
		   cost = excluded.cost,
		   variant = excluded.variant,
		   alignment = excluded.alignment,
		   missing_deviation = excluded.missing_deviation,
		   repetition_deviation = excluded.repetition_deviation,
		   mismatch_deviation = excluded.mismatch_deviation`,
		inc.ID,
		inc.OpenedAt.Format(time.RFC3339Nano),
		closed,
		inc.Fitness,
		inc.Cost,
		variant.Key(inc.Trace),
		nullIfEmpty(inc.Alignment),
		deviation.FormatCounts(inc.Deviations[process.KindMissing]),
		deviation.FormatCounts(inc.Deviations[process.KindRepetition]),
		deviation.FormatCounts(inc.Deviations[process.KindMismatch]),
	)
	if err != nil {
		return fmt.Errorf("insert incident %s: %w", inc.ID, err)
	}
	return nil
}
// #endregion put-incident

// #region get-incident
const incidentColumns = `incident_id, opened_at, closed_at, fitness, cost, variant, alignment,
	missing_deviation, repetition_deviation, mismatch_deviation`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanIncident decodes one row. Malformed deviation blobs or timestamps
// surface as DataFormatError.
func scanIncident(row rowScanner) (incident.Incident, error) {
	var (
		inc                  incident.Incident
		openedStr, trace     string
		closedStr, alignment sql.NullString
		missing, repetition  sql.NullString
		mismatch             sql.NullString
	)
	if err := row.Scan(&inc.ID, &openedStr, &closedStr, &inc.Fitness, &inc.Cost, &trace, &alignment,
		&missing, &repetition, &mismatch); err != nil {
		return incident.Incident{}, err
	}

	opened, err := parseTimestamp(openedStr)
	if err != nil {
		return incident.Incident{}, err
	}
	inc.OpenedAt = opened
	if closedStr.Valid && closedStr.String != "" {
		closed, err := parseTimestamp(closedStr.String)
		if err != nil {
			return incident.Incident{}, err
		}
		inc.ClosedAt = &closed
	}
	inc.Trace = variant.Split(trace)
	inc.Alignment = alignment.String

	rec, err := deviation.ParseRecord(missing.String, repetition.String, mismatch.String)
	if err != nil {
		return incident.Incident{}, fmt.Errorf("incident %s: %w", inc.ID, err)
	}
	inc.Deviations = rec
	return inc, nil
}

// parseTimestamp accepts RFC3339 timestamps and bare dates. The recorded
// offset is kept.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, faults.DataFormat("timestamp", s, "unrecognized timestamp layout")
}

// GetIncident retrieves one incident by ID.
func (s *Store) GetIncident(id string) (incident.Incident, error) {
	row := s.db.QueryRow(`SELECT `+incidentColumns+` FROM incidents WHERE incident_id = ?`, id)
	inc, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return incident.Incident{}, fmt.Errorf("get incident %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return incident.Incident{}, fmt.Errorf("get incident %s: %w", id, err)
	}
	return inc, nil
}
// #endregion get-incident

// #region list-incidents
// AllIncidents returns every incident ordered by ID.
func (s *Store) AllIncidents() ([]incident.Incident, error) {
	return s.query(`SELECT ` + incidentColumns + ` FROM incidents ORDER BY incident_id`)
}

// ListIncidents returns the incidents among ids, ordered by ID. Unknown ids are skipped.
func (s *Store) ListIncidents(ids []string) ([]incident.Incident, error) {
	if len(ids) == 0 {
		return []incident.Incident{}, nil
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	all, err := s.AllIncidents()
	if err != nil {
		return nil, err
	}
	out := []incident.Incident{}
	for _, inc := range all {
		if _, ok := want[inc.ID]; ok {
			out = append(out, inc)
		}
	}
	return out, nil
}

func (s *Store) query(q string, args ...any) ([]incident.Incident, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	out := []incident.Incident{}
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}
// #endregion list-incidents

// #region closed-period
// ClosedBetween returns the IDs of incidents closed within [from, to] by
// calendar day. A zero bound is open.
func (s *Store) ClosedBetween(from, to time.Time) ([]string, error) {
	q := `SELECT incident_id FROM incidents WHERE closed_at IS NOT NULL`
	var args []any
	if !from.IsZero() {
		q += ` AND date(substr(closed_at, 1, 10)) >= ?`
		args = append(args, from.Format(dateLayout))
	}
	if !to.IsZero() {
		q += ` AND date(substr(closed_at, 1, 10)) <= ?`
		args = append(args, to.Format(dateLayout))
	}
	q += ` ORDER BY incident_id`

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("closed between: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClosedRange returns the earliest and latest closing day. ok is false when
// nothing is closed.
func (s *Store) ClosedRange() (first, last time.Time, ok bool, err error) {
	var lo, hi sql.NullString
	err = s.db.QueryRow(
		`SELECT MIN(date(substr(closed_at, 1, 10))), MAX(date(substr(closed_at, 1, 10)))
		 FROM incidents WHERE closed_at IS NOT NULL`,
	).Scan(&lo, &hi)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("closed range: %w", err)
	}
	if !lo.Valid || !hi.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	if first, err = time.Parse(dateLayout, lo.String); err != nil {
		return time.Time{}, time.Time{}, false, faults.DataFormat("closed_at", lo.String, "not a calendar day")
	}
	if last, err = time.Parse(dateLayout, hi.String); err != nil {
		return time.Time{}, time.Time{}, false, faults.DataFormat("closed_at", hi.String, "not a calendar day")
	}
	return first, last, true, nil
}
// #endregion closed-period

// #region count-matching
// metricColumn maps a metric to its stored column.
func metricColumn(m compliance.Metric) (string, error) {
	switch m {
	case compliance.MetricFitness:
		return "fitness", nil
	case compliance.MetricCost:
		return "cost", nil
	}
	return "", faults.Configuration("metric", string(m), "unknown compliance metric")
}

// CountMatching counts incidents whose metric satisfies expr, evaluated in SQLite.
func (s *Store) CountMatching(m compliance.Metric, expr string) (int, error) {
	col, err := metricColumn(m)
	if err != nil {
		return 0, err
	}
	pred, err := threshold.ToPredicate(col, expr)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM incidents WHERE ` + pred).Scan(&n); err != nil {
		return 0, fmt.Errorf("count matching: %w", err)
	}
	return n, nil
}
// #endregion count-matching

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
