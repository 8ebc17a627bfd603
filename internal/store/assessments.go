package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/process-compliance/internal/faults"
)

// #region create-assessment
// CreateAssessment stores a new assessment and returns it with its generated ID.
func (s *Store) CreateAssessment(name string, kind AssessmentKind, incidentIDs []string) (Assessment, error) {
	if strings.TrimSpace(name) == "" {
		return Assessment{}, faults.Configuration("assessment_name", name, "name is required")
	}
	if _, err := ParseAssessmentKind(string(kind)); err != nil {
		return Assessment{}, err
	}

	a := Assessment{
		ID:          uuid.New().String(),
		Name:        name,
		Kind:        kind,
		IncidentIDs: dedupeIDs(incidentIDs),
		CreatedAt:   time.Now().UTC(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Assessment{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO assessments (assessment_id, name, kind, created_at) VALUES (?, ?, ?, ?)`,
		a.ID, a.Name, string(a.Kind), a.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Assessment{}, fmt.Errorf("insert assessment: %w", err)
	}
	for i, id := range a.IncidentIDs {
		_, err = tx.Exec(
			`INSERT INTO assessment_incidents (assessment_id, incident_id, position) VALUES (?, ?, ?)`,
			a.ID, id, i,
		)
		if err != nil {
			return Assessment{}, fmt.Errorf("insert assessment incident: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Assessment{}, fmt.Errorf("commit: %w", err)
	}
	return a, nil
}
// #endregion create-assessment

// #region get-assessment
// GetAssessment retrieves an assessment and its incident IDs.
func (s *Store) GetAssessment(id string) (Assessment, error) {
	var a Assessment
	var kind, createdStr string
	err := s.db.QueryRow(
		`SELECT assessment_id, name, kind, created_at FROM assessments WHERE assessment_id = ?`, id,
	).Scan(&a.ID, &a.Name, &kind, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return Assessment{}, fmt.Errorf("get assessment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Assessment{}, fmt.Errorf("get assessment %s: %w", id, err)
	}
	a.Kind = AssessmentKind(kind)
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)

	ids, err := s.assessmentIncidents(a.ID)
	if err != nil {
		return Assessment{}, err
	}
	a.IncidentIDs = ids
	return a, nil
}

func (s *Store) assessmentIncidents(id string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT incident_id FROM assessment_incidents WHERE assessment_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list assessment incidents: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var inc string
		if err := rows.Scan(&inc); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ids = append(ids, inc)
	}
	return ids, rows.Err()
}
// #endregion get-assessment

// #region list-assessments
// ListAssessments returns every assessment, oldest first.
func (s *Store) ListAssessments() ([]Assessment, error) {
	rows, err := s.db.Query(
		`SELECT assessment_id, name, kind, created_at FROM assessments ORDER BY created_at, assessment_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}

	var out []Assessment
	for rows.Next() {
		var a Assessment
		var kind, createdStr string
		if err := rows.Scan(&a.ID, &a.Name, &kind, &createdStr); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan row: %w", err)
		}
		a.Kind = AssessmentKind(kind)
		a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		ids, err := s.assessmentIncidents(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].IncidentIDs = ids
	}
	return out, nil
}
// #endregion list-assessments

// #region helpers
func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
// #endregion helpers
