package store

import (
	"strings"
	"time"

	"github.com/danielpatrickdp/process-compliance/internal/faults"
)

// #region assessment-kind
// AssessmentKind classifies an audit assessment result.
type AssessmentKind string

const (
	KindFinding       AssessmentKind = "finding"
	KindAreaOfConcern AssessmentKind = "area_of_concern"
	KindNonConformity AssessmentKind = "non_conformity"
)

// ParseAssessmentKind accepts the stored names plus the spelled-out forms
// ("area of concern", "non-conformity").
func ParseAssessmentKind(name string) (AssessmentKind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer(" ", "_", "-", "_").Replace(n)
	switch AssessmentKind(n) {
	case KindFinding, KindAreaOfConcern, KindNonConformity:
		return AssessmentKind(n), nil
	case "non_conformaty":
		return KindNonConformity, nil
	}
	return "", faults.Configuration("assessment_kind", name, "must be finding, area of concern or non-conformity")
}
// #endregion assessment-kind

// #region assessment
// Assessment groups incidents under an audit result. Its incidents can be
// excluded from an analysis as a what-if.
type Assessment struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Kind        AssessmentKind `json:"type"`
	IncidentIDs []string       `json:"incident_ids"`
	CreatedAt   time.Time      `json:"created_at"`
}
// #endregion assessment
