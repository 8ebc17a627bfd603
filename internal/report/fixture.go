package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danielpatrickdp/process-compliance/internal/compliance"
	"github.com/danielpatrickdp/process-compliance/internal/config"
	"github.com/danielpatrickdp/process-compliance/internal/deviation"
	"github.com/danielpatrickdp/process-compliance/internal/faults"
	"github.com/danielpatrickdp/process-compliance/internal/incident"
	"github.com/danielpatrickdp/process-compliance/internal/variant"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a report fixture.
type Fixture struct {
	Description string            `json:"description"`
	Analysis    FixtureAnalysis   `json:"analysis"`
	Incidents   []FixtureIncident `json:"incidents"`
	Expected    *FixtureExpected  `json:"expected,omitempty"`
}

// FixtureAnalysis overrides parts of the analysis config for a run.
// Empty fields keep the base config.
type FixtureAnalysis struct {
	Metric  string   `json:"metric"`
	Scope   []string `json:"scope"`
	Exclude []string `json:"exclude"`
}

// FixtureIncident mirrors incident.Incident with JSON tags and sparse
// deviation maps.
type FixtureIncident struct {
	ID         string         `json:"incident_id"`
	OpenedAt   string         `json:"opened_at"`
	ClosedAt   string         `json:"closed_at"`
	Fitness    float64        `json:"fitness"`
	Cost       float64        `json:"cost"`
	Alignment  string         `json:"alignment"`
	Trace      []string       `json:"trace"`
	Missing    map[string]int `json:"missing"`
	Repetition map[string]int `json:"repetition"`
	Mismatch   map[string]int `json:"mismatch"`
}

// FixtureExpected captures regression expectations for a fixture.
type FixtureExpected struct {
	Critical []string `json:"critical"`
	Mean     float64  `json:"mean"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &faults.DataFormatError{Source: "fixture", Input: path, Reason: "invalid JSON", Err: err}
	}
	return &f, nil
}

// ToIncident converts a FixtureIncident to a domain Incident. The trace is
// derived from the alignment when not given.
func (fi *FixtureIncident) ToIncident() (incident.Incident, error) {
	opened, err := parseTime(fi.OpenedAt)
	if err != nil {
		return incident.Incident{}, fmt.Errorf("incident %s opened_at: %w", fi.ID, err)
	}
	inc := incident.Incident{
		ID:        fi.ID,
		OpenedAt:  opened,
		Fitness:   fi.Fitness,
		Cost:      fi.Cost,
		Alignment: fi.Alignment,
		Trace:     append([]string(nil), fi.Trace...),
	}
	if strings.TrimSpace(fi.ClosedAt) != "" {
		closed, err := parseTime(fi.ClosedAt)
		if err != nil {
			return incident.Incident{}, fmt.Errorf("incident %s closed_at: %w", fi.ID, err)
		}
		inc.ClosedAt = &closed
	}
	if len(inc.Trace) == 0 && fi.Alignment != "" {
		if inc.Trace, err = variant.Extract(fi.Alignment); err != nil {
			return incident.Incident{}, fmt.Errorf("incident %s: %w", fi.ID, err)
		}
	}
	if inc.Deviations, err = deviation.FromMaps(fi.Missing, fi.Repetition, fi.Mismatch); err != nil {
		return incident.Incident{}, fmt.Errorf("incident %s: %w", fi.ID, err)
	}
	return inc, nil
}

// ToIncidents converts every fixture incident, stopping at the first error.
func (f *Fixture) ToIncidents() ([]incident.Incident, error) {
	out := make([]incident.Incident, 0, len(f.Incidents))
	for i := range f.Incidents {
		inc, err := f.Incidents[i].ToIncident()
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, nil
}

// Apply returns base with the fixture's overrides.
func (fa FixtureAnalysis) Apply(base config.Analysis) (config.Analysis, error) {
	a := base
	if fa.Metric != "" {
		m, err := compliance.ParseMetric(fa.Metric)
		if err != nil {
			return config.Analysis{}, err
		}
		a = a.WithMetric(m)
	}
	if len(fa.Scope) > 0 {
		a = a.WithScope(fa.Scope)
	}
	if len(fa.Exclude) > 0 {
		a = a.WithExclude(fa.Exclude)
	}
	return a, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, faults.DataFormat("fixture", s, "unrecognized timestamp")
}

// #endregion fixture-loader
