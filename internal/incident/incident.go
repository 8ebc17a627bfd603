package incident

import (
	"time"

	"github.com/danielpatrickdp/process-compliance/internal/compliance"
	"github.com/danielpatrickdp/process-compliance/internal/deviation"
)

// #region incident
// Incident is a read-only snapshot of one incident and its conformance data.
type Incident struct {
	ID         string
	OpenedAt   time.Time
	ClosedAt   *time.Time // nil while the incident is still active
	Fitness    float64
	Cost       float64
	Trace      []string // variant trace as state codes, in order
	Alignment  string
	Deviations deviation.Record
}

// Closed reports whether the incident has a close timestamp.
func (i Incident) Closed() bool { return i.ClosedAt != nil }

// TraceEvents is E, the number of events in the variant trace.
func (i Incident) TraceEvents() int { return len(i.Trace) }

// Value returns the incident's value for the given metric.
func (i Incident) Value(m compliance.Metric) float64 {
	if m, _ := compliance.ParseMetric(string(m)); m == compliance.MetricCost {
		return i.Cost
	}
	return i.Fitness
}

// ScoreInput builds the scorer input for this incident.
func (i Incident) ScoreInput() compliance.Input {
	return compliance.Input{
		Deviations:  i.Deviations,
		Fitness:     i.Fitness,
		TraceEvents: i.TraceEvents(),
	}
}

// #endregion incident

// #region view
// View is the JSON form of an incident.
type View struct {
	ID          string                    `json:"incident_id"`
	OpenedAt    string                    `json:"opened_at"`
	ClosedAt    string                    `json:"closed_at,omitempty"`
	Fitness     float64                   `json:"fitness"`
	Cost        float64                   `json:"cost"`
	Trace       []string                  `json:"variant,omitempty"`
	Alignment   string                    `json:"alignment,omitempty"`
	Deviations  map[string]map[string]int `json:"deviations"`
	TraceEvents int                       `json:"trace_events"`
}

// View renders the incident with RFC3339 timestamps and deviation maps keyed by kind.
func (i Incident) View() View {
	v := View{
		ID:          i.ID,
		OpenedAt:    i.OpenedAt.Format(time.RFC3339),
		Fitness:     i.Fitness,
		Cost:        i.Cost,
		Trace:       i.Trace,
		Alignment:   i.Alignment,
		Deviations:  i.Deviations.Maps(),
		TraceEvents: i.TraceEvents(),
	}
	if i.ClosedAt != nil {
		v.ClosedAt = i.ClosedAt.Format(time.RFC3339)
	}
	return v
}

// #endregion view

// #region index
// Index maps incidents by ID. Later duplicates win.
func Index(incidents []Incident) map[string]Incident {
	out := make(map[string]Incident, len(incidents))
	for _, inc := range incidents {
		out[inc.ID] = inc
	}
	return out
}

// IDs returns the incident IDs in input order.
func IDs(incidents []Incident) []string {
	out := make([]string, len(incidents))
	for i, inc := range incidents {
		out[i] = inc.ID
	}
	return out
}

// #endregion index
