package report

import (
	"github.com/danielpatrickdp/process-compliance/internal/compliance"
	"github.com/danielpatrickdp/process-compliance/internal/integrity"
	"github.com/danielpatrickdp/process-compliance/internal/selection"
	"github.com/danielpatrickdp/process-compliance/internal/severity"
	"github.com/danielpatrickdp/process-compliance/internal/timeseries"
	"github.com/danielpatrickdp/process-compliance/internal/variant"
)

// Run modes recorded in the report_runs table.
const (
	ModeDatabase = "db"
	ModeFixture  = "fixture"
)

// #region options
// Options controls the parts of a report that are not analysis config.
type Options struct {
	Band        severity.Band     // band listed as critical
	Window      timeseries.Window // zero derives the window from the selection
	TopVariants int               // 0 keeps every variant
	Integrity   integrity.Config
}

// DefaultOptions lists the critical band, derives the window and keeps the
// ten most common variants.
func DefaultOptions() Options {
	return Options{
		Band:        severity.BandCritical,
		TopVariants: 10,
		Integrity:   integrity.DefaultConfig(),
	}
}
// #endregion options

// #region report
// IncidentScore is one incident's per-state compliance.
type IncidentScore struct {
	ID string `json:"incident_id"`
	compliance.View
}

// DistributionPoint is one selected incident's metric value and band.
type DistributionPoint struct {
	ID    string        `json:"incident_id"`
	Value float64       `json:"value"`
	Band  severity.Band `json:"severity"`
}

// Report is the full analysis over one selection.
type Report struct {
	RunID        string                    `json:"run_id,omitempty"`
	Mode         string                    `json:"mode"`
	Metric       compliance.Metric         `json:"metric"`
	Selected     []string                  `json:"selected"`
	Excluded     []string                  `json:"excluded"`
	Scores       []IncidentScore           `json:"scores"`
	Average      map[string]float64        `json:"average_compliance_per_state"`
	Frequencies  map[string]map[string]int `json:"deviation_frequencies"`
	Distribution []DistributionPoint       `json:"distribution"`
	Mean         float64                   `json:"mean"`
	BandCounts   map[severity.Band]int     `json:"severity_counts"`
	Critical     []selection.Selected      `json:"critical"`
	Window       timeseries.Window         `json:"window"`
	Series       timeseries.Series         `json:"time_series"`
	Variants     []variant.Count           `json:"common_variants"`
	Integrity    integrity.Result          `json:"integrity"`
}

// Summary is the compact form stored with each run.
type Summary struct {
	Selected  int     `json:"selected"`
	Critical  int     `json:"critical"`
	Mean      float64 `json:"mean"`
	Variants  int     `json:"variants"`
	Integrity bool    `json:"integrity_passed"`
}
// #endregion report
