package report

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danielpatrickdp/process-compliance/internal/compliance"
	"github.com/danielpatrickdp/process-compliance/internal/config"
	"github.com/danielpatrickdp/process-compliance/internal/deviation"
	"github.com/danielpatrickdp/process-compliance/internal/faults"
	"github.com/danielpatrickdp/process-compliance/internal/incident"
	"github.com/danielpatrickdp/process-compliance/internal/integrity"
	"github.com/danielpatrickdp/process-compliance/internal/logging"
	"github.com/danielpatrickdp/process-compliance/internal/selection"
	"github.com/danielpatrickdp/process-compliance/internal/severity"
	"github.com/danielpatrickdp/process-compliance/internal/timeseries"
	"github.com/danielpatrickdp/process-compliance/internal/variant"
)

// Source supplies the incident population in database mode.
type Source interface {
	AllIncidents() ([]incident.Incident, error)
}

// #region build
// Build runs the whole analysis over incidents: per-incident scores, their
// per-state average, deviation frequencies, the metric distribution, the
// critical list, the time series with its integrity checks and the common
// variants. The selection is the config scope minus its exclusions.
func Build(incidents []incident.Incident, a config.Analysis, opts Options) (Report, error) {
	scorer, err := a.Scorer()
	if err != nil {
		return Report{}, err
	}
	classifier, err := a.Classifier()
	if err != nil {
		return Report{}, err
	}
	critical, err := selection.SelectCritical(incidents, a.SelectionParams(opts.Band))
	if err != nil {
		return Report{}, err
	}

	metric := a.Metric()
	selected := selection.InScope(incidents, a.Scope(), a.Exclude())

	rep := Report{
		Metric:       metric,
		Selected:     incident.IDs(selected),
		Excluded:     a.Exclude(),
		Scores:       []IncidentScore{},
		Distribution: []DistributionPoint{},
		BandCounts:   make(map[severity.Band]int),
		Critical:     critical,
	}
	if rep.Excluded == nil {
		rep.Excluded = []string{}
	}

	results := make([]compliance.Result, 0, len(selected))
	records := make([]deviation.Record, 0, len(selected))
	traces := make([][]string, 0, len(selected))
	samples := make([]timeseries.Sample, 0, len(selected))
	for _, inc := range selected {
		res, err := scorer.Score(inc.ScoreInput())
		if err != nil {
			return Report{}, fmt.Errorf("score %s: %w", inc.ID, err)
		}
		results = append(results, res)
		records = append(records, inc.Deviations)
		traces = append(traces, inc.Trace)

		v := inc.Value(metric)
		band := classifier.Classify(v)
		samples = append(samples, timeseries.Sample{ID: inc.ID, Value: v})
		rep.Scores = append(rep.Scores, IncidentScore{ID: inc.ID, View: res.View()})
		rep.Distribution = append(rep.Distribution, DistributionPoint{ID: inc.ID, Value: v, Band: band})
		rep.BandCounts[band]++
	}
	rep.Average = compliance.AveragePerState(results).Map(2)
	rep.Frequencies = deviation.Frequencies(records).Maps()
	rep.Mean = Mean(rep.Distribution)

	variants := variant.Common(traces)
	if opts.TopVariants > 0 && len(variants) > opts.TopVariants {
		variants = variants[:opts.TopVariants]
	}
	rep.Variants = variants

	events := eventsExcluding(incidents, a.Exclude())
	window := opts.Window
	if window.IsZero() {
		if w, ok := timeseries.SelectionWindow(samples, events); ok {
			window = w
		}
	}
	series, err := timeseries.Aggregate(events, samples, classifier, window)
	if err != nil {
		return Report{}, fmt.Errorf("aggregate series: %w", err)
	}
	rep.Window = window
	rep.Series = series
	rep.Integrity = integrity.NewHarness(opts.Integrity).Run(series)
	return rep, nil
}

// FromSource builds a database-mode report. An empty config scope selects
// every stored incident.
func FromSource(src Source, a config.Analysis, opts Options) (Report, error) {
	incidents, err := src.AllIncidents()
	if err != nil {
		return Report{}, fmt.Errorf("load incidents: %w", err)
	}
	rep, err := Build(incidents, ScopeAll(a, incidents), opts)
	if err != nil {
		return Report{}, err
	}
	rep.Mode = ModeDatabase
	return rep, nil
}

// FromFixture builds a fixture-mode report. The fixture's analysis block
// overrides a; an empty scope selects every fixture incident.
func FromFixture(f *Fixture, a config.Analysis, opts Options) (Report, error) {
	incidents, err := f.ToIncidents()
	if err != nil {
		return Report{}, err
	}
	a, err = f.Analysis.Apply(a)
	if err != nil {
		return Report{}, err
	}
	rep, err := Build(incidents, ScopeAll(a, incidents), opts)
	if err != nil {
		return Report{}, err
	}
	rep.Mode = ModeFixture
	return rep, nil
}

// ScopeAll returns a with its scope set to every incident when the scope is empty.
func ScopeAll(a config.Analysis, incidents []incident.Incident) config.Analysis {
	if len(a.Scope()) > 0 {
		return a
	}
	return a.WithScope(incident.IDs(incidents))
}
// #endregion build

// #region stats
// Mean is the average value over the distribution, 0 when it is empty.
func Mean(points []DistributionPoint) float64 {
	m, err := average(points)
	if errors.Is(err, faults.ErrEmptySelection) {
		return 0
	}
	return m
}

func average(points []DistributionPoint) (float64, error) {
	if len(points) == 0 {
		return 0, faults.ErrEmptySelection
	}
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	return sum / float64(len(points)), nil
}

// Distribution lists the metric value of each selected incident.
func Distribution(incidents []incident.Incident, a config.Analysis) ([]DistributionPoint, error) {
	classifier, err := a.Classifier()
	if err != nil {
		return nil, err
	}
	out := []DistributionPoint{}
	for _, inc := range selection.InScope(incidents, a.Scope(), a.Exclude()) {
		v := inc.Value(a.Metric())
		out = append(out, DistributionPoint{ID: inc.ID, Value: v, Band: classifier.Classify(v)})
	}
	return out, nil
}

// Summarize computes the compact summary stored with a run.
func Summarize(r Report) Summary {
	return Summary{
		Selected:  len(r.Selected),
		Critical:  len(r.Critical),
		Mean:      r.Mean,
		Variants:  len(r.Variants),
		Integrity: r.Integrity.Passed,
	}
}
// #endregion stats

// #region record
// Record writes the run to the report_runs table and sets r.RunID.
func Record(db *sql.DB, r *Report, assessmentID string) error {
	summary, err := json.Marshal(Summarize(*r))
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	verdict := "pass"
	if !r.Integrity.Passed {
		verdict = "fail"
	}
	id, err := logging.LogRun(db, logging.RunEntry{
		Mode:         r.Mode,
		Metric:       string(r.Metric),
		Selected:     len(r.Selected),
		Excluded:     len(r.Excluded),
		AssessmentID: assessmentID,
		SummaryJSON:  string(summary),
		Integrity:    verdict,
		Reason:       r.Integrity.Reason,
	})
	if err != nil {
		return err
	}
	r.RunID = id

	logging.New("report").Info("report run recorded",
		"run_id", id,
		"mode", r.Mode,
		"metric", r.Metric,
		"selected", len(r.Selected),
		"critical", len(r.Critical),
		"integrity", verdict,
	)
	return nil
}
// #endregion record

func eventsExcluding(incidents []incident.Incident, exclude []string) []timeseries.Event {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	events := make([]timeseries.Event, 0, len(incidents))
	for _, inc := range incidents {
		if _, ok := skip[inc.ID]; ok {
			continue
		}
		events = append(events, timeseries.Event{ID: inc.ID, OpenedAt: inc.OpenedAt, ClosedAt: inc.ClosedAt})
	}
	return events
}
