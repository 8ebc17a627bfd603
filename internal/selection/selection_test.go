package selection

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danielpatrickdp/process-compliance/internal/compliance"
	"github.com/danielpatrickdp/process-compliance/internal/faults"
	"github.com/danielpatrickdp/process-compliance/internal/incident"
	"github.com/danielpatrickdp/process-compliance/internal/severity"
)

func sample() []incident.Incident {
	return []incident.Incident{
		{ID: "INC1", Fitness: 0.20, Cost: 0.9},
		{ID: "INC2", Fitness: 0.05, Cost: 2.5},
		{ID: "INC3", Fitness: 0.90, Cost: 0.1},
		{ID: "INC4", Fitness: 0.20, Cost: 0.8},
		{ID: "INC5", Fitness: 0.10, Cost: 1.4},
	}
}

func allIDs() []string { return []string{"INC1", "INC2", "INC3", "INC4", "INC5"} }

func TestSelectCriticalFitnessAscending(t *testing.T) {
	got, err := SelectCritical(sample(), Params{
		Metric:     compliance.MetricFitness,
		Thresholds: severity.DefaultFitnessThresholds(),
		Band:       severity.BandCritical,
		Scope:      allIDs(),
	})
	if err != nil {
		t.Fatalf("SelectCritical: %v", err)
	}
	want := []Selected{
		{ID: "INC2", Value: 0.05, Band: severity.BandCritical},
		{ID: "INC5", Value: 0.10, Band: severity.BandCritical},
		{ID: "INC1", Value: 0.20, Band: severity.BandCritical},
		{ID: "INC4", Value: 0.20, Band: severity.BandCritical},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectCriticalCostDescending(t *testing.T) {
	got, err := SelectCritical(sample(), Params{
		Metric:     compliance.MetricCost,
		Thresholds: severity.DefaultCostThresholds(),
		Band:       severity.BandCritical,
		Scope:      allIDs(),
		Exclude:    []string{"INC5"},
	})
	if err != nil {
		t.Fatalf("SelectCritical: %v", err)
	}
	var ids []string
	for _, s := range got {
		ids = append(ids, s.ID)
	}
	if diff := cmp.Diff([]string{"INC2", "INC1", "INC4"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectCriticalCostAlias(t *testing.T) {
	got, err := SelectCritical(sample(), Params{
		Metric:     compliance.Metric("costTotal"),
		Thresholds: severity.DefaultCostThresholds(),
		Band:       severity.BandCritical,
		Scope:      allIDs(),
	})
	if err != nil {
		t.Fatalf("SelectCritical: %v", err)
	}
	want := []Selected{
		{ID: "INC2", Value: 2.5, Band: severity.BandCritical},
		{ID: "INC5", Value: 1.4, Band: severity.BandCritical},
		{ID: "INC1", Value: 0.9, Band: severity.BandCritical},
		{ID: "INC4", Value: 0.8, Band: severity.BandCritical},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if PolarityOf("costTotal") != severity.HigherIsWorse {
		t.Error("costTotal should be higher-is-worse")
	}
}

func TestSelectCriticalEmptyScope(t *testing.T) {
	got, err := SelectCritical(sample(), Params{
		Metric:     compliance.MetricFitness,
		Thresholds: severity.DefaultFitnessThresholds(),
		Band:       severity.BandCritical,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestSelectCriticalScopeLimits(t *testing.T) {
	got, err := SelectCritical(sample(), Params{
		Metric:     compliance.MetricFitness,
		Thresholds: severity.DefaultFitnessThresholds(),
		Band:       severity.BandCritical,
		Scope:      []string{"INC1", "INC3", "missing"},
	})
	if err != nil {
		t.Fatalf("SelectCritical: %v", err)
	}
	if len(got) != 1 || got[0].ID != "INC1" {
		t.Fatalf("got %+v", got)
	}
}

func TestSelectCriticalConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		p    Params
	}{
		{"unknown-metric", Params{Metric: "latency", Thresholds: severity.DefaultFitnessThresholds(), Band: severity.BandCritical}},
		{"unknown-band", Params{Metric: compliance.MetricFitness, Thresholds: severity.DefaultFitnessThresholds(), Band: "severe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SelectCritical(sample(), tt.p)
			if !faults.IsConfiguration(err) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
		})
	}
}

func TestInScope(t *testing.T) {
	kept := InScope(sample(), []string{"INC1", "INC2", "INC3"}, []string{"INC2"})
	if diff := cmp.Diff([]string{"INC1", "INC3"}, incident.IDs(kept)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if InScope(sample(), nil, nil) != nil {
		t.Error("empty scope should select nothing")
	}
}
