package format_test

import (
	"strings"
	"testing"

	"github.com/danielpatrickdp/process-compliance/internal/compliance"
	"github.com/danielpatrickdp/process-compliance/internal/format"
	"github.com/danielpatrickdp/process-compliance/internal/integrity"
	"github.com/danielpatrickdp/process-compliance/internal/report"
	"github.com/danielpatrickdp/process-compliance/internal/selection"
	"github.com/danielpatrickdp/process-compliance/internal/severity"
	"github.com/danielpatrickdp/process-compliance/internal/timeseries"
)

func TestASCII_BasicTable(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Header("ID", "Value")
	tb.Row("INC1", 0.95)
	out := tb.String()

	if !strings.Contains(out, "INC1") || !strings.Contains(out, "0.95") {
		t.Errorf("missing row content:\n%s", out)
	}
	if !strings.Contains(out, "───") {
		t.Errorf("expected box-drawing characters in ASCII output:\n%s", out)
	}
}

func TestMarkdown_WithFooter(t *testing.T) {
	tb := format.NewTable(format.Markdown)
	tb.Header("Incident", "Value")
	tb.Row("INC1", 1)
	tb.Footer("TOTAL", 1)
	out := tb.String()

	if !strings.Contains(out, "| Incident") {
		t.Errorf("expected markdown header:\n%s", out)
	}
	if !strings.Contains(out, "TOTAL") {
		t.Errorf("expected footer:\n%s", out)
	}
}

func TestParseMode(t *testing.T) {
	if format.ParseMode("md") != format.Markdown || format.ParseMode("markdown") != format.Markdown {
		t.Error("expected Markdown")
	}
	if format.ParseMode(" Markdown ") != format.Markdown {
		t.Error("expected case-insensitive markdown")
	}
	if format.ParseMode("") != format.ASCII {
		t.Error("expected ASCII default")
	}
}

func TestCritical(t *testing.T) {
	out := format.Critical(format.Markdown, []selection.Selected{
		{ID: "INC4", Value: 0.1, Band: severity.BandCritical},
		{ID: "INC2", Value: 0.2, Band: severity.BandCritical},
	})
	if strings.Index(out, "INC4") > strings.Index(out, "INC2") {
		t.Errorf("rows out of order:\n%s", out)
	}
	if !strings.Contains(out, "0.10") || !strings.Contains(out, "critical") {
		t.Errorf("missing values:\n%s", out)
	}
}

func TestScores(t *testing.T) {
	out := format.Scores(format.ASCII, []report.IncidentScore{{
		ID: "INC1",
		View: compliance.View{
			Metric:    compliance.MetricFitness,
			PerState:  map[string]float64{"N": 0.18, "A": 0.18, "W": 0.18, "R": 0.18, "C": 0.18},
			Aggregate: 0.9,
		},
	}})
	for _, want := range []string{"INC1", "0.18", "0.90"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestSeriesViolations(t *testing.T) {
	d, _ := timeseries.ParseDay("2024-01-01")
	s := timeseries.Series{
		Opened:     []timeseries.Point{{Day: d, Count: 0}},
		Active:     []timeseries.Point{{Day: d, Count: -1}},
		Closed:     []timeseries.ClosedPoint{{Day: d, Count: 1, Unattributed: 1}},
		Violations: []timeseries.Violation{{Day: d, Active: -1, Reason: "more incidents closed than opened"}},
	}
	out := format.Series(format.ASCII, s)
	if !strings.Contains(out, "2024-01-01") || !strings.Contains(out, "more incidents closed than opened") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestReport_Markdown(t *testing.T) {
	r := report.Report{
		Mode:       report.ModeFixture,
		Metric:     compliance.MetricFitness,
		Selected:   []string{"INC1"},
		Mean:       0.9,
		BandCounts: map[severity.Band]int{severity.BandLow: 1},
		Average:    map[string]float64{"N": 0.18},
		Integrity:  integrity.Result{Passed: true, Checks: []integrity.Check{{Name: "opened_monotonic", Pass: true}}},
	}
	out := format.Report(format.Markdown, r)
	for _, want := range []string{"## Summary", "## Critical incidents", "severity low", "opened_monotonic", "✓"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := format.Truncate("N A R R R C", 8); got != "N A R..." {
		t.Errorf("got %q", got)
	}
	if got := format.Truncate("N", 8); got != "N" {
		t.Errorf("got %q", got)
	}
	if got := format.Truncate("Überprüfung Störfall", 8); got != "Überp..." {
		t.Errorf("multi-byte: got %q", got)
	}
	if got := format.Truncate("äöü", 2); got != "äö" {
		t.Errorf("short cap: got %q", got)
	}
}
