package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/danielpatrickdp/process-compliance/internal/alignment"
	"github.com/danielpatrickdp/process-compliance/internal/compliance"
	"github.com/danielpatrickdp/process-compliance/internal/config"
	"github.com/danielpatrickdp/process-compliance/internal/faults"
	"github.com/danielpatrickdp/process-compliance/internal/format"
	"github.com/danielpatrickdp/process-compliance/internal/incident"
	"github.com/danielpatrickdp/process-compliance/internal/logging"
	"github.com/danielpatrickdp/process-compliance/internal/report"
	"github.com/danielpatrickdp/process-compliance/internal/selection"
	"github.com/danielpatrickdp/process-compliance/internal/severity"
	"github.com/danielpatrickdp/process-compliance/internal/store"
	"github.com/danielpatrickdp/process-compliance/internal/threshold"
	"github.com/danielpatrickdp/process-compliance/internal/timeseries"
)

// #region import

func newImportCommand() *cobra.Command {
	var fixture string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load incidents from a JSON fixture into the store",
		Long: `Load incidents from a JSON fixture into the store. With --conformance set,
each incident's fitness, cost, alignment and deviations are refreshed from the
conformance service before they are written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fixture == "" {
				return faults.Configuration("fixture", "", "--fixture is required")
			}
			log := logging.New("import")

			f, err := report.LoadFixture(fixture)
			if err != nil {
				return err
			}
			incs, err := f.ToIncidents()
			if err != nil {
				return err
			}

			if addr := viper.GetString("conformance"); addr != "" {
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()

				client, err := alignment.NewClient(addr)
				if err != nil {
					return err
				}
				defer client.Close()
				if incs, err = client.Refresh(ctx, incs); err != nil {
					return err
				}
				log.Info("alignment refreshed", "addr", addr, "incidents", len(incs))
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.PutIncidents(incs); err != nil {
				return err
			}
			log.Info("incidents imported", "fixture", fixture, "count", len(incs))
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d incidents\n", len(incs))
			return nil
		},
	}

	cmd.Flags().StringVar(&fixture, "fixture", "", "JSON fixture with incidents")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall deadline for conformance calls")
	return cmd
}

// #endregion import

// #region score

func newScoreCommand() *cobra.Command {
	var incidentID string

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Per-state compliance for each selected incident",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			a, err := loadAnalysis(st)
			if err != nil {
				return err
			}
			scorer, err := a.Scorer()
			if err != nil {
				return err
			}

			var incs []incident.Incident
			if incidentID != "" {
				inc, err := st.GetIncident(incidentID)
				if err != nil {
					return err
				}
				incs = []incident.Incident{inc}
			} else {
				all, err := st.AllIncidents()
				if err != nil {
					return err
				}
				a = report.ScopeAll(a, all)
				incs = selection.InScope(all, a.Scope(), a.Exclude())
			}

			scores := make([]report.IncidentScore, 0, len(incs))
			for _, inc := range incs {
				res, err := scorer.Score(inc.ScoreInput())
				if err != nil {
					return fmt.Errorf("score %s: %w", inc.ID, err)
				}
				scores = append(scores, report.IncidentScore{ID: inc.ID, View: res.View()})
			}
			return emit(cmd.OutOrStdout(), scores, func() string {
				return format.Scores(tableMode(), scores)
			})
		},
	}

	cmd.Flags().StringVar(&incidentID, "incident", "", "score a single incident")
	return cmd
}

// #endregion score

// #region critical

func newCriticalCommand() *cobra.Command {
	var band string

	cmd := &cobra.Command{
		Use:   "critical",
		Short: "List the incidents in a severity band, worst first",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := severity.ParseBand(band)
			if err != nil {
				return err
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			a, err := loadAnalysis(st)
			if err != nil {
				return err
			}
			all, err := st.AllIncidents()
			if err != nil {
				return err
			}
			sel, err := selection.SelectCritical(all, report.ScopeAll(a, all).SelectionParams(b))
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), sel, func() string {
				return format.Critical(tableMode(), sel)
			})
		},
	}

	cmd.Flags().StringVar(&band, "band", string(severity.BandCritical), "severity band to list")
	return cmd
}

// #endregion critical

// #region timeseries

func newTimeseriesCommand() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "timeseries",
		Short: "Daily opened, active and closed incident counts",
		Long: `Daily opened, active and closed incident counts. Without --from and --to
the window spans the closing days of the selected incidents.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := parseWindow(from, to)
			if err != nil {
				return err
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			a, err := loadAnalysis(st)
			if err != nil {
				return err
			}
			all, err := st.AllIncidents()
			if err != nil {
				return err
			}
			opts := report.DefaultOptions()
			opts.Window = window
			rep, err := report.Build(all, report.ScopeAll(a, all), opts)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), rep.Series, func() string {
				return format.Series(tableMode(), rep.Series)
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day (YYYY-MM-DD)")
	return cmd
}

func parseWindow(from, to string) (timeseries.Window, error) {
	if from == "" && to == "" {
		return timeseries.Window{}, nil
	}
	if from == "" || to == "" {
		return timeseries.Window{}, faults.Configuration("window", from+".."+to, "--from and --to must be given together")
	}
	lo, err := timeseries.ParseDay(from)
	if err != nil {
		return timeseries.Window{}, err
	}
	hi, err := timeseries.ParseDay(to)
	if err != nil {
		return timeseries.Window{}, err
	}
	return timeseries.Window{Min: lo, Max: hi}, nil
}

// #endregion timeseries

// #region report

func newReportCommand() *cobra.Command {
	var fixture string
	var top int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Full compliance report",
		Long: `Full compliance report. With --fixture the report runs in memory over the
fixture's incidents; otherwise it reads the store and records the run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := report.DefaultOptions()
			opts.TopVariants = top

			if fixture != "" {
				f, err := report.LoadFixture(fixture)
				if err != nil {
					return err
				}
				a, err := loadAnalysis(nil)
				if err != nil {
					return err
				}
				rep, err := report.FromFixture(f, a, opts)
				if err != nil {
					return err
				}
				return emitReport(cmd, rep)
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			a, err := loadAnalysis(st)
			if err != nil {
				return err
			}
			return runReport(cmd, st, a, opts, a.WhatIfAssessment())
		},
	}

	cmd.Flags().StringVar(&fixture, "fixture", "", "JSON fixture to report on instead of the store")
	cmd.Flags().IntVar(&top, "top", 10, "number of common variants to list (0 = all)")
	return cmd
}

func runReport(cmd *cobra.Command, st *store.Store, a config.Analysis, opts report.Options, assessmentID string) error {
	rep, err := report.FromSource(st, a, opts)
	if err != nil {
		return err
	}
	if err := report.Record(st.DB(), &rep, assessmentID); err != nil {
		return err
	}
	return emitReport(cmd, rep)
}

func emitReport(cmd *cobra.Command, rep report.Report) error {
	if !rep.Integrity.Passed {
		logging.New("report").Warn("integrity checks failed", "reason", rep.Integrity.Reason)
	}
	return emit(cmd.OutOrStdout(), rep, func() string {
		return format.Report(tableMode(), rep)
	})
}

func newRunsCommand() *cobra.Command {
	var last int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded report runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			runs, err := logging.ListRuns(st.DB(), last)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), runs, func() string {
				return format.Runs(tableMode(), runs)
			})
		},
	}

	cmd.Flags().IntVar(&last, "last", 20, "show N most recent runs")
	return cmd
}

// #endregion report

// #region assess

func newAssessCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Manage audit assessments and what-if exclusions",
	}
	cmd.AddCommand(newAssessCreateCommand(), newAssessListCommand(), newAssessApplyCommand())
	return cmd
}

func newAssessCreateCommand() *cobra.Command {
	var name, kind string
	var ids []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Record an assessment over a set of incidents",
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := store.ParseAssessmentKind(kind)
			if err != nil {
				return err
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			as, err := st.CreateAssessment(name, k, ids)
			if err != nil {
				return err
			}
			logging.New("assess").Info("assessment created", "id", as.ID, "type", as.Kind, "incidents", len(as.IncidentIDs))
			return emit(cmd.OutOrStdout(), as, func() string {
				return format.Assessments(tableMode(), []store.Assessment{as})
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "assessment name")
	cmd.Flags().StringVar(&kind, "type", string(store.KindFinding), "finding, area of concern or non-conformity")
	cmd.Flags().StringSliceVar(&ids, "incident", nil, "incident IDs (repeatable or comma-separated)")
	return cmd
}

func newAssessListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored assessments",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			list, err := st.ListAssessments()
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), list, func() string {
				return format.Assessments(tableMode(), list)
			})
		},
	}
}

func newAssessApplyCommand() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Run the report with an assessment's incidents excluded",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return faults.Configuration("id", "", "--id is required")
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			a, err := loadAnalysis(st)
			if err != nil {
				return err
			}
			if a, err = withAssessment(st, a, id); err != nil {
				return err
			}
			return runReport(cmd, st, a, report.DefaultOptions(), id)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "assessment ID")
	return cmd
}

// #endregion assess

// #region predicate

func newPredicateCommand() *cobra.Command {
	var metric, expr string
	var count bool

	cmd := &cobra.Command{
		Use:   "predicate",
		Short: "Render a threshold expression as a SQL predicate",
		Long: `Render a threshold expression as a SQL predicate over the metric column.
With --count, also count the stored incidents that satisfy it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := compliance.ParseMetric(metric)
			if err != nil {
				return err
			}
			pred, err := threshold.ToPredicate(string(m), expr)
			if err != nil {
				return err
			}
			out := struct {
				Predicate string `json:"predicate"`
				Count     *int   `json:"count,omitempty"`
			}{Predicate: pred}

			if count {
				st, err := openStore()
				if err != nil {
					return err
				}
				defer st.Close()
				n, err := st.CountMatching(m, expr)
				if err != nil {
					return err
				}
				out.Count = &n
			}
			return emit(cmd.OutOrStdout(), out, func() string {
				if out.Count == nil {
					return pred
				}
				return fmt.Sprintf("%s\n%d incidents", pred, *out.Count)
			})
		},
	}

	cmd.Flags().StringVar(&metric, "metric", string(compliance.MetricFitness), "fitness or cost")
	cmd.Flags().StringVar(&expr, "expr", "", "threshold expression, e.g. \">= 0 AND <= 0.25\"")
	cmd.Flags().BoolVar(&count, "count", false, "also count stored incidents matching the expression")
	return cmd
}

// #endregion predicate
