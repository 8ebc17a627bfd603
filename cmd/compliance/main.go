package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/danielpatrickdp/process-compliance/internal/config"
	"github.com/danielpatrickdp/process-compliance/internal/format"
	"github.com/danielpatrickdp/process-compliance/internal/logging"
	"github.com/danielpatrickdp/process-compliance/internal/store"
)

// #region main

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "compliance",
		Short: "Incident process-compliance scoring",
		Long: `compliance scores incidents against the incident-handling reference process.

It imports conformance data into a local SQLite store, scores each incident
per process state, selects critical incidents by severity band, and reports
how incidents open and close over time.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(viper.GetString("log_level"))
			if err != nil {
				return err
			}
			logging.Init(level, viper.GetString("log_format"), cmd.ErrOrStderr())
			return nil
		},
	}

	// Global flags
	pf := root.PersistentFlags()
	pf.String("db", "compliance.db", "path to the SQLite incident store")
	pf.String("config", "", "analysis config file (YAML)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	pf.String("format", "ascii", "table format (ascii, markdown)")
	pf.Bool("json", false, "output as JSON instead of tables")
	pf.String("conformance", "", "conformance service address (host:port)")

	// Environment variable binding: COMPLIANCE_DB, COMPLIANCE_LOG_LEVEL, ...
	for _, name := range []string{"db", "config", "log-level", "log-format", "format", "json", "conformance"} {
		if err := viper.BindPFlag(strings.ReplaceAll(name, "-", "_"), pf.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
	viper.SetEnvPrefix("COMPLIANCE")
	viper.AutomaticEnv()

	root.AddCommand(
		newImportCommand(),
		newScoreCommand(),
		newCriticalCommand(),
		newTimeseriesCommand(),
		newReportCommand(),
		newRunsCommand(),
		newAssessCommand(),
		newPredicateCommand(),
	)
	return root
}

// #endregion main

// #region helpers

func openStore() (*store.Store, error) {
	path := viper.GetString("db")
	if path == "" {
		return nil, fmt.Errorf("no database path: set --db or COMPLIANCE_DB")
	}
	return store.NewStore(path)
}

// loadAnalysis reads the analysis config, then folds in the exclusions of
// the what-if assessment when one is configured and a store is given.
func loadAnalysis(st *store.Store) (config.Analysis, error) {
	a := config.Default()
	if path := viper.GetString("config"); path != "" {
		var err error
		if a, err = config.Load(path); err != nil {
			return config.Analysis{}, err
		}
	}
	if id := a.WhatIfAssessment(); id != "" && st != nil {
		return withAssessment(st, a, id)
	}
	return a, nil
}

func withAssessment(st *store.Store, a config.Analysis, id string) (config.Analysis, error) {
	as, err := st.GetAssessment(id)
	if err != nil {
		return config.Analysis{}, err
	}
	return a.WithExclude(append(a.Exclude(), as.IncidentIDs...)), nil
}

func tableMode() format.Mode {
	return format.ParseMode(viper.GetString("format"))
}

// emit writes v as indented JSON when --json is set, else the table.
func emit(w io.Writer, v any, table func() string) error {
	if viper.GetBool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, table())
	return err
}

// #endregion helpers
