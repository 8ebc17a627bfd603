package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/process-compliance/internal/compliance"
	"github.com/danielpatrickdp/process-compliance/internal/faults"
	"github.com/danielpatrickdp/process-compliance/internal/process"
	"github.com/danielpatrickdp/process-compliance/internal/selection"
	"github.com/danielpatrickdp/process-compliance/internal/severity"
)

// #region analysis
// Analysis is the immutable parameter bundle passed to every scoring,
// selection and aggregation call. Accessors return copies.
type Analysis struct {
	metric     compliance.Metric
	thresholds map[compliance.Metric]severity.ThresholdSet
	order      []severity.Band
	costModel  compliance.CostModel
	scope      []string
	exclude    []string
	assessment string
}

// Default returns the fitness metric with the shipped threshold sets, the
// default band order and cost model, and an empty scope.
func Default() Analysis {
	return Analysis{
		metric: compliance.MetricFitness,
		thresholds: map[compliance.Metric]severity.ThresholdSet{
			compliance.MetricFitness: severity.DefaultFitnessThresholds(),
			compliance.MetricCost:    severity.DefaultCostThresholds(),
		},
		order:     severity.DefaultOrder(),
		costModel: compliance.DefaultCostModel(),
	}
}

func (a Analysis) Metric() compliance.Metric { return a.metric }

// Thresholds returns a copy of the threshold set for m.
func (a Analysis) Thresholds(m compliance.Metric) severity.ThresholdSet {
	return a.thresholds[m].Clone()
}

// ActiveThresholds returns the threshold set of the active metric.
func (a Analysis) ActiveThresholds() severity.ThresholdSet { return a.Thresholds(a.metric) }

func (a Analysis) Order() []severity.Band { return append([]severity.Band(nil), a.order...) }

func (a Analysis) CostModel() compliance.CostModel { return a.costModel }

func (a Analysis) Scope() []string { return append([]string(nil), a.scope...) }

func (a Analysis) Exclude() []string { return append([]string(nil), a.exclude...) }

// WhatIfAssessment is the assessment whose incidents are excluded, if any.
func (a Analysis) WhatIfAssessment() string { return a.assessment }

// WithMetric returns a copy using m as the active metric.
func (a Analysis) WithMetric(m compliance.Metric) Analysis {
	a = a.clone()
	a.metric = m
	return a
}

// WithScope returns a copy restricted to ids.
func (a Analysis) WithScope(ids []string) Analysis {
	a = a.clone()
	a.scope = append([]string(nil), ids...)
	return a
}

// WithExclude returns a copy whose exclusion list is ids plus the existing exclusions.
func (a Analysis) WithExclude(ids []string) Analysis {
	a = a.clone()
	merged := append(append([]string(nil), a.exclude...), ids...)
	sort.Strings(merged)
	a.exclude = dedupe(merged)
	return a
}

// Classifier builds a classifier for the active metric with its polarity.
func (a Analysis) Classifier() (*severity.Classifier, error) {
	return severity.NewClassifier(a.ActiveThresholds(), a.Order(), selection.PolarityOf(a.metric))
}

// Scorer builds the scorer for the active metric.
func (a Analysis) Scorer() (compliance.Scorer, error) {
	return compliance.NewScorer(a.metric, a.costModel)
}

// SelectionParams fills selection parameters for band from the bundle.
func (a Analysis) SelectionParams(band severity.Band) selection.Params {
	return selection.Params{
		Metric:     a.metric,
		Thresholds: a.ActiveThresholds(),
		Order:      a.Order(),
		Band:       band,
		Scope:      a.Scope(),
		Exclude:    a.Exclude(),
	}
}

// Validate checks the active metric, every threshold expression and the cost model.
func (a Analysis) Validate() error {
	if _, err := compliance.ParseMetric(string(a.metric)); err != nil {
		return err
	}
	for _, m := range []compliance.Metric{compliance.MetricFitness, compliance.MetricCost} {
		if _, err := severity.NewClassifier(a.thresholds[m], a.order, selection.PolarityOf(m)); err != nil {
			return fmt.Errorf("thresholds %s: %w", m, err)
		}
	}
	return a.costModel.Validate()
}

func (a Analysis) clone() Analysis {
	th := make(map[compliance.Metric]severity.ThresholdSet, len(a.thresholds))
	for m, set := range a.thresholds {
		th[m] = set.Clone()
	}
	a.thresholds = th
	a.order = a.Order()
	a.scope = a.Scope()
	a.exclude = a.Exclude()
	return a
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}

// #endregion analysis

// #region file
// File is the YAML shape of an analysis config. Every field is optional and
// overrides the defaults.
type File struct {
	Metric           string                       `yaml:"metric"`
	BandOrder        []string                     `yaml:"band_order"`
	Thresholds       map[string]map[string]string `yaml:"thresholds"`
	CostModel        *CostModelFile               `yaml:"cost_model"`
	Scope            []string                     `yaml:"scope"`
	Exclude          []string                     `yaml:"exclude"`
	WhatIfAssessment string                       `yaml:"whatif_assessment"`
}

// CostModelFile holds partial cost model overrides keyed by kind and state code.
type CostModelFile struct {
	Weights     map[string]map[string]float64 `yaml:"weights"`
	Multipliers map[string]float64            `yaml:"multipliers"`
}

// #endregion file

// #region load

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("analysis.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("analysis.schema.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// Load reads and parses the analysis config at path.
func Load(path string) (Analysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Analysis{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse validates YAML against the embedded schema, then applies it over Default.
func Parse(data []byte) (Analysis, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Analysis{}, faults.DataFormat("config", "", err.Error())
	}
	if raw == nil {
		return Default(), nil
	}
	if err := validateSchema(raw); err != nil {
		return Analysis{}, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Analysis{}, faults.DataFormat("config", "", err.Error())
	}
	return f.Apply(Default())
}

func validateSchema(raw any) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	// round-trip through JSON so the validator sees JSON types
	b, err := json.Marshal(raw)
	if err != nil {
		return faults.DataFormat("config", "", err.Error())
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return faults.DataFormat("config", "", err.Error())
	}
	if err := s.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return faults.Configuration("config", ve.InstanceLocation, ve.Error())
		}
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// Apply overlays f onto base and validates the result.
func (f File) Apply(base Analysis) (Analysis, error) {
	a := base.clone()

	if f.Metric != "" {
		m, err := compliance.ParseMetric(f.Metric)
		if err != nil {
			return Analysis{}, err
		}
		a.metric = m
	}

	if len(f.BandOrder) > 0 {
		order := make([]severity.Band, 0, len(f.BandOrder))
		for _, label := range f.BandOrder {
			b, err := severity.ParseBand(label)
			if err != nil {
				return Analysis{}, err
			}
			order = append(order, b)
		}
		a.order = order
	}

	for name, bands := range f.Thresholds {
		m, err := compliance.ParseMetric(name)
		if err != nil {
			return Analysis{}, err
		}
		set := a.thresholds[m].Clone()
		for label, expr := range bands {
			b, err := severity.ParseBand(label)
			if err != nil {
				return Analysis{}, err
			}
			set[b] = expr
		}
		a.thresholds[m] = set
	}

	if f.CostModel != nil {
		cm, err := f.CostModel.apply(a.costModel)
		if err != nil {
			return Analysis{}, err
		}
		a.costModel = cm
	}

	if f.Scope != nil {
		a.scope = append([]string(nil), f.Scope...)
	}
	if len(f.Exclude) > 0 {
		a = a.WithExclude(f.Exclude)
	}
	a.assessment = f.WhatIfAssessment

	if err := a.Validate(); err != nil {
		return Analysis{}, err
	}
	return a, nil
}

func (c CostModelFile) apply(m compliance.CostModel) (compliance.CostModel, error) {
	for kindName, states := range c.Weights {
		k, ok := process.ParseKind(kindName)
		if !ok {
			return m, faults.Configuration("cost_model.weights", kindName, "unknown deviation kind")
		}
		for code, w := range states {
			s, ok := process.ParseCode(code)
			if !ok {
				return m, faults.Configuration("cost_model.weights."+kindName, code, "unknown state code")
			}
			m.Weights[k][s] = w
		}
	}
	for kindName, mult := range c.Multipliers {
		k, ok := process.ParseKind(kindName)
		if !ok {
			return m, faults.Configuration("cost_model.multipliers", kindName, "unknown deviation kind")
		}
		m.Multipliers[k] = mult
	}
	return m, nil
}

// #endregion load
