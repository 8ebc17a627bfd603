package compliance

import (
	"fmt"
	"math"
	"strings"

	"github.com/danielpatrickdp/process-compliance/internal/deviation"
	"github.com/danielpatrickdp/process-compliance/internal/faults"
	"github.com/danielpatrickdp/process-compliance/internal/process"
)

// #region metric
// Metric names the compliance scoring model.
type Metric string

const (
	MetricFitness Metric = "fitness"
	MetricCost    Metric = "cost"
)

// ParseMetric accepts "fitness" and "cost" ("costTotal" is kept as an alias
// of the stored column name).
func ParseMetric(name string) (Metric, error) {
	switch strings.TrimSpace(name) {
	case "fitness":
		return MetricFitness, nil
	case "cost", "costTotal":
		return MetricCost, nil
	}
	return "", faults.Configuration("metric", name, "unknown compliance metric")
}

// #endregion metric

// #region input-result
// Input is the per-incident data a scorer needs.
type Input struct {
	Deviations  deviation.Record
	Fitness     float64 // f in [0,1], fitness model only
	TraceEvents int     // E, cost model only
}

// Result is the per-state score vector and its aggregate.
type Result struct {
	Metric    Metric
	PerState  process.Vector
	Aggregate float64
}

// View is the JSON-serializable form of a Result, rounded for display.
type View struct {
	Metric    Metric             `json:"metric"`
	PerState  map[string]float64 `json:"compliance_per_state"`
	Aggregate float64            `json:"aggregate"`
}

// View rounds per-state scores and the aggregate to two decimals.
func (r Result) View() View {
	return View{
		Metric:    r.Metric,
		PerState:  r.PerState.Map(2),
		Aggregate: process.Round(r.Aggregate, 2),
	}
}

// #endregion input-result

// #region cost-model
// CostModel weights deviations per kind and state, and scales each kind by a multiplier.
type CostModel struct {
	Weights     [process.NumKinds]process.Vector
	Multipliers [process.NumKinds]float64
}

// DefaultCostModel weights every missing step fully and repeated or
// mismatched steps at half, with unit multipliers.
func DefaultCostModel() CostModel {
	var m CostModel
	for _, s := range process.States() {
		m.Weights[process.KindMissing][s] = 1
		m.Weights[process.KindRepetition][s] = 0.5
		m.Weights[process.KindMismatch][s] = 0.5
	}
	m.Multipliers = [process.NumKinds]float64{1, 1, 1}
	return m
}

// Validate checks weights are in [0,1] and multipliers are finite and non-negative.
func (m CostModel) Validate() error {
	for _, k := range process.Kinds() {
		for _, s := range process.States() {
			w := m.Weights[k][s]
			if math.IsNaN(w) || w < 0 || w > 1 {
				return faults.Configuration(fmt.Sprintf("cost_model.weights.%s.%s", k, s.Code()), fmt.Sprint(w), "weight must be in [0,1]")
			}
		}
		c := m.Multipliers[k]
		if math.IsNaN(c) || math.IsInf(c, 0) || c < 0 {
			return faults.Configuration(fmt.Sprintf("cost_model.multipliers.%s", k), fmt.Sprint(c), "multiplier must be finite and non-negative")
		}
	}
	return nil
}

// #endregion cost-model
