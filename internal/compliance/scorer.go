package compliance

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/process-compliance/internal/faults"
	"github.com/danielpatrickdp/process-compliance/internal/process"
)

// #region scorer
// Scorer turns an incident's deviations into per-state compliance scores.
type Scorer interface {
	Metric() Metric
	Score(in Input) (Result, error)
}

// NewScorer selects the scoring model for metric. The cost model is only
// consulted (and validated) for MetricCost.
func NewScorer(metric Metric, model CostModel) (Scorer, error) {
	metric, err := ParseMetric(string(metric))
	if err != nil {
		return nil, err
	}
	switch metric {
	case MetricFitness:
		return FitnessScorer{}, nil
	case MetricCost:
		if err := model.Validate(); err != nil {
			return nil, err
		}
		return CostScorer{model: model}, nil
	}
	return nil, faults.Configuration("metric", string(metric), "unknown compliance metric")
}

// #endregion scorer

// #region fitness
// FitnessScorer distributes the incident's fitness across states in inverse
// proportion to where its deviations occurred.
type FitnessScorer struct{}

func (FitnessScorer) Metric() Metric { return MetricFitness }

// Score returns finalScore(s) = normScore(s) * f. The per-state scores sum to f.
func (FitnessScorer) Score(in Input) (Result, error) {
	f := in.Fitness
	if math.IsNaN(f) || f < 0 || f > 1 {
		return Result{}, faults.DataFormat("fitness", fmt.Sprint(f), "fitness must be in [0,1]")
	}
	norm := NormalizedScores(in.Deviations.PerState())
	final := norm.Scale(f)
	return Result{Metric: MetricFitness, PerState: final, Aggregate: final.Sum()}, nil
}

// RawScores computes (1/k) * (1 - d(s)/D), or 1/k for every state when D is zero.
func RawScores(perState process.Counts) process.Vector {
	k := float64(process.NumStates)
	total := perState.Total()
	var raw process.Vector
	for i, d := range perState {
		if total > 0 {
			raw[i] = (1 / k) * (1 - float64(d)/float64(total))
		} else {
			raw[i] = 1 / k
		}
	}
	return raw
}

// NormalizedScores rescales RawScores to sum to 1. A zero raw sum yields a
// zero normalization factor.
func NormalizedScores(perState process.Counts) process.Vector {
	raw := RawScores(perState)
	if perState.Total() == 0 {
		return raw
	}
	sum := raw.Sum()
	factor := 0.0
	if sum != 0 {
		factor = 1 / sum
	}
	return raw.Scale(factor)
}

// #endregion fitness

// #region cost
// CostScorer accumulates a weighted non-compliance cost per state.
type CostScorer struct {
	model CostModel
}

func (CostScorer) Metric() Metric { return MetricCost }

// Model returns the cost model the scorer was built with.
func (c CostScorer) Model() CostModel { return c.model }

// Score sums Contribution over the three kinds for every state.
func (c CostScorer) Score(in Input) (Result, error) {
	var perState process.Vector
	for _, s := range process.States() {
		for _, k := range process.Kinds() {
			perState[s] += c.Contribution(s, k, in.Deviations[k][s], in.TraceEvents)
		}
	}
	return Result{Metric: MetricCost, PerState: perState, Aggregate: perState.Sum()}, nil
}

// Contribution is the cost of count deviations of kind k at state s.
//
// A saturated term (count*weight > 1) contributes the bare multiplier.
// Below saturation, repetition and mismatch are divided by the trace length
// while missing steps are not. A trace length of zero or less is treated as 1.
func (c CostScorer) Contribution(s process.State, k process.Kind, count, traceEvents int) float64 {
	if count <= 0 {
		return 0
	}
	weighted := float64(count) * c.model.Weights[k][s]
	mult := c.model.Multipliers[k]
	if weighted > 1 {
		return mult
	}
	contrib := weighted * mult
	if k == process.KindMissing {
		return contrib
	}
	e := traceEvents
	if e <= 0 {
		e = 1
	}
	return contrib / float64(e)
}

// #endregion cost

// #region averages
// AveragePerState averages per-state scores over results. An empty selection
// yields the zero vector.
func AveragePerState(results []Result) process.Vector {
	var sum process.Vector
	if len(results) == 0 {
		return sum
	}
	for _, r := range results {
		for i, x := range r.PerState {
			sum[i] += x
		}
	}
	return sum.Scale(1 / float64(len(results)))
}

// #endregion averages
