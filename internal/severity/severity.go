package severity

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/process-compliance/internal/faults"
	"github.com/danielpatrickdp/process-compliance/internal/threshold"
)

// #region band
// Band is a severity bucket describing distance from full compliance.
type Band string

const (
	BandLow      Band = "low"
	BandModerate Band = "moderate"
	BandHigh     Band = "high"
	BandCritical Band = "critical"

	// Unclassified is returned when no band expression matches.
	Unclassified Band = "unclassified"
)

// Bands lists the four classifiable bands.
func Bands() []Band {
	return []Band{BandLow, BandModerate, BandHigh, BandCritical}
}

// DefaultOrder is the evaluation order used when none is configured.
func DefaultOrder() []Band {
	return []Band{BandLow, BandModerate, BandHigh, BandCritical}
}

// ParseBand accepts one of the four band labels.
func ParseBand(label string) (Band, error) {
	b := Band(strings.ToLower(strings.TrimSpace(label)))
	for _, known := range Bands() {
		if b == known {
			return b, nil
		}
	}
	return "", faults.Configuration("band", label, "unknown severity label")
}

// #endregion band

// #region polarity
// Polarity says which direction of the metric is worse.
type Polarity int

const (
	LowerIsWorse Polarity = iota
	HigherIsWorse
)

func (p Polarity) String() string {
	if p == HigherIsWorse {
		return "higher_is_worse"
	}
	return "lower_is_worse"
}

// #endregion polarity

// #region threshold-set
// ThresholdSet maps a band to its threshold expression.
type ThresholdSet map[Band]string

// Clone returns an independent copy of s.
func (s ThresholdSet) Clone() ThresholdSet {
	out := make(ThresholdSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// DefaultFitnessThresholds partitions [0,1]; lower fitness is worse.
func DefaultFitnessThresholds() ThresholdSet {
	return ThresholdSet{
		BandLow:      ">= 0.85 AND <= 1",
		BandModerate: ">= 0.5 AND < 0.85",
		BandHigh:     "> 0.25 AND < 0.5",
		BandCritical: ">= 0 AND <= 0.25",
	}
}

// DefaultCostThresholds partitions [0,∞); higher cost is worse.
func DefaultCostThresholds() ThresholdSet {
	return ThresholdSet{
		BandLow:      ">= 0 AND < 0.25",
		BandModerate: ">= 0.25 AND < 0.5",
		BandHigh:     ">= 0.5 AND < 0.75",
		BandCritical: ">= 0.75",
	}
}

// #endregion threshold-set

// #region classifier
// Classifier buckets metric values by evaluating band expressions in a fixed order.
type Classifier struct {
	order    []Band
	exprs    map[Band]threshold.Expr
	polarity Polarity
}

// NewClassifier parses every expression named in order. Bands in set but
// absent from order are never matched.
func NewClassifier(set ThresholdSet, order []Band, polarity Polarity) (*Classifier, error) {
	if len(order) == 0 {
		order = DefaultOrder()
	}
	c := &Classifier{
		order:    make([]Band, 0, len(order)),
		exprs:    make(map[Band]threshold.Expr, len(order)),
		polarity: polarity,
	}
	for _, b := range order {
		if _, err := ParseBand(string(b)); err != nil {
			return nil, err
		}
		if _, dup := c.exprs[b]; dup {
			return nil, faults.Configuration("band_order", string(b), "band listed twice")
		}
		src, ok := set[b]
		if !ok {
			return nil, faults.Configuration("thresholds", string(b), "no expression for band")
		}
		e, err := threshold.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("band %s: %w", b, err)
		}
		c.exprs[b] = e
		c.order = append(c.order, b)
	}
	return c, nil
}

// Classify returns the first band in order whose expression holds, else Unclassified.
func (c *Classifier) Classify(value float64) Band {
	for _, b := range c.order {
		if c.exprs[b].Eval(value) {
			return b
		}
	}
	return Unclassified
}

// Order returns the evaluation order.
func (c *Classifier) Order() []Band {
	out := make([]Band, len(c.order))
	copy(out, c.order)
	return out
}

// Polarity returns the configured direction of "worse".
func (c *Classifier) Polarity() Polarity { return c.polarity }

// Has reports whether b takes part in classification.
func (c *Classifier) Has(b Band) bool {
	_, ok := c.exprs[b]
	return ok
}

// Worse reports whether a is strictly worse than b under the classifier's polarity.
func (c *Classifier) Worse(a, b float64) bool {
	if c.polarity == HigherIsWorse {
		return a > b
	}
	return a < b
}

// Classify is a one-shot helper using LowerIsWorse polarity.
func Classify(value float64, set ThresholdSet, order []Band) (Band, error) {
	c, err := NewClassifier(set, order, LowerIsWorse)
	if err != nil {
		return "", err
	}
	return c.Classify(value), nil
}

// #endregion classifier
