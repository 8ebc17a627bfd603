package selection

import (
	"sort"

	"github.com/danielpatrickdp/process-compliance/internal/compliance"
	"github.com/danielpatrickdp/process-compliance/internal/incident"
	"github.com/danielpatrickdp/process-compliance/internal/severity"
)

// #region params
// Params bundles everything SelectCritical reads. Nothing else is consulted.
type Params struct {
	Metric     compliance.Metric
	Thresholds severity.ThresholdSet
	Order      []severity.Band
	Band       severity.Band
	Scope      []string
	Exclude    []string
}

// Selected is one incident that fell into the requested band.
type Selected struct {
	ID    string        `json:"incident_id"`
	Value float64       `json:"value"`
	Band  severity.Band `json:"severity"`
}

// PolarityOf returns the direction of "worse" for a metric.
func PolarityOf(m compliance.Metric) severity.Polarity {
	if m, _ := compliance.ParseMetric(string(m)); m == compliance.MetricCost {
		return severity.HigherIsWorse
	}
	return severity.LowerIsWorse
}

// #endregion params

// #region select
// SelectCritical keeps the incidents in Scope minus Exclude whose metric value
// classifies into Band, worst first. An empty scope yields an empty slice.
func SelectCritical(incidents []incident.Incident, p Params) ([]Selected, error) {
	metric, err := compliance.ParseMetric(string(p.Metric))
	if err != nil {
		return nil, err
	}
	band, err := severity.ParseBand(string(p.Band))
	if err != nil {
		return nil, err
	}
	classifier, err := severity.NewClassifier(p.Thresholds, p.Order, PolarityOf(metric))
	if err != nil {
		return nil, err
	}

	out := []Selected{}
	if len(p.Scope) == 0 {
		return out, nil
	}

	scope := toSet(p.Scope)
	excluded := toSet(p.Exclude)
	for _, inc := range incidents {
		if _, ok := scope[inc.ID]; !ok {
			continue
		}
		if _, ok := excluded[inc.ID]; ok {
			continue
		}
		v := inc.Value(metric)
		if classifier.Classify(v) != band {
			continue
		}
		out = append(out, Selected{ID: inc.ID, Value: v, Band: band})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return classifier.Worse(out[i].Value, out[j].Value)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// InScope filters incidents to scope minus exclude, keeping input order.
func InScope(incidents []incident.Incident, scope, exclude []string) []incident.Incident {
	if len(scope) == 0 {
		return nil
	}
	in := toSet(scope)
	out := toSet(exclude)
	var kept []incident.Incident
	for _, inc := range incidents {
		if _, ok := in[inc.ID]; !ok {
			continue
		}
		if _, ok := out[inc.ID]; ok {
			continue
		}
		kept = append(kept, inc)
	}
	return kept
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// #endregion select
