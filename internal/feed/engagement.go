package feed

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// EngagementScorer boosts a base score with engagement signals:
//
//	score = base * (1 + sum(weight[k] * log1p(signal[k])))
//
// The log keeps a single viral item from swamping recency. Signals without
// a configured weight are ignored. Terms are summed in signal name order so
// equal items always produce bit-identical scores.
type EngagementScorer struct {
	base    Scorer
	weights []signalWeight
}

type signalWeight struct {
	name   string
	weight float64
}

// NewEngagementScorer wraps base with the given per-signal weights.
// The weights map is copied.
func NewEngagementScorer(base Scorer, weights map[string]float64) *EngagementScorer {
	w := make([]signalWeight, 0, len(weights))
	for k, v := range weights {
		w = append(w, signalWeight{name: k, weight: v})
	}
	sort.Slice(w, func(i, j int) bool { return w[i].name < w[j].name })
	return &EngagementScorer{base: base, weights: w}
}

// Score implements Scorer.
func (e *EngagementScorer) Score(item Item, uc *UserContext, now time.Time) (float64, error) {
	base, err := e.base.Score(item, uc, now)
	if err != nil {
		return 0, err
	}

	boost := 1.0
	for _, sw := range e.weights {
		v, ok := item.Signals[sw.name]
		if !ok {
			continue
		}
		if v < 0 || math.IsNaN(v) {
			return 0, fmt.Errorf("%w: item %q signal %s=%v", ErrInvalidItem, item.ID, sw.name, v)
		}
		boost += sw.weight * math.Log1p(v)
	}
	return saturate(base * boost), nil
}

// AffinityScorer scales a base score by how much the user likes the item's kind.
// The multiplier comes from UserContext.Affinity, then the scorer's defaults,
// then 1.0. Negative multipliers are treated as zero. Like the engagement
// boost, an overflowed product saturates at math.MaxFloat64.
type AffinityScorer struct {
	base     Scorer
	defaults map[Kind]float64
}

// NewAffinityScorer wraps base. defaults may be nil.
func NewAffinityScorer(base Scorer, defaults map[Kind]float64) *AffinityScorer {
	d := make(map[Kind]float64, len(defaults))
	for k, v := range defaults {
		d[k] = v
	}
	return &AffinityScorer{base: base, defaults: d}
}

// Score implements Scorer.
func (a *AffinityScorer) Score(item Item, uc *UserContext, now time.Time) (float64, error) {
	base, err := a.base.Score(item, uc, now)
	if err != nil {
		return 0, err
	}
	return saturate(base * a.multiplier(item.Kind, uc)), nil
}

func (a *AffinityScorer) multiplier(kind Kind, uc *UserContext) float64 {
	m, ok := 0.0, false
	if uc != nil {
		m, ok = uc.Affinity[kind]
	}
	if !ok {
		m, ok = a.defaults[kind]
	}
	if !ok {
		return 1.0
	}
	return math.Max(m, 0)
}
