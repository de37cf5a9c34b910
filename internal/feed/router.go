package feed

import (
	"time"
)

// KindRouter dispatches scoring to a per-kind strategy.
// Kinds without a registered strategy use the fallback scorer, so new
// content kinds rank without any change here.
//
// Routes are fixed at construction; a KindRouter is safe for concurrent use.
type KindRouter struct {
	fallback Scorer
	routes   map[Kind]Scorer
}

// NewKindRouter creates a router. routes is copied; fallback must be non-nil.
func NewKindRouter(fallback Scorer, routes map[Kind]Scorer) *KindRouter {
	r := make(map[Kind]Scorer, len(routes))
	for k, s := range routes {
		r[k] = s
	}
	return &KindRouter{fallback: fallback, routes: r}
}

// ScorerFor returns the strategy used for kind.
func (r *KindRouter) ScorerFor(kind Kind) Scorer {
	if s, ok := r.routes[kind]; ok {
		return s
	}
	return r.fallback
}

// Score implements Scorer.
func (r *KindRouter) Score(item Item, uc *UserContext, now time.Time) (float64, error) {
	return r.ScorerFor(item.Kind).Score(item, uc, now)
}
