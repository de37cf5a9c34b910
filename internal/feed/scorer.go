package feed

import (
	"fmt"
	"math"
	"time"
)

// DefaultDecayWindow is the characteristic time of the default recency decay.
const DefaultDecayWindow = 24 * time.Hour

// Scorer computes a relevance score for a single item. Higher is more relevant.
//
// Implementations must be pure for a given now: the same item, context and
// now always produce the same score. uc may be nil. Implementations must be
// safe for concurrent use.
type Scorer interface {
	Score(item Item, uc *UserContext, now time.Time) (float64, error)
}

// ScorerFunc adapts an ordinary function to the Scorer interface.
type ScorerFunc func(item Item, uc *UserContext, now time.Time) (float64, error)

// Score calls f(item, uc, now).
func (f ScorerFunc) Score(item Item, uc *UserContext, now time.Time) (float64, error) {
	return f(item, uc, now)
}

// DecayScorer scores items by exponential recency decay:
//
//	score = exp(-hoursAgo / windowHours)
//
// Items dated in the future have negative hoursAgo and score above 1.0, so
// upcoming events outrank anything already published. Beyond roughly 709
// windows ahead the exponential overflows; such items score math.MaxFloat64
// and tie with each other. Old items approach zero but never go negative.
// Beyond roughly 745 windows back the result underflows to exactly 0, so
// those items tie and keep their input order.
type DecayScorer struct {
	window time.Duration
}

// NewDecayScorer creates a decay scorer with the given characteristic time.
// A non-positive window falls back to DefaultDecayWindow.
func NewDecayScorer(window time.Duration) *DecayScorer {
	if window <= 0 {
		window = DefaultDecayWindow
	}
	return &DecayScorer{window: window}
}

// Window returns the characteristic decay time.
func (d *DecayScorer) Window() time.Duration {
	return d.window
}

// Score implements Scorer. The user context is ignored.
func (d *DecayScorer) Score(item Item, _ *UserContext, now time.Time) (float64, error) {
	if item.Timestamp.IsZero() {
		return 0, fmt.Errorf("%w: item %q has no timestamp", ErrInvalidItem, item.ID)
	}

	hoursAgo := now.Sub(item.Timestamp).Hours()
	return saturate(math.Exp(-hoursAgo / d.window.Hours())), nil
}

// saturate maps an overflowed product to the nearest finite float so it
// stays rankable and JSON-encodable. NaN passes through.
func saturate(x float64) float64 {
	switch {
	case math.IsInf(x, 1):
		return math.MaxFloat64
	case math.IsInf(x, -1):
		return -math.MaxFloat64
	}
	return x
}
