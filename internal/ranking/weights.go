package ranking

import (
	"fmt"
	"time"

	"github.com/onnwee/feedrank/internal/feed"
)

// DecayWindow returns the configured characteristic decay time.
// Non-positive values fall back to feed.DefaultDecayWindow.
func (w *Weights) DecayWindow() time.Duration {
	if w == nil || w.Decay.WindowHours <= 0 {
		return feed.DefaultDecayWindow
	}
	return time.Duration(w.Decay.WindowHours * float64(time.Hour))
}

// Params converts calibration weights into scorer factory parameters.
// A nil receiver yields the defaults.
func (w *Weights) Params() feed.Params {
	if w == nil {
		w = DefaultWeights()
	}

	p := feed.Params{
		DecayWindow: w.DecayWindow(),
		Engagement: map[string]float64{
			feed.SignalLikes:    w.Engagement.Likes,
			feed.SignalComments: w.Engagement.Comments,
			feed.SignalRSVPs:    w.Engagement.RSVPs,
			feed.SignalShares:   w.Engagement.Shares,
		},
	}

	if len(w.Affinity) > 0 {
		p.Affinity = make(map[feed.Kind]float64, len(w.Affinity))
		for kind, v := range w.Affinity {
			p.Affinity[feed.Kind(kind)] = v
		}
	}
	return p
}

// NewScorer builds the scorer registered under name using calibrated weights.
// An empty name selects the decay scorer.
func NewScorer(reg *feed.Registry, name string, w *Weights) (feed.Scorer, error) {
	if name == "" {
		name = feed.ScorerDecay
	}
	s, err := reg.Build(name, w.Params())
	if err != nil {
		return nil, fmt.Errorf("ranking scorer: %w", err)
	}
	return s, nil
}
