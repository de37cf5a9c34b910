package feed

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Built-in scorer names.
const (
	ScorerDecay      = "decay"
	ScorerEngagement = "engagement"
	ScorerAffinity   = "affinity"
)

// Params carries tunables handed to scorer factories.
// Factories read what they need and ignore the rest.
type Params struct {
	DecayWindow time.Duration
	Engagement  map[string]float64
	Affinity    map[Kind]float64
}

// Factory builds a Scorer from Params.
type Factory func(p Params) (Scorer, error)

// Registry maps scorer names to factories so deployments can select a
// strategy by configuration. Registration is expected at startup; the
// registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// NewDefaultRegistry creates a registry with the built-in scorers:
//   - decay: exponential recency decay
//   - engagement: decay boosted by engagement signals
//   - affinity: engagement scoring scaled by per-kind user affinity
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	// Built-in names are distinct, so these cannot fail.
	_ = r.Register(ScorerDecay, func(p Params) (Scorer, error) {
		return NewDecayScorer(p.DecayWindow), nil
	})
	_ = r.Register(ScorerEngagement, func(p Params) (Scorer, error) {
		return NewEngagementScorer(NewDecayScorer(p.DecayWindow), p.Engagement), nil
	})
	_ = r.Register(ScorerAffinity, func(p Params) (Scorer, error) {
		base := NewEngagementScorer(NewDecayScorer(p.DecayWindow), p.Engagement)
		return NewAffinityScorer(base, p.Affinity), nil
	})
	return r
}

// Register adds a named factory. Names must be non-empty and unique.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("register scorer %q: name and factory are required", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateScorer, name)
	}
	r.factories[name] = f
	return nil
}

// Build constructs the scorer registered under name.
func (r *Registry) Build(name string, p Params) (Scorer, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScorer, name)
	}

	s, err := f(p)
	if err != nil {
		return nil, fmt.Errorf("build scorer %s: %w", name, err)
	}
	return s, nil
}

// Names returns the registered scorer names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
