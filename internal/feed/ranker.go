package feed

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"
)

// Ranking modes, used as metric and log labels.
const (
	ModeTimestamp = "timestamp"
	ModeScore     = "score"
)

// Ranker orders feed items. A Ranker holds no per-call state and is safe for
// concurrent use once constructed.
type Ranker struct {
	scorer  Scorer
	clock   func() time.Time
	metrics *Metrics
	logger  *slog.Logger
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithClock sets the time source sampled once per RankByScore call.
func WithClock(clock func() time.Time) Option {
	return func(r *Ranker) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithMetrics records ranking passes on m.
func WithMetrics(m *Metrics) Option {
	return func(r *Ranker) {
		r.metrics = m
	}
}

// WithLogger sets the logger used to report failed passes.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Ranker) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRanker creates a Ranker that scores with scorer.
// A nil scorer selects the default 24 hour DecayScorer.
func NewRanker(scorer Scorer, opts ...Option) *Ranker {
	if scorer == nil {
		scorer = NewDecayScorer(DefaultDecayWindow)
	}
	r := &Ranker{
		scorer: scorer,
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RankByTimestamp returns the items ordered newest first. Scores are not
// consulted and any Rank on the input is dropped. Items with equal
// timestamps keep their input order.
func (r *Ranker) RankByTimestamp(items []Item) ([]Item, error) {
	start := time.Now()

	out, err := r.copyValid(items)
	if err != nil {
		return nil, r.fail(ModeTimestamp, err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	r.observe(ModeTimestamp, len(out), start)
	return out, nil
}

// RankByScore scores every item against a single "now" sampled from the
// ranker's clock and returns copies ordered by descending score with Rank
// attached. See RankByScoreAt.
func (r *Ranker) RankByScore(items []Item, uc *UserContext) ([]Item, error) {
	return r.RankByScoreAt(items, uc, r.clock())
}

// RankByScoreAt is RankByScore with an explicit reference time.
//
// Each item is scored exactly once. Equal scores keep their input order;
// IDs never break ties. If any item fails to score, or scores NaN or
// infinity, the whole pass fails with an error wrapping ErrScoringFailure.
func (r *Ranker) RankByScoreAt(items []Item, uc *UserContext, now time.Time) ([]Item, error) {
	start := time.Now()

	out, err := r.copyValid(items)
	if err != nil {
		return nil, r.fail(ModeScore, err)
	}

	for i := range out {
		score, err := r.scorer.Score(out[i], uc, now)
		if err == nil && (math.IsNaN(score) || math.IsInf(score, 0)) {
			err = fmt.Errorf("non-finite score %v", score)
		}
		if err != nil {
			return nil, r.fail(ModeScore, &ItemError{
				Index: i,
				ID:    out[i].ID,
				Err:   fmt.Errorf("%w: %w", ErrScoringFailure, err),
			})
		}
		out[i] = out[i].WithRank(score)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].Rank > *out[j].Rank
	})

	r.observe(ModeScore, len(out), start)
	return out, nil
}

// copyValid validates every item and returns rank-free copies in input order.
func (r *Ranker) copyValid(items []Item) ([]Item, error) {
	out := make([]Item, len(items))
	for i, it := range items {
		if err := it.Validate(); err != nil {
			return nil, &ItemError{Index: i, ID: it.ID, Err: err}
		}
		out[i] = it.withoutRank()
	}
	return out, nil
}

func (r *Ranker) fail(mode string, err error) error {
	reason := ReasonScoring
	if errors.Is(err, ErrInvalidItem) && !errors.Is(err, ErrScoringFailure) {
		reason = ReasonInvalidItem
	}
	if r.metrics != nil {
		r.metrics.IncRankErrors(mode, reason)
	}
	r.logger.Warn("feed ranking failed",
		"mode", mode,
		"reason", reason,
		"error", err)
	return err
}

func (r *Ranker) observe(mode string, n int, start time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.ObserveRank(mode, n, time.Since(start).Seconds())
}
