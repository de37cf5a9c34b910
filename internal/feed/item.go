package feed

import (
	"fmt"
	"maps"
	"time"
)

// Kind identifies the content type of a feed item.
// The set is open: any non-empty value is a valid kind.
type Kind string

// Known content kinds.
const (
	KindEvent Kind = "event"
	KindPost  Kind = "post"
)

// Item is one unit of rankable content.
type Item struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`

	// Timestamp is the instant the item becomes relevant: start time for
	// events, creation time for posts. May be in the past or the future.
	Timestamp time.Time `json:"timestamp"`

	// Rank is attached by score-producing operations. Input values are ignored.
	Rank *float64 `json:"rank,omitempty"`

	// Signals holds optional engagement counts keyed by signal name
	// (see SignalLikes and friends). The default scorer ignores them.
	Signals map[string]float64 `json:"signals,omitempty"`
}

// Engagement signal names understood by EngagementScorer.
const (
	SignalLikes    = "likes"
	SignalComments = "comments"
	SignalRSVPs    = "rsvps"
	SignalShares   = "shares"
)

// UserContext carries per-user signals into scoring.
// Scorers must tolerate a nil context and unknown fields.
type UserContext struct {
	UserID string `json:"user_id"`

	// Affinity maps a content kind to a preference multiplier.
	Affinity map[Kind]float64 `json:"affinity,omitempty"`
}

// Validate reports whether the item carries a usable identity, kind and timestamp.
// The returned error wraps ErrInvalidItem.
func (it Item) Validate() error {
	switch {
	case it.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidItem)
	case it.Kind == "":
		return fmt.Errorf("%w: item %q has no kind", ErrInvalidItem, it.ID)
	case it.Timestamp.IsZero():
		return fmt.Errorf("%w: item %q has no timestamp", ErrInvalidItem, it.ID)
	}
	return nil
}

// WithRank returns a copy of the item with the given score attached.
func (it Item) WithRank(score float64) Item {
	it.Rank = &score
	return it
}

// withoutRank returns a copy of the item with any caller-supplied rank
// dropped and its own Signals map.
func (it Item) withoutRank() Item {
	it.Rank = nil
	it.Signals = maps.Clone(it.Signals)
	return it
}

// ParseTimestamp parses an RFC 3339 timestamp for an item.
// Empty or malformed input yields an error wrapping ErrInvalidItem.
func ParseTimestamp(id, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: item %q has no timestamp", ErrInvalidItem, id)
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: item %q timestamp %q: %v", ErrInvalidItem, id, value, err)
	}
	return ts, nil
}
