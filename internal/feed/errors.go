package feed

import (
	"errors"
	"fmt"
)

// Ranking errors.
var (
	ErrInvalidItem     = errors.New("invalid feed item")
	ErrScoringFailure  = errors.New("scoring failed")
	ErrUnknownScorer   = errors.New("unknown scorer")
	ErrDuplicateScorer = errors.New("scorer already registered")
)

// ItemError reports which item in a batch caused a ranking pass to fail.
// It unwraps to the underlying cause, so errors.Is works with the sentinels above.
type ItemError struct {
	Index int
	ID    string
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d (%q): %v", e.Index, e.ID, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
