// Package feedcache keeps the last successfully ranked feed per user so
// callers can serve a stale feed when ranking fails.
package feedcache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/onnwee/feedrank/internal/feed"
)

// ErrNotFound is returned when no feed is cached for a user.
var ErrNotFound = errors.New("cached feed not found")

// DefaultTTL is how long a cached feed stays usable.
const DefaultTTL = 15 * time.Minute

// Entry is a cached ranked feed.
type Entry struct {
	Items    []feed.Item `json:"items"`
	StoredAt time.Time   `json:"stored_at"`
}

// Store defines the interface for ranked feed caching.
type Store interface {
	// Put replaces the cached feed for userID.
	Put(ctx context.Context, userID string, items []feed.Item) error

	// Get returns the cached feed for userID, or ErrNotFound if none is
	// cached or it has expired.
	Get(ctx context.Context, userID string) (*Entry, error)
}

// InMemoryStore is an in-memory implementation of Store.
// Thread-safe via RWMutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*Entry
}

// NewInMemoryStore creates a new in-memory feed cache.
// A non-positive ttl selects DefaultTTL.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*Entry),
	}
}

// Put stores a copy of items for userID.
func (s *InMemoryStore) Put(_ context.Context, userID string, items []feed.Item) error {
	cp := make([]feed.Item, len(items))
	copy(cp, items)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[userID] = &Entry{Items: cp, StoredAt: s.now()}
	return nil
}

// Get returns a copy of the cached feed for userID.
func (s *InMemoryStore) Get(_ context.Context, userID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[userID]
	if !ok || s.now().Sub(e.StoredAt) > s.ttl {
		return nil, ErrNotFound
	}

	items := make([]feed.Item, len(e.Items))
	copy(items, e.Items)
	return &Entry{Items: items, StoredAt: e.StoredAt}, nil
}

// Cleanup removes expired entries.
func (s *InMemoryStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for userID, e := range s.entries {
		if now.Sub(e.StoredAt) > s.ttl {
			delete(s.entries, userID)
		}
	}
}
