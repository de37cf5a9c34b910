package feedcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/feedrank/internal/feed"
	"github.com/onnwee/feedrank/internal/tracing"
)

// keyPrefix namespaces cached feeds in a shared Redis.
const keyPrefix = "feedrank:feed:"

// RedisStore is a Redis-backed implementation of Store.
// Entries are stored as JSON with a TTL so expiry is handled by Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed feed cache.
// A non-positive ttl selects DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(userID string) string {
	return keyPrefix + userID
}

// Put stores the feed for userID.
func (s *RedisStore) Put(ctx context.Context, userID string, items []feed.Item) (err error) {
	ctx, endSpan := tracing.StartCacheSpan(ctx, "redis", tracing.CacheOperationPut)
	defer func() { endSpan(err) }()

	data, err := json.Marshal(Entry{Items: items, StoredAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode cached feed: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache feed: %w", err)
	}
	return nil
}

// Get returns the cached feed for userID.
func (s *RedisStore) Get(ctx context.Context, userID string) (_ *Entry, err error) {
	ctx, endSpan := tracing.StartCacheSpan(ctx, "redis", tracing.CacheOperationGet)
	defer func() {
		// A miss is not a failure of the cache call.
		if errors.Is(err, ErrNotFound) {
			endSpan(nil)
			return
		}
		endSpan(err)
	}()

	data, err := s.client.Get(ctx, redisKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached feed: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode cached feed: %w", err)
	}
	return &e, nil
}

// HealthCheck pings Redis.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
