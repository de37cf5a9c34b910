package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/feedrank/internal/feed"
	"github.com/onnwee/feedrank/internal/feedcache"
	"github.com/onnwee/feedrank/internal/middleware"
	"github.com/onnwee/feedrank/internal/tracing"
)

// Request limits.
const (
	DefaultMaxItems     = 1000
	DefaultMaxBodyBytes = 1 << 20 // 1 MiB
)

// RankItem is a feed item as it arrives over the wire. The timestamp is kept
// as a string so a malformed value can be reported as an invalid item.
type RankItem struct {
	Kind      string             `json:"kind"`
	ID        string             `json:"id"`
	Timestamp string             `json:"timestamp"`
	Signals   map[string]float64 `json:"signals,omitempty"`
}

// RankRequest is the body of POST /feed/rank.
type RankRequest struct {
	Items   []RankItem        `json:"items"`
	Context *feed.UserContext `json:"context,omitempty"`

	// Mode selects "score" (default) or "timestamp" ordering.
	Mode string `json:"mode,omitempty"`

	// Now optionally pins the reference time (RFC 3339) for score mode.
	Now string `json:"now,omitempty"`
}

// FeedResponse is returned by both feed endpoints.
type FeedResponse struct {
	Items []feed.Item `json:"items"`
	Mode  string      `json:"mode,omitempty"`
	Count int         `json:"count"`

	// Cached is set when the items come from the last good ranking for the
	// user rather than from this request.
	Cached   bool       `json:"cached"`
	CachedAt *time.Time `json:"cached_at,omitempty"`
}

// FeedHandlers serves feed ranking requests.
type FeedHandlers struct {
	ranker       *feed.Ranker
	cache        feedcache.Store
	maxItems     int
	maxBodyBytes int64
	logger       *slog.Logger
}

// FeedHandlersConfig configures FeedHandlers.
type FeedHandlersConfig struct {
	Ranker *feed.Ranker

	// Cache is optional; without it there is no fallback on scoring failure
	// and GET /feed/cached always answers 404.
	Cache feedcache.Store

	MaxItems     int
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// NewFeedHandlers creates feed handlers. Zero limits select the defaults.
func NewFeedHandlers(cfg FeedHandlersConfig) *FeedHandlers {
	h := &FeedHandlers{
		ranker:       cfg.Ranker,
		cache:        cfg.Cache,
		maxItems:     cfg.MaxItems,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       cfg.Logger,
	}
	if h.ranker == nil {
		h.ranker = feed.NewRanker(nil)
	}
	if h.maxItems <= 0 {
		h.maxItems = DefaultMaxItems
	}
	if h.maxBodyBytes <= 0 {
		h.maxBodyBytes = DefaultMaxBodyBytes
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// RankFeed handles POST /feed/rank.
//
// Invalid items yield 422 invalid_item. When scoring fails and a feed for the
// user is cached, the cached feed is served with cached=true; otherwise the
// response is 422 scoring_failure. Successful score-mode rankings for a known
// user replace that user's cached feed.
func (h *FeedHandlers) RankFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req RankRequest
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeTooLarge)
			WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "Request body too large")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = feed.ModeScore
	}
	if mode != feed.ModeScore && mode != feed.ModeTimestamp {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "mode must be score or timestamp")
		return
	}

	if len(req.Items) > h.maxItems {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeTooLarge)
		WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "Too many items in request")
		return
	}

	var now time.Time
	if req.Now != "" {
		t, err := time.Parse(time.RFC3339Nano, req.Now)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "now must be an RFC 3339 timestamp")
			return
		}
		now = t
	}

	items, err := decodeItems(req.Items)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidItem)
		WriteError(w, ctx, http.StatusUnprocessableEntity, ErrCodeInvalidItem, err.Error())
		return
	}

	userID := ""
	if req.Context != nil {
		userID = req.Context.UserID
	}
	ctx := r.Context()
	if userID != "" {
		ctx = middleware.SetUserID(ctx, userID)
	}

	ranked, err := h.rank(ctx, mode, items, req.Context, now)
	switch {
	case err == nil:
	case errors.Is(err, feed.ErrScoringFailure):
		if h.serveCached(w, ctx, userID, mode, err) {
			return
		}
		ctx = middleware.SetErrorCode(ctx, ErrCodeScoringFailure)
		WriteError(w, ctx, http.StatusUnprocessableEntity, ErrCodeScoringFailure, err.Error())
		return
	case errors.Is(err, feed.ErrInvalidItem):
		ctx = middleware.SetErrorCode(ctx, ErrCodeInvalidItem)
		WriteError(w, ctx, http.StatusUnprocessableEntity, ErrCodeInvalidItem, err.Error())
		return
	default:
		h.logger.ErrorContext(ctx, "feed ranking failed unexpectedly", "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to rank feed")
		return
	}

	if mode == feed.ModeScore && userID != "" && h.cache != nil {
		if err := h.cache.Put(ctx, userID, ranked); err != nil {
			h.logger.WarnContext(ctx, "failed to cache ranked feed", "user_id", userID, "error", err)
		}
	}

	writeJSON(w, ctx, http.StatusOK, FeedResponse{
		Items: ranked,
		Mode:  mode,
		Count: len(ranked),
	})
}

// rank runs one ranking pass inside a span.
func (h *FeedHandlers) rank(ctx context.Context, mode string, items []feed.Item, uc *feed.UserContext, now time.Time) (ranked []feed.Item, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "feed.rank")
	defer func() { endSpan(err) }()

	tracing.SetAttributes(ctx,
		attribute.String("feed.mode", mode),
		attribute.Int("feed.items", len(items)),
	)

	switch {
	case mode == feed.ModeTimestamp:
		return h.ranker.RankByTimestamp(items)
	case now.IsZero():
		return h.ranker.RankByScore(items, uc)
	default:
		return h.ranker.RankByScoreAt(items, uc, now)
	}
}

// serveCached writes the user's cached feed in place of a failed ranking.
// It reports whether a response was written.
func (h *FeedHandlers) serveCached(w http.ResponseWriter, ctx context.Context, userID, mode string, cause error) bool {
	if userID == "" || h.cache == nil {
		return false
	}

	entry, err := h.cache.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, feedcache.ErrNotFound) {
			h.logger.WarnContext(ctx, "failed to read cached feed", "user_id", userID, "error", err)
		}
		return false
	}

	h.logger.WarnContext(ctx, "serving cached feed after scoring failure",
		"user_id", userID,
		"cached_at", entry.StoredAt,
		"error", cause)
	tracing.AddEvent(ctx, "feed.cache_fallback",
		attribute.String("user.id", userID),
		attribute.Int("feed.items", len(entry.Items)),
	)

	storedAt := entry.StoredAt
	writeJSON(w, ctx, http.StatusOK, FeedResponse{
		Items:    entry.Items,
		Mode:     mode,
		Count:    len(entry.Items),
		Cached:   true,
		CachedAt: &storedAt,
	})
	return true
}

// GetCachedFeed handles GET /feed/cached?user_id=...
func (h *FeedHandlers) GetCachedFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "user_id is required")
		return
	}
	ctx := middleware.SetUserID(r.Context(), userID)

	if h.cache == nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "No cached feed for user")
		return
	}

	entry, err := h.cache.Get(ctx, userID)
	if errors.Is(err, feedcache.ErrNotFound) {
		ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "No cached feed for user")
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read cached feed", "user_id", userID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to read cached feed")
		return
	}

	storedAt := entry.StoredAt
	writeJSON(w, ctx, http.StatusOK, FeedResponse{
		Items:    entry.Items,
		Count:    len(entry.Items),
		Cached:   true,
		CachedAt: &storedAt,
	})
}

// decodeItems converts wire items into feed items. Timestamps are parsed
// here; the ranker validates everything else.
func decodeItems(in []RankItem) ([]feed.Item, error) {
	out := make([]feed.Item, len(in))
	for i, it := range in {
		ts, err := feed.ParseTimestamp(it.ID, it.Timestamp)
		if err != nil {
			return nil, &feed.ItemError{Index: i, ID: it.ID, Err: err}
		}
		out[i] = feed.Item{
			Kind:      feed.Kind(it.Kind),
			ID:        it.ID,
			Timestamp: ts,
			Signals:   it.Signals,
		}
	}
	return out, nil
}
