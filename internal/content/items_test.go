package content

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/onnwee/feedrank/internal/feed"
)

func strPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}

var now = time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)

// TestEventItem tests event conversion.
func TestEventItem(t *testing.T) {
	e := &Event{ID: "evt1", SceneID: "scene1", StartsAt: now.Add(48 * time.Hour), RSVPCount: 12}

	it := EventItem(e)
	if it.Kind != feed.KindEvent {
		t.Errorf("expected kind %q, got %q", feed.KindEvent, it.Kind)
	}
	if it.ID != "evt1" {
		t.Errorf("expected id evt1, got %s", it.ID)
	}
	if !it.Timestamp.Equal(e.StartsAt) {
		t.Errorf("expected timestamp to be event start %v, got %v", e.StartsAt, it.Timestamp)
	}
	if it.Signals[feed.SignalRSVPs] != 12 {
		t.Errorf("expected 12 rsvps, got %f", it.Signals[feed.SignalRSVPs])
	}
	if it.Rank != nil {
		t.Error("expected no rank on converted item")
	}
}

// TestPostItem tests post conversion.
func TestPostItem(t *testing.T) {
	p := &Post{
		ID:           "post1",
		SceneID:      strPtr("scene1"),
		AuthorDID:    "did:example:user1",
		Text:         "flyer drop",
		LikeCount:    3,
		CommentCount: 0,
		ShareCount:   1,
		CreatedAt:    now.Add(-2 * time.Hour),
	}

	it := PostItem(p)
	if it.Kind != feed.KindPost {
		t.Errorf("expected kind %q, got %q", feed.KindPost, it.Kind)
	}
	if !it.Timestamp.Equal(p.CreatedAt) {
		t.Errorf("expected timestamp to be creation time %v, got %v", p.CreatedAt, it.Timestamp)
	}
	if it.Signals[feed.SignalLikes] != 3 || it.Signals[feed.SignalShares] != 1 {
		t.Errorf("unexpected signals: %v", it.Signals)
	}
	if _, ok := it.Signals[feed.SignalComments]; ok {
		t.Error("expected zero counts to be omitted")
	}

	if quiet := PostItem(&Post{ID: "post2", CreatedAt: now}); quiet.Signals != nil {
		t.Errorf("expected nil signals for post without engagement, got %v", quiet.Signals)
	}
}

// TestCollect_Visibility tests that deleted, cancelled and moderated content is skipped.
func TestCollect_Visibility(t *testing.T) {
	events := []*Event{
		{ID: "e-live", StartsAt: now.Add(time.Hour)},
		{ID: "e-cancelled", StartsAt: now.Add(time.Hour), CancelledAt: timePtr(now)},
		{ID: "e-deleted", StartsAt: now.Add(time.Hour), DeletedAt: timePtr(now)},
		nil,
	}
	posts := []*Post{
		{ID: "p-ok", CreatedAt: now, Labels: []string{"nsfw"}},
		{ID: "p-hidden", CreatedAt: now, Labels: []string{LabelHidden}},
		{ID: "p-spam", CreatedAt: now, Labels: []string{LabelSpam}},
		{ID: "p-flagged", CreatedAt: now, Labels: []string{LabelFlagged}},
		{ID: "p-deleted", CreatedAt: now, DeletedAt: timePtr(now)},
	}

	items := Collect(events, posts)

	expected := []string{"e-live", "p-ok"}
	if len(items) != len(expected) {
		t.Fatalf("expected %d items, got %d: %+v", len(expected), len(items), items)
	}
	for i, id := range expected {
		if items[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, items[i].ID)
		}
	}
}

// TestCollect_RankedFeed tests an end-to-end ranking of mixed content.
func TestCollect_RankedFeed(t *testing.T) {
	events := []*Event{
		{ID: "tomorrow-show", StartsAt: now.Add(24 * time.Hour)},
		{ID: "last-week-show", StartsAt: now.Add(-7 * 24 * time.Hour)},
	}
	posts := []*Post{
		{ID: "fresh-post", CreatedAt: now.Add(-10 * time.Minute)},
		{ID: "old-post", CreatedAt: now.Add(-30 * time.Hour)},
	}

	ranker := feed.NewRanker(nil,
		feed.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		feed.WithClock(func() time.Time { return now }),
	)

	ranked, err := ranker.RankByScore(Collect(events, posts), &feed.UserContext{UserID: "did:example:user1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"tomorrow-show", "fresh-post", "old-post", "last-week-show"}
	for i, id := range expected {
		if ranked[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, ranked[i].ID)
		}
	}
}
