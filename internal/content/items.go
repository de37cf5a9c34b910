package content

import (
	"github.com/onnwee/feedrank/internal/feed"
)

// EventItem converts an event into a feed item keyed on its start time.
func EventItem(e *Event) feed.Item {
	it := feed.Item{
		Kind:      feed.KindEvent,
		ID:        e.ID,
		Timestamp: e.StartsAt,
	}
	if e.RSVPCount > 0 {
		it.Signals = map[string]float64{feed.SignalRSVPs: float64(e.RSVPCount)}
	}
	return it
}

// PostItem converts a post into a feed item keyed on its creation time.
func PostItem(p *Post) feed.Item {
	it := feed.Item{
		Kind:      feed.KindPost,
		ID:        p.ID,
		Timestamp: p.CreatedAt,
	}

	signals := make(map[string]float64, 3)
	if p.LikeCount > 0 {
		signals[feed.SignalLikes] = float64(p.LikeCount)
	}
	if p.CommentCount > 0 {
		signals[feed.SignalComments] = float64(p.CommentCount)
	}
	if p.ShareCount > 0 {
		signals[feed.SignalShares] = float64(p.ShareCount)
	}
	if len(signals) > 0 {
		it.Signals = signals
	}
	return it
}

// Collect builds the feed candidates from events and posts, skipping
// anything that is not Visible. Events come first, then posts, each in
// input order, so ranking ties resolve predictably.
func Collect(events []*Event, posts []*Post) []feed.Item {
	items := make([]feed.Item, 0, len(events)+len(posts))
	for _, e := range events {
		if e != nil && e.Visible() {
			items = append(items, EventItem(e))
		}
	}
	for _, p := range posts {
		if p != nil && p.Visible() {
			items = append(items, PostItem(p))
		}
	}
	return items
}
