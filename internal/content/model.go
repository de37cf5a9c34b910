// Package content provides the event and post records that feed the ranking
// engine and converts them into feed items.
package content

import (
	"time"
)

// Moderation labels that exclude a post from feeds.
const (
	// LabelHidden marks content that should be excluded from all public feeds.
	LabelHidden = "hidden"

	// LabelSpam marks content identified as spam.
	LabelSpam = "spam"

	// LabelFlagged marks content that has been flagged for review.
	LabelFlagged = "flagged"
)

// excludedLabels lists the labels that keep a post out of feeds.
var excludedLabels = map[string]bool{
	LabelHidden:  true,
	LabelSpam:    true,
	LabelFlagged: true,
}

// Event represents a scheduled event within a scene.
type Event struct {
	ID          string     `json:"id" yaml:"id"`
	SceneID     string     `json:"scene_id" yaml:"scene_id"`
	Title       string     `json:"title" yaml:"title"`
	StartsAt    time.Time  `json:"starts_at" yaml:"starts_at"`
	RSVPCount   int        `json:"rsvp_count" yaml:"rsvp_count"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" yaml:"cancelled_at,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" yaml:"deleted_at,omitempty"`
}

// Post represents a content post within a scene or event.
type Post struct {
	ID           string     `json:"id" yaml:"id"`
	SceneID      *string    `json:"scene_id,omitempty" yaml:"scene_id,omitempty"`
	EventID      *string    `json:"event_id,omitempty" yaml:"event_id,omitempty"`
	AuthorDID    string     `json:"author_did" yaml:"author_did"`
	Text         string     `json:"text" yaml:"text"`
	Labels       []string   `json:"labels,omitempty" yaml:"labels,omitempty"`
	LikeCount    int        `json:"like_count" yaml:"like_count"`
	CommentCount int        `json:"comment_count" yaml:"comment_count"`
	ShareCount   int        `json:"share_count" yaml:"share_count"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" yaml:"deleted_at,omitempty"`
}

// Visible reports whether the event belongs in a feed.
func (e *Event) Visible() bool {
	return e.DeletedAt == nil && e.CancelledAt == nil
}

// Visible reports whether the post belongs in a feed: not deleted and not
// carrying any moderation label that excludes it.
func (p *Post) Visible() bool {
	if p.DeletedAt != nil {
		return false
	}
	for _, label := range p.Labels {
		if excludedLabels[label] {
			return false
		}
	}
	return true
}
