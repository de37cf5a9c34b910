// Package feed implements relevance ranking for heterogeneous feed content
// such as events and posts.
//
// Basic Usage:
//
//	ranker := feed.NewRanker(feed.NewDecayScorer(feed.DefaultDecayWindow))
//
//	// Newest first, no scoring model involved
//	ordered, err := ranker.RankByTimestamp(items)
//
//	// Score every item once against a single captured "now"
//	ranked, err := ranker.RankByScore(items, &feed.UserContext{UserID: "did:example:alice"})
//
// Scoring:
//
// A Scorer turns one item (plus an optional user context) into a relevance
// score where higher means more relevant. The default DecayScorer applies
// exponential recency decay with a 24 hour characteristic time. Items dated
// in the future score above 1.0 and are deliberately not clamped so that
// upcoming events surface as they approach.
//
// Scorers compose: EngagementScorer and AffinityScorer wrap a base scorer,
// KindRouter dispatches by item kind, and Registry maps configuration names
// to scorer factories.
//
// Ordering:
//
// Both ranking operations return a new slice and never modify the caller's
// items. Ties keep their input order; item IDs are never consulted for
// ordering.
package feed
