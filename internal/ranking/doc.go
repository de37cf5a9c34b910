// Package ranking provides calibration for feed scoring and builds the
// configured scorer from it.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	weights, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		log.Warn("using default weights", "error", err)
//	}
//
//	// Build the configured scorer and a ranker around it
//	scorer, err := ranking.NewScorer(feed.NewDefaultRegistry(), cfg.RankingScorer, weights)
//	if err != nil {
//		return err
//	}
//	ranker := feed.NewRanker(scorer)
//
// Calibration:
//
// The calibration system allows deploy-time tuning of the decay window,
// engagement weights, and default per-kind affinity via a JSON file loaded
// at startup. Changes require a restart. See configs/ranking.calibration.json
// for the default configuration.
package ranking
