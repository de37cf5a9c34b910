package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
)

// DecayWeights tunes the recency decay shared by all built-in scorers.
type DecayWeights struct {
	WindowHours float64 `json:"window_hours"` // Characteristic decay time (default: 24)
}

// EngagementWeights defines per-signal boosts for the engagement scorer.
type EngagementWeights struct {
	Likes    float64 `json:"likes"`    // default: 0.05
	Comments float64 `json:"comments"` // default: 0.1
	RSVPs    float64 `json:"rsvps"`    // default: 0.15
	Shares   float64 `json:"shares"`   // default: 0.1
}

// Weights holds all feed ranking calibration values.
type Weights struct {
	Decay      DecayWeights       `json:"decay"`
	Engagement EngagementWeights  `json:"engagement"`
	Affinity   map[string]float64 `json:"affinity,omitempty"` // Default per-kind multipliers
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Weight configurations
}

// DefaultWeights returns the default feed calibration.
//
// Decay: score = exp(-hours_ago / 24)
// Engagement: score = decay * (1 + 0.05*ln(1+likes) + 0.1*ln(1+comments) + 0.15*ln(1+rsvps) + 0.1*ln(1+shares))
// - RSVPs weigh most since they signal intent to attend
// - Likes weigh least since they are cheapest to give
//
// No per-kind affinity is applied by default.
func DefaultWeights() *Weights {
	return &Weights{
		Decay: DecayWeights{
			WindowHours: 24,
		},
		Engagement: EngagementWeights{
			Likes:    0.05,
			Comments: 0.1,
			RSVPs:    0.15,
			Shares:   0.1,
		},
	}
}

// LoadCalibration loads ranking weights from a JSON calibration file.
// An empty path returns the defaults. If the file can't be read or parsed,
// the defaults are returned together with the error so callers can degrade
// gracefully. Partial configurations are merged with defaults.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override weights onto base and returns a new Weights.
// Only non-zero scalar values are applied; affinity entries present in the
// override replace those in base. Neither argument is modified.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		base = DefaultWeights()
	}

	result := *base
	result.Affinity = copyAffinity(base.Affinity)

	if override == nil {
		return &result
	}

	if override.Decay.WindowHours != 0 {
		result.Decay.WindowHours = override.Decay.WindowHours
	}

	if override.Engagement.Likes != 0 {
		result.Engagement.Likes = override.Engagement.Likes
	}
	if override.Engagement.Comments != 0 {
		result.Engagement.Comments = override.Engagement.Comments
	}
	if override.Engagement.RSVPs != 0 {
		result.Engagement.RSVPs = override.Engagement.RSVPs
	}
	if override.Engagement.Shares != 0 {
		result.Engagement.Shares = override.Engagement.Shares
	}

	for kind, v := range override.Affinity {
		if result.Affinity == nil {
			result.Affinity = make(map[string]float64)
		}
		result.Affinity[kind] = v
	}

	return &result
}

func copyAffinity(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// logCalibrationOverrides logs which weights differ from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string

	diff := func(name string, from, to float64) {
		if from != to {
			overrides = append(overrides, fmt.Sprintf("%s: %.2f -> %.2f", name, from, to))
		}
	}

	diff("decay.window_hours", defaults.Decay.WindowHours, loaded.Decay.WindowHours)
	diff("engagement.likes", defaults.Engagement.Likes, loaded.Engagement.Likes)
	diff("engagement.comments", defaults.Engagement.Comments, loaded.Engagement.Comments)
	diff("engagement.rsvps", defaults.Engagement.RSVPs, loaded.Engagement.RSVPs)
	diff("engagement.shares", defaults.Engagement.Shares, loaded.Engagement.Shares)

	kinds := make([]string, 0, len(loaded.Affinity))
	for kind := range loaded.Affinity {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		overrides = append(overrides, fmt.Sprintf("affinity.%s: %.2f", kind, loaded.Affinity[kind]))
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
