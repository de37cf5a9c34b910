// Package config provides configuration loading and validation for the feed
// ranking service. It uses koanf to merge environment variables with
// optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/redis/go-redis/v9"
)

// Config holds all configuration values for the feed ranking service.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Ranking
	RankingCalibrationPath string `koanf:"ranking_calibration_path"`
	RankingScorer          string `koanf:"ranking_scorer"` // Registered scorer name (decay, engagement, affinity)
	FeedMaxItems           int    `koanf:"feed_max_items"` // Upper bound on items per rank request

	// Feed cache (optional; in-memory when RedisURL is empty)
	RedisURL            string `koanf:"redis_url"`
	FeedCacheTTLSeconds int    `koanf:"feed_cache_ttl_seconds"`

	// Rate limiting (per client IP)
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// CORS (disabled when empty)
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"` // otlp-http or otlp-grpc
	TracingEndpoint     string  `koanf:"tracing_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
	TracingInsecure     bool    `koanf:"tracing_insecure"`
}

// Configuration validation errors.
var (
	ErrInvalidPort            = errors.New("PORT must be a valid integer between 1 and 65535")
	ErrInvalidFeedMaxItems    = errors.New("FEED_MAX_ITEMS must be positive")
	ErrInvalidCacheTTL        = errors.New("FEED_CACHE_TTL_SECONDS must be positive")
	ErrInvalidRedisURL        = errors.New("REDIS_URL is not a valid redis URL")
	ErrInvalidRateLimit       = errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	ErrInvalidSamplingRate    = errors.New("TRACING_SAMPLING_RATE must be between 0 and 1")
	ErrInvalidTracingExporter = errors.New("TRACING_EXPORTER must be otlp-http or otlp-grpc")
	ErrInvalidNumber          = errors.New("value must be numeric")
)

// Default values for non-secret configuration.
const (
	DefaultPort                = 8080
	DefaultEnv                 = "development"
	DefaultRankingScorer       = "decay"
	DefaultFeedMaxItems        = 1000
	DefaultFeedCacheTTLSeconds = 900
	DefaultRateLimitRPS        = 20.0
	DefaultRateLimitBurst      = 40
	DefaultTracingExporter     = "otlp-http"
	DefaultTracingSamplingRate = 0.1
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	collect := func(err error) {
		if err != nil {
			loadErrs = append(loadErrs, err)
		}
	}

	// Try FEEDRANK_PORT first, then PORT for platform compatibility
	port, err := getEnvIntOrDefaultMulti([]string{"FEEDRANK_PORT", "PORT"}, k.Int("port"), DefaultPort)
	collect(err)

	maxItems, err := getEnvIntOrDefault("FEED_MAX_ITEMS", k.Int("feed_max_items"), DefaultFeedMaxItems)
	collect(err)

	cacheTTL, err := getEnvIntOrDefault("FEED_CACHE_TTL_SECONDS", k.Int("feed_cache_ttl_seconds"), DefaultFeedCacheTTLSeconds)
	collect(err)

	rps, err := getEnvFloatOrDefault("RATE_LIMIT_RPS", k.Float64("rate_limit_rps"), DefaultRateLimitRPS)
	collect(err)

	burst, err := getEnvIntOrDefault("RATE_LIMIT_BURST", k.Int("rate_limit_burst"), DefaultRateLimitBurst)
	collect(err)

	samplingRate := DefaultTracingSamplingRate
	if k.Exists("tracing_sampling_rate") {
		samplingRate = k.Float64("tracing_sampling_rate")
	}
	samplingRate, err = getEnvFloatOrDefault("TRACING_SAMPLING_RATE", samplingRate, DefaultTracingSamplingRate)
	collect(err)

	cfg := &Config{
		Port:                   port,
		Env:                    getEnvOrDefaultMulti([]string{"FEEDRANK_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		RankingCalibrationPath: getEnvOrKoanf("RANKING_CALIBRATION_PATH", k, "ranking_calibration_path"),
		RankingScorer:          getEnvOrDefault("RANKING_SCORER", k.String("ranking_scorer"), DefaultRankingScorer),
		FeedMaxItems:           maxItems,
		RedisURL:               getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		FeedCacheTTLSeconds:    cacheTTL,
		RateLimitRPS:           rps,
		RateLimitBurst:         burst,
		CORSAllowedOrigins:     getEnvListOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		TracingEnabled:         getEnvBool("TRACING_ENABLED", k.Bool("tracing_enabled")),
		TracingExporter:        getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		TracingEndpoint:        getEnvOrKoanf("TRACING_ENDPOINT", k, "tracing_endpoint"),
		TracingSamplingRate:    samplingRate,
		TracingInsecure:        getEnvBool("TRACING_INSECURE", k.Bool("tracing_insecure")),
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvListOrKoanf reads a comma-separated environment variable, falling back
// to a koanf string list.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	val := os.Getenv(envKey)
	if val == "" {
		return k.Strings(koanfKey)
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	return getEnvOrDefaultMulti([]string{envKey}, koanfVal, defaultVal)
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvBool parses common truthy/falsy spellings; unrecognized values keep the fallback.
func getEnvBool(envKey string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(envKey)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return fallback
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	return getEnvIntOrDefaultMulti([]string{envKey}, koanfVal, defaultVal)
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Note: a zero value from a YAML file falls back to the default.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return defaultVal, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidNumber)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return defaultVal, fmt.Errorf("%s must be a valid float: %w", envKey, ErrInvalidNumber)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all configuration values are usable.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	if c.FeedMaxItems <= 0 {
		errs = append(errs, ErrInvalidFeedMaxItems)
	}
	if c.FeedCacheTTLSeconds <= 0 {
		errs = append(errs, ErrInvalidCacheTTL)
	}
	if c.RedisURL != "" {
		if _, err := redis.ParseURL(c.RedisURL); err != nil {
			errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidRedisURL, err))
		}
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}

	// Tracing settings only matter when tracing is on.
	if c.TracingEnabled {
		if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
			errs = append(errs, ErrInvalidSamplingRate)
		}
		if c.TracingExporter != "otlp-http" && c.TracingExporter != "otlp-grpc" {
			errs = append(errs, ErrInvalidTracingExporter)
		}
	}

	return errs
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// LogSummary returns a summary of the configuration suitable for logging.
// Credentials in the Redis URL are masked.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                     strconv.Itoa(c.Port),
		"env":                      c.Env,
		"ranking_calibration_path": valueOrNotSet(c.RankingCalibrationPath),
		"ranking_scorer":           c.RankingScorer,
		"feed_max_items":           strconv.Itoa(c.FeedMaxItems),
		"redis_url":                maskRedisURL(c.RedisURL),
		"feed_cache_ttl_seconds":   strconv.Itoa(c.FeedCacheTTLSeconds),
		"rate_limit_rps":           strconv.FormatFloat(c.RateLimitRPS, 'f', -1, 64),
		"rate_limit_burst":         strconv.Itoa(c.RateLimitBurst),
		"cors_allowed_origins":     valueOrNotSet(strings.Join(c.CORSAllowedOrigins, ",")),
		"tracing_enabled":          strconv.FormatBool(c.TracingEnabled),
		"tracing_exporter":         c.TracingExporter,
		"tracing_endpoint":         valueOrNotSet(c.TracingEndpoint),
		"tracing_sampling_rate":    strconv.FormatFloat(c.TracingSamplingRate, 'f', -1, 64),
	}
}

func valueOrNotSet(s string) string {
	if s == "" {
		return "<not set>"
	}
	return s
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskRedisURL masks the password in a redis:// or rediss:// URL.
func maskRedisURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.LastIndex(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	userInfo := rest[:atIndex]
	user := userInfo
	if colon := strings.Index(userInfo, ":"); colon != -1 {
		user = userInfo[:colon]
	}

	return s[:schemeEnd+3] + user + ":****" + rest[atIndex:]
}
