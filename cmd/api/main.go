// Package main is the entry point for the feed ranking API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/feedrank/internal/api"
	"github.com/onnwee/feedrank/internal/config"
	"github.com/onnwee/feedrank/internal/feed"
	"github.com/onnwee/feedrank/internal/feedcache"
	"github.com/onnwee/feedrank/internal/middleware"
	"github.com/onnwee/feedrank/internal/ranking"
	"github.com/onnwee/feedrank/internal/tracing"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	serviceName     = "feedrank"
	cleanupInterval = time.Minute
	visitorMaxIdle  = 10 * time.Minute
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Feed Ranking API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Enabled:        cfg.TracingEnabled,
		Environment:    cfg.Env,
		ExporterType:   cfg.TracingExporter,
		OTLPEndpoint:   cfg.TracingEndpoint,
		SamplingRate:   cfg.TracingSamplingRate,
		InsecureMode:   cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	a, err := newApp(cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("failed to initialize server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go a.runCleanup(ctx)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "version", version, "scorer", a.scorerName)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracing", "error", err)
	}
	if err := a.close(); err != nil {
		logger.Error("failed to close feed cache", "error", err)
	}

	logger.Info("server stopped")
}

// app holds the wired HTTP handler and the resources behind it.
type app struct {
	handler    http.Handler
	scorerName string

	memCache *feedcache.InMemoryStore
	limiter  *middleware.TokenBucketStore
	redis    *redis.Client
}

// newApp wires ranking, caching, middleware and routes from cfg.
// Collectors are registered on reg, which is also served on /metrics.
func newApp(cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) (*app, error) {
	weights, err := ranking.LoadCalibration(cfg.RankingCalibrationPath)
	if err != nil {
		// LoadCalibration hands back defaults alongside the error.
		logger.Warn("using default ranking weights", "error", err)
	}

	scorerName := cfg.RankingScorer
	if scorerName == "" {
		scorerName = feed.ScorerDecay
	}
	scorer, err := ranking.NewScorer(feed.NewDefaultRegistry(), scorerName, weights)
	if err != nil {
		return nil, err
	}

	feedMetrics := feed.NewMetrics()
	httpMetrics := middleware.NewMetrics()
	if err := feedMetrics.Register(reg); err != nil {
		return nil, fmt.Errorf("register feed metrics: %w", err)
	}
	if err := httpMetrics.Register(reg); err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	ranker := feed.NewRanker(scorer,
		feed.WithMetrics(feedMetrics),
		feed.WithLogger(logger),
	)

	a := &app{scorerName: scorerName, limiter: middleware.NewTokenBucketStore()}

	ttl := time.Duration(cfg.FeedCacheTTLSeconds) * time.Second
	var (
		cache   feedcache.Store
		checker api.HealthChecker
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		store := feedcache.NewRedisStore(a.redis, ttl)
		cache, checker = store, store
		logger.Info("feed cache backed by redis", "addr", opts.Addr)
	} else {
		a.memCache = feedcache.NewInMemoryStore(ttl)
		cache = a.memCache
		logger.Info("feed cache held in memory")
	}

	feedHandlers := api.NewFeedHandlers(api.FeedHandlersConfig{
		Ranker:   ranker,
		Cache:    cache,
		MaxItems: cfg.FeedMaxItems,
		Logger:   logger,
	})
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		CacheChecker: checker,
		Scorer:       scorerName,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/feed/rank", feedHandlers.RankFeed)
	mux.HandleFunc("/feed/cached", feedHandlers.GetCachedFeed)
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
		api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
	})

	// Outermost first: RequestID -> Tracing -> Logging -> HTTPMetrics -> CORS -> RateLimiter
	var handler http.Handler = mux
	handler = middleware.RateLimiter(a.limiter, middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}, middleware.IPKeyFunc(), httpMetrics)(handler)
	handler = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins))(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	handler = middleware.RequestID(handler)

	a.handler = handler
	return a, nil
}

// runCleanup evicts expired feeds and idle rate-limit buckets until ctx is done.
func (a *app) runCleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.memCache != nil {
				a.memCache.Cleanup()
			}
			a.limiter.Cleanup(visitorMaxIdle)
		}
	}
}

func (a *app) close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
