// Package app is the dependency-injection container: it constructs every
// component once at process startup and hands the finished graph to
// whichever cmd subcommand needs it.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"

	"github.com/privacyanalyzer/privacyanalyzer/internal/analysis"
	"github.com/privacyanalyzer/privacyanalyzer/internal/api"
	"github.com/privacyanalyzer/privacyanalyzer/internal/config"
	"github.com/privacyanalyzer/privacyanalyzer/internal/crawl"
	"github.com/privacyanalyzer/privacyanalyzer/internal/dedup"
	"github.com/privacyanalyzer/privacyanalyzer/internal/jobstore"
	"github.com/privacyanalyzer/privacyanalyzer/internal/logging"
	"github.com/privacyanalyzer/privacyanalyzer/internal/metrics"
	"github.com/privacyanalyzer/privacyanalyzer/internal/queue"
	"github.com/privacyanalyzer/privacyanalyzer/internal/queue/janitor"
	"github.com/privacyanalyzer/privacyanalyzer/internal/resolver"
	"github.com/privacyanalyzer/privacyanalyzer/internal/worker"
)

// App is the fully constructed dependency graph for one process.
type App struct {
	Config *config.Config
	Logger arbor.ILogger

	Store       *jobstore.PostgresStore
	RedisClient *redis.Client

	Dedup    *dedup.Coordinator
	Queue    *queue.Queue
	Pool     *worker.Pool
	Crawler  *crawl.Engine
	Pipeline *analysis.Pipeline
	Janitor  *janitor.Janitor

	PromRegistry *prometheus.Registry
	Metrics      *metrics.Registry
	ScanHandler  *api.ScanHandler
	APIServer    *api.Server
}

// New builds every component against cfg. The caller is responsible for
// calling Close when the process is shutting down.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.Setup(cfg)

	store, err := jobstore.Open(ctx, cfg.DB.URL)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate job store: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		store.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	dedupStore := dedup.NewRedisStore(redisClient)
	coordinator := dedup.New(dedupStore, store)
	q := queue.New(redisClient)
	resolve := resolver.New()

	promRegistry := prometheus.NewRegistry()
	metricsRegistry := metrics.NewRegistry(promRegistry)

	crawler := crawl.New(logger, &http.Client{Timeout: 30 * time.Second})
	pipeline := analysis.New(&http.Client{Timeout: 10 * time.Second}, nil)

	pool := worker.New(q, store, crawler, pipeline, logger, metricsRegistry, cfg.Queue.WorkerConcurrency)

	retentionJanitor := janitor.New(redisClient, metricsRegistry, logger)

	scanHandler := api.NewScanHandler(store, coordinator, q, resolve, logger)

	deps := map[string]metrics.Pinger{
		"postgres": store,
		"redis":    metrics.RedisPinger{Client: redisClient},
	}
	promHandler := promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})
	apiServer := api.New(api.Config{
		Addr:       fmt.Sprintf(":%d", cfg.Server.Port),
		CORSOrigin: cfg.Server.CORSOrigin,
	}, scanHandler, promHandler, deps, logger)

	return &App{
		Config:       cfg,
		Logger:       logger,
		Store:        store,
		RedisClient:  redisClient,
		Dedup:        coordinator,
		Queue:        q,
		Pool:         pool,
		Crawler:      crawler,
		Pipeline:     pipeline,
		Janitor:      retentionJanitor,
		PromRegistry: promRegistry,
		Metrics:      metricsRegistry,
		ScanHandler:  scanHandler,
		APIServer:    apiServer,
	}, nil
}

// Close releases every held connection. Safe to call on a partially
// constructed App.
func (a *App) Close() {
	if a.Janitor != nil {
		a.Janitor.Stop()
	}
	if a.Queue != nil {
		a.Queue.Close()
	}
	if a.RedisClient != nil {
		_ = a.RedisClient.Close()
	}
	if a.Store != nil {
		a.Store.Close()
	}
	logging.Stop()
}
