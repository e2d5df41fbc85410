// Package metrics holds Prometheus counters/histograms for job outcomes
// and queue depth, plus a small liveness server exposing /metrics and
// /health on its own listener.
package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"
)

// Pinger is satisfied by any dependency the health check should probe
// (jobstore.PostgresStore, the Redis client's Ping wrapper).
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisPinger adapts *redis.Client's Ping (which returns a *StatusCmd) to
// the Pinger interface.
type RedisPinger struct {
	Client *redis.Client
}

func (r RedisPinger) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

// Registry holds every collector the service reports, implementing the
// worker.Metrics and janitor.Counters interfaces so both can be wired to
// real metrics instead of their no-op defaults.
type Registry struct {
	jobsStarted    prometheus.Counter
	jobsSucceeded  prometheus.Counter
	jobsFailed     prometheus.Counter
	jobsDLQ        prometheus.Counter
	jobDuration    prometheus.Histogram
	queueDepth     prometheus.Gauge
	retentionTrims *prometheus.CounterVec
}

// NewRegistry constructs and registers every collector against reg.
func NewRegistry(reg *prometheus.Registry) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		jobsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "privacyanalyzer_jobs_started_total",
			Help: "Total number of scan jobs a worker began processing.",
		}),
		jobsSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Name: "privacyanalyzer_jobs_succeeded_total",
			Help: "Total number of scan jobs that completed successfully.",
		}),
		jobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "privacyanalyzer_jobs_failed_total",
			Help: "Total number of scan job attempts that failed (includes retries).",
		}),
		jobsDLQ: factory.NewCounter(prometheus.CounterOpts{
			Name: "privacyanalyzer_jobs_dead_lettered_total",
			Help: "Total number of scan jobs exhausted into the dead-letter queue.",
		}),
		jobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "privacyanalyzer_job_duration_seconds",
			Help:    "Time spent crawling and analyzing a single scan job.",
			Buckets: []float64{10, 30, 60, 90},
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "privacyanalyzer_queue_depth",
			Help: "Current number of jobs waiting in the pending queue.",
		}),
		retentionTrims: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "privacyanalyzer_retention_trimmed_total",
			Help: "Total number of queue history records removed by the retention janitor, by kind.",
		}, []string{"kind"}),
	}
}

func (r *Registry) IncJobStarted()   { r.jobsStarted.Inc() }
func (r *Registry) IncJobSucceeded() { r.jobsSucceeded.Inc() }
func (r *Registry) IncJobFailed()    { r.jobsFailed.Inc() }
func (r *Registry) IncJobDLQ()       { r.jobsDLQ.Inc() }

func (r *Registry) ObserveJobDuration(d time.Duration) {
	r.jobDuration.Observe(d.Seconds())
}

// SetQueueDepth sets the queue-depth gauge to n. No code in this
// repository outside the tests calls it, so the gauge stays at 0 in a
// running service.
func (r *Registry) SetQueueDepth(n int64) {
	r.queueDepth.Set(float64(n))
}

// AddRetentionTrimmed satisfies janitor.Counters.
func (r *Registry) AddRetentionTrimmed(kind string, n int) {
	r.retentionTrims.WithLabelValues(kind).Add(float64(n))
}

// dependency names a liveness-checked backing store for /health reporting.
type dependency struct {
	name string
	ping Pinger
}

// Server exposes /metrics and /health on its own listener, separate from
// the public API router, matching the pattern of a dedicated metrics
// server started alongside the main service.
type Server struct {
	server *http.Server
	log    arbor.ILogger
	deps   []dependency
}

// NewServer builds a Server bound to addr (":8080"-style), serving the
// given registry's collectors at /metrics and a dependency liveness
// summary at /health.
func NewServer(addr string, reg *prometheus.Registry, logger arbor.ILogger, deps map[string]Pinger) *Server {
	mux := http.NewServeMux()
	s := &Server{log: logger}
	for name, p := range deps {
		s.deps = append(s.deps, dependency{name: name, ping: p})
	}

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

type healthStatus struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthStatus{Status: "ok", Dependencies: map[string]string{}}
	for _, dep := range s.deps {
		if err := dep.ping.Ping(ctx); err != nil {
			resp.Dependencies[dep.name] = "unhealthy: " + err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Dependencies[dep.name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// StartAsync begins serving in the background. Bind errors surface only
// through the logger since no caller is positioned to receive them.
func (s *Server) StartAsync() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Str("addr", s.server.Addr).Msg("metrics server exited")
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
