package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ternarybob/arbor"

	"github.com/privacyanalyzer/privacyanalyzer/internal/metrics"
)

// Server wraps the HTTP front end: the chi router, CORS policy, rate
// limiting, and the scan/health/metrics handlers it routes to.
type Server struct {
	httpServer *http.Server
	logger     arbor.ILogger
}

// Config controls the front end's listen address and CORS policy.
type Config struct {
	Addr       string
	CORSOrigin string
}

// New builds a Server routing to scans, health checks, and Prometheus
// scrapes on a single chi router, with path params and per-route
// middleware composed directly.
func New(cfg Config, scans *ScanHandler, promHandler http.Handler, deps map[string]metrics.Pinger, logger arbor.ILogger) *Server {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(requestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	limiter := newClientLimiter()

	r.Route("/analyze", func(r chi.Router) {
		r.Use(limiter.RateLimit)
		r.Post("/", scans.Analyze)
	})
	r.Route("/scan/{id}", func(r chi.Router) {
		r.Get("/", scans.GetScan)
		r.Delete("/", scans.DeleteScan)
	})
	r.Get("/scans", scans.ListScans)

	r.Get("/health", healthHandler(deps))
	r.Handle("/metrics", promHandler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// ListenAndServe starts the front end; it blocks until Shutdown is called
// or an unrecoverable error occurs.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("api server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
