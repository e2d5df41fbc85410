package api

import (
	"encoding/json"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/ternarybob/arbor"

	"github.com/privacyanalyzer/privacyanalyzer/internal/metrics"
)

// requestLogger logs each request's method, path, status, and latency at
// Info level, the per-request structured logging idiom the worker pool
// uses for job events (arbor.ILogger.Info()...Msg()) applied to HTTP.
func requestLogger(logger arbor.ILogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}

// healthHandler pings every dependency and reports overall status per
// spec §4.J: 200 if all are up, 503 if any dependency is unhealthy.
func healthHandler(deps map[string]metrics.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		status := "ok"
		results := map[string]string{}
		for name, p := range deps {
			if err := p.Ping(ctx); err != nil {
				results[name] = "unhealthy: " + err.Error()
				status = "degraded"
				continue
			}
			results[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		if status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":       status,
			"dependencies": results,
		})
	}
}
