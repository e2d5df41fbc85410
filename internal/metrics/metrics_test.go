package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ternarybob/arbor"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestRegistry_CountersAndHistogramAppearInMetricsOutput(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	r.IncJobStarted()
	r.IncJobSucceeded()
	r.IncJobFailed()
	r.IncJobDLQ()
	r.ObserveJobDuration(45 * time.Second)
	r.SetQueueDepth(7)
	r.AddRetentionTrimmed("completed", 3)

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)
	for _, want := range []string{
		"privacyanalyzer_jobs_started_total 1",
		"privacyanalyzer_jobs_succeeded_total 1",
		"privacyanalyzer_jobs_failed_total 1",
		"privacyanalyzer_jobs_dead_lettered_total 1",
		"privacyanalyzer_job_duration_seconds_count 1",
		"privacyanalyzer_queue_depth 7",
		`privacyanalyzer_retention_trimmed_total{kind="completed"} 3`,
	} {
		if !contains(bodyStr, want) {
			t.Fatalf("expected metrics output to contain %q, got:\n%s", want, bodyStr)
		}
	}
}

func TestServer_HealthReportsOKWhenDepsHealthy(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRegistry(reg)
	s := NewServer("127.0.0.1:0", reg, arbor.NewLogger(), map[string]Pinger{
		"postgres": fakePinger{},
		"redis":    fakePinger{},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status healthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != "ok" {
		t.Fatalf("expected status ok, got %s", status.Status)
	}
	if status.Dependencies["postgres"] != "ok" || status.Dependencies["redis"] != "ok" {
		t.Fatalf("expected both deps ok, got %+v", status.Dependencies)
	}
}

func TestServer_HealthReportsDegradedWhenADepFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRegistry(reg)
	s := NewServer("127.0.0.1:0", reg, arbor.NewLogger(), map[string]Pinger{
		"postgres": fakePinger{err: errors.New("connection refused")},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.handleHealth(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var status healthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != "degraded" {
		t.Fatalf("expected degraded status, got %s", status.Status)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
