package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"

	"github.com/privacyanalyzer/privacyanalyzer/internal/api"
	"github.com/privacyanalyzer/privacyanalyzer/internal/dedup"
	"github.com/privacyanalyzer/privacyanalyzer/internal/jobstore"
	"github.com/privacyanalyzer/privacyanalyzer/internal/jobstore/jobstoretest"
	"github.com/privacyanalyzer/privacyanalyzer/internal/queue"
	"github.com/privacyanalyzer/privacyanalyzer/internal/resolver"
)

type fakeResolver struct {
	result resolver.Result
	err    error
}

func (f fakeResolver) Resolve(ctx context.Context, hostname string) (resolver.Result, error) {
	return f.result, f.err
}

func newTestHandler(t *testing.T) (*api.ScanHandler, *jobstoretest.Fake, *queue.Queue) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	q := queue.New(client)
	jobs := jobstoretest.New()
	coordinator := dedup.New(dedup.NewRedisStore(client), jobs)
	resolve := fakeResolver{result: resolver.Result{Address: net.ParseIP("93.184.216.34"), Family: resolver.FamilyIPv4}}
	h := api.NewScanHandler(jobs, coordinator, q, resolve, arbor.NewLogger())
	return h, jobs, q
}

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestAnalyze_AcceptsNewSubmission(t *testing.T) {
	h, _, _ := newTestHandler(t)

	body, _ := json.Marshal(map[string]string{"url": "https://example.com"})
	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Analyze(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "PENDING" {
		t.Fatalf("expected PENDING status, got %v", resp["status"])
	}
}

func TestAnalyze_RejectsMalformedURL(t *testing.T) {
	h, _, _ := newTestHandler(t)

	body, _ := json.Marshal(map[string]string{"url": "not a url"})
	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Analyze(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAnalyze_RejectsSSRFTarget(t *testing.T) {
	h, _, _ := newTestHandler(t)

	body, _ := json.Marshal(map[string]string{"url": "https://metadata.google.internal/"})
	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Analyze(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetScan_ReturnsNotFoundForUnknownID(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/scan/does-not-exist", nil)
	rec := httptest.NewRecorder()
	h.GetScan(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetScan_ReturnsResultOnlyForSuccess(t *testing.T) {
	h, jobs, _ := newTestHandler(t)
	ctx := context.Background()

	job, err := jobs.Create(ctx, "https://example.com", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := jobs.Transition(ctx, job.ID, jobstore.StatusPending, jobstore.StatusRunning, jobstore.TransitionFields{}); err != nil {
		t.Fatalf("transition to running: %v", err)
	}
	result := &jobstore.Result{Score: 72, RiskLevel: jobstore.RiskModerate}
	if err := jobs.CompleteSuccess(ctx, job.ID, result); err != nil {
		t.Fatalf("complete: %v", err)
	}

	req := withChiParam(httptest.NewRequest(http.MethodGet, "/scan/"+job.ID, nil), "id", job.ID)
	rec := httptest.NewRecorder()
	h.GetScan(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "SUCCESS" {
		t.Fatalf("expected SUCCESS, got %v", resp["status"])
	}
	if resp["result"] == nil {
		t.Fatalf("expected result to be present for SUCCESS job")
	}

	pending, err := jobs.Create(ctx, "https://other.example", nil)
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}
	req = withChiParam(httptest.NewRequest(http.MethodGet, "/scan/"+pending.ID, nil), "id", pending.ID)
	rec = httptest.NewRecorder()
	h.GetScan(rec, req)
	var pendingResp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &pendingResp); err != nil {
		t.Fatalf("decode pending: %v", err)
	}
	if pendingResp["result"] != nil {
		t.Fatalf("expected no result for PENDING job, got %v", pendingResp["result"])
	}
}

func TestDeleteScan_RejectsRunningJob(t *testing.T) {
	h, jobs, _ := newTestHandler(t)
	ctx := context.Background()

	job, err := jobs.Create(ctx, "https://example.com", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := jobs.Transition(ctx, job.ID, jobstore.StatusPending, jobstore.StatusRunning, jobstore.TransitionFields{}); err != nil {
		t.Fatalf("transition: %v", err)
	}

	req := withChiParam(httptest.NewRequest(http.MethodDelete, "/scan/"+job.ID, nil), "id", job.ID)
	rec := httptest.NewRecorder()
	h.DeleteScan(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}
