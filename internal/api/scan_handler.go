// Package api is the HTTP ingress surface for submitting scans and polling
// their outcome: handlers for submission, single-scan lookup, history, and
// deletion, routed through go-chi/chi/v5 so path params and per-route
// middleware (CORS, rate limiting) can be expressed directly.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ternarybob/arbor"

	"github.com/privacyanalyzer/privacyanalyzer/internal/apperr"
	"github.com/privacyanalyzer/privacyanalyzer/internal/dedup"
	"github.com/privacyanalyzer/privacyanalyzer/internal/jobstore"
	"github.com/privacyanalyzer/privacyanalyzer/internal/queue"
	"github.com/privacyanalyzer/privacyanalyzer/internal/resolver"
	"github.com/privacyanalyzer/privacyanalyzer/internal/ssrf"
	"github.com/privacyanalyzer/privacyanalyzer/internal/validator"
)

const maxSubmissionBodyBytes = 4 * 1024

// ScanHandler serves the submission/poll/history/delete operations of
// spec §4.K / §6.
type ScanHandler struct {
	jobs     jobstore.Store
	dedup    *dedup.Coordinator
	queue    *queue.Queue
	resolve  resolver.Resolver
	logger   arbor.ILogger
}

// NewScanHandler constructs a ScanHandler.
func NewScanHandler(jobs jobstore.Store, coordinator *dedup.Coordinator, q *queue.Queue, resolve resolver.Resolver, logger arbor.ILogger) *ScanHandler {
	return &ScanHandler{jobs: jobs, dedup: coordinator, queue: q, resolve: resolve, logger: logger}
}

// Analyze handles POST /analyze: Validator -> Resolver -> Guard -> Dedup
// Coordinator -> Job Store -> Queue, per spec §5's admission sequence.
func (h *ScanHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req analyzeRequest
	body := http.MaxBytesReader(w, r.Body, maxSubmissionBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, apperr.New(apperr.CodeURLMalformed, "Request body could not be parsed", err))
		return
	}
	if len(req.URL) > 2048 {
		writeError(w, apperr.New(apperr.CodeURLMalformed, "URL exceeds the maximum supported length", nil))
		return
	}

	canonical, err := validator.Validate(req.URL)
	if err != nil {
		writeError(w, err)
		return
	}

	hostname, resolveErr := h.resolveAndGuard(ctx, canonical)
	if resolveErr != nil {
		writeError(w, resolveErr)
		return
	}
	_ = hostname

	decision, err := h.dedup.Admit(ctx, canonical)
	if err != nil {
		h.logger.Error().Err(err).Str("url", canonical).Msg("dedup admission failed")
		writeError(w, apperr.New(apperr.CodeInternalTransaction, "Could not process this request", err))
		return
	}

	switch decision.Outcome {
	case dedup.OutcomeCachedSuccess:
		writeJSON(w, http.StatusOK, analyzeResponse{
			JobID:    decision.Job.ID,
			Status:   string(decision.Job.Status),
			Cached:   true,
			CachedAt: decision.Job.CompletedAt,
			PollURL:  pollURL(decision.Job.ID),
		})
		return
	case dedup.OutcomeInFlight:
		writeJSON(w, http.StatusAccepted, analyzeResponse{
			JobID:   decision.Job.ID,
			Status:  string(decision.Job.Status),
			Cached:  false,
			PollURL: pollURL(decision.Job.ID),
			Message: "A scan for this URL is already in progress",
		})
		return
	}

	job, err := h.jobs.Create(ctx, canonical, nil)
	if err != nil {
		_ = h.dedup.Release(ctx, canonical)
		h.logger.Error().Err(err).Str("url", canonical).Msg("failed to create job row")
		writeError(w, apperr.New(apperr.CodeInternalTransaction, "Could not create scan job", err))
		return
	}

	if err := h.queue.Push(ctx, job.ID, job.TargetURL, 0); err != nil {
		_ = h.dedup.Release(ctx, canonical)
		h.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to enqueue job")
		writeError(w, apperr.New(apperr.CodeEnqueueFailed, "Could not schedule scan job", err))
		return
	}

	writeJSON(w, http.StatusAccepted, analyzeResponse{
		JobID:   job.ID,
		Status:  string(job.Status),
		Cached:  false,
		PollURL: pollURL(job.ID),
	})
}

// resolveAndGuard runs the DNS Resolver and SSRF Guard (spec §4.B/§4.C)
// against canonical's hostname.
func (h *ScanHandler) resolveAndGuard(ctx context.Context, canonical string) (string, error) {
	u, err := url.Parse(canonical)
	if err != nil {
		return "", apperr.New(apperr.CodeURLMalformed, "URL could not be parsed", err)
	}
	hostname := u.Hostname()

	res, err := h.resolve.Resolve(ctx, hostname)
	if err != nil {
		return hostname, err
	}
	if err := ssrf.Check(hostname, res.Address); err != nil {
		return hostname, err
	}
	return hostname, nil
}

// GetScan handles GET /scan/:id.
func (h *ScanHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	job, err := h.jobs.FindByID(ctx, id)
	if err != nil {
		writeError(w, apperr.New(apperr.CodeJobNotFound, "Scan job not found", err))
		return
	}

	var result *jobstore.Result
	if job.Status == jobstore.StatusSuccess {
		result, err = h.jobs.GetResult(ctx, job.ID)
		if err != nil {
			h.logger.Warn().Err(err).Str("job_id", job.ID).Msg("success job missing result row")
		}
	}

	writeJSON(w, http.StatusOK, toScanResponse(job, result))
}

// ListScans handles GET /scans?url=&status=&page=&limit= per spec §6.
func (h *ScanHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := jobstore.ListFilter{
		TargetURL: q.Get("url"),
		Status:    jobstore.Status(q.Get("status")),
	}

	page := parseIntDefault(q.Get("page"), 1)
	limit := parseIntDefault(q.Get("limit"), 20)
	if limit > 100 {
		limit = 100
	}
	if page < 1 {
		page = 1
	}

	result, err := h.jobs.List(ctx, filter, page, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list scan jobs")
		writeError(w, apperr.New(apperr.CodeInternalTransaction, "Could not list scan jobs", err))
		return
	}

	data := make([]scanResponse, 0, len(result.Data))
	for _, job := range result.Data {
		var res *jobstore.Result
		if job.Status == jobstore.StatusSuccess {
			res, _ = h.jobs.GetResult(ctx, job.ID)
		}
		data = append(data, toScanResponse(job, res))
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Data: data,
		Pagination: paginationDTO{
			Page:       result.Page,
			Limit:      result.Limit,
			Total:      result.Total,
			TotalPages: result.TotalPages,
			HasNext:    result.HasNext,
			HasPrev:    result.HasPrev,
		},
	})
}

// DeleteScan handles DELETE /scan/:id.
func (h *ScanHandler) DeleteScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := h.jobs.Delete(ctx, id); err != nil {
		switch err.(type) {
		case *jobstore.ErrNotFound:
			writeError(w, apperr.New(apperr.CodeJobNotFound, "Scan job not found", err))
		case *jobstore.ErrConflict:
			writeError(w, apperr.New(apperr.CodeJobRunningNoDelete, "Job is running and cannot be deleted", err))
		default:
			writeError(w, apperr.New(apperr.CodeInternalTransaction, "Could not delete scan job", err))
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

func pollURL(jobID string) string {
	return "/scan/" + jobID
}

func parseIntDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
