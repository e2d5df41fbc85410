package api

import (
	"encoding/json"
	"net/http"

	"github.com/privacyanalyzer/privacyanalyzer/internal/jobstore"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func toScanResponse(job *jobstore.Job, result *jobstore.Result) scanResponse {
	resp := scanResponse{
		JobID:       job.ID,
		TargetURL:   job.TargetURL,
		Status:      string(job.Status),
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
	if job.Status == jobstore.StatusFailed {
		resp.ErrorMessage = job.ErrorMessage
	}
	if job.Status == jobstore.StatusSuccess && result != nil {
		dto := toResultDTO(result)
		resp.Result = &dto
	}
	return resp
}

func toResultDTO(r *jobstore.Result) resultDTO {
	return resultDTO{
		Score:               r.Score,
		RiskLevel:           string(r.RiskLevel),
		Summary:             r.Summary,
		TrackerCount:        r.TrackerCount,
		CookieCount:         r.CookieCount,
		ExternalDomainCount: r.ExternalDomainCount,
		PagesCrawled:        r.PagesCrawled,
		IsHTTPS:             r.IsHTTPS,
		HasCSP:              r.HasCSP,
		CanvasFingerprint:   r.CanvasFingerprint,
		WebGLFingerprint:    r.WebGLFingerprint,
		FontFingerprint:     r.FontFingerprint,
		Keylogger:           r.Keylogger,
		RawData:             r.RawData,
		CreatedAt:           r.CreatedAt,
	}
}
