package api

import "time"

// analyzeRequest is the body of POST /analyze (spec §6).
type analyzeRequest struct {
	URL string `json:"url"`
}

// analyzeResponse covers both the 202 (accepted/in-flight) and 200
// (cache-hit) shapes per spec §6; fields are omitted when not applicable.
type analyzeResponse struct {
	JobID     string     `json:"jobId"`
	Status    string     `json:"status"`
	Cached    bool       `json:"cached"`
	CachedAt  *time.Time `json:"cachedAt,omitempty"`
	PollURL   string     `json:"pollUrl"`
	Message   string     `json:"message,omitempty"`
}

// scanResponse is the GET /scan/:id shape per spec §6.
type scanResponse struct {
	JobID        string      `json:"jobId"`
	TargetURL    string      `json:"targetUrl"`
	Status       string      `json:"status"`
	CreatedAt    time.Time   `json:"createdAt"`
	StartedAt    *time.Time  `json:"startedAt,omitempty"`
	CompletedAt  *time.Time  `json:"completedAt,omitempty"`
	Result       *resultDTO  `json:"result,omitempty"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
}

// resultDTO mirrors jobstore.Result per spec §3.
type resultDTO struct {
	Score     int    `json:"score"`
	RiskLevel string `json:"riskLevel"`
	Summary   string `json:"summary"`

	TrackerCount        int `json:"trackerCount"`
	CookieCount         int `json:"cookieCount"`
	ExternalDomainCount int `json:"externalDomainCount"`
	PagesCrawled        int `json:"pagesCrawled"`

	IsHTTPS           bool `json:"isHttps"`
	HasCSP            bool `json:"hasCsp"`
	CanvasFingerprint bool `json:"canvasFingerprint"`
	WebGLFingerprint  bool `json:"webglFingerprint"`
	FontFingerprint   bool `json:"fontFingerprint"`
	Keylogger         bool `json:"keylogger"`

	RawData map[string]interface{} `json:"rawData,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// historyResponse is the GET /scans shape per spec §6.
type historyResponse struct {
	Data       []scanResponse `json:"data"`
	Pagination paginationDTO  `json:"pagination"`
}

type paginationDTO struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// errorResponse is the uniform error envelope for 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
