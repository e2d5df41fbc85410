package analysis

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/privacyanalyzer/privacyanalyzer/internal/crawl"
	"github.com/privacyanalyzer/privacyanalyzer/internal/jobstore"
)

// Pipeline runs every sub-analyzer over a Crawl Artifact and assembles
// the persisted Result (spec §4.I). It holds no per-job state; every
// call to Analyze is independent and safe to share across goroutines.
type Pipeline struct {
	scriptClient *http.Client
	threatList   map[string]bool
	clock        func() time.Time
}

// New constructs a Pipeline. httpClient is used for script fetches; a
// default 8s-timeout client is used when nil. threatList holds known-bad
// script SHA-256 digests, may be nil.
func New(httpClient *http.Client, threatList map[string]bool) *Pipeline {
	return &Pipeline{scriptClient: httpClient, threatList: threatList, clock: time.Now}
}

// WithClock overrides the pipeline's time source, for deterministic
// cookie-lifetime tests.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	return p
}

// Analyze runs the full pipeline over artifact and returns the Result
// ready for jobstore.Store.CompleteSuccess.
func (p *Pipeline) Analyze(ctx context.Context, artifact *crawl.Artifact) (*jobstore.Result, error) {
	if artifact == nil {
		return nil, fmt.Errorf("analysis: artifact is nil")
	}

	trackers := AnalyzeTrackers(artifact)
	cookies := AnalyzeCookies(artifact, func() int64 { return p.clock().Unix() })
	scripts := AnalyzeScripts(ctx, artifact, p.scriptClient, p.threatList)
	ownership := AnalyzeOwnership(artifact)
	signals := AnalyzeSecuritySignals(artifact, trackers)

	scoreIn := buildScoreInput(artifact, len(trackers))
	score := ComputeScore(scoreIn)
	risk := jobstore.RiskLevelForScore(score)

	fp := aggregateFingerprinting(artifact)

	result := &jobstore.Result{
		Score:               score,
		RiskLevel:           risk,
		Summary:             summarize(score, risk, len(trackers), len(cookies.Findings)),
		TrackerCount:        len(trackers),
		CookieCount:         len(artifact.Cookies),
		ExternalDomainCount: countExternalDomains(artifact),
		PagesCrawled:        len(artifact.Pages),
		IsHTTPS:             artifact.IsHTTPS,
		HasCSP:              artifact.HasCSP,
		CanvasFingerprint:   fp.Canvas,
		WebGLFingerprint:    fp.WebGL,
		FontFingerprint:     fp.Font,
		Keylogger:           fp.Keylogger,
		RawData: map[string]interface{}{
			"trackers":  trackers,
			"cookies":   cookies,
			"scripts":   scripts,
			"ownership": ownership,
			"signals":   signals,
		},
	}
	return result, nil
}

func summarize(score int, risk jobstore.RiskLevel, trackerCount, cookieCount int) string {
	return fmt.Sprintf("privacy score %d (%s risk): %d tracker(s), %d cookie(s) analyzed", score, risk, trackerCount, cookieCount)
}
