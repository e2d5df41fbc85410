package analysis

import (
	"testing"

	"github.com/privacyanalyzer/privacyanalyzer/internal/crawl"
)

func findSignal(signals []Signal, category string) (Signal, bool) {
	for _, s := range signals {
		if s.Category == category {
			return s, true
		}
	}
	return Signal{}, false
}

func TestAnalyzeSecuritySignals_FlagsNonHTTPSAsDanger(t *testing.T) {
	artifact := &crawl.Artifact{IsHTTPS: false}
	got := AnalyzeSecuritySignals(artifact, nil)
	s, ok := findSignal(got, "transport")
	if !ok || s.Type != SignalDanger {
		t.Fatalf("expected a danger transport signal, got %+v", got)
	}
}

func TestAnalyzeSecuritySignals_CSPSubFlagsForUnsafeDirectives(t *testing.T) {
	artifact := &crawl.Artifact{
		HasCSP: true,
		Pages: []crawl.Page{
			{
				IsHomepage: true,
				ResponseHeaders: map[string]string{
					"content-security-policy": "script-src 'self' 'unsafe-inline' 'unsafe-eval'",
				},
			},
		},
	}
	got := AnalyzeSecuritySignals(artifact, nil)

	cspSignals := 0
	var sawUnsafeInline, sawUnsafeEval bool
	for _, s := range got {
		if s.Category != "content-security-policy" {
			continue
		}
		cspSignals++
		if s.Message == "CSP allows 'unsafe-inline' script execution" {
			sawUnsafeInline = true
		}
		if s.Message == "CSP allows 'unsafe-eval' script execution" {
			sawUnsafeEval = true
		}
	}
	if !sawUnsafeInline || !sawUnsafeEval {
		t.Fatalf("expected unsafe-inline and unsafe-eval sub-flags, got %+v", got)
	}
	if cspSignals != 3 {
		t.Fatalf("expected the present signal plus both sub-flags (3 total), got %d", cspSignals)
	}
}

func TestAnalyzeSecuritySignals_CSPPresentWithoutUnsafeDirectivesHasNoSubFlags(t *testing.T) {
	artifact := &crawl.Artifact{
		HasCSP: true,
		Pages: []crawl.Page{
			{
				IsHomepage: true,
				ResponseHeaders: map[string]string{
					"content-security-policy": "default-src 'self'",
				},
			},
		},
	}
	got := AnalyzeSecuritySignals(artifact, nil)
	for _, s := range got {
		if s.Category == "content-security-policy" && s.Type != SignalSafe {
			t.Fatalf("expected no sub-flag signals for a strict CSP, got %+v", got)
		}
	}
}

func TestAnalyzeSecuritySignals_CookieCountBands(t *testing.T) {
	oneCookie := &crawl.Artifact{Cookies: []crawl.Cookie{{Name: "a"}}}
	got := AnalyzeSecuritySignals(oneCookie, nil)
	s, ok := findSignal(got, "cookies")
	if !ok || s.Type != SignalInfo {
		t.Fatalf("expected an info cookie signal for 1 cookie, got %+v", got)
	}

	many := make([]crawl.Cookie, 21)
	for i := range many {
		many[i] = crawl.Cookie{Name: "c"}
	}
	gotMany := AnalyzeSecuritySignals(&crawl.Artifact{Cookies: many}, nil)
	s, ok = findSignal(gotMany, "cookies")
	if !ok || s.Type != SignalWarning {
		t.Fatalf("expected a warning cookie signal above 20 cookies, got %+v", gotMany)
	}
}

func TestAnalyzeSecuritySignals_ExternalDomainBands(t *testing.T) {
	domains := func(n int) *crawl.Artifact {
		var reqs []crawl.Request
		for i := 0; i < n; i++ {
			reqs = append(reqs, crawl.Request{URL: "https://d" + string(rune('a'+i)) + ".example/x"})
		}
		return &crawl.Artifact{TargetURL: "https://example.com", Pages: []crawl.Page{{Requests: reqs}}}
	}

	gotInfo := AnalyzeSecuritySignals(domains(2), nil)
	s, ok := findSignal(gotInfo, "third-party")
	if !ok || s.Type != SignalInfo {
		t.Fatalf("expected an info third-party signal for 2 domains, got %+v", gotInfo)
	}

	gotWarning := AnalyzeSecuritySignals(domains(7), nil)
	s, ok = findSignal(gotWarning, "third-party")
	if !ok || s.Type != SignalWarning {
		t.Fatalf("expected a warning third-party signal for 7 domains, got %+v", gotWarning)
	}

	gotDanger := AnalyzeSecuritySignals(domains(11), nil)
	s, ok = findSignal(gotDanger, "third-party")
	if !ok || s.Type != SignalDanger {
		t.Fatalf("expected a danger third-party signal for 11 domains, got %+v", gotDanger)
	}
}
