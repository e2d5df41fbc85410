package analysis

import (
	"testing"
	"time"

	"github.com/privacyanalyzer/privacyanalyzer/internal/crawl"
)

func TestAnalyzeCookies_ClassifiesKnownTrackingCookie(t *testing.T) {
	expires := time.Unix(1000000+800*86400, 0)
	artifact := &crawl.Artifact{
		TargetURL: "https://example.com",
		Cookies: []crawl.Cookie{
			{Name: "_fbp", Domain: "facebook.com", Expires: &expires, Secure: true, HTTPOnly: true, SameSite: "Lax"},
		},
	}
	now := func() int64 { return 1000000 }

	got := AnalyzeCookies(artifact, now)
	if len(got.Findings) != 1 {
		t.Fatalf("expected one finding, got %d", len(got.Findings))
	}
	f := got.Findings[0]
	if f.Company != "Meta" || f.Purpose != PurposeTracking {
		t.Fatalf("expected Meta tracking classification, got %+v", f)
	}
	if f.Risk != RiskHigh {
		t.Fatalf("expected high risk for third-party tracking cookie, got %s", f.Risk)
	}
	if f.LifetimeRisk != LifetimeCritical {
		t.Fatalf("expected critical lifetime risk for an 800-day cookie, got %s", f.LifetimeRisk)
	}
}

func TestAnalyzeCookies_SessionCookieHasNoLifetime(t *testing.T) {
	artifact := &crawl.Artifact{
		TargetURL: "https://example.com",
		Cookies: []crawl.Cookie{
			{Name: "JSESSIONID", Domain: "example.com", Secure: true, HTTPOnly: true, SameSite: "Strict"},
		},
	}
	got := AnalyzeCookies(artifact, func() int64 { return 0 })
	f := got.Findings[0]
	if f.LifetimeDays != nil {
		t.Fatalf("expected nil lifetime for a session cookie, got %v", *f.LifetimeDays)
	}
	if f.Purpose != PurposeSession {
		t.Fatalf("expected session purpose, got %s", f.Purpose)
	}
	if len(f.SecurityIssues) != 0 {
		t.Fatalf("expected no security issues, got %v", f.SecurityIssues)
	}
}

func TestAnalyzeCookies_ExpiredCookieHasNegativeLifetimeAndLowRisk(t *testing.T) {
	expires := time.Unix(1000000-10*86400, 0)
	artifact := &crawl.Artifact{
		TargetURL: "https://example.com",
		Cookies: []crawl.Cookie{
			{Name: "mystery", Domain: "example.com", Expires: &expires, Secure: true, HTTPOnly: true, SameSite: "Strict"},
		},
	}
	now := func() int64 { return 1000000 }

	got := AnalyzeCookies(artifact, now)
	f := got.Findings[0]
	if f.LifetimeDays == nil || *f.LifetimeDays != -10 {
		t.Fatalf("expected lifetime days of -10, got %v", f.LifetimeDays)
	}
	if f.LifetimeRisk != LifetimeLow {
		t.Fatalf("expected low lifetime risk for an expired cookie, got %s", f.LifetimeRisk)
	}
}

func TestAnalyzeCookies_FlagsMissingAttributes(t *testing.T) {
	artifact := &crawl.Artifact{
		TargetURL: "https://example.com",
		Cookies: []crawl.Cookie{
			{Name: "mystery", Domain: "example.com"},
		},
	}
	got := AnalyzeCookies(artifact, func() int64 { return 0 })
	f := got.Findings[0]
	if len(f.SecurityIssues) != 3 {
		t.Fatalf("expected 3 security issues for a bare cookie, got %v", f.SecurityIssues)
	}
}

func TestAnalyzeCookies_SortsHighRiskFirst(t *testing.T) {
	artifact := &crawl.Artifact{
		TargetURL: "https://example.com",
		Cookies: []crawl.Cookie{
			{Name: "JSESSIONID", Domain: "example.com", Secure: true, HTTPOnly: true, SameSite: "Strict"},
			{Name: "_fbp", Domain: "facebook.com", Secure: true, HTTPOnly: true, SameSite: "Lax"},
		},
	}
	got := AnalyzeCookies(artifact, func() int64 { return 0 })
	if got.Findings[0].Name != "_fbp" {
		t.Fatalf("expected the high-risk cookie sorted first, got %+v", got.Findings)
	}
}

func TestAnalyzeCookies_SummaryCountsMatch(t *testing.T) {
	artifact := &crawl.Artifact{
		TargetURL: "https://example.com",
		Cookies: []crawl.Cookie{
			{Name: "JSESSIONID", Domain: "example.com", Secure: true, HTTPOnly: true, SameSite: "Strict"},
			{Name: "_fbp", Domain: "facebook.com", Secure: true, HTTPOnly: true, SameSite: "Lax"},
		},
	}
	got := AnalyzeCookies(artifact, func() int64 { return 0 })
	if got.Summary.Total != 2 {
		t.Fatalf("expected total 2, got %d", got.Summary.Total)
	}
	if got.Summary.ThirdPartyTracking != 1 {
		t.Fatalf("expected 1 third-party tracking cookie, got %d", got.Summary.ThirdPartyTracking)
	}
}
