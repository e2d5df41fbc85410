package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/privacyanalyzer/privacyanalyzer/internal/crawl"
)

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestAnalyzeScripts_FlagsEvalAsHighRisk(t *testing.T) {
	body := strings.Repeat("eval(atob('ZnVuY3Rpb24gZXZpbCgpIHsgcmV0dXJuIDE7IH0='));", 5)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	artifact := &crawl.Artifact{
		TargetURL: "https://example.com",
		Pages: []crawl.Page{
			{Scripts: crawl.ScriptInventory{ExternalURLs: []string{srv.URL + "/tracker.js"}}},
		},
	}

	got := AnalyzeScripts(context.Background(), artifact, srv.Client(), nil)
	if len(got) != 1 {
		t.Fatalf("expected one script finding, got %d", len(got))
	}
	if got[0].Risk != RiskHigh {
		t.Fatalf("expected high risk for eval+atob script, got %s (score %d, sigs %v)", got[0].Risk, got[0].ObfuscationScore, got[0].Signatures)
	}
}

func TestAnalyzeScripts_PlainScriptIsLowRisk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("function greet(name) { return 'hello ' + name; }"))
	}))
	defer srv.Close()

	artifact := &crawl.Artifact{
		TargetURL: "https://example.com",
		Pages: []crawl.Page{
			{Scripts: crawl.ScriptInventory{ExternalURLs: []string{srv.URL + "/app.js"}}},
		},
	}

	got := AnalyzeScripts(context.Background(), artifact, srv.Client(), nil)
	if len(got) != 1 || got[0].Risk != RiskLow {
		t.Fatalf("expected one low-risk finding, got %+v", got)
	}
}

func TestAnalyzeScripts_KnownBadHashForcesHighRisk(t *testing.T) {
	body := "var x = 1;"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	sum := sha256Hex(body)
	artifact := &crawl.Artifact{
		TargetURL: "https://example.com",
		Pages: []crawl.Page{
			{Scripts: crawl.ScriptInventory{ExternalURLs: []string{srv.URL + "/lib.js"}}},
		},
	}

	got := AnalyzeScripts(context.Background(), artifact, srv.Client(), map[string]bool{sum: true})
	if len(got) != 1 || got[0].Risk != RiskHigh || !got[0].KnownBad {
		t.Fatalf("expected known-bad hash to force high risk, got %+v", got)
	}
}

func TestAnalyzeScripts_SkipsCDNHosts(t *testing.T) {
	artifact := &crawl.Artifact{
		TargetURL: "https://example.com",
		Pages: []crawl.Page{
			{Scripts: crawl.ScriptInventory{ExternalURLs: []string{"https://cdnjs.cloudflare.com/lib.js"}}},
		},
	}
	got := AnalyzeScripts(context.Background(), artifact, http.DefaultClient, nil)
	if len(got) != 0 {
		t.Fatalf("expected CDN-hosted script excluded, got %+v", got)
	}
}
