package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"math"
	"net/http"
	"regexp"
	"sort"
	"time"

	"github.com/privacyanalyzer/privacyanalyzer/internal/crawl"
)

const (
	maxScriptsAnalyzed = 8
	scriptFetchTimeout = 8 * time.Second
	scriptAnalysisCap  = 100 * 1024
)

// obfuscationSignature is one entry of the fixed obfuscation-signature
// regex set; highSeverity marks the subset that counts toward the
// "≥2 high-severity signatures" risk escalation.
type obfuscationSignature struct {
	name        string
	pattern     *regexp.Regexp
	highSeverity bool
}

var obfuscationSignatures = []obfuscationSignature{
	{"eval", regexp.MustCompile(`\beval\s*\(`), true},
	{"new_function", regexp.MustCompile(`new\s+Function\s*\(`), true},
	{"hex_escape", regexp.MustCompile(`\\x[0-9a-fA-F]{2}`), false},
	{"unicode_escape", regexp.MustCompile(`\\u[0-9a-fA-F]{4}`), false},
	{"atob", regexp.MustCompile(`\batob\s*\(`), true},
	{"from_char_code", regexp.MustCompile(`String\.fromCharCode`), false},
	{"bracket_call", regexp.MustCompile(`\[["'][a-zA-Z_$][\w$]*["']\]\s*\(`), false},
	{"settimeout_string", regexp.MustCompile(`setTimeout\s*\(\s*["']`), true},
	{"obfuscated_prop_access", regexp.MustCompile(`(document|window)\[["'][^"']+["']\]`), false},
}

// exfiltrationPatterns is the fixed exfiltration-pattern regex set.
var exfiltrationPatterns = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"document_cookie", regexp.MustCompile(`document\.cookie`)},
	{"storage_access", regexp.MustCompile(`(localStorage|sessionStorage)\.(getItem|setItem)`)},
	{"navigator_properties", regexp.MustCompile(`navigator\.(userAgent|platform|language|hardwareConcurrency|deviceMemory)`)},
	{"screen_properties", regexp.MustCompile(`screen\.(width|height|colorDepth|pixelDepth)`)},
	{"fetch_xhr", regexp.MustCompile(`(fetch\s*\(|new\s+XMLHttpRequest)`)},
	{"send_beacon", regexp.MustCompile(`navigator\.sendBeacon`)},
	{"websocket", regexp.MustCompile(`new\s+WebSocket`)},
	{"geolocation", regexp.MustCompile(`navigator\.geolocation`)},
	{"get_battery", regexp.MustCompile(`navigator\.getBattery`)},
	{"layout_geometry", regexp.MustCompile(`getBoundingClientRect|offsetWidth|offsetHeight`)},
}

var longStringLiteral = regexp.MustCompile(`["'][^"'\n]{40,}["']`)
var shortIdentifier = regexp.MustCompile(`\b(?:var|let|const)\s+([a-zA-Z_$][\w$]{0,2})\b`)

// AnalyzeScripts fetches and scores up to maxScriptsAnalyzed non-CDN
// external scripts referenced by the artifact (spec §4.I Script
// intelligence). threatList holds known-bad SHA-256 digests.
func AnalyzeScripts(ctx context.Context, artifact *crawl.Artifact, client *http.Client, threatList map[string]bool) []ScriptFinding {
	if client == nil {
		client = &http.Client{Timeout: scriptFetchTimeout}
	}

	urls := collectExternalScriptURLs(artifact)
	if len(urls) > maxScriptsAnalyzed {
		urls = urls[:maxScriptsAnalyzed]
	}

	findings := make([]ScriptFinding, 0, len(urls))
	for _, u := range urls {
		body, err := fetchScript(ctx, client, u)
		if err != nil {
			continue
		}
		findings = append(findings, analyzeScriptBody(u, body, threatList))
	}

	sort.SliceStable(findings, func(i, j int) bool { return riskRank(findings[i].Risk) < riskRank(findings[j].Risk) })
	return findings
}

func collectExternalScriptURLs(artifact *crawl.Artifact) []string {
	seen := map[string]bool{}
	var urls []string
	for _, p := range artifact.Pages {
		for _, src := range p.Scripts.ExternalURLs {
			host := hostOf(src)
			if host == "" || cdnAllowlist[host] || seen[src] {
				continue
			}
			seen[src] = true
			urls = append(urls, src)
		}
	}
	return urls
}

func fetchScript(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, scriptFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(io.LimitReader(resp.Body, scriptAnalysisCap))
}

func analyzeScriptBody(rawURL string, body []byte, threatList map[string]bool) ScriptFinding {
	sum := sha256.Sum256(body)
	digest := hex.EncodeToString(sum[:])
	text := string(body)

	entropy := shannonEntropy(text)
	var highSigCount int
	var signatures []string
	for _, sig := range obfuscationSignatures {
		if sig.pattern.MatchString(text) {
			signatures = append(signatures, sig.name)
			if sig.highSeverity {
				highSigCount++
			}
		}
	}

	var exfilHits []string
	for _, pat := range exfiltrationPatterns {
		if pat.pattern.MatchString(text) {
			exfilHits = append(exfilHits, pat.name)
		}
	}

	score := obfuscationScore(text, entropy)
	knownBad := threatList != nil && threatList[digest]

	var risk Risk
	switch {
	case knownBad || score >= 60 || highSigCount >= 2:
		risk = RiskHigh
	case score >= 30 || highSigCount >= 1 || len(signatures) >= 3:
		risk = RiskMedium
	default:
		risk = RiskLow
	}

	return ScriptFinding{
		URL:              rawURL,
		SHA256:           digest,
		Entropy:          entropy,
		ObfuscationScore: score,
		KnownBad:         knownBad,
		Signatures:       signatures,
		ExfiltrationHits: exfilHits,
		Risk:             risk,
	}
}

func obfuscationScore(text string, entropy float64) int {
	score := 0
	switch {
	case entropy > 5.5:
		score += 40
	case entropy > 4.8:
		score += 20
	case entropy > 4.2:
		score += 10
	}

	longStrings := len(longStringLiteral.FindAllString(text, -1))
	switch {
	case longStrings > 5:
		score += 30
	case longStrings > 2:
		score += 15
	}

	nonAlphaRatio := nonAlphaRatio(text)
	switch {
	case nonAlphaRatio > 0.35:
		score += 20
	case nonAlphaRatio > 0.25:
		score += 10
	}

	if shortVarPercent(text) > 50 {
		score += 10
	}

	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

func shannonEntropy(text string) float64 {
	if text == "" {
		return 0
	}
	var counts [256]int
	for i := 0; i < len(text); i++ {
		counts[text[i]]++
	}
	total := float64(len(text))
	var entropy float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func nonAlphaRatio(text string) float64 {
	if text == "" {
		return 0
	}
	var nonAlpha int
	for _, r := range text {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == ' ' || r == '\n' || r == '\t') {
			nonAlpha++
		}
	}
	return float64(nonAlpha) / float64(len([]rune(text)))
}

func shortVarPercent(text string) float64 {
	matches := shortIdentifier.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0
	}
	short := 0
	for _, m := range matches {
		if len(m[1]) <= 2 {
			short++
		}
	}
	return float64(short) / float64(len(matches)) * 100
}
