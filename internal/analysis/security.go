package analysis

import (
	"fmt"
	"strings"

	"github.com/privacyanalyzer/privacyanalyzer/internal/crawl"
)

// AnalyzeSecuritySignals emits one Signal per observation named in spec
// §4.I Security signals, covering transport, fingerprinting, and content
// posture.
func AnalyzeSecuritySignals(artifact *crawl.Artifact, trackers []Tracker) []Signal {
	var signals []Signal

	if artifact.IsHTTPS {
		signals = append(signals, Signal{SignalSafe, "transport", "site is served over HTTPS"})
	} else {
		signals = append(signals, Signal{SignalDanger, "transport", "site is not served over HTTPS"})
	}

	if artifact.HasCSP {
		signals = append(signals, Signal{SignalSafe, "content-security-policy", "Content-Security-Policy header present"})
		csp := homepageCSP(artifact)
		if strings.Contains(csp, "unsafe-inline") {
			signals = append(signals, Signal{SignalWarning, "content-security-policy", "CSP allows 'unsafe-inline' script execution"})
		}
		if strings.Contains(csp, "unsafe-eval") {
			signals = append(signals, Signal{SignalWarning, "content-security-policy", "CSP allows 'unsafe-eval' script execution"})
		}
	} else {
		signals = append(signals, Signal{SignalWarning, "content-security-policy", "no Content-Security-Policy header found"})
	}

	fp := aggregateFingerprinting(artifact)
	if fp.Canvas {
		signals = append(signals, Signal{SignalWarning, "fingerprinting", "canvas fingerprinting detected"})
	}
	if fp.WebGL {
		signals = append(signals, Signal{SignalWarning, "fingerprinting", "WebGL fingerprinting detected"})
	}
	if fp.Font {
		signals = append(signals, Signal{SignalInfo, "fingerprinting", "font enumeration detected"})
	}
	if fp.Keylogger {
		signals = append(signals, Signal{SignalDanger, "fingerprinting", "keystroke capture detected"})
	}
	if fp.FormSnooping {
		signals = append(signals, Signal{SignalDanger, "fingerprinting", "form field snooping detected"})
	}
	if fp.ServiceWorker {
		signals = append(signals, Signal{SignalInfo, "fingerprinting", "service worker registration detected"})
	}

	beaconCount := 0
	wsCount := 0
	redirectCount := 0
	inlineTrackerScripts := 0
	trackingParamHit := false
	for _, p := range artifact.Pages {
		beaconCount += len(p.Fingerprinting.Beacons)
		wsCount += len(p.WebSocketURLs)
		redirectCount += len(p.Redirects)
		for _, s := range p.Scripts.Inline {
			if s.TrackerSignaturePresent {
				inlineTrackerScripts++
			}
		}
		for _, r := range p.Requests {
			if len(r.TrackingParams) > 0 {
				trackingParamHit = true
			}
		}
	}
	if beaconCount > 0 {
		signals = append(signals, Signal{SignalWarning, "fingerprinting", fmt.Sprintf("%d sendBeacon call(s) observed", beaconCount)})
	}
	if wsCount > 0 {
		signals = append(signals, Signal{SignalInfo, "network", fmt.Sprintf("%d WebSocket connection(s) opened", wsCount)})
	}
	if redirectCount > 3 {
		signals = append(signals, Signal{SignalWarning, "network", fmt.Sprintf("%d redirects observed across the crawl", redirectCount)})
	}
	if trackingParamHit {
		signals = append(signals, Signal{SignalInfo, "tracking-params", "tracking query parameters found on outgoing requests"})
	}
	if inlineTrackerScripts > 0 {
		signals = append(signals, Signal{SignalWarning, "scripts", fmt.Sprintf("%d inline script(s) contain tracker signatures", inlineTrackerScripts)})
	}

	cookieCount := len(artifact.Cookies)
	switch {
	case cookieCount > 20:
		signals = append(signals, Signal{SignalWarning, "cookies", fmt.Sprintf("%d cookies set, well above typical volume", cookieCount)})
	case cookieCount > 0:
		signals = append(signals, Signal{SignalInfo, "cookies", fmt.Sprintf("%d cookies set", cookieCount)})
	}

	externalDomains := countExternalDomains(artifact)
	switch {
	case externalDomains > 10:
		signals = append(signals, Signal{SignalDanger, "third-party", fmt.Sprintf("%d distinct external domains contacted", externalDomains)})
	case externalDomains > 5:
		signals = append(signals, Signal{SignalWarning, "third-party", fmt.Sprintf("%d distinct external domains contacted", externalDomains)})
	case externalDomains > 0:
		signals = append(signals, Signal{SignalInfo, "third-party", fmt.Sprintf("%d distinct external domains contacted", externalDomains)})
	}

	highRiskTrackers := 0
	for _, t := range trackers {
		if t.Risk == RiskHigh {
			highRiskTrackers++
		}
	}
	if highRiskTrackers > 0 {
		signals = append(signals, Signal{SignalDanger, "trackers", fmt.Sprintf("%d high-risk tracker(s) identified", highRiskTrackers)})
	}

	return signals
}

func aggregateFingerprinting(artifact *crawl.Artifact) crawl.Fingerprinting {
	var agg crawl.Fingerprinting
	for _, p := range artifact.Pages {
		agg.Canvas = agg.Canvas || p.Fingerprinting.Canvas
		agg.WebGL = agg.WebGL || p.Fingerprinting.WebGL
		agg.Font = agg.Font || p.Fingerprinting.Font
		agg.Keylogger = agg.Keylogger || p.Fingerprinting.Keylogger
		agg.FormSnooping = agg.FormSnooping || p.Fingerprinting.FormSnooping
		agg.ServiceWorker = agg.ServiceWorker || p.Fingerprinting.ServiceWorker
	}
	return agg
}

// homepageCSP returns the homepage's raw Content-Security-Policy header
// value, lowercased, or "" if none was captured.
func homepageCSP(artifact *crawl.Artifact) string {
	for _, p := range artifact.Pages {
		if p.IsHomepage {
			return strings.ToLower(p.ResponseHeaders["content-security-policy"])
		}
	}
	return ""
}

func countExternalDomains(artifact *crawl.Artifact) int {
	site := hostOf(artifact.TargetURL)
	seen := map[string]bool{}
	for _, p := range artifact.Pages {
		for _, r := range p.Requests {
			h := hostOf(r.URL)
			if h != "" && h != site {
				seen[h] = true
			}
		}
	}
	return len(seen)
}
