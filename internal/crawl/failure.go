package crawl

import "strings"

// errorMarkers is the fixed list of browser error strings checked against
// page content to detect a failed navigation.
var errorMarkers = []string{
	"ERR_NAME_NOT_RESOLVED",
	"ERR_CONNECTION_REFUSED",
	"ERR_CONNECTION_TIMED_OUT",
	"ERR_TIMED_OUT",
	"ERR_ADDRESS_UNREACHABLE",
	"ERR_INTERNET_DISCONNECTED",
	"ERR_EMPTY_RESPONSE",
	"chrome-error://",
	"neterror",
	"jserrorpage",
	"dns-not-found",
}

// internalPageSchemes flags responses that landed on a browser-internal
// error page rather than real content (signal 3).
var internalPageSchemes = []string{"chrome-error://", "about:", "data:text/html"}

// navigationObservation is the post-settle state failure detection runs
// against, per spec §4.H.
type navigationObservation struct {
	HasResponse       bool
	StatusCode        int
	FinalURL          string
	NonDataURIRequests int
	BodyText          string
}

// detectFailureSignals computes the five independent signals and returns
// the ones that fired.
func detectFailureSignals(obs navigationObservation) []string {
	var signals []string

	if !obs.HasResponse {
		signals = append(signals, "no_response")
	}
	if obs.StatusCode >= 400 {
		signals = append(signals, "http_error_status")
	}
	for _, scheme := range internalPageSchemes {
		if strings.HasPrefix(obs.FinalURL, scheme) {
			signals = append(signals, "internal_page_scheme")
			break
		}
	}
	if obs.NonDataURIRequests <= 1 {
		signals = append(signals, "insufficient_requests")
	}
	lowerBody := strings.ToLower(obs.BodyText)
	for _, marker := range errorMarkers {
		if strings.Contains(lowerBody, strings.ToLower(marker)) {
			signals = append(signals, "error_marker")
			break
		}
	}

	return signals
}

// isUnreachable applies the homepage/sub-page thresholds: homepage fails
// at >=1 signal, a sub-page only at >=2 (spec §4.H Threshold).
func isUnreachable(signals []string, isHomepage bool) bool {
	if isHomepage {
		return len(signals) >= 1
	}
	return len(signals) >= 2
}
