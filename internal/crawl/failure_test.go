package crawl

import "testing"

func TestDetectFailureSignals_AllClearOnHealthyPage(t *testing.T) {
	obs := navigationObservation{
		HasResponse:        true,
		StatusCode:         200,
		FinalURL:           "https://example.com/",
		NonDataURIRequests: 5,
		BodyText:           "Welcome to our site",
	}
	signals := detectFailureSignals(obs)
	if len(signals) != 0 {
		t.Fatalf("expected no signals on a healthy page, got %v", signals)
	}
}

func TestDetectFailureSignals_NoResponse(t *testing.T) {
	obs := navigationObservation{HasResponse: false, NonDataURIRequests: 5, BodyText: "ok"}
	signals := detectFailureSignals(obs)
	assertContains(t, signals, "no_response")
}

func TestDetectFailureSignals_HTTPErrorStatus(t *testing.T) {
	obs := navigationObservation{HasResponse: true, StatusCode: 404, NonDataURIRequests: 5, BodyText: "not found"}
	signals := detectFailureSignals(obs)
	assertContains(t, signals, "http_error_status")
}

func TestDetectFailureSignals_InternalPageScheme(t *testing.T) {
	obs := navigationObservation{HasResponse: true, FinalURL: "chrome-error://chromewebdata/", NonDataURIRequests: 5}
	signals := detectFailureSignals(obs)
	assertContains(t, signals, "internal_page_scheme")
}

func TestDetectFailureSignals_InsufficientRequests(t *testing.T) {
	obs := navigationObservation{HasResponse: true, StatusCode: 200, NonDataURIRequests: 1}
	signals := detectFailureSignals(obs)
	assertContains(t, signals, "insufficient_requests")
}

func TestDetectFailureSignals_ErrorMarker(t *testing.T) {
	obs := navigationObservation{HasResponse: true, StatusCode: 200, NonDataURIRequests: 5, BodyText: "ERR_CONNECTION_REFUSED"}
	signals := detectFailureSignals(obs)
	assertContains(t, signals, "error_marker")
}

func TestIsUnreachable_HomepageThreshold(t *testing.T) {
	if !isUnreachable([]string{"no_response"}, true) {
		t.Fatal("homepage should fail on a single signal")
	}
}

func TestIsUnreachable_SubPageThreshold(t *testing.T) {
	if isUnreachable([]string{"no_response"}, false) {
		t.Fatal("sub-page should not fail on a single signal")
	}
	if !isUnreachable([]string{"no_response", "http_error_status"}, false) {
		t.Fatal("sub-page should fail once two signals fire")
	}
}

func assertContains(t *testing.T, signals []string, want string) {
	t.Helper()
	for _, s := range signals {
		if s == want {
			return
		}
	}
	t.Fatalf("expected signal %q in %v", want, signals)
}
