package api

import (
	"net/http"
	"strings"

	"github.com/privacyanalyzer/privacyanalyzer/internal/apperr"
)

// httpStatusFor maps an apperr.Code to its HTTP status per spec §7.
func httpStatusFor(code apperr.Code) int {
	switch {
	case code == apperr.CodeJobNotFound:
		return http.StatusNotFound
	case code == apperr.CodeJobRunningNoDelete:
		return http.StatusConflict
	case code == apperr.CodeRateLimited:
		return http.StatusTooManyRequests
	case strings.HasPrefix(string(code), "URL_"),
		strings.HasPrefix(string(code), "DNS_"),
		strings.HasPrefix(string(code), "SSRF_"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// humanMessageFor maps an apperr.Code to the client-facing message per the
// §6 error-mapping table. fallback is used for codes not covered by the
// table (runtime/internal failures), where the caller's generic message
// already avoids leaking internals.
func humanMessageFor(code apperr.Code, fallback string) string {
	switch code {
	case apperr.CodeURLNoTLD:
		return "That doesn't look like a real domain"
	case apperr.CodeURLMalformed, apperr.CodeURLInvalidProtocol, apperr.CodeURLInvalidHostname:
		return "The URL you entered doesn't look valid"
	case apperr.CodeURLMissing, apperr.CodeURLEmpty:
		return "Please provide a URL to analyze"
	case apperr.CodeURLRawIP:
		return "Direct IP addresses are not supported"
	case apperr.CodeDNSFailed, apperr.CodeDNSTimeout:
		return "We couldn't resolve that domain"
	case apperr.CodeSSRFBlockedHostname, apperr.CodeSSRFBlockedPattern, apperr.CodeSSRFPrivateIP:
		return "Scanning private or internal network addresses is not permitted"
	case apperr.CodeUnreachable:
		return "We couldn't reach that site"
	default:
		return fallback
	}
}

// writeError writes a uniform JSON error envelope, deriving status and
// message from err when it is an *apperr.Error, or falling back to a
// generic 500 otherwise.
func writeError(w http.ResponseWriter, err error) {
	if ae, ok := err.(*apperr.Error); ok {
		status := httpStatusFor(ae.Code)
		writeJSON(w, status, errorResponse{
			Error: humanMessageFor(ae.Code, ae.Message),
			Code:  string(ae.Code),
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "An internal error occurred"})
}
