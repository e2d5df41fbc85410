// Package validator canonicalizes a user-supplied string into an http(s)
// URL (query and fragment kept), or rejects it with a distinct apperr.Code
// describing exactly why it isn't a scannable target.
package validator

import (
	"net"
	"net/url"
	"strings"

	"github.com/privacyanalyzer/privacyanalyzer/internal/apperr"
)

// Validate canonicalizes raw per spec §4.A and returns the canonical URL
// string, or an *apperr.Error with one of the documented rejection codes.
func Validate(raw string) (string, error) {
	if raw == "" {
		return "", apperr.New(apperr.CodeURLMissing, "No URL provided", nil)
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", apperr.New(apperr.CodeURLEmpty, "URL is empty", nil)
	}

	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return "", apperr.New(apperr.CodeURLMalformed, "URL could not be parsed", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", apperr.New(apperr.CodeURLInvalidProtocol, "Only http/https URLs are supported", nil)
	}

	host := u.Hostname()
	if host == "" {
		return "", apperr.New(apperr.CodeURLInvalidHostname, "URL has no hostname", nil)
	}

	if net.ParseIP(host) != nil {
		return "", apperr.New(apperr.CodeURLRawIP, "Direct IP addresses are not supported", nil)
	}

	if !strings.Contains(host, ".") {
		return "", apperr.New(apperr.CodeURLNoTLD, "URL has no top-level domain", nil)
	}

	u.Host = strings.ToLower(u.Host)
	stripDefaultPort(u)

	return u.String(), nil
}

// stripDefaultPort removes :80 from http URLs and :443 from https URLs so
// the canonical form elides the default port as spec's Canonical URL
// definition (GLOSSARY) requires.
func stripDefaultPort(u *url.URL) {
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		return
	}
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = host
	}
}
