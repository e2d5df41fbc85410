// Package ssrf rejects reserved hostnames, private-zone suffixes, and
// resolved addresses that fall inside any reserved/private/link-local/
// CGNAT/metadata range. All address checks run against the resolved IP,
// never the textual hostname, so DNS rebinding cannot bypass the guard.
package ssrf

import (
	"net"
	"net/netip"
	"strings"

	"github.com/privacyanalyzer/privacyanalyzer/internal/apperr"
)

var reservedHostnames = map[string]struct{}{
	"localhost":                  {},
	"0.0.0.0":                    {},
	"metadata.google.internal":   {},
	"169.254.169.254":            {},
}

var privateZoneSuffixes = []string{
	".local",
	".internal",
	".corp",
	".lan",
	".intranet",
}

var privatePrefixes = mustPrefixes(
	"127.0.0.0/8",
	"10.0.0.0/8",
	"192.168.0.0/16",
	"172.16.0.0/12",
	"169.254.0.0/16",
	"100.64.0.0/10", // CGNAT
	"0.0.0.0/8",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
)

func mustPrefixes(cidrs ...string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		p, err := netip.ParsePrefix(c)
		if err != nil {
			panic(err)
		}
		out = append(out, p)
	}
	return out
}

// Check rejects hostname/address combinations per spec §4.C. hostname is the
// original (post-validation, lowercased) host; addr is the address the DNS
// Resolver produced for it.
func Check(hostname string, addr net.IP) error {
	lower := strings.ToLower(hostname)

	if _, blocked := reservedHostnames[lower]; blocked {
		return apperr.New(apperr.CodeSSRFBlockedHostname, "Hostname is a reserved internal address", nil)
	}

	for _, suffix := range privateZoneSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return apperr.New(apperr.CodeSSRFBlockedPattern, "Hostname matches a private-zone suffix", nil)
		}
	}

	if addr == nil {
		return apperr.New(apperr.CodeSSRFPrivateIP, "No resolved address to evaluate", nil)
	}

	ip, ok := netip.AddrFromSlice(addr)
	if !ok {
		return apperr.New(apperr.CodeSSRFPrivateIP, "Resolved address could not be parsed", nil)
	}
	ip = ip.Unmap()

	for _, prefix := range privatePrefixes {
		if prefix.Contains(ip) {
			return apperr.New(apperr.CodeSSRFPrivateIP, "Scanning private or internal network addresses is not permitted", nil)
		}
	}

	return nil
}
