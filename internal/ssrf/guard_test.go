package ssrf

import (
	"net"
	"testing"

	"github.com/privacyanalyzer/privacyanalyzer/internal/apperr"
)

func TestCheck(t *testing.T) {
	cases := []struct {
		name     string
		hostname string
		addr     net.IP
		wantCode apperr.Code
	}{
		{name: "public ok", hostname: "example.com", addr: net.ParseIP("93.184.216.34")},
		{name: "reserved metadata hostname", hostname: "metadata.google.internal", addr: net.ParseIP("169.254.169.254"), wantCode: apperr.CodeSSRFBlockedHostname},
		{name: "localhost hostname", hostname: "localhost", addr: net.ParseIP("127.0.0.1"), wantCode: apperr.CodeSSRFBlockedHostname},
		{name: "private-zone suffix", hostname: "db.internal", addr: net.ParseIP("93.184.216.34"), wantCode: apperr.CodeSSRFBlockedPattern},
		{name: "loopback rebind", hostname: "rebind.example.com", addr: net.ParseIP("127.0.0.1"), wantCode: apperr.CodeSSRFPrivateIP},
		{name: "rfc1918 10/8", hostname: "x.example.com", addr: net.ParseIP("10.1.2.3"), wantCode: apperr.CodeSSRFPrivateIP},
		{name: "rfc1918 192.168/16", hostname: "x.example.com", addr: net.ParseIP("192.168.1.1"), wantCode: apperr.CodeSSRFPrivateIP},
		{name: "cgnat 100.64/10", hostname: "x.example.com", addr: net.ParseIP("100.64.0.5"), wantCode: apperr.CodeSSRFPrivateIP},
		{name: "link-local", hostname: "x.example.com", addr: net.ParseIP("169.254.1.1"), wantCode: apperr.CodeSSRFPrivateIP},
		{name: "ipv6 loopback", hostname: "x.example.com", addr: net.ParseIP("::1"), wantCode: apperr.CodeSSRFPrivateIP},
		{name: "ipv6 unique local", hostname: "x.example.com", addr: net.ParseIP("fc00::1"), wantCode: apperr.CodeSSRFPrivateIP},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Check(tc.hostname, tc.addr)
			if tc.wantCode == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error code %s, got nil", tc.wantCode)
			}
			if apperr.CodeOf(err) != tc.wantCode {
				t.Fatalf("expected code %s, got %s", tc.wantCode, apperr.CodeOf(err))
			}
		})
	}
}
