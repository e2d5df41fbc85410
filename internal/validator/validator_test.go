package validator

import (
	"testing"

	"github.com/privacyanalyzer/privacyanalyzer/internal/apperr"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		errCode apperr.Code
	}{
		{name: "empty", in: "", errCode: apperr.CodeURLMissing},
		{name: "whitespace only", in: "   ", errCode: apperr.CodeURLEmpty},
		{name: "no tld", in: "ksgdsgfksdgfksdfg", errCode: apperr.CodeURLNoTLD},
		{name: "raw ipv4", in: "http://127.0.0.1/", errCode: apperr.CodeURLRawIP},
		{name: "raw ipv6", in: "http://[::1]/", errCode: apperr.CodeURLRawIP},
		{name: "bad protocol", in: "ftp://example.com", errCode: apperr.CodeURLInvalidProtocol},
		{name: "malformed", in: "https://%zz", errCode: apperr.CodeURLMalformed},
		{name: "no scheme dotted host accepted", in: "example.com", want: "https://example.com"},
		{name: "default https port stripped", in: "https://example.com:443/path", want: "https://example.com/path"},
		{name: "default http port stripped", in: "http://example.com:80/path", want: "http://example.com/path"},
		{name: "host lowercased", in: "https://EXAMPLE.com/Path", want: "https://example.com/Path"},
		{name: "preserves query and fragment", in: "https://example.com/a?x=1#y", want: "https://example.com/a?x=1#y"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Validate(tc.in)
			if tc.errCode != "" {
				if err == nil {
					t.Fatalf("expected error code %s, got nil (result=%q)", tc.errCode, got)
				}
				if apperr.CodeOf(err) != tc.errCode {
					t.Fatalf("expected code %s, got %s", tc.errCode, apperr.CodeOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
