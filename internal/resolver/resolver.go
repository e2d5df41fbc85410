// Package resolver performs a time-bounded hostname lookup that picks one
// address deterministically.
package resolver

import (
	"context"
	"net"
	"time"

	"github.com/privacyanalyzer/privacyanalyzer/internal/apperr"
)

// Timeout bounds name resolution per spec §4.B.
const Timeout = 5 * time.Second

// Family identifies the resolved address's IP family.
type Family string

const (
	FamilyIPv4 Family = "ipv4"
	FamilyIPv6 Family = "ipv6"
)

// Result is the outcome of a bounded resolution.
type Result struct {
	Address net.IP
	Family  Family
}

// Resolver resolves hostnames to addresses within Timeout. It is an
// interface so callers can substitute a fake in tests without touching the
// network.
type Resolver interface {
	Resolve(ctx context.Context, hostname string) (Result, error)
}

// netResolver is the production Resolver backed by net.Resolver.
type netResolver struct {
	resolver *net.Resolver
}

// New returns the production DNS Resolver.
func New() Resolver {
	return &netResolver{resolver: net.DefaultResolver}
}

func (r *netResolver) Resolve(ctx context.Context, hostname string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	addrs, err := r.resolver.LookupIPAddr(ctx, hostname)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Result{}, apperr.New(apperr.CodeDNSTimeout, "DNS resolution timed out", err)
		}
		return Result{}, apperr.New(apperr.CodeDNSFailed, classifyDNSError(err), err)
	}
	if len(addrs) == 0 {
		return Result{}, apperr.New(apperr.CodeDNSFailed, "no addresses returned", nil)
	}

	// Pick deterministically: first address in resolver order.
	chosen := addrs[0]
	family := FamilyIPv6
	if chosen.IP.To4() != nil {
		family = FamilyIPv4
	}

	return Result{Address: chosen.IP, Family: family}, nil
}

// classifyDNSError derives a short error-class string that becomes the
// message of the DNS_FAILED error; the error code itself stays DNS_FAILED
// and does not carry the class.
func classifyDNSError(err error) string {
	var dnsErr *net.DNSError
	if ok := asDNSError(err, &dnsErr); ok {
		if dnsErr.IsNotFound {
			return "not_found"
		}
		if dnsErr.IsTimeout {
			return "timeout"
		}
		if dnsErr.IsTemporary {
			return "temporary"
		}
	}
	return "resolution_failed"
}

func asDNSError(err error, target **net.DNSError) bool {
	for err != nil {
		if de, ok := err.(*net.DNSError); ok {
			*target = de
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
