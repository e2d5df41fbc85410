package api

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter rate-limits per client identity at 10 requests/minute,
// using a rate.NewLimiter(rate.Limit(rps), burst) keyed per identity.
type clientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

const (
	rateLimitPerMinute = 10
	rateLimitBurst     = 10
)

func newClientLimiter() *clientLimiter {
	return &clientLimiter{limiters: make(map[string]*rate.Limiter)}
}

func (c *clientLimiter) allow(identity string) bool {
	c.mu.Lock()
	l, ok := c.limiters[identity]
	if !ok {
		l = rate.NewLimiter(rate.Limit(float64(rateLimitPerMinute)/60), rateLimitBurst)
		c.limiters[identity] = l
	}
	c.mu.Unlock()
	return l.Allow()
}

// RateLimit returns middleware enforcing the per-client-identity limit.
// Identity is the request's RemoteAddr (chi's middleware.RealIP, mounted
// ahead of this in the chain, rewrites it behind trusted proxies).
func (c *clientLimiter) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := r.RemoteAddr
		if !c.allow(identity) {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Error: "Too many requests, please slow down",
				Code:  "rate-limited",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestTimeout bounds handler execution so a stalled downstream
// dependency cannot hold a connection open indefinitely.
const requestTimeout = 10 * time.Second
