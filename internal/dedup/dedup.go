// Package dedup implements a two-level dedup policy against a 10-minute
// window: a DB-backed recent-success lookup combined with an atomic Redis
// set-if-absent in-flight lock. The in-flight primitive is intentionally a
// single atomic op rather than a held lock, so admission never blocks on a
// slow job store write, and the lock is visible across stateless ingress
// processes.
package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window is the dedup horizon per spec §4.D / GLOSSARY.
const Window = 10 * time.Minute

const keyPrefix = "privacyanalyzer:inflight:"

// Store is the in-flight lock primitive. It is an interface so the backing
// store can be swapped (spec §9) and so tests can use miniredis.
type Store interface {
	// Acquire attempts an atomic set-if-absent with a TTL. It returns true
	// if this call created the key (acquired the lock), false if another
	// admission already holds it.
	Acquire(ctx context.Context, canonicalURL string) (bool, error)
	// Release deletes the in-flight key, used when Job creation fails
	// after a successful Acquire.
	Release(ctx context.Context, canonicalURL string) error
}

// RedisStore is the production Store backed by a go-redis client.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Acquire(ctx context.Context, canonicalURL string) (bool, error) {
	ok, err := s.client.SetNX(ctx, keyPrefix+canonicalURL, "1", Window).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, canonicalURL string) error {
	return s.client.Del(ctx, keyPrefix+canonicalURL).Err()
}
