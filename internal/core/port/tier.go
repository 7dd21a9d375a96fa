package port

import (
	"context"
	"time"
)

// TierEntry is the result of a successful tier lookup. ExpiresAt is zero when
// the backend does not report remaining lifetime for the key.
type TierEntry struct {
	Value     string
	ExpiresAt time.Time
}

// Tier is one storage backend in the cascading revocation chain. All writes
// are idempotent upsert-with-TTL, so concurrent callers need no extra locking.
type Tier interface {
	// Get returns nil when the key is absent or expired.
	Get(ctx context.Context, key string) (*TierEntry, error)
	Put(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeleteMatching removes every key matching a glob-style pattern.
	DeleteMatching(ctx context.Context, pattern string) error
}

// SweepableTier is a tier whose expired entries linger until reclaimed in bulk.
type SweepableTier interface {
	Tier
	// Sweep removes entries whose expiry precedes now and reports how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
	// Size returns the number of physically present entries, expired or not.
	Size() int
}
