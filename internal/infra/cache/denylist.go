package cache

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arklim/social-platform-revocation/internal/core/domain"
	"github.com/arklim/social-platform-revocation/internal/core/port"
)

// DenylistOptions controls the membership tier behaviour.
type DenylistOptions struct {
	MaxEntries int
}

// Denylist is the membership tier: an exact expiring set of revoked
// identifiers. Informally called the "bloom" tier, but exact by construction,
// so anything inserted and unexpired must be found. Only keys and expiries are
// stored; record payloads live in the hot and durable tiers.
type Denylist struct {
	mu         sync.RWMutex
	entries    map[string]time.Time
	maxEntries int
	now        func() time.Time
}

// NewDenylist constructs an in-memory exact expiring set.
func NewDenylist(opts DenylistOptions) *Denylist {
	d := &Denylist{
		entries:    make(map[string]time.Time),
		maxEntries: opts.MaxEntries,
	}
	d.now = func() time.Time { return time.Now().UTC() }
	return d
}

// WithClock overrides the internal clock for deterministic testing.
func (d *Denylist) WithClock(clock func() time.Time) *Denylist {
	if clock != nil {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.now = clock
	}
	return d
}

// Get reports membership. The returned entry carries no value, only expiry.
func (d *Denylist) Get(_ context.Context, key string) (*port.TierEntry, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("key is required")
	}

	now := d.currentTime()
	d.mu.RLock()
	expiresAt, ok := d.entries[key]
	d.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !expiresAt.After(now) {
		// Expired entries linger until swept; hide them from readers.
		return nil, nil
	}
	return &port.TierEntry{ExpiresAt: expiresAt}, nil
}

// Put records the key until its TTL elapses. The value is discarded: the
// membership tier answers "is this key revoked", not "why".
func (d *Denylist) Put(_ context.Context, key string, _ string, ttl time.Duration) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("key is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	now := d.currentTime()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.maxEntries > 0 && len(d.entries) >= d.maxEntries {
		if _, exists := d.entries[key]; !exists {
			d.evictOldestLocked(len(d.entries) - d.maxEntries + 1)
		}
	}

	d.entries[key] = now.Add(ttl)
	return nil
}

// Delete removes the key when present.
func (d *Denylist) Delete(_ context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("key is required")
	}

	d.mu.Lock()
	delete(d.entries, key)
	d.mu.Unlock()
	return nil
}

// DeleteMatching removes every key matching a glob-style pattern.
func (d *Denylist) DeleteMatching(_ context.Context, pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("pattern is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.entries {
		matched, err := path.Match(pattern, key)
		if err != nil {
			return fmt.Errorf("match pattern %q: %w", pattern, err)
		}
		if matched {
			delete(d.entries, key)
		}
	}
	return nil
}

// Sweep removes entries whose expiry precedes now and reports how many were removed.
func (d *Denylist) Sweep(_ context.Context, now time.Time) (int, error) {
	cutoff := now.UTC()

	d.mu.Lock()
	removed := 0
	for key, expiresAt := range d.entries {
		if !expiresAt.After(cutoff) {
			delete(d.entries, key)
			removed++
		}
	}
	d.mu.Unlock()
	return removed, nil
}

// Size returns the number of physically present entries, expired or not.
func (d *Denylist) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Insert adds a raw entry with an explicit expiry, bypassing TTL arithmetic.
// Operational tooling and tests use it to seed already-expired entries.
func (d *Denylist) Insert(key string, expiresAt time.Time) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	d.mu.Lock()
	d.entries[key] = expiresAt.UTC()
	d.mu.Unlock()
}

// Snapshot serialises the active entries for persistence.
func (d *Denylist) Snapshot(_ context.Context) (*domain.DenylistSnapshot, error) {
	now := d.currentTime()
	d.mu.RLock()
	entries := make([]snapshotEntry, 0, len(d.entries))
	for key, expiresAt := range d.entries {
		if !expiresAt.After(now) {
			continue
		}
		entries = append(entries, snapshotEntry{Key: key, ExpiresAt: expiresAt.UTC()})
	}
	d.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ExpiresAt.Equal(entries[j].ExpiresAt) {
			return entries[i].Key < entries[j].Key
		}
		return entries[i].ExpiresAt.Before(entries[j].ExpiresAt)
	})

	payload, err := json.Marshal(snapshotPayload{Entries: entries})
	if err != nil {
		return nil, fmt.Errorf("encode denylist snapshot: %w", err)
	}

	checksum := sha256.Sum256(payload)
	snapshot := &domain.DenylistSnapshot{
		SnapshotID:  uuid.NewString(),
		GeneratedAt: now,
		Payload:     payload,
		Checksum:    base64.StdEncoding.EncodeToString(checksum[:]),
	}
	return snapshot, nil
}

// RestoreSnapshot replaces the in-memory state with the provided snapshot payload.
func (d *Denylist) RestoreSnapshot(_ context.Context, snapshot domain.DenylistSnapshot) error {
	if len(snapshot.Payload) == 0 {
		return nil
	}

	var data snapshotPayload
	if err := json.Unmarshal(snapshot.Payload, &data); err != nil {
		return fmt.Errorf("decode denylist snapshot: %w", err)
	}

	entries := make(map[string]time.Time, len(data.Entries))
	for _, item := range data.Entries {
		key := strings.TrimSpace(item.Key)
		if key == "" {
			continue
		}
		entries[key] = item.ExpiresAt.UTC()
	}

	d.mu.Lock()
	d.entries = entries
	d.mu.Unlock()
	return nil
}

func (d *Denylist) currentTime() time.Time {
	d.mu.RLock()
	nowFn := d.now
	d.mu.RUnlock()
	if nowFn == nil {
		return time.Now().UTC()
	}
	return nowFn().UTC()
}

func (d *Denylist) evictOldestLocked(count int) {
	if count <= 0 || len(d.entries) == 0 {
		return
	}
	type item struct {
		key string
		exp time.Time
	}
	values := make([]item, 0, len(d.entries))
	for key, expiresAt := range d.entries {
		values = append(values, item{key: key, exp: expiresAt})
	}
	sort.Slice(values, func(i, j int) bool { return values[i].exp.Before(values[j].exp) })
	if count > len(values) {
		count = len(values)
	}
	for i := 0; i < count; i++ {
		delete(d.entries, values[i].key)
	}
}

type snapshotPayload struct {
	Entries []snapshotEntry `json:"entries"`
}

type snapshotEntry struct {
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

var _ port.SweepableTier = (*Denylist)(nil)
