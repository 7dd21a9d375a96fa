package cache

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arklim/social-platform-revocation/internal/core/port"
)

// HotTierOptions controls the in-process tier behaviour.
type HotTierOptions struct {
	MaxEntries int
}

type hotEntry struct {
	Value     string
	ExpiresAt time.Time
}

// HotTier is the fastest storage tier: a process-local TTL map. Contents are
// lost on restart; the durable tier refills it through promotion.
type HotTier struct {
	mu         sync.RWMutex
	entries    map[string]hotEntry
	maxEntries int
	now        func() time.Time
}

// NewHotTier constructs an in-process TTL-evicting cache tier.
func NewHotTier(opts HotTierOptions) *HotTier {
	tier := &HotTier{
		entries:    make(map[string]hotEntry),
		maxEntries: opts.MaxEntries,
	}
	tier.now = func() time.Time { return time.Now().UTC() }
	return tier
}

// WithClock overrides the internal clock for deterministic testing.
func (t *HotTier) WithClock(clock func() time.Time) *HotTier {
	if clock != nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.now = clock
	}
	return t
}

// Get returns the stored entry, lazily pruning it when expired.
func (t *HotTier) Get(_ context.Context, key string) (*port.TierEntry, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("key is required")
	}

	now := t.currentTime()
	t.mu.RLock()
	entry, ok := t.entries[key]
	t.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !entry.ExpiresAt.After(now) {
		t.mu.Lock()
		delete(t.entries, key)
		t.mu.Unlock()
		return nil, nil
	}
	return &port.TierEntry{Value: entry.Value, ExpiresAt: entry.ExpiresAt}, nil
}

// Put upserts an entry with the supplied TTL.
func (t *HotTier) Put(_ context.Context, key string, value string, ttl time.Duration) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("key is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	now := t.currentTime()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.maxEntries > 0 && len(t.entries) >= t.maxEntries {
		if _, exists := t.entries[key]; !exists {
			t.evictOldestLocked(len(t.entries) - t.maxEntries + 1)
		}
	}

	t.entries[key] = hotEntry{Value: value, ExpiresAt: now.Add(ttl)}
	return nil
}

// Delete removes the entry when present.
func (t *HotTier) Delete(_ context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("key is required")
	}

	t.mu.Lock()
	delete(t.entries, key)
	t.mu.Unlock()
	return nil
}

// DeleteMatching removes every entry whose key matches a glob-style pattern.
func (t *HotTier) DeleteMatching(_ context.Context, pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("pattern is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.entries {
		matched, err := path.Match(pattern, key)
		if err != nil {
			return fmt.Errorf("match pattern %q: %w", pattern, err)
		}
		if matched {
			delete(t.entries, key)
		}
	}
	return nil
}

// Len returns the number of physically present entries, expired or not.
func (t *HotTier) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func (t *HotTier) currentTime() time.Time {
	t.mu.RLock()
	nowFn := t.now
	t.mu.RUnlock()
	if nowFn == nil {
		return time.Now().UTC()
	}
	return nowFn().UTC()
}

func (t *HotTier) evictOldestLocked(count int) {
	if count <= 0 || len(t.entries) == 0 {
		return
	}
	type item struct {
		key string
		exp time.Time
	}
	values := make([]item, 0, len(t.entries))
	for key, entry := range t.entries {
		values = append(values, item{key: key, exp: entry.ExpiresAt})
	}
	sort.Slice(values, func(i, j int) bool { return values[i].exp.Before(values[j].exp) })
	if count > len(values) {
		count = len(values)
	}
	for i := 0; i < count; i++ {
		delete(t.entries, values[i].key)
	}
}

var _ port.Tier = (*HotTier)(nil)
