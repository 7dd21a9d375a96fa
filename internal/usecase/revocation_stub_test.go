package usecase

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/arklim/social-platform-revocation/internal/core/domain"
	"github.com/arklim/social-platform-revocation/internal/core/port"
)

type stubEntry struct {
	value     string
	expiresAt time.Time
}

type stubPut struct {
	key   string
	value string
	ttl   time.Duration
}

// stubTier is an in-memory tier with injectable failures and recorded writes.
// It satisfies port.SweepableTier so it can stand in for any slot in the chain.
type stubTier struct {
	mu      sync.Mutex
	entries map[string]stubEntry
	puts    []stubPut
	gets    int

	getErr error
	putErr error

	now func() time.Time
}

func newStubTier(clock func() time.Time) *stubTier {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &stubTier{entries: make(map[string]stubEntry), now: clock}
}

func (s *stubTier) Get(_ context.Context, key string) (*port.TierEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}

	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && !entry.expiresAt.After(s.now()) {
		return nil, nil
	}
	return &port.TierEntry{Value: entry.value, ExpiresAt: entry.expiresAt}, nil
}

func (s *stubTier) Put(_ context.Context, key string, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.putErr != nil {
		return s.putErr
	}
	s.puts = append(s.puts, stubPut{key: key, value: value, ttl: ttl})
	s.entries[key] = stubEntry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *stubTier) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *stubTier) DeleteMatching(_ context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if matched, _ := path.Match(pattern, key); matched {
			delete(s.entries, key)
		}
	}
	return nil
}

func (s *stubTier) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, entry := range s.entries {
		if !entry.expiresAt.After(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (s *stubTier) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *stubTier) seed(key, value string, expiresAt time.Time) {
	s.mu.Lock()
	s.entries[key] = stubEntry{value: value, expiresAt: expiresAt}
	s.mu.Unlock()
}

func (s *stubTier) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

func (s *stubTier) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts)
}

func (s *stubTier) lastPut() (stubPut, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.puts) == 0 {
		return stubPut{}, false
	}
	return s.puts[len(s.puts)-1], true
}

func (s *stubTier) getCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

type stubAuditLog struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (s *stubAuditLog) Append(_ context.Context, entry domain.AuditEntry) error {
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
	return nil
}

func (s *stubAuditLog) ListByUser(_ context.Context, userID string, _ int) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.AuditEntry
	for _, entry := range s.entries {
		if entry.UserID == userID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (s *stubAuditLog) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

type stubEventPublisher struct {
	mu          sync.Mutex
	tokenEvents []domain.TokenRevokedEvent
	userEvents  []domain.UserRevokedEvent
}

func (s *stubEventPublisher) PublishTokenRevoked(_ context.Context, event domain.TokenRevokedEvent) error {
	s.mu.Lock()
	s.tokenEvents = append(s.tokenEvents, event)
	s.mu.Unlock()
	return nil
}

func (s *stubEventPublisher) PublishUserRevoked(_ context.Context, event domain.UserRevokedEvent) error {
	s.mu.Lock()
	s.userEvents = append(s.userEvents, event)
	s.mu.Unlock()
	return nil
}
