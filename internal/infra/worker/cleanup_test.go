package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arklim/social-platform-revocation/internal/core/domain"
	"github.com/arklim/social-platform-revocation/internal/infra/cache"
)

type stubSweeper struct {
	removed int
	err     error
	calls   int
}

func (s *stubSweeper) Cleanup(_ context.Context) (int, error) {
	s.calls++
	return s.removed, s.err
}

type stubSnapshotStore struct {
	saved []domain.DenylistSnapshot
	err   error
}

func (s *stubSnapshotStore) SaveSnapshot(_ context.Context, snapshot domain.DenylistSnapshot) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, snapshot)
	return nil
}

func (s *stubSnapshotStore) LoadLatestSnapshot(_ context.Context) (*domain.DenylistSnapshot, error) {
	if len(s.saved) == 0 {
		return nil, nil
	}
	latest := s.saved[len(s.saved)-1]
	return &latest, nil
}

func TestCleanupWorkerRunOncePersistsSnapshot(t *testing.T) {
	ctx := context.Background()

	denylist := cache.NewDenylist(cache.DenylistOptions{})
	if err := denylist.Put(ctx, "jti-1", "", time.Hour); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	sweeper := &stubSweeper{removed: 3}
	store := &stubSnapshotStore{}
	worker := NewCleanupWorker(sweeper, denylist, store, time.Minute, nil)

	worker.RunOnce(ctx)

	if sweeper.calls != 1 {
		t.Fatalf("expected 1 sweep, got %d", sweeper.calls)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected 1 persisted snapshot, got %d", len(store.saved))
	}
	if len(store.saved[0].Payload) == 0 || store.saved[0].Checksum == "" {
		t.Fatalf("expected populated snapshot, got %+v", store.saved[0])
	}
}

func TestCleanupWorkerSkipsSnapshotOnSweepFailure(t *testing.T) {
	denylist := cache.NewDenylist(cache.DenylistOptions{})
	sweeper := &stubSweeper{err: errors.New("membership tier unavailable")}
	store := &stubSnapshotStore{}
	worker := NewCleanupWorker(sweeper, denylist, store, time.Minute, nil)

	worker.RunOnce(context.Background())

	if len(store.saved) != 0 {
		t.Fatalf("expected no snapshot after sweep failure, got %d", len(store.saved))
	}
}

func TestCleanupWorkerRunStopsOnContextCancel(t *testing.T) {
	sweeper := &stubSweeper{}
	worker := NewCleanupWorker(sweeper, nil, nil, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop after context cancellation")
	}

	if sweeper.calls == 0 {
		t.Fatalf("expected at least one sweep before cancellation")
	}
}
