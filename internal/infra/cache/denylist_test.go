package cache

import (
	"context"
	"testing"
	"time"
)

func TestDenylistMembershipAndSweep(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	denylist := NewDenylist(DenylistOptions{})
	denylist.WithClock(func() time.Time { return base })

	if err := denylist.Put(ctx, "revoked-jti", "", 2*time.Minute); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	entry, err := denylist.Get(ctx, "revoked-jti")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if entry == nil {
		t.Fatalf("expected key to be present in denylist")
	}

	// Advance beyond expiry: the entry is hidden but lingers until swept.
	denylist.WithClock(func() time.Time { return base.Add(3 * time.Minute) })
	entry, err = denylist.Get(ctx, "revoked-jti")
	if err != nil {
		t.Fatalf("Get after expiry returned error: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected expired key to be hidden")
	}
	if denylist.Size() != 1 {
		t.Fatalf("expected expired entry to linger until swept, size %d", denylist.Size())
	}

	removed, err := denylist.Sweep(ctx, base.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed entry, got %d", removed)
	}
	if denylist.Size() != 0 {
		t.Fatalf("expected empty denylist after sweep, size %d", denylist.Size())
	}
}

func TestDenylistSweepKeepsActiveEntries(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	denylist := NewDenylist(DenylistOptions{})
	denylist.WithClock(func() time.Time { return base })

	denylist.Insert("expired", base.Add(-time.Minute))
	if err := denylist.Put(ctx, "active", "", time.Hour); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	removed, err := denylist.Sweep(ctx, base)
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected exactly the expired entry to be removed, got %d", removed)
	}

	entry, err := denylist.Get(ctx, "active")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if entry == nil {
		t.Fatalf("expected active entry to survive sweep")
	}
}

func TestDenylistSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	denylist := NewDenylist(DenylistOptions{})
	denylist.WithClock(func() time.Time { return base })

	if err := denylist.Put(ctx, "snapshot-jti", "", 5*time.Minute); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	snapshot, err := denylist.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}
	if snapshot == nil || len(snapshot.Payload) == 0 {
		t.Fatalf("expected snapshot payload to be populated")
	}
	if snapshot.Checksum == "" || snapshot.SnapshotID == "" {
		t.Fatalf("expected snapshot id and checksum, got %+v", snapshot)
	}

	restored := NewDenylist(DenylistOptions{})
	if err := restored.RestoreSnapshot(ctx, *snapshot); err != nil {
		t.Fatalf("RestoreSnapshot returned error: %v", err)
	}

	restored.WithClock(func() time.Time { return base.Add(2 * time.Minute) })
	entry, err := restored.Get(ctx, "snapshot-jti")
	if err != nil {
		t.Fatalf("Get on restored denylist returned error: %v", err)
	}
	if entry == nil {
		t.Fatalf("expected restored denylist to contain key from snapshot")
	}
}

func TestDenylistDeleteMatching(t *testing.T) {
	ctx := context.Background()
	denylist := NewDenylist(DenylistOptions{})

	for _, key := range []string{"sess:1", "sess:2", "jti-1"} {
		if err := denylist.Put(ctx, key, "", time.Hour); err != nil {
			t.Fatalf("Put %s returned error: %v", key, err)
		}
	}

	if err := denylist.DeleteMatching(ctx, "sess:*"); err != nil {
		t.Fatalf("DeleteMatching returned error: %v", err)
	}
	if denylist.Size() != 1 {
		t.Fatalf("expected only jti-1 to remain, size %d", denylist.Size())
	}
}
