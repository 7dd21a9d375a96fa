package domain

import "time"

// DenylistSnapshot is a serialised copy of the membership tier, persisted so a
// restarted instance warm-starts with its denylist intact.
type DenylistSnapshot struct {
	SnapshotID  string
	GeneratedAt time.Time
	Payload     []byte
	Checksum    string
}
