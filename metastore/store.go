// Package metastore persists the local view of every bucket a peer
// tracks: its current cursor, the peers known to carry it, and the
// outcome of the last sync attempt. It never inspects manifest or Node
// content; the sync manager treats it as a plain key-value surface with
// one compare-and-swap primitive for advancing a bucket's cursor.
package metastore

import (
	"time"

	"github.com/bucketmesh/bucketd/bucket"
	"github.com/bucketmesh/bucketd/codec"
	"github.com/bucketmesh/bucketd/identity"
)

// SyncStatus records the outcome of the most recent sync attempt for a
// bucket.
type SyncStatus int

const (
	// StatusUnknown is the zero value: no sync attempt has been recorded.
	StatusUnknown SyncStatus = iota

	// StatusSyncing marks a sync attempt as currently in flight.
	StatusSyncing

	// StatusSynced marks the bucket's cursor as having been advanced or
	// confirmed up to date by the most recent attempt.
	StatusSynced

	// StatusFailed marks the most recent attempt as having been rejected
	// (Fork, DepthExceeded, Unauthorized, or a transport failure).
	StatusFailed
)

// String returns a human-readable name for s.
func (s SyncStatus) String() string {
	switch s {
	case StatusSyncing:
		return "syncing"
	case StatusSynced:
		return "synced"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// BucketRecord is the metadata store's view of one bucket.
type BucketRecord struct {
	ID          bucket.ID
	Name        string
	CurrentLink codec.Link
	CreatedAt   time.Time
	SyncedAt    time.Time
	LastStatus  SyncStatus
}

// Store is the metadata store's key-value surface. Implementations must
// serialize (read cursor, verify, advance cursor) per bucket at the
// caller's discretion; AdvanceCursor's compare-and-swap is the sole
// linearization point for cursor progress, so a caller that always reads
// the current record immediately before calling AdvanceCursor is safe
// without any additional locking on the store's part.
type Store interface {
	// UpsertBucket inserts rec or overwrites the existing record for
	// rec.ID with it, whichever applies. CreatedAt is preserved from any
	// existing record; callers should only set it when creating a bucket
	// for the first time.
	UpsertBucket(rec BucketRecord) error

	// GetBucket returns the record for id, or ErrNotFound.
	GetBucket(id bucket.ID) (BucketRecord, error)

	// ListBuckets returns every tracked bucket's record, in no
	// particular order.
	ListBuckets() ([]BucketRecord, error)

	// AdvanceCursor atomically sets id's current link to newLink if and
	// only if its current link presently equals oldLink, and reports
	// whether the swap took place. A record must already exist for id.
	AdvanceCursor(id bucket.ID, oldLink, newLink codec.Link) (bool, error)

	// ListPeers returns the peers known to carry id, in no particular
	// order.
	ListPeers(id bucket.ID) ([]identity.PublicKey, error)

	// AddPeer records that peer is known to carry id. Idempotent.
	AddPeer(id bucket.ID, peer identity.PublicKey) error

	// RemovePeer forgets that peer carries id. Idempotent.
	RemovePeer(id bucket.ID, peer identity.PublicKey) error

	// RecordSyncStatus updates id's last sync status and, for
	// StatusSynced, its SyncedAt timestamp to now.
	RecordSyncStatus(id bucket.ID, status SyncStatus, now time.Time) error

	// Close releases any resources held by the store.
	Close() error
}
