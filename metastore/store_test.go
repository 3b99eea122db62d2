package metastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bucketmesh/bucketd/bucket"
	"github.com/bucketmesh/bucketd/codec"
	"github.com/bucketmesh/bucketd/identity"
)

func tempBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	dir := t.TempDir()
	store, err := OpenBoltStore(filepath.Join(dir, "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// withEachStore runs fn against a fresh MemStore and a fresh BoltStore, so
// every conformance test exercises both implementations identically.
func withEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("MemStore", func(t *testing.T) { fn(t, NewMemStore()) })
	t.Run("BoltStore", func(t *testing.T) { fn(t, tempBoltStore(t)) })
}

func sampleID(seed byte) bucket.ID {
	var id bucket.ID
	for i := range id {
		id[i] = seed
	}
	return id
}

func samplePeer(t *testing.T) identity.PublicKey {
	t.Helper()
	_, pub, err := identity.Generate()
	require.NoError(t, err)
	return pub
}

func TestStore_UpsertAndGetBucket(t *testing.T) {
	withEachStore(t, func(t *testing.T, s Store) {
		id := sampleID(1)
		created := time.Now().Truncate(time.Second)
		rec := BucketRecord{ID: id, Name: "photos", CreatedAt: created}

		require.NoError(t, s.UpsertBucket(rec))

		got, err := s.GetBucket(id)
		require.NoError(t, err)
		assert.Equal(t, "photos", got.Name)
		assert.True(t, got.CreatedAt.Equal(created))
	})
}

func TestStore_GetBucket_MissingIsNotFound(t *testing.T) {
	withEachStore(t, func(t *testing.T, s Store) {
		_, err := s.GetBucket(sampleID(9))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_Upsert_PreservesCreatedAtOnUpdate(t *testing.T) {
	withEachStore(t, func(t *testing.T, s Store) {
		id := sampleID(2)
		created := time.Now().Add(-time.Hour).Truncate(time.Second)
		require.NoError(t, s.UpsertBucket(BucketRecord{ID: id, Name: "a", CreatedAt: created}))

		require.NoError(t, s.UpsertBucket(BucketRecord{ID: id, Name: "b"}))

		got, err := s.GetBucket(id)
		require.NoError(t, err)
		assert.Equal(t, "b", got.Name)
		assert.True(t, got.CreatedAt.Equal(created))
	})
}

func TestStore_ListBuckets(t *testing.T) {
	withEachStore(t, func(t *testing.T, s Store) {
		require.NoError(t, s.UpsertBucket(BucketRecord{ID: sampleID(1), Name: "a"}))
		require.NoError(t, s.UpsertBucket(BucketRecord{ID: sampleID(2), Name: "b"}))

		recs, err := s.ListBuckets()
		require.NoError(t, err)
		assert.Len(t, recs, 2)
	})
}

func TestStore_AdvanceCursor_SucceedsOnMatch(t *testing.T) {
	withEachStore(t, func(t *testing.T, s Store) {
		id := sampleID(3)
		oldLink := codec.LinkFor([]byte("v1"), codec.FormatBlob)
		newLink := codec.LinkFor([]byte("v2"), codec.FormatBlob)
		require.NoError(t, s.UpsertBucket(BucketRecord{ID: id, CurrentLink: oldLink}))

		swapped, err := s.AdvanceCursor(id, oldLink, newLink)
		require.NoError(t, err)
		assert.True(t, swapped)

		got, err := s.GetBucket(id)
		require.NoError(t, err)
		assert.True(t, got.CurrentLink.Equal(newLink))
	})
}

func TestStore_AdvanceCursor_FailsOnMismatch(t *testing.T) {
	withEachStore(t, func(t *testing.T, s Store) {
		id := sampleID(4)
		actual := codec.LinkFor([]byte("actual"), codec.FormatBlob)
		stale := codec.LinkFor([]byte("stale"), codec.FormatBlob)
		newLink := codec.LinkFor([]byte("new"), codec.FormatBlob)
		require.NoError(t, s.UpsertBucket(BucketRecord{ID: id, CurrentLink: actual}))

		swapped, err := s.AdvanceCursor(id, stale, newLink)
		require.NoError(t, err)
		assert.False(t, swapped)

		got, err := s.GetBucket(id)
		require.NoError(t, err)
		assert.True(t, got.CurrentLink.Equal(actual), "unchanged on failed CAS")
	})
}

func TestStore_AdvanceCursor_MissingBucketIsNotFound(t *testing.T) {
	withEachStore(t, func(t *testing.T, s Store) {
		_, err := s.AdvanceCursor(sampleID(5), codec.Link{}, codec.Link{})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_PeerLifecycle(t *testing.T) {
	withEachStore(t, func(t *testing.T, s Store) {
		id := sampleID(6)
		p1, p2 := samplePeer(t), samplePeer(t)

		require.NoError(t, s.AddPeer(id, p1))
		require.NoError(t, s.AddPeer(id, p2))
		require.NoError(t, s.AddPeer(id, p1)) // idempotent

		peers, err := s.ListPeers(id)
		require.NoError(t, err)
		assert.ElementsMatch(t, []identity.PublicKey{p1, p2}, peers)

		require.NoError(t, s.RemovePeer(id, p1))
		peers, err = s.ListPeers(id)
		require.NoError(t, err)
		assert.Equal(t, []identity.PublicKey{p2}, peers)
	})
}

func TestStore_ListPeers_UnknownBucketIsEmpty(t *testing.T) {
	withEachStore(t, func(t *testing.T, s Store) {
		peers, err := s.ListPeers(sampleID(7))
		require.NoError(t, err)
		assert.Empty(t, peers)
	})
}

func TestStore_RecordSyncStatus(t *testing.T) {
	withEachStore(t, func(t *testing.T, s Store) {
		id := sampleID(8)
		require.NoError(t, s.UpsertBucket(BucketRecord{ID: id}))

		now := time.Now().Truncate(time.Second)
		require.NoError(t, s.RecordSyncStatus(id, StatusSynced, now))

		got, err := s.GetBucket(id)
		require.NoError(t, err)
		assert.Equal(t, StatusSynced, got.LastStatus)
		assert.True(t, got.SyncedAt.Equal(now))
	})
}

func TestStore_RecordSyncStatus_FailedDoesNotTouchSyncedAt(t *testing.T) {
	withEachStore(t, func(t *testing.T, s Store) {
		id := sampleID(9)
		earlier := time.Now().Add(-time.Hour).Truncate(time.Second)
		require.NoError(t, s.UpsertBucket(BucketRecord{ID: id, SyncedAt: earlier, LastStatus: StatusSynced}))

		require.NoError(t, s.RecordSyncStatus(id, StatusFailed, time.Now()))

		got, err := s.GetBucket(id)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, got.LastStatus)
		assert.True(t, got.SyncedAt.Equal(earlier))
	})
}

func TestStore_RecordSyncStatus_MissingBucketIsNotFound(t *testing.T) {
	withEachStore(t, func(t *testing.T, s Store) {
		err := s.RecordSyncStatus(sampleID(10), StatusFailed, time.Now())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSyncStatus_String(t *testing.T) {
	assert.Equal(t, "unknown", StatusUnknown.String())
	assert.Equal(t, "syncing", StatusSyncing.String())
	assert.Equal(t, "synced", StatusSynced.String())
	assert.Equal(t, "failed", StatusFailed.String())
}
