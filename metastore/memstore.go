package metastore

import (
	"sync"
	"time"

	"github.com/bucketmesh/bucketd/bucket"
	"github.com/bucketmesh/bucketd/codec"
	"github.com/bucketmesh/bucketd/identity"
)

// MemStore is an in-memory Store, for tests and for single-process use
// where durability is not required.
type MemStore struct {
	mu      sync.RWMutex
	buckets map[bucket.ID]BucketRecord
	peers   map[bucket.ID]map[identity.PublicKey]struct{}
}

// compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		buckets: make(map[bucket.ID]BucketRecord),
		peers:   make(map[bucket.ID]map[identity.PublicKey]struct{}),
	}
}

func (s *MemStore) UpsertBucket(rec BucketRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.buckets[rec.ID]; ok && rec.CreatedAt.IsZero() {
		rec.CreatedAt = existing.CreatedAt
	}
	s.buckets[rec.ID] = rec
	return nil
}

func (s *MemStore) GetBucket(id bucket.ID) (BucketRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.buckets[id]
	if !ok {
		return BucketRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemStore) ListBuckets() ([]BucketRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]BucketRecord, 0, len(s.buckets))
	for _, rec := range s.buckets {
		out = append(out, rec)
	}
	return out, nil
}

func (s *MemStore) AdvanceCursor(id bucket.ID, oldLink, newLink codec.Link) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.buckets[id]
	if !ok {
		return false, ErrNotFound
	}
	if !rec.CurrentLink.Equal(oldLink) {
		return false, nil
	}
	rec.CurrentLink = newLink
	s.buckets[id] = rec
	return true, nil
}

func (s *MemStore) ListPeers(id bucket.ID) ([]identity.PublicKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.peers[id]
	out := make([]identity.PublicKey, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out, nil
}

func (s *MemStore) AddPeer(id bucket.ID, peer identity.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.peers[id]
	if !ok {
		set = make(map[identity.PublicKey]struct{})
		s.peers[id] = set
	}
	set[peer] = struct{}{}
	return nil
}

func (s *MemStore) RemovePeer(id bucket.ID, peer identity.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if set, ok := s.peers[id]; ok {
		delete(set, peer)
	}
	return nil
}

func (s *MemStore) RecordSyncStatus(id bucket.ID, status SyncStatus, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.buckets[id]
	if !ok {
		return ErrNotFound
	}
	rec.LastStatus = status
	if status == StatusSynced {
		rec.SyncedAt = now
	}
	s.buckets[id] = rec
	return nil
}

func (s *MemStore) Close() error { return nil }
