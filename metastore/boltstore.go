package metastore

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/bucketmesh/bucketd/bucket"
	"github.com/bucketmesh/bucketd/codec"
	"github.com/bucketmesh/bucketd/identity"
)

var (
	bktBuckets = []byte("buckets")
	bktPeers   = []byte("bucket_peers")
)

// BoltStore is a Store backed by a bbolt database, one bucket per kind,
// values gob-encoded.
type BoltStore struct {
	db *bbolt.DB
}

var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath, creating
// its parent directory if necessary.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("metastore: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("metastore: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bktBuckets, bktPeers} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("metastore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("metastore: create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (s *BoltStore) UpsertBucket(rec BucketRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bktBuckets)
		if raw := b.Get(rec.ID[:]); raw != nil && rec.CreatedAt.IsZero() {
			var existing BucketRecord
			if err := decodeGob(raw, &existing); err != nil {
				return fmt.Errorf("metastore: decode existing bucket: %w", err)
			}
			rec.CreatedAt = existing.CreatedAt
		}

		data, err := encodeGob(rec)
		if err != nil {
			return fmt.Errorf("metastore: encode bucket: %w", err)
		}
		return b.Put(rec.ID[:], data)
	})
}

func (s *BoltStore) GetBucket(id bucket.ID) (BucketRecord, error) {
	var rec BucketRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bktBuckets).Get(id[:])
		if raw == nil {
			return ErrNotFound
		}
		return decodeGob(raw, &rec)
	})
	if err != nil {
		return BucketRecord{}, err
	}
	return rec, nil
}

func (s *BoltStore) ListBuckets() ([]BucketRecord, error) {
	var out []BucketRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bktBuckets).ForEach(func(_, raw []byte) error {
			var rec BucketRecord
			if err := decodeGob(raw, &rec); err != nil {
				return fmt.Errorf("metastore: decode bucket: %w", err)
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) AdvanceCursor(id bucket.ID, oldLink, newLink codec.Link) (bool, error) {
	var swapped bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bktBuckets)
		raw := b.Get(id[:])
		if raw == nil {
			return ErrNotFound
		}
		var rec BucketRecord
		if err := decodeGob(raw, &rec); err != nil {
			return fmt.Errorf("metastore: decode bucket: %w", err)
		}
		if !rec.CurrentLink.Equal(oldLink) {
			return nil
		}
		rec.CurrentLink = newLink
		data, err := encodeGob(rec)
		if err != nil {
			return fmt.Errorf("metastore: encode bucket: %w", err)
		}
		if err := b.Put(id[:], data); err != nil {
			return err
		}
		swapped = true
		return nil
	})
	return swapped, err
}

func (s *BoltStore) getPeerSet(tx *bbolt.Tx, id bucket.ID) (map[identity.PublicKey]struct{}, error) {
	raw := tx.Bucket(bktPeers).Get(id[:])
	set := make(map[identity.PublicKey]struct{})
	if raw == nil {
		return set, nil
	}
	var list []identity.PublicKey
	if err := decodeGob(raw, &list); err != nil {
		return nil, fmt.Errorf("metastore: decode peers: %w", err)
	}
	for _, p := range list {
		set[p] = struct{}{}
	}
	return set, nil
}

func (s *BoltStore) putPeerSet(tx *bbolt.Tx, id bucket.ID, set map[identity.PublicKey]struct{}) error {
	list := make([]identity.PublicKey, 0, len(set))
	for p := range set {
		list = append(list, p)
	}
	data, err := encodeGob(list)
	if err != nil {
		return fmt.Errorf("metastore: encode peers: %w", err)
	}
	return tx.Bucket(bktPeers).Put(id[:], data)
}

func (s *BoltStore) ListPeers(id bucket.ID) ([]identity.PublicKey, error) {
	var out []identity.PublicKey
	err := s.db.View(func(tx *bbolt.Tx) error {
		set, err := s.getPeerSet(tx, id)
		if err != nil {
			return err
		}
		for p := range set {
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) AddPeer(id bucket.ID, peer identity.PublicKey) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		set, err := s.getPeerSet(tx, id)
		if err != nil {
			return err
		}
		set[peer] = struct{}{}
		return s.putPeerSet(tx, id, set)
	})
}

func (s *BoltStore) RemovePeer(id bucket.ID, peer identity.PublicKey) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		set, err := s.getPeerSet(tx, id)
		if err != nil {
			return err
		}
		delete(set, peer)
		return s.putPeerSet(tx, id, set)
	})
}

func (s *BoltStore) RecordSyncStatus(id bucket.ID, status SyncStatus, now time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bktBuckets)
		raw := b.Get(id[:])
		if raw == nil {
			return ErrNotFound
		}
		var rec BucketRecord
		if err := decodeGob(raw, &rec); err != nil {
			return fmt.Errorf("metastore: decode bucket: %w", err)
		}
		rec.LastStatus = status
		if status == StatusSynced {
			rec.SyncedAt = now
		}
		data, err := encodeGob(rec)
		if err != nil {
			return fmt.Errorf("metastore: encode bucket: %w", err)
		}
		return b.Put(id[:], data)
	})
}
