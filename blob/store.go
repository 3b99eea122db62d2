// Package blob implements the content-addressed blob transport the bucket
// core consumes: local storage by hash, and fetch-from-peer with hash
// verification, built on top of it.
package blob

import "github.com/bucketmesh/bucketd/codec"

// Store is local, content-addressed storage. Put is idempotent: inserting
// the same bytes twice returns the same Link both times and performs at
// most one write.
type Store interface {
	// Put stores data and returns the Link addressing it under format.
	Put(data []byte, format codec.Format) (codec.Link, error)

	// Get retrieves previously stored content by hash.
	Get(hash codec.Hash) ([]byte, error)

	// Has reports whether content exists for hash.
	Has(hash codec.Hash) (bool, error)

	// Delete removes content by hash.
	Delete(hash codec.Hash) error

	// Size returns the size in bytes of stored content for hash.
	Size(hash codec.Hash) (int64, error)

	// List returns every hash currently stored (for backup/export).
	List() ([]codec.Hash, error)
}
