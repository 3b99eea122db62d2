package blob

import (
	"context"
	"fmt"

	"github.com/bucketmesh/bucketd/bucket"
	"github.com/bucketmesh/bucketd/codec"
	"github.com/bucketmesh/bucketd/identity"
)

// PeerFetcher is the narrow remote-fetch surface Resolver needs from the
// peer transport: retrieve the bytes addressed by hash from a specific,
// already-authenticated peer. HTTPFetcher in this package implements it
// over HTTP.
type PeerFetcher interface {
	FetchBlob(ctx context.Context, peer identity.PublicKey, hash codec.Hash) ([]byte, error)
}

// Resolver fetches content by Link from local storage first, falling back
// to a specific remote peer when the caller supplies one. It implements
// the four blob transport operations the bucket core consumes: get,
// get_from, get_sequence, and (via Store) put.
type Resolver struct {
	Store  Store
	Fetchr PeerFetcher
}

// NewResolver returns a Resolver backed by store that uses fetcher for
// remote reads; callers that only need local-first reads may pass a nil
// fetcher, in which case GetFrom and GetSequence fail with
// ErrTransportFailure once the local store misses.
func NewResolver(store Store, fetcher PeerFetcher) *Resolver {
	return &Resolver{Store: store, Fetchr: fetcher}
}

// Get retrieves the bytes addressed by link from local storage only.
func (r *Resolver) Get(link codec.Link) ([]byte, error) {
	data, err := r.Store.Get(link.Hash)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// GetFrom retrieves the bytes addressed by link, trying local storage
// first and falling back to peer. A remote response is verified against
// link.Hash before being trusted and cached; a mismatch is discarded and
// reported as ErrHashMismatch without touching local storage.
func (r *Resolver) GetFrom(ctx context.Context, link codec.Link, peer identity.PublicKey) ([]byte, error) {
	data, err := r.Store.Get(link.Hash)
	if err == nil {
		return data, nil
	}
	if err != ErrNotFound {
		return nil, fmt.Errorf("blob: resolver: local store: %w", err)
	}

	if r.Fetchr == nil {
		return nil, ErrTransportFailure
	}
	remote, err := r.Fetchr.FetchBlob(ctx, peer, link.Hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransportFailure, err)
	}

	actual := codec.SumHash(remote)
	if actual != link.Hash {
		return nil, ErrHashMismatch
	}

	// Best-effort cache; the fetch itself already succeeded.
	_, _ = r.Store.Put(remote, link.Format)
	return remote, nil
}

// GetSequence fetches the ordered hash-sequence blob addressed by link,
// decodes it, and fetches every enumerated blob in ascending order,
// restricting all remote fetches to peer.
func (r *Resolver) GetSequence(ctx context.Context, link codec.Link, peer identity.PublicKey) ([][]byte, error) {
	seqBytes, err := r.GetFrom(ctx, link, peer)
	if err != nil {
		return nil, err
	}
	pins, err := bucket.DecodeSeq(seqBytes)
	if err != nil {
		return nil, err
	}

	out := make([][]byte, 0, len(pins.Hashes))
	for _, h := range pins.Sorted() {
		data, err := r.GetFrom(ctx, codec.Link{Codec: codec.StructuredV1, Hash: h, Format: codec.FormatBlob}, peer)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}
