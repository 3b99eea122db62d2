// Package sync implements the bucket sync manager: multi-hop chain
// verification, and the pull, push, and announce-in flows built on top of
// it. Cursor mutations for a given bucket are serialized by a per-bucket
// mutex so that the metadata store's compare-and-swap remains the sole
// linearization point for cursor progress.
package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/bucketmesh/bucketd/blob"
	"github.com/bucketmesh/bucketd/bucket"
	"github.com/bucketmesh/bucketd/codec"
	"github.com/bucketmesh/bucketd/identity"
	"github.com/bucketmesh/bucketd/metastore"
	"github.com/bucketmesh/bucketd/peer"
)

// MaxHistoryDepth bounds how many manifests multi-hop verification will
// walk before giving up.
const MaxHistoryDepth = 100

// PeerClient is the narrow peer-protocol surface the sync manager drives.
// *peer.Client satisfies it; tests may supply a stub.
type PeerClient interface {
	Ping(ctx context.Context, remote identity.PublicKey, id bucket.ID, currentLink codec.Link) (peer.Status, error)
	FetchBucket(ctx context.Context, remote identity.PublicKey, id bucket.ID) (codec.Link, error)
	Announce(ctx context.Context, remote identity.PublicKey, id bucket.ID, newLink, previousLink codec.Link) error
}

var _ PeerClient = (*peer.Client)(nil)

// Manager owns the local cursor for every bucket it tracks and drives
// pull, push, and inbound announce handling.
type Manager struct {
	Resolver *blob.Resolver
	Meta     metastore.Store
	Peers    PeerClient

	mu    stdsync.Mutex
	locks map[bucket.ID]*stdsync.Mutex
}

// NewManager returns a Manager wired to resolver for content, meta for
// bucket state, and peers for the wire protocol.
func NewManager(resolver *blob.Resolver, meta metastore.Store, peers PeerClient) *Manager {
	return &Manager{
		Resolver: resolver,
		Meta:     meta,
		Peers:    peers,
		locks:    make(map[bucket.ID]*stdsync.Mutex),
	}
}

func (mgr *Manager) lockFor(id bucket.ID) *stdsync.Mutex {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	l, ok := mgr.locks[id]
	if !ok {
		l = &stdsync.Mutex{}
		mgr.locks[id] = l
	}
	return l
}

// verifyMultiHop walks the remote's previous-link chain starting at
// newLink until it either reaches curLink (success, returning the
// depth-0 manifest that was cached on the first fetch) or exhausts
// MaxHistoryDepth. Every fetch is restricted to remote.
func (mgr *Manager) verifyMultiHop(ctx context.Context, remote identity.PublicKey, id bucket.ID, newLink, curLink codec.Link) (bucket.Manifest, int, error) {
	cursor := newLink
	var cached bucket.Manifest
	haveCached := false

	for depth := 0; depth < MaxHistoryDepth; depth++ {
		if err := ctx.Err(); err != nil {
			return bucket.Manifest{}, depth, fmt.Errorf("sync: verify: %w", err)
		}

		raw, err := mgr.Resolver.GetFrom(ctx, cursor, remote)
		if err != nil {
			return bucket.Manifest{}, depth, fmt.Errorf("sync: verify: fetch manifest: %w", err)
		}
		man, err := bucket.DecodeManifest(raw)
		if err != nil {
			return bucket.Manifest{}, depth, fmt.Errorf("sync: verify: decode manifest: %w", err)
		}
		if !haveCached {
			cached = man
			haveCached = true
		}

		if man.ID != id {
			return cached, depth, ErrFork
		}
		if !man.HasPrevious() {
			return cached, depth, ErrFork
		}
		if man.Previous.Equal(curLink) {
			return cached, depth, nil
		}
		cursor = man.Previous
	}

	return cached, MaxHistoryDepth, ErrDepthExceeded
}

// ComputeStatus answers a Ping: it compares the local cursor for id
// against callerLink and reports this node's position relative to the
// caller the way §4.7 defines it. An unknown bucket or a caller with nothing yields
// NotFound/Ahead respectively without touching storage further; otherwise
// it walks the local chain backward looking for callerLink (responder
// ahead), then, only if that fails, walks callerLink's chain backward
// from remote looking for the local cursor (responder behind). A
// divergent or unreachable-within-bound link falls back to NotFound.
func (mgr *Manager) ComputeStatus(ctx context.Context, remote identity.PublicKey, id bucket.ID, callerLink codec.Link) (peer.Status, error) {
	rec, err := mgr.Meta.GetBucket(id)
	if err != nil {
		if errors.Is(err, metastore.ErrNotFound) {
			return peer.StatusNotFound, nil
		}
		return peer.StatusNotFound, fmt.Errorf("sync: status: %w", err)
	}

	if callerLink.Equal(codec.Link{}) {
		return peer.StatusAhead, nil
	}
	if callerLink.Equal(rec.CurrentLink) {
		return peer.StatusInSync, nil
	}

	ahead, err := mgr.walkHistory(ctx, identity.PublicKey{}, rec.CurrentLink, callerLink)
	if err != nil {
		return peer.StatusNotFound, fmt.Errorf("sync: status: %w", err)
	}
	if ahead {
		return peer.StatusAhead, nil
	}

	behind, err := mgr.walkHistory(ctx, remote, callerLink, rec.CurrentLink)
	if err != nil {
		return peer.StatusNotFound, fmt.Errorf("sync: status: %w", err)
	}
	if behind {
		return peer.StatusBehind, nil
	}

	return peer.StatusNotFound, nil
}

// walkHistory walks backward from start looking for target within
// MaxHistoryDepth hops. A zero remote restricts fetches to local storage;
// a non-zero remote fetches from it. A local miss or decode failure ends
// the walk with a negative result rather than an error: the caller only
// needs to know whether target is reachable, not why it isn't.
func (mgr *Manager) walkHistory(ctx context.Context, remote identity.PublicKey, start, target codec.Link) (bool, error) {
	cursor := start
	for depth := 0; depth < MaxHistoryDepth; depth++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		var raw []byte
		var err error
		if remote == (identity.PublicKey{}) {
			raw, err = mgr.Resolver.Get(cursor)
		} else {
			raw, err = mgr.Resolver.GetFrom(ctx, cursor, remote)
		}
		if err != nil {
			return false, nil
		}

		man, err := bucket.DecodeManifest(raw)
		if err != nil {
			return false, nil
		}
		if !man.HasPrevious() {
			return false, nil
		}
		if man.Previous.Equal(target) {
			return true, nil
		}
		cursor = man.Previous
	}
	return false, nil
}

// verifyAndApply runs multi-hop verification, the provenance check, and
// apply, in that order, for a claimed update to newLink from a bucket
// currently at curLink.
func (mgr *Manager) verifyAndApply(ctx context.Context, remote identity.PublicKey, id bucket.ID, curLink, newLink codec.Link) error {
	manifest, _, err := mgr.verifyMultiHop(ctx, remote, id, newLink, curLink)
	if err != nil {
		return err
	}

	if _, ok := manifest.Shares[remote]; !ok {
		return ErrUnauthorized
	}

	if _, err := mgr.Resolver.GetSequence(ctx, manifest.Pins, remote); err != nil {
		return fmt.Errorf("sync: apply: ensure pins available: %w", err)
	}

	swapped, err := mgr.Meta.AdvanceCursor(id, curLink, bucket.Hash(manifest))
	if err != nil {
		return fmt.Errorf("sync: apply: %w", err)
	}
	if !swapped {
		return metastore.ErrConflict
	}

	return mgr.Meta.RecordSyncStatus(id, metastore.StatusSynced, time.Now())
}

type pingResult struct {
	peer   identity.PublicKey
	status peer.Status
	err    error
}

// findAheadPeer pings every candidate in parallel and returns the first
// one that reports StatusAhead.
func (mgr *Manager) findAheadPeer(ctx context.Context, peers []identity.PublicKey, id bucket.ID, currentLink codec.Link) (identity.PublicKey, bool) {
	if len(peers) == 0 {
		return identity.PublicKey{}, false
	}

	results := make(chan pingResult, len(peers))
	for _, p := range peers {
		p := p
		go func() {
			status, err := mgr.Peers.Ping(ctx, p, id, currentLink)
			results <- pingResult{peer: p, status: status, err: err}
		}()
	}

	for i := 0; i < len(peers); i++ {
		r := <-results
		if r.err == nil && r.status == peer.StatusAhead {
			return r.peer, true
		}
	}
	return identity.PublicKey{}, false
}

// Pull enumerates id's known peers, pings them for the first that is
// Ahead, and if one is found, fetches, verifies, and applies its update.
// It does not fall back to a different peer within the same call; a
// failure here is reported to the caller and recorded to the metadata
// store, and a later Pull may retry against a different peer.
func (mgr *Manager) Pull(ctx context.Context, id bucket.ID) error {
	lock := mgr.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	rec, err := mgr.Meta.GetBucket(id)
	if err != nil {
		return fmt.Errorf("sync: pull: %w", err)
	}

	peers, err := mgr.Meta.ListPeers(id)
	if err != nil {
		return fmt.Errorf("sync: pull: %w", err)
	}

	remote, ok := mgr.findAheadPeer(ctx, peers, id, rec.CurrentLink)
	if !ok {
		return ErrNoPeerAhead
	}

	newLink, err := mgr.Peers.FetchBucket(ctx, remote, id)
	if err != nil {
		_ = mgr.Meta.RecordSyncStatus(id, metastore.StatusFailed, time.Now())
		return fmt.Errorf("sync: pull: fetch bucket: %w", err)
	}

	if err := mgr.verifyAndApply(ctx, remote, id, rec.CurrentLink, newLink); err != nil {
		_ = mgr.Meta.RecordSyncStatus(id, metastore.StatusFailed, time.Now())
		return fmt.Errorf("sync: pull: %w", err)
	}
	return nil
}

// Push announces newManifest's advance to every known peer of its bucket
// in parallel. Individual announce failures are ignored; there is no
// retry and no acknowledgement to wait for.
func (mgr *Manager) Push(ctx context.Context, id bucket.ID, newManifest bucket.Manifest) error {
	lock := mgr.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	peers, err := mgr.Meta.ListPeers(id)
	if err != nil {
		return fmt.Errorf("sync: push: %w", err)
	}

	newLink := bucket.Hash(newManifest)
	previousLink := newManifest.Previous

	var wg stdsync.WaitGroup
	for _, p := range peers {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mgr.Peers.Announce(ctx, p, id, newLink, previousLink)
		}()
	}
	wg.Wait()
	return nil
}

// HandleAnnounce processes an inbound Announce from remote. If the bucket
// is unknown locally and remote is named in the announced manifest's
// shares, it bootstraps a new local record; otherwise it runs the same
// verify-provenance-apply sequence as Pull. The announce message's
// previous_link is not consulted: multi-hop verification reads each
// manifest's own previous field directly off fetched content, so the
// hint carries no information this handler needs.
func (mgr *Manager) HandleAnnounce(ctx context.Context, remote identity.PublicKey, id bucket.ID, newLink codec.Link) error {
	lock := mgr.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	rec, err := mgr.Meta.GetBucket(id)
	if err != nil {
		if !errors.Is(err, metastore.ErrNotFound) {
			return fmt.Errorf("sync: announce: %w", err)
		}
		return mgr.bootstrap(ctx, remote, id, newLink)
	}

	if err := mgr.verifyAndApply(ctx, remote, id, rec.CurrentLink, newLink); err != nil {
		_ = mgr.Meta.RecordSyncStatus(id, metastore.StatusFailed, time.Now())
		return fmt.Errorf("sync: announce: %w", err)
	}
	return nil
}

// bootstrap creates a local record for a bucket this node has never seen,
// on the strength of an Announce from a peer that the announced
// manifest's shares actually name.
func (mgr *Manager) bootstrap(ctx context.Context, remote identity.PublicKey, id bucket.ID, newLink codec.Link) error {
	raw, err := mgr.Resolver.GetFrom(ctx, newLink, remote)
	if err != nil {
		return fmt.Errorf("sync: bootstrap: fetch manifest: %w", err)
	}
	manifest, err := bucket.DecodeManifest(raw)
	if err != nil {
		return fmt.Errorf("sync: bootstrap: decode manifest: %w", err)
	}
	if manifest.ID != id {
		return fmt.Errorf("%w: announced manifest id mismatch", ErrFork)
	}
	if _, ok := manifest.Shares[remote]; !ok {
		return ErrUnauthorized
	}

	if err := mgr.Meta.UpsertBucket(metastore.BucketRecord{
		ID:        id,
		Name:      manifest.Name,
		CreatedAt: time.Now(),
	}); err != nil {
		return fmt.Errorf("sync: bootstrap: %w", err)
	}
	if err := mgr.Meta.AddPeer(id, remote); err != nil {
		return fmt.Errorf("sync: bootstrap: %w", err)
	}

	// Best-effort: bootstrap still succeeds even if the peer cannot
	// supply the full pins sequence right now.
	_, _ = mgr.Resolver.GetSequence(ctx, manifest.Pins, remote)

	if _, err := mgr.Meta.AdvanceCursor(id, codec.Link{}, bucket.Hash(manifest)); err != nil {
		return fmt.Errorf("sync: bootstrap: %w", err)
	}
	return mgr.Meta.RecordSyncStatus(id, metastore.StatusSynced, time.Now())
}
