// Package vaultfs implements the bucket operations a mounted bucket
// exposes to callers: create, insert, lookup, list, and grant. Every
// operation is a pure function from a Manifest (plus the blob store and,
// where needed, the entry-secret) to a new Manifest; none of them mutate
// or announce anything by themselves. Advancing a bucket's local cursor to
// the returned Manifest, and announcing it to peers, are the caller's
// responsibility (see packages metastore and sync).
package vaultfs

import (
	"crypto/rand"
	"fmt"

	"github.com/bucketmesh/bucketd/blob"
	"github.com/bucketmesh/bucketd/bucket"
	"github.com/bucketmesh/bucketd/codec"
	"github.com/bucketmesh/bucketd/content"
	"github.com/bucketmesh/bucketd/identity"
	"github.com/bucketmesh/bucketd/keyshare"
)

// storeGetter adapts blob.Store's hash-keyed Get to bucket.BlobGetter's
// link-keyed interface.
type storeGetter struct{ store blob.Store }

func (g storeGetter) Get(link codec.Link) ([]byte, error) { return g.store.Get(link.Hash) }

// putManifest stores m's canonical encoding as a blob and returns its
// Link, which by construction equals bucket.Hash(m).
func putManifest(store blob.Store, m bucket.Manifest) (codec.Link, error) {
	link, err := store.Put(bucket.Encode(m), codec.FormatBlob)
	if err != nil {
		return codec.Link{}, fmt.Errorf("vaultfs: store manifest: %w", err)
	}
	return link, nil
}

// putPins builds and stores the pins hash-sequence for m (whose Entry must
// already be written to store), returning the Link to record as m.Pins.
func putPins(store blob.Store, m bucket.Manifest, entrySecret content.Secret) (codec.Link, error) {
	pins, err := bucket.Build(m, entrySecret, storeGetter{store})
	if err != nil {
		return codec.Link{}, fmt.Errorf("vaultfs: build pins: %w", err)
	}
	if _, err := store.Put(bucket.EncodeSeq(pins), codec.FormatHashSeq); err != nil {
		return codec.Link{}, fmt.Errorf("vaultfs: store pins: %w", err)
	}
	return bucket.PinsLink(pins), nil
}

// Create initializes a new, empty bucket named name, owned by owner. It
// draws a fresh entry-secret, writes an empty encrypted root Node, wraps
// the entry-secret for owner, and computes and stores pins. The returned
// entry-secret must be retained by the caller (typically persisted, itself
// encrypted, alongside the bucket's local state) to perform any further
// operation on the bucket.
func Create(store blob.Store, name string, owner identity.PublicKey) (bucket.Manifest, content.Secret, error) {
	var id bucket.ID
	if _, err := rand.Read(id[:]); err != nil {
		return bucket.Manifest{}, content.Secret{}, fmt.Errorf("vaultfs: create: generate bucket id: %w", err)
	}

	entrySecret, err := content.Generate()
	if err != nil {
		return bucket.Manifest{}, content.Secret{}, fmt.Errorf("vaultfs: create: %w", err)
	}

	sealedRoot, err := bucket.Encrypt(bucket.NewNode(), entrySecret)
	if err != nil {
		return bucket.Manifest{}, content.Secret{}, fmt.Errorf("vaultfs: create: %w", err)
	}
	rootLink, err := store.Put(sealedRoot, codec.FormatBlob)
	if err != nil {
		return bucket.Manifest{}, content.Secret{}, fmt.Errorf("vaultfs: create: store root node: %w", err)
	}

	share, err := keyshare.Wrap(entrySecret, owner)
	if err != nil {
		return bucket.Manifest{}, content.Secret{}, fmt.Errorf("vaultfs: create: wrap owner share: %w", err)
	}

	m := bucket.NewManifest(id)
	m.Name = name
	m.Entry = rootLink
	m.Shares[owner] = bucket.ShareEntry{
		Principal: bucket.Principal{Role: bucket.RoleOwner, Identity: owner},
		Share:     share,
	}

	pinsLink, err := putPins(store, m, entrySecret)
	if err != nil {
		return bucket.Manifest{}, content.Secret{}, err
	}
	m.Pins = pinsLink

	if _, err := putManifest(store, m); err != nil {
		return bucket.Manifest{}, content.Secret{}, err
	}
	return m, entrySecret, nil
}

// Insert writes bytes at path inside current, descending the path and
// copy-on-write re-encrypting every directory Node it passes through
// (each with a freshly drawn secret; the root keeps the bucket's constant
// entry-secret). Missing intermediate directories are created. The
// returned manifest's Previous points at current.
func Insert(store blob.Store, current bucket.Manifest, entrySecret content.Secret, path string, data []byte, mimeType string) (bucket.Manifest, error) {
	parts, err := SplitPath(path)
	if err != nil {
		return bucket.Manifest{}, err
	}
	if len(parts) == 0 {
		return bucket.Manifest{}, fmt.Errorf("%w: cannot insert at bucket root", ErrInvalidPath)
	}

	sealedRoot, err := store.Get(current.Entry.Hash)
	if err != nil {
		return bucket.Manifest{}, fmt.Errorf("vaultfs: insert: fetch root: %w", err)
	}
	rootNode, err := bucket.DecryptDecode(sealedRoot, entrySecret)
	if err != nil {
		return bucket.Manifest{}, fmt.Errorf("vaultfs: insert: decode root: %w", err)
	}

	newRoot, err := insertInto(store, rootNode, parts, data, mimeType)
	if err != nil {
		return bucket.Manifest{}, err
	}
	sealedNewRoot, err := bucket.Encrypt(newRoot, entrySecret)
	if err != nil {
		return bucket.Manifest{}, fmt.Errorf("vaultfs: insert: %w", err)
	}
	newRootLink, err := store.Put(sealedNewRoot, codec.FormatBlob)
	if err != nil {
		return bucket.Manifest{}, fmt.Errorf("vaultfs: insert: store root: %w", err)
	}

	m := nextVersion(current)
	m.Entry = newRootLink

	pinsLink, err := putPins(store, m, entrySecret)
	if err != nil {
		return bucket.Manifest{}, err
	}
	m.Pins = pinsLink

	if _, err := putManifest(store, m); err != nil {
		return bucket.Manifest{}, err
	}
	return m, nil
}

// insertInto recursively rebuilds node along parts, writing data as a file
// at the final component. It returns the updated in-memory Node; callers
// are responsible for encrypting and storing it (and its ancestors).
func insertInto(store blob.Store, node bucket.Node, parts []string, data []byte, mimeType string) (bucket.Node, error) {
	name := parts[0]

	if len(parts) == 1 {
		fileSecret, err := content.Generate()
		if err != nil {
			return bucket.Node{}, fmt.Errorf("vaultfs: insert: %w", err)
		}
		sealed, err := content.Seal(fileSecret, data)
		if err != nil {
			return bucket.Node{}, fmt.Errorf("vaultfs: insert: seal file: %w", err)
		}
		link, err := store.Put(sealed, codec.FormatBlob)
		if err != nil {
			return bucket.Node{}, fmt.Errorf("vaultfs: insert: store file: %w", err)
		}
		node.Entries[name] = bucket.NodeLink{
			Kind:     bucket.KindData,
			Link:     link,
			Secret:   fileSecret,
			Metadata: bucket.Metadata{MimeType: mimeType},
		}
		return node, nil
	}

	childNode := bucket.NewNode()
	if existing, ok := node.Entries[name]; ok {
		if existing.Kind != bucket.KindDir {
			return bucket.Node{}, fmt.Errorf("%w: %q", ErrNotDirectory, name)
		}
		sealedChild, err := store.Get(existing.Link.Hash)
		if err != nil {
			return bucket.Node{}, fmt.Errorf("vaultfs: insert: fetch %q: %w", name, err)
		}
		childNode, err = bucket.DecryptDecode(sealedChild, existing.Secret)
		if err != nil {
			return bucket.Node{}, fmt.Errorf("vaultfs: insert: decode %q: %w", name, err)
		}
	}

	updatedChild, err := insertInto(store, childNode, parts[1:], data, mimeType)
	if err != nil {
		return bucket.Node{}, err
	}

	childSecret, err := content.Generate()
	if err != nil {
		return bucket.Node{}, fmt.Errorf("vaultfs: insert: %w", err)
	}
	sealed, err := bucket.Encrypt(updatedChild, childSecret)
	if err != nil {
		return bucket.Node{}, fmt.Errorf("vaultfs: insert: %w", err)
	}
	childLink, err := store.Put(sealed, codec.FormatBlob)
	if err != nil {
		return bucket.Node{}, fmt.Errorf("vaultfs: insert: store %q: %w", name, err)
	}

	node.Entries[name] = bucket.NodeLink{Kind: bucket.KindDir, Link: childLink, Secret: childSecret}
	return node, nil
}

// Lookup resolves path inside current to a file's plaintext bytes and
// metadata. It returns ErrNotFound if any path component is missing and
// ErrIsDirectory if path resolves to a directory.
func Lookup(store blob.Store, current bucket.Manifest, entrySecret content.Secret, path string) ([]byte, bucket.Metadata, error) {
	parts, err := SplitPath(path)
	if err != nil {
		return nil, bucket.Metadata{}, err
	}
	if len(parts) == 0 {
		return nil, bucket.Metadata{}, ErrIsDirectory
	}

	dir, err := descend(store, current, entrySecret, parts[:len(parts)-1])
	if err != nil {
		return nil, bucket.Metadata{}, err
	}
	name := parts[len(parts)-1]
	entry, ok := dir.Entries[name]
	if !ok {
		return nil, bucket.Metadata{}, ErrNotFound
	}
	if entry.Kind != bucket.KindData {
		return nil, bucket.Metadata{}, ErrIsDirectory
	}

	sealed, err := store.Get(entry.Link.Hash)
	if err != nil {
		return nil, bucket.Metadata{}, fmt.Errorf("vaultfs: lookup: fetch %q: %w", path, err)
	}
	data, err := content.Open(entry.Secret, sealed)
	if err != nil {
		return nil, bucket.Metadata{}, err
	}
	return data, entry.Metadata, nil
}

// List returns the sorted names of every entry directly inside the
// directory at path (path == "" or "/" lists the bucket root).
func List(store blob.Store, current bucket.Manifest, entrySecret content.Secret, path string) ([]string, error) {
	parts, err := SplitPath(path)
	if err != nil {
		return nil, err
	}

	dir, err := descend(store, current, entrySecret, parts)
	if err != nil {
		return nil, err
	}
	return codec.SortedKeys(dir.Entries), nil
}

// descend walks parts from current's root, requiring every component to
// be a directory, and returns the final directory Node.
func descend(store blob.Store, current bucket.Manifest, entrySecret content.Secret, parts []string) (bucket.Node, error) {
	sealedRoot, err := store.Get(current.Entry.Hash)
	if err != nil {
		return bucket.Node{}, fmt.Errorf("vaultfs: fetch root: %w", err)
	}
	node, err := bucket.DecryptDecode(sealedRoot, entrySecret)
	if err != nil {
		return bucket.Node{}, fmt.Errorf("vaultfs: decode root: %w", err)
	}

	for _, name := range parts {
		entry, ok := node.Entries[name]
		if !ok {
			return bucket.Node{}, ErrNotFound
		}
		if entry.Kind != bucket.KindDir {
			return bucket.Node{}, fmt.Errorf("%w: %q", ErrNotDirectory, name)
		}
		sealed, err := store.Get(entry.Link.Hash)
		if err != nil {
			return bucket.Node{}, fmt.Errorf("vaultfs: fetch %q: %w", name, err)
		}
		node, err = bucket.DecryptDecode(sealed, entry.Secret)
		if err != nil {
			return bucket.Node{}, fmt.Errorf("vaultfs: decode %q: %w", name, err)
		}
	}
	return node, nil
}

// Grant wraps current's entry-secret for recipient at role and appends the
// resulting share to a new manifest version. The bucket's DAG (entry,
// pins) is unchanged, since granting access does not modify content.
func Grant(store blob.Store, current bucket.Manifest, entrySecret content.Secret, recipient identity.PublicKey, role bucket.Role) (bucket.Manifest, error) {
	share, err := keyshare.Wrap(entrySecret, recipient)
	if err != nil {
		return bucket.Manifest{}, fmt.Errorf("vaultfs: grant: %w", err)
	}

	m := nextVersion(current)
	m.Shares[recipient] = bucket.ShareEntry{
		Principal: bucket.Principal{Role: role, Identity: recipient},
		Share:     share,
	}
	m.Entry = current.Entry
	m.Pins = current.Pins

	if _, err := putManifest(store, m); err != nil {
		return bucket.Manifest{}, err
	}
	return m, nil
}

// nextVersion returns a copy of current with Previous set to current's
// hash and Shares deep-copied, ready for the caller to set Entry and Pins
// (and, for Grant, one new share).
func nextVersion(current bucket.Manifest) bucket.Manifest {
	m := bucket.NewManifest(current.ID)
	m.Name = current.Name
	m.Version = current.Version
	m.Previous = bucket.Hash(current)
	for pk, entry := range current.Shares {
		m.Shares[pk] = entry
	}
	return m
}
