package bucket

import (
	"fmt"
	"sort"

	"github.com/bucketmesh/bucketd/codec"
	"github.com/bucketmesh/bucketd/content"
)

// BlobGetter is the minimal read surface Pins.Build needs from a blob
// store: fetch the raw (still-encrypted) bytes a Link addresses. The full
// blob transport contract lives in package blob; this narrower interface
// keeps bucket free of a dependency on it.
type BlobGetter interface {
	Get(link codec.Link) ([]byte, error)
}

// Pins is the deduplicated set of every hash reachable from a manifest's
// entry, including the entry link itself and every Node and file blob
// hash encountered while walking the DAG.
type Pins struct {
	Hashes []codec.Hash
}

// Build walks the Node DAG rooted at m.Entry, decrypting each directory
// Node with the secret recorded beside its link (starting from
// entrySecret, the key that unlocks the root), and returns the
// deduplicated set of every hash encountered. File blob hashes are
// recorded without being fetched or decrypted; only directory Nodes must
// be opened to discover their children.
func Build(m Manifest, entrySecret content.Secret, getter BlobGetter) (Pins, error) {
	seen := make(map[codec.Hash]struct{})
	var order []codec.Hash

	add := func(h codec.Hash) {
		if _, ok := seen[h]; !ok {
			seen[h] = struct{}{}
			order = append(order, h)
		}
	}

	var walkDir func(link codec.Link, secret content.Secret) error
	walkDir = func(link codec.Link, secret content.Secret) error {
		add(link.Hash)

		raw, err := getter.Get(link)
		if err != nil {
			return fmt.Errorf("bucket: build pins: fetch %s: %w", link, err)
		}
		node, err := DecryptDecode(raw, secret)
		if err != nil {
			return fmt.Errorf("bucket: build pins: decode %s: %w", link, err)
		}

		for _, name := range codec.SortedKeys(node.Entries) {
			nl := node.Entries[name]
			switch nl.Kind {
			case KindDir:
				if err := walkDir(nl.Link, nl.Secret); err != nil {
					return err
				}
			case KindData:
				add(nl.Link.Hash)
			default:
				return fmt.Errorf("%w: unknown node link kind %d at %q", ErrMalformed, nl.Kind, name)
			}
		}
		return nil
	}

	if err := walkDir(m.Entry, entrySecret); err != nil {
		return Pins{}, err
	}
	return Pins{Hashes: order}, nil
}

// Sorted returns p's hashes in ascending byte order, the canonical order
// used for serialization.
func (p Pins) Sorted() []codec.Hash {
	out := make([]codec.Hash, len(p.Hashes))
	copy(out, p.Hashes)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Contains reports whether h is one of p's pinned hashes.
func (p Pins) Contains(h codec.Hash) bool {
	for _, existing := range p.Hashes {
		if existing == h {
			return true
		}
	}
	return false
}

// EncodeSeq serializes p as the ordered hash-sequence wire format:
// concatenation of 32-byte BLAKE3 hashes in ascending byte order.
func EncodeSeq(p Pins) []byte {
	sorted := p.Sorted()
	out := make([]byte, 0, len(sorted)*codec.HashSize)
	for _, h := range sorted {
		out = append(out, h[:]...)
	}
	return out
}

// DecodeSeq parses the ordered hash-sequence wire format back into a Pins
// value.
func DecodeSeq(data []byte) (Pins, error) {
	if len(data)%codec.HashSize != 0 {
		return Pins{}, fmt.Errorf("%w: pins sequence length %d is not a multiple of %d", ErrMalformed, len(data), codec.HashSize)
	}
	n := len(data) / codec.HashSize
	hashes := make([]codec.Hash, n)
	for i := 0; i < n; i++ {
		copy(hashes[i][:], data[i*codec.HashSize:(i+1)*codec.HashSize])
	}
	return Pins{Hashes: hashes}, nil
}

// PinsLink returns the Link addressing p's canonical hash-sequence
// encoding, suitable for a Manifest's Pins field.
func PinsLink(p Pins) codec.Link {
	return codec.LinkFor(EncodeSeq(p), codec.FormatHashSeq)
}
