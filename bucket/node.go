// Package bucket implements the immutable, hash-linked Merkle DAG at the
// core of a bucket: Manifest, Node, and Pins, their canonical structured
// encoding, and the encryption discipline that wraps every Node and file
// blob under its own freshly drawn content secret.
package bucket

import (
	"fmt"

	"github.com/bucketmesh/bucketd/codec"
	"github.com/bucketmesh/bucketd/content"
)

// Kind discriminates the two NodeLink variants. Implementations must
// switch exhaustively over Kind rather than reach for inheritance-style
// dispatch.
type Kind byte

const (
	// KindData names a file: a link to encrypted file bytes plus the
	// file's content secret and metadata.
	KindData Kind = 0

	// KindDir names a subdirectory: a link to a (still encrypted) child
	// Node plus that child's content secret.
	KindDir Kind = 1
)

// String returns a human-readable name for k.
func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindDir:
		return "dir"
	default:
		return "unknown"
	}
}

// Metadata carries the descriptive fields attached to a file NodeLink.
type Metadata struct {
	MimeType string
	Custom   map[string]string
}

// NodeLink is one entry in a directory Node's name -> link mapping. The
// Secret stored beside Link is always the key required to decrypt
// whatever Link addresses; there is no bucket-wide master key.
type NodeLink struct {
	Kind     Kind
	Link     codec.Link
	Secret   content.Secret
	Metadata Metadata // meaningful only when Kind == KindData
}

// Node is a directory: a mapping from UTF-8 name to NodeLink. Its
// canonical form sorts entries by name so that re-encoding an equal Node
// yields identical bytes.
type Node struct {
	Entries map[string]NodeLink
}

// NewNode returns an empty directory Node.
func NewNode() Node {
	return Node{Entries: make(map[string]NodeLink)}
}

const (
	tagEntryName      byte = 0x01
	tagEntryKind      byte = 0x02
	tagEntryLink      byte = 0x03
	tagEntrySecret    byte = 0x04
	tagEntryMimeType  byte = 0x05
	tagEntryCustom    byte = 0x06
	tagCustomKey      byte = 0x01
	tagCustomValue    byte = 0x02
	tagNodeEntryField byte = 0x01
)

// EncodeNode produces the canonical encoding of n: entries sorted by name,
// each entry a nested tag/length/value sub-message.
func EncodeNode(n Node) []byte {
	w := codec.NewWriter()
	for _, name := range codec.SortedKeys(n.Entries) {
		nl := n.Entries[name]
		w.WriteRaw(tagNodeEntryField, encodeEntry(name, nl))
	}
	return w.Bytes()
}

func encodeEntry(name string, nl NodeLink) []byte {
	ew := codec.NewWriter()
	ew.WriteString(tagEntryName, name)
	ew.WriteByte(tagEntryKind, byte(nl.Kind))
	ew.WriteLink(tagEntryLink, nl.Link)
	ew.WriteBytes(tagEntrySecret, nl.Secret.Bytes())

	if nl.Kind == KindData {
		if nl.Metadata.MimeType != "" {
			ew.WriteString(tagEntryMimeType, nl.Metadata.MimeType)
		}
		for _, k := range codec.SortedKeys(nl.Metadata.Custom) {
			cw := codec.NewWriter()
			cw.WriteString(tagCustomKey, k)
			cw.WriteString(tagCustomValue, nl.Metadata.Custom[k])
			ew.WriteRaw(tagEntryCustom, cw.Bytes())
		}
	}
	return ew.Bytes()
}

// Decode parses a canonical Node encoding produced by EncodeNode.
func Decode(data []byte) (Node, error) {
	n := NewNode()
	r := codec.NewReader(data)
	for {
		f, ok, err := r.Next()
		if err != nil {
			return Node{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if !ok {
			break
		}
		if f.Tag != tagNodeEntryField {
			return Node{}, fmt.Errorf("%w: unexpected top-level tag 0x%02x", ErrMalformed, f.Tag)
		}
		name, nl, err := decodeEntry(f.Value)
		if err != nil {
			return Node{}, err
		}
		if _, exists := n.Entries[name]; exists {
			return Node{}, fmt.Errorf("%w: duplicate entry name %q", ErrMalformed, name)
		}
		n.Entries[name] = nl
	}
	return n, nil
}

func decodeEntry(data []byte) (string, NodeLink, error) {
	var (
		name       string
		haveName   bool
		nl         NodeLink
		haveKind   bool
		haveLink   bool
		haveSecret bool
	)

	r := codec.NewReader(data)
	for {
		f, ok, err := r.Next()
		if err != nil {
			return "", NodeLink{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if !ok {
			break
		}
		switch f.Tag {
		case tagEntryName:
			name = string(f.Value)
			haveName = true
		case tagEntryKind:
			b, err := codec.ByteVal(f.Value)
			if err != nil {
				return "", NodeLink{}, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			nl.Kind = Kind(b)
			haveKind = true
		case tagEntryLink:
			l, err := codec.ReadLink(f.Value)
			if err != nil {
				return "", NodeLink{}, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			nl.Link = l
			haveLink = true
		case tagEntrySecret:
			s, err := content.SecretFromBytes(f.Value)
			if err != nil {
				return "", NodeLink{}, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			nl.Secret = s
			haveSecret = true
		case tagEntryMimeType:
			nl.Metadata.MimeType = string(f.Value)
		case tagEntryCustom:
			k, v, err := decodeCustomPair(f.Value)
			if err != nil {
				return "", NodeLink{}, err
			}
			if nl.Metadata.Custom == nil {
				nl.Metadata.Custom = make(map[string]string)
			}
			nl.Metadata.Custom[k] = v
		default:
			// Unknown fields inside an entry are rejected: the codec
			// promises exhaustive round-tripping, not forward
			// compatibility shims.
			return "", NodeLink{}, fmt.Errorf("%w: unknown entry field tag 0x%02x", ErrMalformed, f.Tag)
		}
	}

	if !haveName || !haveKind || !haveLink || !haveSecret {
		return "", NodeLink{}, fmt.Errorf("%w: entry missing required field", ErrMalformed)
	}
	if nl.Kind != KindData && nl.Kind != KindDir {
		return "", NodeLink{}, fmt.Errorf("%w: unknown node link kind %d", ErrMalformed, nl.Kind)
	}
	return name, nl, nil
}

func decodeCustomPair(data []byte) (string, string, error) {
	var key, value string
	var haveKey, haveValue bool

	r := codec.NewReader(data)
	for {
		f, ok, err := r.Next()
		if err != nil {
			return "", "", fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if !ok {
			break
		}
		switch f.Tag {
		case tagCustomKey:
			key = string(f.Value)
			haveKey = true
		case tagCustomValue:
			value = string(f.Value)
			haveValue = true
		default:
			return "", "", fmt.Errorf("%w: unknown custom-metadata field tag 0x%02x", ErrMalformed, f.Tag)
		}
	}
	if !haveKey || !haveValue {
		return "", "", fmt.Errorf("%w: custom metadata entry missing key or value", ErrMalformed)
	}
	return key, value, nil
}

// Encrypt seals the canonical encoding of n under secret.
func Encrypt(n Node, secret content.Secret) ([]byte, error) {
	sealed, err := content.Seal(secret, EncodeNode(n))
	if err != nil {
		return nil, fmt.Errorf("bucket: encrypt node: %w", err)
	}
	return sealed, nil
}

// DecryptDecode opens sealed under secret and decodes the resulting
// canonical Node encoding. Authentication failures propagate as
// content.ErrTampered; malformed plaintext (a decoding bug, or a
// tamper-immune but non-canonical payload) surfaces as ErrMalformed.
func DecryptDecode(sealed []byte, secret content.Secret) (Node, error) {
	plaintext, err := content.Open(secret, sealed)
	if err != nil {
		return Node{}, err
	}
	return Decode(plaintext)
}
