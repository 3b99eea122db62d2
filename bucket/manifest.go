package bucket

import (
	"fmt"
	"unicode/utf8"

	"github.com/bucketmesh/bucketd/codec"
	"github.com/bucketmesh/bucketd/identity"
	"github.com/bucketmesh/bucketd/keyshare"
)

// IDSize is the byte length of a bucket identifier.
const IDSize = 16

// ID is a bucket's 128-bit identifier, stable across its entire version
// chain.
type ID [IDSize]byte

// Role is a principal's access level on a bucket.
type Role byte

const (
	RoleOwner  Role = 0
	RoleEditor Role = 1
	RoleViewer Role = 2
)

// String returns a human-readable name for r.
func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleEditor:
		return "editor"
	case RoleViewer:
		return "viewer"
	default:
		return "unknown"
	}
}

// Principal names one recipient's role and identity.
type Principal struct {
	Role     Role
	Identity identity.PublicKey
}

// ShareEntry is one row of a Manifest's shares mapping: a principal and
// the wrapped entry-secret that lets it decrypt the bucket root.
type ShareEntry struct {
	Principal Principal
	Share     keyshare.Share
}

// Manifest is the unencrypted head of one bucket version.
type Manifest struct {
	ID       ID
	Name     string
	Shares   map[identity.PublicKey]ShareEntry
	Entry    codec.Link
	Pins     codec.Link
	Previous codec.Link // zero Link means "no previous" (genesis manifest)
	Version  string
}

// NewManifest returns a Manifest with an initialized, empty Shares map.
func NewManifest(id ID) Manifest {
	return Manifest{ID: id, Shares: make(map[identity.PublicKey]ShareEntry)}
}

// HasPrevious reports whether m chains from an earlier manifest.
func (m Manifest) HasPrevious() bool {
	return !m.Previous.IsZero()
}

// Owner returns the first Owner principal's public key found in m.Shares,
// or the zero key and false if none exists. Manifests are required by
// Validate to carry at least one Owner, so callers past validation may
// treat the boolean as informational.
func (m Manifest) Owner() (identity.PublicKey, bool) {
	for pk, entry := range m.Shares {
		if entry.Principal.Role == RoleOwner {
			return pk, true
		}
	}
	return identity.PublicKey{}, false
}

const (
	tagManifestID       byte = 0x01
	tagManifestName     byte = 0x02
	tagManifestShare    byte = 0x03
	tagManifestEntry    byte = 0x04
	tagManifestPins     byte = 0x05
	tagManifestPrevious byte = 0x06
	tagManifestVersion  byte = 0x07

	tagShareRecipient byte = 0x01
	tagShareRole      byte = 0x02
	tagShareShare     byte = 0x03
)

// Encode produces the canonical encoding of m. Shares are written in
// ascending byte order of the recipient's public key so that re-encoding
// an equal Manifest yields identical bytes and its hash is stable.
func Encode(m Manifest) []byte {
	w := codec.NewWriter()
	w.WriteBytes(tagManifestID, m.ID[:])
	w.WriteString(tagManifestName, m.Name)

	keys := make([][]byte, 0, len(m.Shares))
	byBytes := make(map[string]identity.PublicKey, len(m.Shares))
	for pk := range m.Shares {
		keys = append(keys, pk.Bytes())
		byBytes[string(pk.Bytes())] = pk
	}
	for _, kb := range codec.SortedByteKeys(keys) {
		pk := byBytes[string(kb)]
		entry := m.Shares[pk]
		w.WriteRaw(tagManifestShare, encodeShareEntry(pk, entry))
	}

	w.WriteLink(tagManifestEntry, m.Entry)
	w.WriteLink(tagManifestPins, m.Pins)
	if m.HasPrevious() {
		w.WriteLink(tagManifestPrevious, m.Previous)
	}
	w.WriteString(tagManifestVersion, m.Version)
	return w.Bytes()
}

func encodeShareEntry(pk identity.PublicKey, entry ShareEntry) []byte {
	sw := codec.NewWriter()
	sw.WriteBytes(tagShareRecipient, pk.Bytes())
	sw.WriteByte(tagShareRole, byte(entry.Principal.Role))
	sw.WriteBytes(tagShareShare, entry.Share.Bytes())
	return sw.Bytes()
}

// Hash returns the Link addressing m's canonical encoding. Manifests are
// stored unencrypted; the hash is taken directly over Encode(m).
func Hash(m Manifest) codec.Link {
	return codec.LinkFor(Encode(m), codec.FormatBlob)
}

// DecodeManifest parses a canonical Manifest encoding produced by Encode.
func DecodeManifest(data []byte) (Manifest, error) {
	m := NewManifest(ID{})
	r := codec.NewReader(data)
	var haveID, haveEntry, havePins bool

	for {
		f, ok, err := r.Next()
		if err != nil {
			return Manifest{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if !ok {
			break
		}
		switch f.Tag {
		case tagManifestID:
			if len(f.Value) != IDSize {
				return Manifest{}, fmt.Errorf("%w: manifest id must be %d bytes", ErrMalformed, IDSize)
			}
			copy(m.ID[:], f.Value)
			haveID = true
		case tagManifestName:
			m.Name = string(f.Value)
		case tagManifestShare:
			pk, entry, err := decodeShareEntry(f.Value)
			if err != nil {
				return Manifest{}, err
			}
			if _, exists := m.Shares[pk]; exists {
				return Manifest{}, fmt.Errorf("%w: duplicate share recipient", ErrMalformed)
			}
			m.Shares[pk] = entry
		case tagManifestEntry:
			l, err := codec.ReadLink(f.Value)
			if err != nil {
				return Manifest{}, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			m.Entry = l
			haveEntry = true
		case tagManifestPins:
			l, err := codec.ReadLink(f.Value)
			if err != nil {
				return Manifest{}, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			m.Pins = l
			havePins = true
		case tagManifestPrevious:
			l, err := codec.ReadLink(f.Value)
			if err != nil {
				return Manifest{}, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			m.Previous = l
		case tagManifestVersion:
			m.Version = string(f.Value)
		default:
			return Manifest{}, fmt.Errorf("%w: unknown manifest field tag 0x%02x", ErrMalformed, f.Tag)
		}
	}

	if !haveID || !haveEntry || !havePins {
		return Manifest{}, fmt.Errorf("%w: manifest missing required field", ErrMalformed)
	}
	return m, nil
}

func decodeShareEntry(data []byte) (identity.PublicKey, ShareEntry, error) {
	var (
		pk             identity.PublicKey
		entry          ShareEntry
		haveRecipient  bool
		haveRole       bool
		haveShareBytes bool
	)

	r := codec.NewReader(data)
	for {
		f, ok, err := r.Next()
		if err != nil {
			return pk, entry, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if !ok {
			break
		}
		switch f.Tag {
		case tagShareRecipient:
			p, err := identity.PublicKeyFromBytes(f.Value)
			if err != nil {
				return pk, entry, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			pk = p
			entry.Principal.Identity = p
			haveRecipient = true
		case tagShareRole:
			b, err := codec.ByteVal(f.Value)
			if err != nil {
				return pk, entry, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			entry.Principal.Role = Role(b)
			haveRole = true
		case tagShareShare:
			s, err := keyshare.ShareFromBytes(f.Value)
			if err != nil {
				return pk, entry, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			entry.Share = s
			haveShareBytes = true
		default:
			return pk, entry, fmt.Errorf("%w: unknown share field tag 0x%02x", ErrMalformed, f.Tag)
		}
	}
	if !haveRecipient || !haveRole || !haveShareBytes {
		return pk, entry, fmt.Errorf("%w: share entry missing required field", ErrMalformed)
	}
	return pk, entry, nil
}

// Validate checks the invariants required of every Manifest: shares is
// non-empty and contains at least one Owner; entry and pins are
// well-formed links; name must be valid UTF-8. Validate does not look at
// previous: checking it against the prior manifest's id is left to the
// caller, since the prior manifest itself is not available here.
func Validate(m Manifest) error {
	if len(m.Shares) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, ErrNoOwner)
	}
	if _, ok := m.Owner(); !ok {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, ErrNoOwner)
	}
	if m.Entry.IsZero() {
		return fmt.Errorf("%w: entry link is missing", ErrInvalidManifest)
	}
	if m.Pins.IsZero() {
		return fmt.Errorf("%w: pins link is missing", ErrInvalidManifest)
	}
	if !utf8.ValidString(m.Name) {
		return fmt.Errorf("%w: name is not valid UTF-8", ErrInvalidManifest)
	}
	return nil
}

// ValidateChain checks that child correctly chains from parent: their ids
// must match. Callers that have already fetched the previous manifest use
// this alongside Validate(child).
func ValidateChain(parent, child Manifest) error {
	if parent.ID != child.ID {
		return ErrBucketMismatch
	}
	return nil
}
