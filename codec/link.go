package codec

import "fmt"

// Tag identifies the structural codec a Link's bytes were encoded with.
// Only one codec exists today; the field exists so a future wire format
// change does not require re-addressing existing content.
type Tag byte

// StructuredV1 is the canonical structured binary codec implemented by
// this package.
const StructuredV1 Tag = 1

// Format discriminates what kind of byte sequence a Link addresses.
type Format byte

const (
	// FormatBlob addresses a single opaque byte sequence: an encrypted
	// file, an encrypted Node, or a plaintext Manifest.
	FormatBlob Format = 0

	// FormatHashSeq addresses an ordered sequence of 32-byte hashes
	// concatenated in ascending order (a Pins set).
	FormatHashSeq Format = 1
)

// linkEncodedSize is the fixed width of an encoded Link: codec(1) ||
// hash(32) || format(1).
const linkEncodedSize = 1 + HashSize + 1

// Link is a content-addressed reference: a structural codec tag, the
// BLAKE3-256 hash of the referenced bytes, and a format discriminator.
// Equality is defined over the (Codec, Hash, Format) triple, which Go's
// struct comparison gives for free since every field is comparable.
type Link struct {
	Codec  Tag
	Hash   Hash
	Format Format
}

// LinkFor computes the Link for data under the canonical structured codec
// with the given format.
func LinkFor(data []byte, format Format) Link {
	return Link{Codec: StructuredV1, Hash: SumHash(data), Format: format}
}

// Equal reports whether l and other address the same bytes under the same
// codec and format.
func (l Link) Equal(other Link) bool {
	return l == other
}

// IsZero reports whether l is the zero Link (used to represent an absent
// optional link, e.g. Manifest.Previous on the genesis manifest).
func (l Link) IsZero() bool {
	return l == Link{}
}

// String returns a short human-readable form for logging.
func (l Link) String() string {
	return fmt.Sprintf("link(%x)", l.Hash[:8])
}

// Encode appends the Link's fixed-width wire form to buf.
func (l Link) Encode(buf []byte) []byte {
	buf = append(buf, byte(l.Codec))
	buf = append(buf, l.Hash[:]...)
	buf = append(buf, byte(l.Format))
	return buf
}

// DecodeLink decodes a fixed-width Link from the front of data, returning
// the link and the number of bytes consumed.
func DecodeLink(data []byte) (Link, int, error) {
	if len(data) < linkEncodedSize {
		return Link{}, 0, fmt.Errorf("%w: link requires %d bytes, got %d", ErrInvalidLink, linkEncodedSize, len(data))
	}
	var l Link
	l.Codec = Tag(data[0])
	copy(l.Hash[:], data[1:1+HashSize])
	l.Format = Format(data[1+HashSize])
	return l, linkEncodedSize, nil
}

// WriteLink writes a Link as a tagged field (its fixed-width encoding
// nested inside a tag/length/value envelope, for use alongside variable
// length sibling fields).
func (w *Writer) WriteLink(tag byte, l Link) *Writer {
	return w.WriteBytes(tag, l.Encode(nil))
}

// ReadLink decodes a Link from a field's value (as produced by WriteLink).
func ReadLink(value []byte) (Link, error) {
	l, n, err := DecodeLink(value)
	if err != nil {
		return Link{}, err
	}
	if n != len(value) {
		return Link{}, fmt.Errorf("%w: trailing bytes after link", ErrInvalidLink)
	}
	return l, nil
}
