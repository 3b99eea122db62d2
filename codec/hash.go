package codec

import "github.com/glycerine/blake3"

// HashSize is the byte length of a content hash.
const HashSize = 32

// Hash is a BLAKE3-256 digest of a stored byte sequence.
type Hash [HashSize]byte

// SumHash returns the BLAKE3-256 digest of data.
func SumHash(data []byte) Hash {
	h := blake3.New(HashSize, nil)
	h.Write(data)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Bytes returns the raw 32 bytes of the hash.
func (h Hash) Bytes() []byte { return h[:] }

// Less reports whether h sorts before other in ascending byte order. Used
// to order pins hash sequences canonically.
func (h Hash) Less(other Hash) bool {
	return compareBytes(h[:], other[:]) < 0
}

// HashFromBytes wraps raw hash bytes, validating their length.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, ErrInvalidLink
	}
	copy(h[:], b)
	return h, nil
}
