// Package codec implements the canonical structured binary encoding shared
// by Manifests and Nodes, and the content-addressed Link that names any
// blob encoded with it. Every multi-byte integer is little-endian; every
// variable-length field is tag(1) || uvarint-length || value. Map-typed
// fields (bucket shares, directory entries) are always written in
// ascending byte order of their key so that re-encoding an equal value
// yields identical bytes — the property the bucket DAG's content
// addressing depends on.
package codec

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// Writer accumulates canonically-encoded tagged fields. The zero value is
// ready to use.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte { return w.buf }

func appendUvarint(buf []byte, x uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], x)
	return append(buf, tmp[:n]...)
}

// WriteBytes writes a tag(1) || uvarint-length || value field.
func (w *Writer) WriteBytes(tag byte, value []byte) *Writer {
	w.buf = append(w.buf, tag)
	w.buf = appendUvarint(w.buf, uint64(len(value)))
	w.buf = append(w.buf, value...)
	return w
}

// WriteString writes value's UTF-8 bytes as a tagged field.
func (w *Writer) WriteString(tag byte, value string) *Writer {
	return w.WriteBytes(tag, []byte(value))
}

// WriteUint32 writes a 4-byte little-endian integer as a tagged field.
func (w *Writer) WriteUint32(tag byte, value uint32) *Writer {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], value)
	return w.WriteBytes(tag, b[:])
}

// WriteUint64 writes an 8-byte little-endian integer as a tagged field.
func (w *Writer) WriteUint64(tag byte, value uint64) *Writer {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], value)
	return w.WriteBytes(tag, b[:])
}

// WriteBool writes a single-byte boolean as a tagged field.
func (w *Writer) WriteBool(tag byte, value bool) *Writer {
	if value {
		return w.WriteBytes(tag, []byte{1})
	}
	return w.WriteBytes(tag, []byte{0})
}

// WriteByte writes a single raw byte as a tagged field (small enums).
func (w *Writer) WriteByte(tag byte, value byte) *Writer {
	return w.WriteBytes(tag, []byte{value})
}

// WriteRaw appends a nested, already-encoded sub-message as a tagged field
// (used for repeated structures such as directory entries or shares).
func (w *Writer) WriteRaw(tag byte, encoded []byte) *Writer {
	return w.WriteBytes(tag, encoded)
}

// SortedKeys returns the keys of a string-keyed map in ascending
// byte-lexicographic order, the canonical order required for any
// map-typed field.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortedByteKeys returns the keys of a []byte-keyed map (e.g. a
// public-key -> share mapping) in ascending byte-lexicographic order.
func SortedByteKeys(keys [][]byte) [][]byte {
	out := make([][]byte, len(keys))
	copy(out, keys)
	sort.Slice(out, func(i, j int) bool {
		return compareBytes(out[i], out[j]) < 0
	})
	return out
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Field is one decoded tag/value pair from a Reader.
type Field struct {
	Tag   byte
	Value []byte
}

// Reader parses a canonically-encoded byte stream back into its tagged
// fields, one at a time, in the order they were written.
type Reader struct {
	data   []byte
	offset int
}

// NewReader returns a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Next returns the next field, or ok=false once the stream is exhausted.
func (r *Reader) Next() (Field, bool, error) {
	if r.offset >= len(r.data) {
		return Field{}, false, nil
	}

	tag := r.data[r.offset]
	r.offset++

	if r.offset >= len(r.data) {
		return Field{}, false, fmt.Errorf("%w: truncated length for tag 0x%02x", ErrMalformed, tag)
	}
	length, n := binary.Uvarint(r.data[r.offset:])
	if n <= 0 {
		return Field{}, false, fmt.Errorf("%w: invalid length varint for tag 0x%02x", ErrMalformed, tag)
	}
	r.offset += n

	if length > uint64(len(r.data)-r.offset) {
		return Field{}, false, fmt.Errorf("%w: value overruns buffer for tag 0x%02x", ErrMalformed, tag)
	}

	value := r.data[r.offset : r.offset+int(length)]
	r.offset += int(length)

	return Field{Tag: tag, Value: value}, true, nil
}

// Uint32 decodes a 4-byte little-endian field value.
func Uint32(value []byte) (uint32, error) {
	if len(value) != 4 {
		return 0, fmt.Errorf("%w: uint32 field must be 4 bytes, got %d", ErrMalformed, len(value))
	}
	return binary.LittleEndian.Uint32(value), nil
}

// Uint64 decodes an 8-byte little-endian field value.
func Uint64(value []byte) (uint64, error) {
	if len(value) != 8 {
		return 0, fmt.Errorf("%w: uint64 field must be 8 bytes, got %d", ErrMalformed, len(value))
	}
	return binary.LittleEndian.Uint64(value), nil
}

// ByteVal decodes a single raw byte field value.
func ByteVal(value []byte) (byte, error) {
	if len(value) != 1 {
		return 0, fmt.Errorf("%w: byte field must be 1 byte, got %d", ErrMalformed, len(value))
	}
	return value[0], nil
}

// Bool decodes a single-byte boolean field value.
func Bool(value []byte) (bool, error) {
	if len(value) != 1 {
		return false, fmt.Errorf("%w: bool field must be 1 byte, got %d", ErrMalformed, len(value))
	}
	return value[0] != 0, nil
}
