package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReader_RoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteUint32(0x01, 7).
		WriteUint64(0x02, 1<<40).
		WriteString(0x03, "hello").
		WriteBytes(0x04, []byte{0xde, 0xad, 0xbe, 0xef}).
		WriteBool(0x05, true).
		WriteBool(0x06, false)

	r := NewReader(w.Bytes())

	f, ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, byte(0x01), f.Tag)
	u32, err := Uint32(f.Value)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), u32)

	f, ok, err = r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	u64, err := Uint64(f.Value)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), u64)

	f, ok, err = r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", string(f.Value))

	f, ok, err = r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, f.Value)

	f, ok, err = r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	b, err := Bool(f.Value)
	require.NoError(t, err)
	assert.True(t, b)

	f, ok, err = r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	b, err = Bool(f.Value)
	require.NoError(t, err)
	assert.False(t, b)

	_, ok, err = r.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReader_TruncatedLength(t *testing.T) {
	r := NewReader([]byte{0x01})
	_, _, err := r.Next()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestReader_ValueOverrunsBuffer(t *testing.T) {
	r := NewReader([]byte{0x01, 0x05, 'a', 'b'})
	_, _, err := r.Next()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"banana": 1, "apple": 2, "cherry": 3}
	assert.Equal(t, []string{"apple", "banana", "cherry"}, SortedKeys(m))
}

func TestSortedByteKeys(t *testing.T) {
	in := [][]byte{{0x03}, {0x01}, {0x02}}
	out := SortedByteKeys(in)
	assert.Equal(t, [][]byte{{0x01}, {0x02}, {0x03}}, out)
	// input slice untouched
	assert.Equal(t, [][]byte{{0x03}, {0x01}, {0x02}}, in)
}

func TestSumHash_Deterministic(t *testing.T) {
	a := SumHash([]byte("hello"))
	b := SumHash([]byte("hello"))
	assert.Equal(t, a, b)
}

func TestSumHash_DifferentInputsDiffer(t *testing.T) {
	a := SumHash([]byte("hello"))
	b := SumHash([]byte("world"))
	assert.NotEqual(t, a, b)
}

func TestLink_Encode_RoundTrip(t *testing.T) {
	l := LinkFor([]byte("payload"), FormatBlob)

	encoded := l.Encode(nil)
	assert.Len(t, encoded, linkEncodedSize)

	decoded, n, err := DecodeLink(encoded)
	require.NoError(t, err)
	assert.Equal(t, len(encoded), n)
	assert.True(t, l.Equal(decoded))
}

func TestLink_Equality(t *testing.T) {
	a := LinkFor([]byte("x"), FormatBlob)
	b := LinkFor([]byte("x"), FormatBlob)
	c := LinkFor([]byte("x"), FormatHashSeq)
	d := LinkFor([]byte("y"), FormatBlob)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c), "format participates in equality")
	assert.False(t, a.Equal(d))
}

func TestLink_IsZero(t *testing.T) {
	var zero Link
	assert.True(t, zero.IsZero())

	l := LinkFor([]byte("x"), FormatBlob)
	assert.False(t, l.IsZero())
}

func TestWriteLink_ReadLink_RoundTrip(t *testing.T) {
	l := LinkFor([]byte("entry"), FormatBlob)

	w := NewWriter()
	w.WriteLink(0x09, l)

	r := NewReader(w.Bytes())
	f, ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)

	decoded, err := ReadLink(f.Value)
	require.NoError(t, err)
	assert.True(t, l.Equal(decoded))
}

func TestDecodeLink_TooShort(t *testing.T) {
	_, _, err := DecodeLink([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrInvalidLink)
}

func TestCanonicalEncoding_MapOrderIndependent(t *testing.T) {
	// Emitting the same logical field set twice, with SortedKeys driving
	// emission order each time, must yield byte-identical output.
	values := map[string][]byte{
		"c.txt": []byte("3"),
		"a.txt": []byte("1"),
		"b.txt": []byte("2"),
	}

	encodeInOrder := func(keys []string) []byte {
		w := NewWriter()
		for _, k := range keys {
			w.WriteString(0x01, k)
			w.WriteBytes(0x02, values[k])
		}
		return w.Bytes()
	}

	orderA := SortedKeys(values)
	orderB := []string{"b.txt", "c.txt", "a.txt"}

	got := encodeInOrder(orderA)
	fromShuffled := encodeInOrder(SortedKeys(values))
	assert.True(t, bytes.Equal(got, fromShuffled))

	// A naive insertion order (orderB) would NOT match, demonstrating the
	// canonical order is load-bearing.
	assert.False(t, bytes.Equal(got, encodeInOrder(orderB)))
}
