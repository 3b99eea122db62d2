package content

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen_RoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"short", []byte("hi")},
		{"binary", []byte{0x00, 0x01, 0xff, 0xfe}},
		{"large", bytes.Repeat([]byte("a"), 1<<20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secret, err := Generate()
			require.NoError(t, err)

			sealed, err := Seal(secret, tt.plaintext)
			require.NoError(t, err)
			assert.Len(t, sealed, len(tt.plaintext)+Overhead)

			plaintext, err := Open(secret, sealed)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, plaintext)
		})
	}
}

func TestSeal_FreshNoncePerCall(t *testing.T) {
	secret, err := Generate()
	require.NoError(t, err)

	a, err := Seal(secret, []byte("same plaintext"))
	require.NoError(t, err)
	b, err := Seal(secret, []byte("same plaintext"))
	require.NoError(t, err)

	assert.NotEqual(t, a[:NonceSize], b[:NonceSize], "nonces must differ across calls")
	assert.NotEqual(t, a, b)
}

func TestOpen_TamperedCiphertextFails(t *testing.T) {
	secret, err := Generate()
	require.NoError(t, err)

	sealed, err := Seal(secret, []byte("hello world"))
	require.NoError(t, err)

	for i := range sealed {
		tampered := make([]byte, len(sealed))
		copy(tampered, sealed)
		tampered[i] ^= 0x01

		_, err := Open(secret, tampered)
		assert.ErrorIs(t, err, ErrTampered, "byte %d flip should be detected", i)
	}
}

func TestOpen_WrongSecretFails(t *testing.T) {
	secret, err := Generate()
	require.NoError(t, err)
	other, err := Generate()
	require.NoError(t, err)

	sealed, err := Seal(secret, []byte("hello"))
	require.NoError(t, err)

	_, err = Open(other, sealed)
	assert.ErrorIs(t, err, ErrTampered)
}

func TestOpen_TruncatedInputRejected(t *testing.T) {
	secret, err := Generate()
	require.NoError(t, err)

	_, err = Open(secret, make([]byte, Overhead-1))
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestSecretFromBytes_WrongLength(t *testing.T) {
	_, err := SecretFromBytes(make([]byte, 10))
	assert.ErrorIs(t, err, ErrInvalidSecret)
}

func TestGenerate_Uniqueness(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
