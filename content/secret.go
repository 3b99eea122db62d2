// Package content implements the per-item content secret: a 256-bit
// symmetric key used exactly once per plaintext/ciphertext pair for
// authenticated encryption. Every file blob and every directory node in a
// bucket draws its own secret; there is no bucket-wide master key.
package content

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// SecretSize is the byte length of a content secret.
	SecretSize = 32

	// NonceSize is the byte length of the random nonce prefixed to every
	// sealed blob.
	NonceSize = chacha20poly1305.NonceSize

	// TagSize is the byte length of the AEAD authentication tag suffixed
	// to every sealed blob.
	TagSize = chacha20poly1305.Overhead

	// Overhead is the total framing cost of Seal: NonceSize + TagSize.
	Overhead = NonceSize + TagSize
)

// Secret is a 256-bit symmetric key, drawn fresh for every Node and every
// file blob. It is stored beside the Link it protects; the pairing is the
// "per-item secret" pattern the bucket data model relies on instead of a
// master key.
type Secret [SecretSize]byte

// Generate draws a fresh secret from a CSPRNG.
func Generate() (Secret, error) {
	var s Secret
	if _, err := rand.Read(s[:]); err != nil {
		return Secret{}, fmt.Errorf("content: generate secret: %w", err)
	}
	return s, nil
}

// SecretFromBytes wraps raw key material as a Secret.
func SecretFromBytes(b []byte) (Secret, error) {
	var s Secret
	if len(b) != SecretSize {
		return s, fmt.Errorf("%w: got %d bytes", ErrInvalidSecret, len(b))
	}
	copy(s[:], b)
	return s, nil
}

// Bytes returns the raw 32 bytes of the secret.
func (s Secret) Bytes() []byte { return s[:] }

// Destroy overwrites the secret's backing bytes.
func (s *Secret) Destroy() {
	for i := range s {
		s[i] = 0
	}
}

// Seal encrypts plaintext under secret with a fresh random 12-byte nonce,
// returning nonce(12) || ChaCha20-Poly1305(plaintext) || tag(16). Because
// every plaintext gets a freshly drawn Secret, nonce-collision risk is
// bounded by single-use of the key; callers must never reuse a secret to
// seal a second, different plaintext.
func Seal(secret Secret, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(secret[:])
	if err != nil {
		return nil, fmt.Errorf("content: seal: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("content: seal: random nonce: %w", err)
	}

	out := aead.Seal(nonce, nonce, plaintext, nil)
	return out, nil
}

// Open authenticates and decrypts a blob produced by Seal. A truncated
// input is rejected before any cryptographic work; an authentication
// failure surfaces as ErrTampered and the caller must not inspect any
// returned bytes (Open returns nil plaintext in that case).
func Open(secret Secret, sealed []byte) ([]byte, error) {
	if len(sealed) < Overhead {
		return nil, ErrInvalidCiphertext
	}

	aead, err := chacha20poly1305.New(secret[:])
	if err != nil {
		return nil, fmt.Errorf("content: open: %w", err)
	}

	nonce, ciphertext := sealed[:NonceSize], sealed[NonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrTampered
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}
