package content

import "errors"

var (
	// ErrTampered indicates AEAD authentication failed. The caller must not
	// use any bytes from the rejected ciphertext.
	ErrTampered = errors.New("content: authentication failed (tampered)")

	// ErrInvalidCiphertext indicates the ciphertext is shorter than the
	// minimum nonce+tag envelope and cannot possibly be valid.
	ErrInvalidCiphertext = errors.New("content: ciphertext too short")

	// ErrInvalidSecret indicates secret key material is not 32 bytes.
	ErrInvalidSecret = errors.New("content: secret must be 32 bytes")
)
