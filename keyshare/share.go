// Package keyshare implements the ephemeral-key-wrap protocol that
// distributes a bucket's entry-secret to authorized peers: an ephemeral
// Diffie-Hellman exchange establishes a one-time key-encryption-key, which
// wraps the entry-secret under RFC 3394 AES Key Wrap.
package keyshare

import (
	"fmt"

	"github.com/bucketmesh/bucketd/content"
	"github.com/bucketmesh/bucketd/identity"
)

// ShareSize is the fixed byte length of a Share: a 32-byte ephemeral
// public key followed by a 40-byte AES-KW ciphertext of a 32-byte secret.
const ShareSize = identity.KeySize + 40

// Share is the 72-byte envelope delivering a bucket's entry-secret to one
// recipient: ephemeral_public(32) || wrapped(40).
type Share [ShareSize]byte

// Wrap shares entrySecret with recipient. It draws a fresh ephemeral
// signing keypair, computes an ephemeral-to-recipient Diffie-Hellman
// value, and uses that value as the key-encryption-key for RFC 3394 AES
// Key Wrap over the 32-byte secret.
func Wrap(entrySecret content.Secret, recipient identity.PublicKey) (Share, error) {
	var share Share

	ephSecret, ephPublic, err := identity.Generate()
	if err != nil {
		return share, fmt.Errorf("keyshare: wrap: generate ephemeral key: %w", err)
	}
	defer ephSecret.Destroy()

	recipientAgreement, err := recipient.ToAgreement()
	if err != nil {
		return share, fmt.Errorf("keyshare: wrap: %w", err)
	}

	kek, err := identity.DH(ephSecret.ToAgreement(), recipientAgreement)
	if err != nil {
		return share, fmt.Errorf("keyshare: wrap: dh: %w", err)
	}

	wrapped, err := aesKeyWrap(kek[:], entrySecret[:])
	if err != nil {
		return share, fmt.Errorf("keyshare: wrap: %w", err)
	}
	if len(wrapped) != 40 {
		return share, fmt.Errorf("keyshare: wrap: unexpected wrapped length %d", len(wrapped))
	}

	copy(share[:identity.KeySize], ephPublic.Bytes())
	copy(share[identity.KeySize:], wrapped)
	return share, nil
}

// Unwrap recovers the entry-secret from share using the recipient's
// signing secret key. An authentication failure in the underlying key
// unwrap surfaces as ErrUnwrapFailed, treated by callers as unauthorized
// access to the share.
func Unwrap(share Share, me identity.SecretKey) (content.Secret, error) {
	var secret content.Secret

	ephPublic, err := identity.PublicKeyFromBytes(share[:identity.KeySize])
	if err != nil {
		return secret, fmt.Errorf("keyshare: unwrap: %w", err)
	}
	wrapped := share[identity.KeySize:]

	ephAgreement, err := ephPublic.ToAgreement()
	if err != nil {
		return secret, fmt.Errorf("keyshare: unwrap: %w", err)
	}

	kek, err := identity.DH(me.ToAgreement(), ephAgreement)
	if err != nil {
		return secret, fmt.Errorf("keyshare: unwrap: dh: %w", err)
	}

	plaintext, err := aesKeyUnwrap(kek[:], wrapped)
	if err != nil {
		return secret, err
	}

	return content.SecretFromBytes(plaintext)
}

// Bytes returns the raw 72 bytes of the share.
func (s Share) Bytes() []byte { return s[:] }

// ShareFromBytes wraps raw bytes as a Share, validating the length.
func ShareFromBytes(b []byte) (Share, error) {
	var s Share
	if len(b) != ShareSize {
		return s, fmt.Errorf("%w: got %d bytes", ErrInvalidShare, len(b))
	}
	copy(s[:], b)
	return s, nil
}
