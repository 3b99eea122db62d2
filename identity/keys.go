// Package identity implements long-lived peer signing keys and their
// deterministic conversion to Diffie-Hellman-capable agreement keys.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"fmt"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"
)

// KeySize is the byte length of a signing secret key, a signing public key,
// and an agreement key in either direction.
const KeySize = 32

// SecretKey is a 32-byte Ed25519 signing seed.
type SecretKey [KeySize]byte

// PublicKey is a 32-byte Ed25519 signing public key. It doubles as a peer's
// global identifier and the recipient address for key sharing.
type PublicKey [KeySize]byte

// AgreementSecret is a Diffie-Hellman-capable private scalar derived from a
// SecretKey.
type AgreementSecret [KeySize]byte

// AgreementPublic is a Diffie-Hellman-capable curve point derived from a
// PublicKey.
type AgreementPublic [KeySize]byte

// Generate draws a fresh signing keypair from a CSPRNG.
func Generate() (SecretKey, PublicKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return SecretKey{}, PublicKey{}, fmt.Errorf("identity: generate: %w", err)
	}
	var sk SecretKey
	copy(sk[:], priv.Seed())
	pk, err := sk.Public()
	if err != nil {
		return SecretKey{}, PublicKey{}, err
	}
	return sk, pk, nil
}

// SecretKeyFromBytes wraps raw seed bytes as a SecretKey.
func SecretKeyFromBytes(b []byte) (SecretKey, error) {
	var sk SecretKey
	if len(b) != KeySize {
		return sk, fmt.Errorf("%w: got %d bytes", ErrInvalidSecretKey, len(b))
	}
	copy(sk[:], b)
	return sk, nil
}

// PublicKeyFromBytes wraps raw public key bytes as a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != KeySize {
		return pk, fmt.Errorf("%w: got %d bytes", ErrInvalidPublicKey, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// Public derives the signing public key matching sk.
func (sk SecretKey) Public() (PublicKey, error) {
	priv := ed25519.NewKeyFromSeed(sk[:])
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return PublicKey{}, fmt.Errorf("%w: unexpected public key type", ErrInvalidSecretKey)
	}
	var pk PublicKey
	copy(pk[:], pub)
	return pk, nil
}

// Destroy overwrites the secret key's backing bytes. Callers should invoke
// it once a key is no longer needed; Go's GC offers no stronger guarantee,
// but this at least removes the plaintext seed from this value's memory.
func (sk *SecretKey) Destroy() {
	for i := range sk {
		sk[i] = 0
	}
}

// Destroy overwrites the agreement secret's backing bytes.
func (as *AgreementSecret) Destroy() {
	for i := range as {
		as[i] = 0
	}
}

// Sign signs message with the Ed25519 key derived from sk.
func (sk SecretKey) Sign(message []byte) []byte {
	priv := ed25519.NewKeyFromSeed(sk[:])
	return ed25519.Sign(priv, message)
}

// Verify reports whether sig is a valid Ed25519 signature over message by pk.
func (pk PublicKey) Verify(message, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pk[:]), message, sig)
}

// ToAgreement deterministically derives a Diffie-Hellman-capable scalar from
// sk on the Curve25519 group underlying its Ed25519 curve. This follows the
// same scalar-clamping convention Ed25519 itself uses: the signing scalar is
// the (clamped) first half of SHA-512(seed).
func (sk SecretKey) ToAgreement() AgreementSecret {
	h := sha512.Sum512(sk[:])
	var out AgreementSecret
	copy(out[:], h[:KeySize])
	out[0] &= 248
	out[31] &= 127
	out[31] |= 64
	return out
}

// ToAgreement converts pk's Edwards point into its Montgomery (X25519)
// equivalent for use in Diffie-Hellman.
func (pk PublicKey) ToAgreement() (AgreementPublic, error) {
	p, err := new(edwards25519.Point).SetBytes(pk[:])
	if err != nil {
		return AgreementPublic{}, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	var out AgreementPublic
	copy(out[:], p.BytesMontgomery())
	return out, nil
}

// DH computes the raw X25519 shared secret between secret and public.
func DH(secret AgreementSecret, public AgreementPublic) ([KeySize]byte, error) {
	shared, err := curve25519.X25519(secret[:], public[:])
	if err != nil {
		return [KeySize]byte{}, fmt.Errorf("%w: %w", ErrInvalidAgreementKey, err)
	}
	var out [KeySize]byte
	copy(out[:], shared)
	return out, nil
}

// Bytes returns the raw 32 bytes of the secret key.
func (sk SecretKey) Bytes() []byte { return sk[:] }

// Bytes returns the raw 32 bytes of the public key.
func (pk PublicKey) Bytes() []byte { return pk[:] }

// String returns the lowercase hex encoding of the public key.
func (pk PublicKey) String() string {
	const hextable = "0123456789abcdef"
	out := make([]byte, KeySize*2)
	for i, b := range pk {
		out[i*2] = hextable[b>>4]
		out[i*2+1] = hextable[b&0x0f]
	}
	return string(out)
}
