package identity

import "errors"

var (
	// ErrInvalidSecretKey indicates secret key material is not 32 bytes.
	ErrInvalidSecretKey = errors.New("identity: invalid secret key length")

	// ErrInvalidPublicKey indicates public key material is not 32 bytes or
	// does not decode to a valid curve point.
	ErrInvalidPublicKey = errors.New("identity: invalid public key")

	// ErrInvalidAgreementKey indicates agreement key material is malformed.
	ErrInvalidAgreementKey = errors.New("identity: invalid agreement key")

	// ErrKeyFileMode indicates a loaded key file has overly permissive mode bits.
	ErrKeyFileMode = errors.New("identity: key file permissions too permissive")

	// ErrInvalidKeyFile indicates a key envelope could not be parsed.
	ErrInvalidKeyFile = errors.New("identity: invalid key file")
)
