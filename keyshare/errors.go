package keyshare

import "errors"

var (
	// ErrInvalidShare indicates a Share is not exactly 72 bytes.
	ErrInvalidShare = errors.New("keyshare: share must be 72 bytes")

	// ErrUnwrapFailed indicates the AES key-wrap integrity check failed;
	// treated as unauthorized access to the wrapped secret.
	ErrUnwrapFailed = errors.New("keyshare: unwrap failed (invalid share)")
)
