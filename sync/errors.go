package sync

import "errors"

var (
	// ErrFork indicates multi-hop verification found the remote's chain
	// does not linearly extend the local cursor. The local cursor is
	// left untouched.
	ErrFork = errors.New("sync: fork detected")

	// ErrDepthExceeded indicates multi-hop verification walked
	// MaxHistoryDepth manifests without reaching the local cursor.
	ErrDepthExceeded = errors.New("sync: multi-hop verification exceeded max history depth")

	// ErrUnauthorized indicates the remote peer that proposed an update
	// is not named in the verified manifest's shares.
	ErrUnauthorized = errors.New("sync: remote peer not authorized by manifest shares")

	// ErrNoPeerAhead indicates a pull found no known peer reporting
	// status Ahead.
	ErrNoPeerAhead = errors.New("sync: no known peer reported ahead")
)
