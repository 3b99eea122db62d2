package metastore

import "errors"

var (
	// ErrNotFound indicates the requested bucket has no record.
	ErrNotFound = errors.New("metastore: bucket not found")

	// ErrConflict indicates advance_cursor's compare-and-swap failed
	// because the stored current link no longer matched the caller's
	// expected old link.
	ErrConflict = errors.New("metastore: cursor advance conflict")

	// ErrNilParam indicates a required parameter is nil or zero-valued
	// where a value was required.
	ErrNilParam = errors.New("metastore: required parameter is nil")
)
