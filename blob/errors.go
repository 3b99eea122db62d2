package blob

import "errors"

var (
	// ErrNotFound indicates no content exists for the given hash, locally
	// or (if a peer was queried) remotely.
	ErrNotFound = errors.New("blob: not found")

	// ErrTransportFailure indicates a remote fetch failed for reasons
	// other than the content being absent (peer unreachable, malformed
	// response, read error).
	ErrTransportFailure = errors.New("blob: transport failure")

	// ErrHashMismatch indicates a remote peer returned bytes that do not
	// hash to the requested Link; the response is discarded uncached.
	ErrHashMismatch = errors.New("blob: fetched content does not match requested hash")

	// ErrInvalidBaseDir indicates a FileStore base directory path is
	// invalid.
	ErrInvalidBaseDir = errors.New("blob: invalid base directory")

	// ErrEmptyContent indicates an attempt to store empty content.
	ErrEmptyContent = errors.New("blob: content is empty")

	// ErrIOFailure indicates a local file read/write error.
	ErrIOFailure = errors.New("blob: I/O failure")
)
