package bucket

import "errors"

var (
	// ErrMalformed indicates a decoded Node or Manifest violates the
	// wire format (duplicate names, wrong-length fixed fields, missing
	// required fields).
	ErrMalformed = errors.New("bucket: malformed encoding")

	// ErrNotFound indicates a lookup or list path does not resolve.
	ErrNotFound = errors.New("bucket: path not found")

	// ErrNotDirectory indicates a path component that must be a
	// directory resolved to a file instead.
	ErrNotDirectory = errors.New("bucket: not a directory")

	// ErrInvalidPath indicates a path string violates the naming rules
	// (empty components, non-UTF-8, etc).
	ErrInvalidPath = errors.New("bucket: invalid path")

	// ErrInvalidManifest indicates a Manifest failed validation.
	ErrInvalidManifest = errors.New("bucket: invalid manifest")

	// ErrNoOwner indicates a manifest's shares carry no Owner principal.
	ErrNoOwner = errors.New("bucket: manifest has no owner")

	// ErrBucketMismatch indicates a chained manifest's id does not match
	// its predecessor's.
	ErrBucketMismatch = errors.New("bucket: manifest id mismatch with previous")
)
