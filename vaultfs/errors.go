package vaultfs

import "errors"

var (
	// ErrInvalidPath indicates a path string violates the naming rules:
	// it must be "/"-delimited with no empty components.
	ErrInvalidPath = errors.New("vaultfs: invalid path")

	// ErrNotFound indicates a lookup or list path does not resolve to any
	// entry.
	ErrNotFound = errors.New("vaultfs: path not found")

	// ErrNotDirectory indicates a path component that must be a
	// directory resolved to a file instead.
	ErrNotDirectory = errors.New("vaultfs: not a directory")

	// ErrIsDirectory indicates a lookup path resolved to a directory
	// where a file was expected.
	ErrIsDirectory = errors.New("vaultfs: is a directory")
)
