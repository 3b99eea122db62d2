package vaultfs

import "unicode/utf8"

// SplitPath parses a bucket path into its ordered name components. "/" and
// "" both name the bucket root and split to zero components. Every other
// path must start with "/"; components are the substrings between
// separators. Empty components (a leading, trailing, or doubled "/") are
// rejected, as is any non-UTF-8 component. "." and ".." are ordinary
// names, not special.
func SplitPath(path string) ([]string, error) {
	if path == "" || path == "/" {
		return nil, nil
	}
	if path[0] != '/' {
		return nil, ErrInvalidPath
	}

	var parts []string
	start := 1
	for i := 1; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			component := path[start:i]
			if component == "" {
				return nil, ErrInvalidPath
			}
			if !utf8.ValidString(component) {
				return nil, ErrInvalidPath
			}
			parts = append(parts, component)
			start = i + 1
		}
	}
	return parts, nil
}
