package codec

import "errors"

var (
	// ErrMalformed indicates a byte stream could not be decoded into a
	// well-formed value: a truncated field, a length that overruns the
	// buffer, or an unknown variant tag.
	ErrMalformed = errors.New("codec: malformed encoding")

	// ErrUnknownVariant indicates a tagged union carried a discriminant
	// byte this codec version does not recognize.
	ErrUnknownVariant = errors.New("codec: unknown variant tag")

	// ErrInvalidLink indicates a Link's fixed-size fields did not decode
	// to the expected lengths.
	ErrInvalidLink = errors.New("codec: invalid link")
)
