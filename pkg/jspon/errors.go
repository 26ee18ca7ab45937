package jspon

import "errors"

var (
	// ErrMalformedDocument indicates a document does not match the
	// expected JSPON structural shape during expand. Decoding either
	// fully succeeds or fails; no partially expanded entry is returned.
	ErrMalformedDocument = errors.New("malformed jspon document")

	// ErrUnsupportedValue indicates collapse encountered a value with no
	// defined JSPON representation (for example an opaque foreign struct).
	// This is a hard stop, not a recoverable case.
	ErrUnsupportedValue = errors.New("unsupported value kind")
)
