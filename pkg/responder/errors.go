package responder

import "errors"

var (
	// ErrCorruptContext indicates a stored user context whose serialized
	// blob could not be decoded. The engine recovers by answering from the
	// default context; the store never repairs the row on read.
	ErrCorruptContext = errors.New("user context corrupted")
)
