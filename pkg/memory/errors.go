package memory

import "errors"

// Memory transport errors.
var (
	// ErrTransport wraps every failure of the underlying store. It is never
	// a security failure.
	ErrTransport = errors.New("memory: transport failure")

	// ErrMisaligned is returned when an offset or length is not a multiple of Align.
	ErrMisaligned = errors.New("memory: misaligned transfer")

	// ErrOutOfRange is returned when a transfer extends past the end of the store.
	ErrOutOfRange = errors.New("memory: transfer out of range")

	// ErrClosed is returned after the store has been closed.
	ErrClosed = errors.New("memory: store closed")
)
