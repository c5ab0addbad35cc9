package host

import "errors"

// Host errors.
var (
	// ErrClosed is returned when an operation is attempted on a stopped
	// server or closed client.
	ErrClosed = errors.New("host: closed")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("host: already started")

	// ErrEngineRequired is returned when a server has no engine to dispatch to.
	ErrEngineRequired = errors.New("host: engine required")

	// ErrConnRequired is returned when no packet connection is configured.
	ErrConnRequired = errors.New("host: connection required")

	// ErrShortFrame is returned when a frame is smaller than its header.
	ErrShortFrame = errors.New("host: short frame")

	// ErrFrameLength is returned when the length field disagrees with the
	// frame or with the method's parameter block size.
	ErrFrameLength = errors.New("host: frame length mismatch")

	// ErrUnknownMethod is returned for a method byte outside the ABI.
	ErrUnknownMethod = errors.New("host: unknown method")

	// ErrMethodMismatch is returned when a response names another method
	// than the request.
	ErrMethodMismatch = errors.New("host: response method mismatch")
)
