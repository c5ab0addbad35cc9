package content

import "errors"

// Content pipeline errors.
var (
	// ErrInvalidRequest is returned for a malformed encryption request.
	ErrInvalidRequest = errors.New("content: invalid request")

	// ErrCounterExhausted is returned when the input counter would wrap.
	ErrCounterExhausted = errors.New("content: input counter exhausted")

	// ErrMarkerBit is returned when a PES header word lacks its marker bit.
	ErrMarkerBit = errors.New("content: PES marker bit not set")
)
