package protocol

import "errors"

// Protocol errors.
var (
	// ErrTopologyExceeded is returned when a repeater topology exceeds the
	// protocol limits.
	ErrTopologyExceeded = errors.New("protocol: repeater topology exceeded")

	// ErrTooManyDevices is returned when a receiver id list is longer than
	// MaxDeviceCount.
	ErrTooManyDevices = errors.New("protocol: too many receiver ids")

	// ErrTooManyStreams is returned when more than MaxStreams entries are given.
	ErrTooManyStreams = errors.New("protocol: too many streams")
)
