package accel

import "errors"

// Accelerator errors.
var (
	// ErrKeyNotFound is returned when the key table has no entry for a key id.
	ErrKeyNotFound = errors.New("accel: key not found")

	// ErrNotSecure is returned when a secret key is requested outside a Section.
	ErrNotSecure = errors.New("accel: secret key access outside secure section")

	// ErrInvalidKey is returned when an AES key has the wrong length.
	ErrInvalidKey = errors.New("accel: invalid key length")

	// ErrInvalidBlock is returned when a block buffer is not 16 bytes.
	ErrInvalidBlock = errors.New("accel: invalid block length")

	// ErrRandom is returned when the random source fails.
	ErrRandom = errors.New("accel: random source failure")
)
