package session

import "errors"

// Session package errors.
var (
	// ErrNotInitialized is returned before Init or Attach succeeded.
	ErrNotInitialized = errors.New("session: store not initialized")

	// ErrInvalidSessionID is returned when an id names no slot of the table.
	ErrInvalidSessionID = errors.New("session: invalid session ID")

	// ErrSessionNotFound is returned when the id's slot is free.
	ErrSessionNotFound = errors.New("session: session not found")

	// ErrStaleSession is returned when the slot holds a different session.
	ErrStaleSession = errors.New("session: stale session ID")

	// ErrSessionTableFull is returned when no slot is free.
	ErrSessionTableFull = errors.New("session: session table full")

	// ErrIntegrity is returned when a persisted block fails its signature check.
	ErrIntegrity = errors.New("session: integrity check failed")

	// ErrFormat is returned when the scratch header is from another format or
	// table size.
	ErrFormat = errors.New("session: incompatible scratch format")

	// ErrStreamCounterExhausted is returned when the global stream counter
	// would wrap.
	ErrStreamCounterExhausted = errors.New("session: stream counter exhausted")

	// ErrRegistryFull is returned when the Registry has no free record.
	ErrRegistryFull = errors.New("session: active registry full")

	// ErrDuplicateSession is returned when adding a second record for a session.
	ErrDuplicateSession = errors.New("session: duplicate active record")

	// ErrInvalidCapacity is returned for a table size outside 1..MaxSlots.
	ErrInvalidCapacity = errors.New("session: invalid capacity")
)
