package engine

import "errors"

// Engine errors. Errors from the store, validator, pipeline and transport
// pass through wrapped and are classified by CodeOf.
var (
	// ErrTransportRequired is returned by Config.Validate without a transport.
	ErrTransportRequired = errors.New("engine: memory transport is required")

	// ErrAcceleratorRequired is returned by Config.Validate without an
	// accelerator.
	ErrAcceleratorRequired = errors.New("engine: crypto accelerator is required")

	// ErrInvalidStoreBase is returned for a store base off the region alignment.
	ErrInvalidStoreBase = errors.New("engine: store base must be 256-byte aligned")

	// ErrInvalidMaxSessions is returned for a session table size above 64.
	ErrInvalidMaxSessions = errors.New("engine: max sessions must be 1..64")

	// ErrInvalidMaxActive is returned when more active sessions than sessions
	// are configured.
	ErrInvalidMaxActive = errors.New("engine: max active sessions exceeds max sessions")

	// ErrInvalidMaxStreams is returned for a stream limit above 16.
	ErrInvalidMaxStreams = errors.New("engine: max streams must be 1..16")

	// ErrNotInitialized is returned for any method other than ReadCaps and
	// Init before the engine was initialized.
	ErrNotInitialized = errors.New("engine: not initialized")

	// ErrScratchBufferNotSet is returned by Init when no scratch region was
	// supplied.
	ErrScratchBufferNotSet = errors.New("engine: scratch buffer not set")

	// ErrInvalidStage is returned when a method is not legal in the session's
	// current stage.
	ErrInvalidStage = errors.New("engine: invalid stage")

	// ErrIllegalOperation is returned when a method does not apply to the
	// session at all, e.g. repeater methods on a plain receiver.
	ErrIllegalOperation = errors.New("engine: illegal operation")

	// ErrInvalidParam is returned for malformed parameter blocks.
	ErrInvalidParam = errors.New("engine: invalid parameter")

	// ErrUnknownMethod is returned by Dispatch for an unknown method.
	ErrUnknownMethod = errors.New("engine: unknown method")

	// ErrReceiverIDUnknown is returned when a test configuration restricts
	// receiver ids and the certificate's id is not listed.
	ErrReceiverIDUnknown = errors.New("engine: receiver id not recognized")

	// ErrHprimeMismatch is returned when H' does not match.
	ErrHprimeMismatch = errors.New("engine: H' validation failed")

	// ErrLprimeMismatch is returned when L' does not match.
	ErrLprimeMismatch = errors.New("engine: L' validation failed")

	// ErrVprimeMismatch is returned when V' does not match.
	ErrVprimeMismatch = errors.New("engine: V' validation failed")

	// ErrMprimeMismatch is returned when M' does not match.
	ErrMprimeMismatch = errors.New("engine: M' validation failed")

	// ErrReceiverRevoked is returned when a receiver in the session's
	// topology appears in the SRM.
	ErrReceiverRevoked = errors.New("engine: receiver revoked")

	// ErrSeqNumRollover is returned when a 24-bit sequence number wrapped.
	ErrSeqNumRollover = errors.New("engine: sequence number rollover")

	// ErrSeqNumReplay is returned when seq_num_V did not advance.
	ErrSeqNumReplay = errors.New("engine: sequence number replay")

	// ErrMaxAttempts is returned once V' failed MaxVprimeAttempts times.
	ErrMaxAttempts = errors.New("engine: maximum attempts reached")

	// ErrSessionActive is returned when a method needs an inactive session.
	ErrSessionActive = errors.New("engine: session active")

	// ErrPairingInfoInvalid is returned when sealed pairing info does not
	// open for the session's receiver.
	ErrPairingInfoInvalid = errors.New("engine: pairing info invalid")

	// ErrStreamCountInvalid is returned for a stream count of zero or above
	// the configured maximum.
	ErrStreamCountInvalid = errors.New("engine: invalid stream count")

	// ErrUnsupportedVersion is returned when a peer announces a protocol
	// version the engine was not initialized for.
	ErrUnsupportedVersion = errors.New("engine: unsupported protocol version")
)
