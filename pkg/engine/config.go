package engine

import (
	"io"

	"github.com/pion/logging"

	"github.com/backkem/hdcp/pkg/accel"
	"github.com/backkem/hdcp/pkg/memory"
	"github.com/backkem/hdcp/pkg/protocol"
	"github.com/backkem/hdcp/pkg/session"
)

// Defaults.
const (
	DefaultMaxSessions       = 32
	DefaultMaxActiveSessions = session.DefaultMaxActive
	DefaultMaxStreams        = protocol.MaxStreams
)

// KnownAnswers replaces the random handshake values with fixed ones.
// Verification builds only.
type KnownAnswers struct {
	Rtx [protocol.RtxSize]byte
	Km  [protocol.KmSize]byte
	Rn  [protocol.RnSize]byte
	Ks  [protocol.KsSize]byte
	Riv [protocol.RivSize]byte
}

// Config holds the configuration of an Engine.
type Config struct {
	// Transport reaches the external memory holding the session store,
	// certificates, SRMs and content. Required.
	Transport memory.Transport

	// Accelerator provides AES, the secret key table and randomness. Required.
	Accelerator accel.Accelerator

	// StoreBase is the offset of the session-store scratch region.
	StoreBase uint64

	// MaxSessions is the session table size (default: 32, max: 64).
	MaxSessions int

	// MaxActiveSessions is the Active-Session Registry size (default: 8).
	MaxActiveSessions int

	// MaxStreams caps the streams per session (default and max: 16).
	MaxStreams int

	// Versions are the protocol versions offered (default: all).
	Versions protocol.VersionMask

	// Rand supplies store IVs and OAEP padding. Defaults to the
	// accelerator's random source.
	Rand io.Reader

	// LoggerFactory for creating loggers. Optional.
	LoggerFactory logging.LoggerFactory

	// TestReceiverIDs, when non-empty, restricts VerifyCertRx to these
	// receivers. Test configurations only.
	TestReceiverIDs []protocol.ReceiverID

	// KnownAnswers fixes the random values. Verification builds only.
	KnownAnswers *KnownAnswers

	// DemoSession lets Encrypt run for a session id that was never
	// activated, with an all-zero session key. Test only.
	DemoSession bool
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Transport == nil {
		return ErrTransportRequired
	}

	if c.Accelerator == nil {
		return ErrAcceleratorRequired
	}

	if c.StoreBase%session.RegionAlign != 0 {
		return ErrInvalidStoreBase
	}

	if c.MaxSessions < 0 || c.MaxSessions > session.MaxSlots {
		return ErrInvalidMaxSessions
	}

	if c.MaxStreams < 0 || c.MaxStreams > protocol.MaxStreams {
		return ErrInvalidMaxStreams
	}

	maxSessions := c.MaxSessions
	if maxSessions == 0 {
		maxSessions = DefaultMaxSessions
	}
	if c.MaxActiveSessions < 0 || c.MaxActiveSessions > maxSessions {
		return ErrInvalidMaxActive
	}

	return nil
}

// applyDefaults fills in default values for unset fields.
func (c *Config) applyDefaults() {
	if c.MaxSessions == 0 {
		c.MaxSessions = DefaultMaxSessions
	}

	if c.MaxActiveSessions == 0 {
		c.MaxActiveSessions = min(DefaultMaxActiveSessions, c.MaxSessions)
	}

	if c.MaxStreams == 0 {
		c.MaxStreams = DefaultMaxStreams
	}

	if c.Versions == 0 {
		c.Versions = protocol.AllVersions
	}

	if c.Rand == nil {
		c.Rand = randReader{c.Accelerator}
	}
}

// randReader adapts the accelerator's random source to io.Reader.
type randReader struct {
	acc accel.Accelerator
}

func (r randReader) Read(p []byte) (int, error) {
	if err := r.acc.Random(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
