package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/backkem/hdcp/pkg/engine"
	"github.com/backkem/hdcp/pkg/host"
)

// Options holds the command-line flags.
type Options struct {
	// Listen is the UDP address method frames are served on.
	Listen string

	// MemoryPath is the file backing the shared memory region. If empty,
	// an in-memory buffer is used and nothing survives a restart.
	MemoryPath string

	// MemorySize is the size of the shared memory region in bytes.
	MemorySize int64

	// StoreBase is the offset of the session-store scratch region.
	StoreBase uint64

	MaxSessions       int
	MaxActiveSessions int
	MaxStreams        int

	// Attach reloads the scratch region on start instead of waiting for Init.
	Attach bool

	// Advertise publishes the service over mDNS.
	Advertise bool

	// Instance is the mDNS instance name.
	Instance string

	// Secrets, hex encoded. A missing chip secret or lc128 is generated
	// at random, which makes the scratch region unreadable after a restart.
	LC128      []byte
	ChipSecret []byte
	PairingKey []byte

	// TestAuthority is a file holding test signing keys. The engine trusts
	// their roots; the file is created on first use so local tooling can
	// load it with srm.ParseAuthorityPEM and issue certificates and SRMs.
	TestAuthority string

	// DemoSession enables the unauthenticated demo session.
	DemoSession bool

	Verbose bool
}

// DefaultOptions returns the defaults used by ParseFlags.
func DefaultOptions() Options {
	return Options{
		Listen:      fmt.Sprintf(":%d", host.DefaultPort),
		MemorySize:  1 << 20,
		MaxSessions: engine.DefaultMaxSessions,
		MaxStreams:  engine.DefaultMaxStreams,
	}
}

// hexFlag parses a hex-encoded secret of the given size into dst.
func hexFlag(dst *[]byte, size int) func(string) error {
	return func(s string) error {
		b, err := hex.DecodeString(s)
		if err != nil {
			return err
		}
		if len(b) != size {
			return fmt.Errorf("want %d bytes, got %d", size, len(b))
		}
		*dst = b
		return nil
	}
}

// ParseFlags parses the command line:
//
//	-listen          UDP address (default: :5290)
//	-memory          file backing the shared memory (default: in-memory)
//	-memory-size     shared memory size in bytes (default: 1 MiB)
//	-store-base      scratch region offset (default: 0)
//	-sessions        session slots (default: 32)
//	-active          active sessions (default: min(8, sessions))
//	-streams         streams per session (default: 16)
//	-attach          reload the scratch region on start
//	-mdns            advertise over mDNS
//	-instance        mDNS instance name (default: random)
//	-lc128           hex lc128 (16 bytes)
//	-chip-secret     hex chip secret (32 bytes)
//	-pairing-key     hex pairing key (16 bytes)
//	-test-authority  test signing key file, created if missing
//	-demo            enable the demo session
//	-v               debug logging
func ParseFlags(args []string) (Options, error) {
	o := DefaultOptions()
	fs := flag.NewFlagSet("hdcp-engine", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	fs.StringVar(&o.Listen, "listen", o.Listen, "UDP address")
	fs.StringVar(&o.MemoryPath, "memory", "", "file backing the shared memory (empty = in-memory)")
	fs.Int64Var(&o.MemorySize, "memory-size", o.MemorySize, "shared memory size in bytes")
	fs.Uint64Var(&o.StoreBase, "store-base", 0, "scratch region offset")
	fs.IntVar(&o.MaxSessions, "sessions", o.MaxSessions, "session slots")
	fs.IntVar(&o.MaxActiveSessions, "active", 0, "active sessions (0 = default)")
	fs.IntVar(&o.MaxStreams, "streams", o.MaxStreams, "streams per session")
	fs.BoolVar(&o.Attach, "attach", false, "reload the scratch region on start")
	fs.BoolVar(&o.Advertise, "mdns", false, "advertise over mDNS")
	fs.StringVar(&o.Instance, "instance", "", "mDNS instance name")
	fs.Func("lc128", "hex lc128 (16 bytes)", hexFlag(&o.LC128, 16))
	fs.Func("chip-secret", "hex chip secret (32 bytes)", hexFlag(&o.ChipSecret, 32))
	fs.Func("pairing-key", "hex pairing key (16 bytes)", hexFlag(&o.PairingKey, 16))
	fs.StringVar(&o.TestAuthority, "test-authority", "", "test signing key file, created if missing")
	fs.BoolVar(&o.DemoSession, "demo", false, "enable the demo session")
	fs.BoolVar(&o.Verbose, "v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.MemorySize <= 0 {
		return o, fmt.Errorf("memory-size must be positive, got %d", o.MemorySize)
	}
	return o, nil
}
