// hdcp-engine runs an HDCP 2.x transmitter engine and serves its methods
// over UDP.
//
// The shared memory region the engine reads certificates, SRMs and content
// from, and keeps its session store in, is a file (or an in-memory buffer).
// A host driver writes its inputs into that region and calls methods by
// sending method frames to the listen address.
//
// Usage:
//
//	hdcp-engine [options]
//
// Example:
//
//	hdcp-engine -memory /var/lib/hdcp/shm -memory-size 4194304 -attach -mdns
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pion/logging"

	"github.com/backkem/hdcp/pkg/accel"
	"github.com/backkem/hdcp/pkg/engine"
	"github.com/backkem/hdcp/pkg/host"
	"github.com/backkem/hdcp/pkg/memory"
	"github.com/backkem/hdcp/pkg/session"
	"github.com/backkem/hdcp/pkg/srm"
)

func main() {
	opts, err := ParseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("flags: %v", err)
	}
	if err := run(opts); err != nil {
		log.Fatalf("hdcp-engine: %v", err)
	}
}

func run(opts Options) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lf := logging.NewDefaultLoggerFactory()
	if opts.Verbose {
		lf.DefaultLogLevel = logging.LogLevelDebug
	}
	logger := lf.NewLogger("hdcp-engine")

	mem, closeMem, err := openMemory(opts)
	if err != nil {
		return err
	}
	defer closeMem()

	keys, err := keyTable(opts, logger)
	if err != nil {
		return err
	}
	acc, err := accel.NewSoftware(accel.SoftwareConfig{Keys: keys, Rand: rand.Reader, LoggerFactory: lf})
	if err != nil {
		return err
	}

	e, err := engine.New(engine.Config{
		Transport:         mem,
		Accelerator:       acc,
		StoreBase:         opts.StoreBase,
		MaxSessions:       opts.MaxSessions,
		MaxActiveSessions: opts.MaxActiveSessions,
		MaxStreams:        opts.MaxStreams,
		DemoSession:       opts.DemoSession,
		LoggerFactory:     lf,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	if opts.Attach {
		if err := e.Attach(ctx); err != nil {
			logger.Warnf("attach failed, waiting for Init: %v", err)
		}
	}

	conn, err := net.ListenPacket("udp", opts.Listen)
	if err != nil {
		return err
	}
	srv, err := host.NewServer(host.ServerConfig{Engine: e, Conn: conn, LoggerFactory: lf})
	if err != nil {
		conn.Close()
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Stop()

	if opts.Advertise {
		adv, err := advertise(ctx, e, conn.LocalAddr(), opts.Instance, lf)
		if err != nil {
			return err
		}
		defer adv.Close()
	}

	logger.Infof("engine ready on %s (%d sessions, %d streams)", conn.LocalAddr(), opts.MaxSessions, opts.MaxStreams)
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// openMemory opens the shared memory region and checks the session store
// fits in it.
func openMemory(opts Options) (memory.Transport, func(), error) {
	size := int64(memory.RoundUp(int(opts.MemorySize)))
	need := int64(opts.StoreBase) + int64(session.ScratchSize(opts.MaxSessions))
	if need > size {
		return nil, nil, fmt.Errorf("memory of %d bytes cannot hold the store at %#x (%d bytes needed)", size, opts.StoreBase, need)
	}
	if opts.MemoryPath == "" {
		return memory.NewBuffer(int(size)), func() {}, nil
	}
	f, err := memory.OpenFile(opts.MemoryPath, size)
	if err != nil {
		return nil, nil, err
	}
	return f, func() {
		f.Sync()
		f.Close()
	}, nil
}

// keyTable builds the accelerator key table from the options.
func keyTable(opts Options, logger logging.LeveledLogger) (map[accel.KeyID][]byte, error) {
	keys := map[accel.KeyID][]byte{}
	random := func(name string, n int) ([]byte, error) {
		b := make([]byte, n)
		if _, err := rand.Read(b); err != nil {
			return nil, err
		}
		logger.Warnf("no %s given, using a random one", name)
		return b, nil
	}

	var err error
	if keys[accel.KeyLC128] = opts.LC128; opts.LC128 == nil {
		if keys[accel.KeyLC128], err = random("lc128", 16); err != nil {
			return nil, err
		}
	}
	if keys[accel.KeyChipSecret] = opts.ChipSecret; opts.ChipSecret == nil {
		if keys[accel.KeyChipSecret], err = random("chip secret", 32); err != nil {
			return nil, err
		}
	}
	if opts.PairingKey != nil {
		keys[accel.KeyPairing] = opts.PairingKey
	}

	if opts.TestAuthority != "" {
		ca, err := loadAuthority(opts.TestAuthority, logger)
		if err != nil {
			return nil, err
		}
		roots := ca.Roots()
		keys[accel.KeyDCPRootModulus] = roots.RSA.Modulus
		keys[accel.KeyDCPRootExponent] = roots.RSA.Exponent
		keys[accel.KeyDCPLegacyP] = roots.DSA.P
		keys[accel.KeyDCPLegacyQ] = roots.DSA.Q
		keys[accel.KeyDCPLegacyG] = roots.DSA.G
		keys[accel.KeyDCPLegacyY] = roots.DSA.Y
		logger.Warnf("trusting test authority %s", opts.TestAuthority)
	}
	return keys, nil
}

// loadAuthority reads the test authority from path, creating it first if the
// file does not exist.
func loadAuthority(path string, logger logging.LeveledLogger) (*srm.Authority, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return srm.ParseAuthorityPEM(data)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	ca, err := srm.NewAuthority(rand.Reader)
	if err != nil {
		return nil, err
	}
	if data, err = ca.MarshalPEM(); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, err
	}
	logger.Infof("wrote new test authority to %s", path)
	return ca, nil
}

// advertise publishes the engine over mDNS with its current capabilities.
func advertise(ctx context.Context, e *engine.Engine, addr net.Addr, instance string, lf logging.LoggerFactory) (*host.Advertiser, error) {
	port := host.DefaultPort
	if udp, ok := addr.(*net.UDPAddr); ok {
		port = udp.Port
	}
	adv, err := host.NewAdvertiser(host.AdvertiserConfig{Instance: instance, Port: port, LoggerFactory: lf})
	if err != nil {
		return nil, err
	}
	caps := &engine.ReadCapsParams{}
	if code := e.Dispatch(ctx, caps); code != engine.CodeNone {
		return nil, fmt.Errorf("read caps: %s", code)
	}
	if err := adv.Start(host.TXTFromCaps(caps)); err != nil {
		return nil, err
	}
	return adv, nil
}
