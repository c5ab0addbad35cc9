package host

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"

	"github.com/backkem/hdcp/pkg/engine"
	"github.com/backkem/hdcp/pkg/protocol"
)

// DNS-SD names of the engine service.
const (
	ServiceName   = "_hdcp-engine._udp"
	DefaultDomain = "local."
)

// MDNSServer is a running mDNS registration.
type MDNSServer interface {
	Shutdown()
}

// MDNSServerFactory registers mDNS services. Tests substitute their own.
type MDNSServerFactory interface {
	Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error)
}

type zeroconfServerFactory struct{}

func (zeroconfServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// TXT is the engine description published with the service.
type TXT struct {
	Version           protocol.Version
	Versions          protocol.VersionMask
	MaxSessions       uint8
	MaxActiveSessions uint8
	MaxStreams        uint8
	Initialized       bool
}

// TXTFromCaps describes an engine by its ReadCaps result.
func TXTFromCaps(caps *engine.ReadCapsParams) TXT {
	return TXT{
		Version:           caps.TxCaps.Version(),
		Versions:          caps.Versions,
		MaxSessions:       caps.MaxSessions,
		MaxActiveSessions: caps.MaxActiveSessions,
		MaxStreams:        caps.MaxStreams,
		Initialized:       caps.Initialized.Set(),
	}
}

// Encode returns the TXT records.
func (t TXT) Encode() []string {
	ready := "0"
	if t.Initialized {
		ready = "1"
	}
	return []string{
		"ver=" + t.Version.String(),
		"vm=" + strconv.Itoa(int(t.Versions)),
		"ms=" + strconv.Itoa(int(t.MaxSessions)),
		"ma=" + strconv.Itoa(int(t.MaxActiveSessions)),
		"st=" + strconv.Itoa(int(t.MaxStreams)),
		"in=" + ready,
	}
}

// AdvertiserConfig configures an Advertiser.
type AdvertiserConfig struct {
	// Instance is the DNS-SD instance name. If empty, a random name is used.
	Instance string

	// Port is the advertised UDP port. Default: DefaultPort.
	Port int

	// Interfaces to advertise on. If nil, all interfaces are used.
	Interfaces []net.Interface

	// ServerFactory registers the service. Default: grandcat/zeroconf.
	ServerFactory MDNSServerFactory

	// LoggerFactory for creating loggers. Optional.
	LoggerFactory logging.LoggerFactory
}

// Advertiser publishes the engine service over mDNS.
type Advertiser struct {
	config  AdvertiserConfig
	factory MDNSServerFactory
	log     logging.LeveledLogger

	mu       sync.Mutex
	server   MDNSServer
	instance string
	closed   bool
}

// NewAdvertiser creates an Advertiser.
func NewAdvertiser(config AdvertiserConfig) (*Advertiser, error) {
	if config.Port <= 0 || config.Port > 65535 {
		config.Port = DefaultPort
	}
	factory := config.ServerFactory
	if factory == nil {
		factory = zeroconfServerFactory{}
	}
	a := &Advertiser{config: config, factory: factory}
	if config.LoggerFactory != nil {
		a.log = config.LoggerFactory.NewLogger("advertiser")
	}
	return a, nil
}

// Start registers the service with the given description.
func (a *Advertiser) Start(txt TXT) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if a.server != nil {
		return ErrAlreadyStarted
	}

	instance := a.config.Instance
	if instance == "" {
		var err error
		if instance, err = randomInstanceName(); err != nil {
			return fmt.Errorf("advertiser: instance name: %w", err)
		}
	}
	records := txt.Encode()
	if a.log != nil {
		a.log.Debugf("registering %s.%s%s port %d txt %v", instance, ServiceName, DefaultDomain, a.config.Port, records)
	}
	server, err := a.factory.Register(instance, ServiceName, DefaultDomain, a.config.Port, records, a.config.Interfaces)
	if err != nil {
		return fmt.Errorf("advertiser: mDNS registration failed: %w", err)
	}
	a.server = server
	a.instance = instance
	if a.log != nil {
		a.log.Infof("advertising %s as %q", ServiceName, instance)
	}
	return nil
}

// Update replaces the published description.
func (a *Advertiser) Update(txt TXT) error {
	a.mu.Lock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
	if a.config.Instance == "" {
		a.config.Instance = a.instance
	}
	a.mu.Unlock()
	return a.Start(txt)
}

// Instance returns the registered instance name, or "" when not advertising.
func (a *Advertiser) Instance() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return ""
	}
	return a.instance
}

// Close withdraws the service.
func (a *Advertiser) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
	a.closed = true
	return nil
}

// randomInstanceName returns 16 uppercase hex characters.
func randomInstanceName() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016X", binary.BigEndian.Uint64(buf[:])), nil
}
