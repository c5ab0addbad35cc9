package accel

import (
	"fmt"
	"io"
	"sync"

	"github.com/pion/logging"

	"github.com/backkem/hdcp/pkg/crypto"
)

// Accelerator is the hardware crypto capability consumed by the engine.
type Accelerator interface {
	// EncryptBlock AES-128 encrypts one 16-byte block of src into dst.
	EncryptBlock(key, dst, src []byte) error

	// DecryptBlock AES-128 decrypts one 16-byte block of src into dst.
	DecryptBlock(key, dst, src []byte) error

	// SecretKey returns a copy of a key-table entry. It must be called from
	// within a Section.
	SecretKey(id KeyID) ([]byte, error)

	// Random fills buf from the secure random source.
	Random(buf []byte) error

	// Enter opens a Section. Every Section must be closed with Exit.
	Enter() *Section
}

// Section brackets code running in elevated-trust mode. Exit is idempotent so
// it can be deferred and also called early on the success path.
type Section struct {
	mu     sync.Mutex
	owner  *depth
	exited bool
}

type depth struct {
	mu sync.Mutex
	n  int
}

func (d *depth) enter() *Section {
	d.mu.Lock()
	d.n++
	d.mu.Unlock()
	return &Section{owner: d}
}

func (d *depth) get() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.n
}

// Exit leaves the section.
func (s *Section) Exit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exited {
		return
	}
	s.exited = true
	s.owner.mu.Lock()
	s.owner.n--
	s.owner.mu.Unlock()
}

// SoftwareConfig configures a Software accelerator.
type SoftwareConfig struct {
	// Keys is the initial key table. Values are copied.
	Keys map[KeyID][]byte

	// Rand is the random source. Required.
	Rand io.Reader

	// LoggerFactory for creating loggers. Optional.
	LoggerFactory logging.LoggerFactory
}

// Software is an in-memory Accelerator.
type Software struct {
	mu   sync.RWMutex
	keys map[KeyID][]byte
	rand io.Reader
	sec  depth
	log  logging.LeveledLogger
}

// NewSoftware creates a software accelerator.
func NewSoftware(config SoftwareConfig) (*Software, error) {
	if config.Rand == nil {
		return nil, fmt.Errorf("%w: no random source", ErrRandom)
	}
	s := &Software{
		keys: make(map[KeyID][]byte, len(config.Keys)),
		rand: config.Rand,
	}
	for id, v := range config.Keys {
		s.keys[id] = append([]byte(nil), v...)
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("accel")
	}
	return s, nil
}

// SetKey installs or replaces a key-table entry.
func (s *Software) SetKey(id KeyID, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[id] = append([]byte(nil), value...)
}

// Depth returns the number of open sections.
func (s *Software) Depth() int {
	return s.sec.get()
}

// Enter implements Accelerator.
func (s *Software) Enter() *Section {
	return s.sec.enter()
}

// SecretKey implements Accelerator.
func (s *Software) SecretKey(id KeyID) ([]byte, error) {
	if s.sec.get() == 0 {
		if s.log != nil {
			s.log.Warnf("key %s requested outside secure section", id)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotSecure, id)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.keys[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	return append([]byte(nil), v...), nil
}

// Random implements Accelerator.
func (s *Software) Random(buf []byte) error {
	if _, err := io.ReadFull(s.rand, buf); err != nil {
		return fmt.Errorf("%w: %v", ErrRandom, err)
	}
	return nil
}

// EncryptBlock implements Accelerator.
func (s *Software) EncryptBlock(key, dst, src []byte) error {
	if len(key) != crypto.AESKeySize {
		return ErrInvalidKey
	}
	if len(src) != crypto.AESBlockSize || len(dst) != crypto.AESBlockSize {
		return ErrInvalidBlock
	}
	crypto.AESEncryptECB(key, dst, src)
	return nil
}

// DecryptBlock implements Accelerator.
func (s *Software) DecryptBlock(key, dst, src []byte) error {
	if len(key) != crypto.AESKeySize {
		return ErrInvalidKey
	}
	if len(src) != crypto.AESBlockSize || len(dst) != crypto.AESBlockSize {
		return ErrInvalidBlock
	}
	crypto.AESDecryptECB(key, dst, src)
	return nil
}
