package host

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pion/transport/v3/test"
)

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess delivers queued packets from a background goroutine.
	AutoProcess bool

	// ProcessInterval is how often the auto-processor runs.
	// Default: 1ms
	ProcessInterval time.Duration

	// DropRate is the probability of silently dropping a written packet.
	DropRate float64
}

// DefaultPipeConfig returns a pipe that delivers packets on its own and
// loses none.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: time.Millisecond,
	}
}

// Pipe is an in-memory packet link between a Client and a Server, for
// tests that need no sockets. It wraps pion's test.Bridge.
type Pipe struct {
	bridge *test.Bridge
	conns  [2]*PipePacketConn

	mu       sync.Mutex
	rng      *rand.Rand
	dropRate float64
	closed   bool
	auto     bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewPipe creates a pipe with DefaultPipeConfig.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a pipe.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	if config.ProcessInterval <= 0 {
		config.ProcessInterval = time.Millisecond
	}
	p := &Pipe{
		bridge:   test.NewBridge(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		dropRate: config.DropRate,
		auto:     config.AutoProcess,
		stopCh:   make(chan struct{}),
	}
	p.conns[0] = &PipePacketConn{conn: p.bridge.GetConn0(), local: PipeAddr(0), peer: PipeAddr(1), pipe: p}
	p.conns[1] = &PipePacketConn{conn: p.bridge.GetConn1(), local: PipeAddr(1), peer: PipeAddr(0), pipe: p}

	if p.auto {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			ticker := time.NewTicker(config.ProcessInterval)
			defer ticker.Stop()
			for {
				select {
				case <-p.stopCh:
					return
				case <-ticker.C:
					p.bridge.Tick()
				}
			}
		}()
	}
	return p
}

// Conn0 returns endpoint 0.
func (p *Pipe) Conn0() *PipePacketConn { return p.conns[0] }

// Conn1 returns endpoint 1.
func (p *Pipe) Conn1() *PipePacketConn { return p.conns[1] }

// Process delivers every queued packet and returns how many were delivered.
// Only needed when AutoProcess is off.
func (p *Pipe) Process() int {
	count := 0
	for {
		n := p.bridge.Tick()
		if n == 0 {
			return count
		}
		count += n
	}
}

// drop reports whether the next packet is lost.
func (p *Pipe) drop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropRate > 0 && p.rng.Float64() < p.dropRate
}

// Close stops delivery and closes both endpoints.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.auto {
		close(p.stopCh)
	}
	p.mu.Unlock()
	p.wg.Wait()

	err0 := p.conns[0].Close()
	err1 := p.conns[1].Close()
	if err0 != nil {
		return err0
	}
	return err1
}

// PipeAddr is the address of a pipe endpoint.
type PipeAddr int

// Network returns "pipe".
func (a PipeAddr) Network() string { return "pipe" }

func (a PipeAddr) String() string { return fmt.Sprintf("pipe:%d", int(a)) }

// PipePacketConn adapts a pipe endpoint to net.PacketConn. Every packet
// comes from, and goes to, the other endpoint.
type PipePacketConn struct {
	conn  net.Conn
	local PipeAddr
	peer  PipeAddr
	pipe  *Pipe

	closeOnce sync.Once
	closeErr  error
}

// ReadFrom reads one packet.
func (c *PipePacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	n, err := c.conn.Read(b)
	if errors.Is(err, io.EOF) {
		err = fmt.Errorf("%w: %v", net.ErrClosed, err)
	}
	return n, c.peer, err
}

// WriteTo writes one packet; addr is ignored.
func (c *PipePacketConn) WriteTo(b []byte, _ net.Addr) (int, error) {
	if c.pipe.drop() {
		return len(b), nil
	}
	return c.conn.Write(b)
}

// Close closes the endpoint. Further calls return the first result.
func (c *PipePacketConn) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.conn.Close() })
	return c.closeErr
}

// LocalAddr returns the endpoint address.
func (c *PipePacketConn) LocalAddr() net.Addr { return c.local }

// SetDeadline implements net.PacketConn.
func (c *PipePacketConn) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

// SetReadDeadline implements net.PacketConn.
func (c *PipePacketConn) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }

// SetWriteDeadline implements net.PacketConn.
func (c *PipePacketConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

var _ net.PacketConn = (*PipePacketConn)(nil)
