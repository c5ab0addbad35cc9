package host

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/backkem/hdcp/pkg/engine"
)

// DefaultCallTimeout bounds a call whose context has no deadline.
const DefaultCallTimeout = 5 * time.Second

// ClientConfig configures a Client.
type ClientConfig struct {
	// Conn is the local packet connection. Required.
	Conn net.PacketConn

	// Addr is the server address.
	Addr net.Addr

	// Timeout applies when the call context has no deadline.
	// Default: DefaultCallTimeout.
	Timeout time.Duration

	// LoggerFactory for creating loggers. Optional.
	LoggerFactory logging.LoggerFactory
}

// Client issues method calls to a Server. Calls are serialized; one
// request is outstanding at a time.
type Client struct {
	conn    net.PacketConn
	addr    net.Addr
	timeout time.Duration
	log     logging.LeveledLogger

	mu     sync.Mutex
	buf    []byte
	closed bool
}

// NewClient creates a Client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Conn == nil {
		return nil, ErrConnRequired
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultCallTimeout
	}
	c := &Client{
		conn:    config.Conn,
		addr:    config.Addr,
		timeout: config.Timeout,
		buf:     make([]byte, MaxFrameSize),
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("host-client")
	}
	return c, nil
}

// Call sends p, waits for the response and copies the returned block into
// p. The returned Code is the status of the response frame; a non-nil error
// means the exchange itself failed.
func (c *Client) Call(ctx context.Context, p engine.Params) (engine.Code, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return engine.CodeUnknown, ErrClosed
	}

	req, err := EncodeFrame(p, engine.CodeNone)
	if err != nil {
		return engine.CodeUnknown, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return engine.CodeUnknown, err
	}
	if _, err := c.conn.WriteTo(req, c.addr); err != nil {
		return engine.CodeUnknown, err
	}
	if c.log != nil {
		c.log.Tracef("%s: sent %d bytes", p.Method(), len(req))
	}

	n, _, err := c.conn.ReadFrom(c.buf)
	if err != nil {
		return engine.CodeUnknown, err
	}
	resp := c.buf[:n]
	h, err := DecodeHeader(resp)
	if err != nil {
		return engine.CodeUnknown, err
	}
	if h.Method != p.Method() {
		return engine.CodeUnknown, fmt.Errorf("%w: sent %s, got %s", ErrMethodMismatch, p.Method(), h.Method)
	}
	if h.Length == 0 {
		return h.Status, nil
	}
	if err := decodeBlock(resp[HeaderSize:], p); err != nil {
		return engine.CodeUnknown, err
	}
	return h.Status, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	return c.conn.Close()
}
