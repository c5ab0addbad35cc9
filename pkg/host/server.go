package host

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/glowlabs-org/threadgroup"
	"github.com/pion/logging"

	"github.com/backkem/hdcp/pkg/engine"
)

// DefaultPort is the UDP port the developer binary serves on.
const DefaultPort = 5290

// DefaultQueueSize is the default number of requests buffered between the
// read loop and the worker.
const DefaultQueueSize = 16

// Dispatcher runs one method. *engine.Engine implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, p engine.Params) engine.Code
}

// ServerConfig configures a Server.
type ServerConfig struct {
	// Engine receives the decoded method calls. Required.
	Engine Dispatcher

	// Conn is the packet connection to serve. Required.
	Conn net.PacketConn

	// QueueSize is the request backlog. Default: DefaultQueueSize.
	QueueSize int

	// LoggerFactory for creating loggers. Optional.
	LoggerFactory logging.LoggerFactory
}

type request struct {
	frame []byte
	addr  net.Addr
}

// Server reads method frames from a packet connection and runs them on a
// single worker, so methods reach the engine one at a time and in arrival
// order.
type Server struct {
	engine   Dispatcher
	conn     net.PacketConn
	requests chan request
	tg       threadgroup.ThreadGroup
	log      logging.LeveledLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
}

// NewServer creates a Server. Call Start to begin serving.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Engine == nil {
		return nil, ErrEngineRequired
	}
	if config.Conn == nil {
		return nil, ErrConnRequired
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}

	s := &Server{
		engine:   config.Engine,
		conn:     config.Conn,
		requests: make(chan request, config.QueueSize),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("host")
	}
	return s, nil
}

// Start launches the read loop and the worker.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tg.IsStopped() {
		return ErrClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	s.tg.OnStop(func() error {
		s.cancel()
		return s.conn.Close()
	})
	if err := s.tg.Launch(s.threadedReadLoop); err != nil {
		return err
	}
	if err := s.tg.Launch(s.threadedWorker); err != nil {
		return err
	}
	if s.log != nil {
		s.log.Infof("serving engine methods on %s", s.conn.LocalAddr())
	}
	return nil
}

// Stop closes the connection and waits for the loops to exit.
func (s *Server) Stop() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		s.cancel()
		s.conn.Close()
	}
	if err := s.tg.Stop(); err != nil {
		return ErrClosed
	}
	if s.log != nil {
		s.log.Info("server stopped")
	}
	return nil
}

// LocalAddr returns the served address.
func (s *Server) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *Server) threadedReadLoop() {
	buf := make([]byte, MaxFrameSize)
	for {
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			if s.tg.IsStopped() || errors.Is(err, net.ErrClosed) {
				return
			}
			if s.log != nil {
				s.log.Warnf("read: %v", err)
			}
			continue
		}
		if n == 0 {
			continue
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])

		select {
		case s.requests <- request{frame: frame, addr: addr}:
		case <-s.tg.StopChan():
			return
		}
	}
}

func (s *Server) threadedWorker() {
	for {
		select {
		case <-s.tg.StopChan():
			return
		case r := <-s.requests:
			resp := s.handle(r.frame)
			if _, err := s.conn.WriteTo(resp, r.addr); err != nil && s.log != nil {
				s.log.Warnf("reply to %v: %v", r.addr, err)
			}
		}
	}
}

// handle decodes one request, runs it and encodes the response.
func (s *Server) handle(frame []byte) []byte {
	p, err := DecodeFrame(frame)
	if err != nil {
		if s.log != nil {
			s.log.Warnf("dropping request: %v", err)
		}
		var m engine.Method
		if len(frame) > 0 {
			m = engine.Method(frame[0])
		}
		status := engine.CodeInvalidParam
		if errors.Is(err, ErrUnknownMethod) {
			status = engine.CodeIllegalOperation
		}
		return encodeStatus(m, status)
	}

	code := s.engine.Dispatch(s.ctx, p)
	if s.log != nil {
		s.log.Debugf("%s: %s", p.Method(), code)
	}
	resp, err := EncodeFrame(p, code)
	if err != nil {
		if s.log != nil {
			s.log.Errorf("encode %s response: %v", p.Method(), err)
		}
		return encodeStatus(p.Method(), engine.CodeUnknown)
	}
	return resp
}
