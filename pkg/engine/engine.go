// Package engine is the HDCP 2.x authentication engine.
//
// An Engine owns the global state, the session store and the Active-Session
// Registry and executes one method at a time. A method is a parameter block
// (see Params) delivered to Dispatch; the engine looks up the session, runs
// the state-machine transition and stores the outcome as a Code in the
// block.
//
// A transmitter handshake runs
//
//	CreateSession → VerifyCertRx → GenerateEkm → VerifyHprime →
//	GenerateLcInit → [GetRttChallenge] → VerifyLprime → GenerateSkeInit →
//	[VerifyVprime] → SessionCtrl(activate) → Encrypt...
//
// Session state is written back to the store only when a transition
// succeeds, so a failed method leaves the session as it was.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/logging"

	"github.com/backkem/hdcp/pkg/accel"
	"github.com/backkem/hdcp/pkg/content"
	"github.com/backkem/hdcp/pkg/crypto"
	"github.com/backkem/hdcp/pkg/protocol"
	"github.com/backkem/hdcp/pkg/session"
	"github.com/backkem/hdcp/pkg/srm"
)

// Engine executes HDCP methods against the session store.
type Engine struct {
	config Config

	acc      accel.Accelerator
	store    *session.Store
	registry *session.Registry
	srm      *srm.Validator
	content  *content.Pipeline

	log logging.LeveledLogger

	// mu serializes Dispatch: one method runs start to finish at a time.
	mu sync.Mutex
}

// New creates an Engine. The store is unusable until Init or Attach.
func New(config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	store, err := session.NewStore(session.StoreConfig{
		Transport:     config.Transport,
		Base:          config.StoreBase,
		MaxSessions:   config.MaxSessions,
		Rand:          config.Rand,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}

	pipeline, err := content.NewPipeline(content.Config{
		Transport:     config.Transport,
		Accelerator:   config.Accelerator,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:   config,
		acc:      config.Accelerator,
		store:    store,
		registry: session.NewRegistry(config.MaxActiveSessions),
		srm:      srm.NewValidator(srm.ValidatorConfig{LoggerFactory: config.LoggerFactory}),
		content:  pipeline,
	}
	if config.LoggerFactory != nil {
		e.log = config.LoggerFactory.NewLogger("engine")
	}
	if e.log != nil {
		if config.KnownAnswers != nil {
			e.log.Warn("known-answer values replace the random source")
		}
		if config.DemoSession {
			e.log.Warn("demo session enabled; content may be encrypted without authentication")
		}
		if len(config.TestReceiverIDs) > 0 {
			e.log.Warnf("receiver ids restricted to %d test receivers", len(config.TestReceiverIDs))
		}
	}
	return e, nil
}

// Initialized reports whether the store is usable.
func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Initialized()
}

// ActiveSessions returns the ids of the sessions in the Active-Session
// Registry.
func (e *Engine) ActiveSessions() []session.ID {
	return e.registry.IDs()
}

// Dispatch runs the method of p and stores the result code in p. The
// returned Code equals p.Code().
func (e *Engine) Dispatch(ctx context.Context, p Params) Code {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.dispatch(ctx, p)
	code := CodeOf(err)
	p.ret().RetCode = code

	if e.log != nil {
		if err != nil {
			e.log.Debugf("%s failed: %s (%v)", p.Method(), code, err)
		} else {
			e.log.Tracef("%s ok", p.Method())
		}
	}
	return code
}

func (e *Engine) dispatch(ctx context.Context, p Params) error {
	if _, ok := p.(*ReadCapsParams); !ok {
		sec := e.acc.Enter()
		defer sec.Exit()
	}

	switch p := p.(type) {
	case *ReadCapsParams:
		return e.readCaps(p)
	case *InitParams:
		return e.init(ctx, p)
	case *CreateSessionParams:
		return e.createSession(ctx, p)
	case *VerifyCertRxParams:
		return e.verifyCertRx(ctx, p)
	case *GenerateEkmParams:
		return e.generateEkm(ctx, p)
	case *VerifyHprimeParams:
		return e.verifyHprime(ctx, p)
	case *EncryptPairingInfoParams:
		return e.encryptPairingInfo(ctx, p)
	case *DecryptPairingInfoParams:
		return e.decryptPairingInfo(ctx, p)
	case *GenerateLcInitParams:
		return e.generateLcInit(ctx, p)
	case *GetRttChallengeParams:
		return e.getRttChallenge(ctx, p)
	case *VerifyLprimeParams:
		return e.verifyLprime(ctx, p)
	case *GenerateSkeInitParams:
		return e.generateSkeInit(ctx, p)
	case *VerifyVprimeParams:
		return e.verifyVprime(ctx, p)
	case *SessionCtrlParams:
		return e.sessionCtrl(ctx, p)
	case *StreamManageParams:
		return e.streamManage(ctx, p)
	case *StreamReadyParams:
		return e.streamReady(ctx, p)
	case *ValidateSrmParams:
		return e.validateSrm(ctx, p)
	case *RevocationCheckParams:
		return e.revocationCheck(ctx, p)
	case *EncryptParams:
		return e.encrypt(ctx, p)
	case *ExchangeInfoParams:
		return e.exchangeInfo(ctx, p)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownMethod, p.Method())
	}
}

// Attach resumes on a scratch region formatted by an earlier Init, e.g.
// after the engine was restarted. Sessions persisted as Active are put back
// in the registry; those that no longer fit are deactivated.
func (e *Engine) Attach(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sec := e.acc.Enter()
	defer sec.Exit()

	chipSecret, err := e.acc.SecretKey(accel.KeyChipSecret)
	if err != nil {
		return err
	}
	defer crypto.Zeroize(chipSecret)

	e.registry.Clear()
	if err := e.store.Attach(ctx, chipSecret); err != nil {
		return err
	}

	sessions, err := e.store.Sessions(ctx)
	if err != nil && e.log != nil {
		e.log.Warnf("attach: %v", err)
	}
	for _, s := range sessions {
		if s.Status != session.StatusActive {
			continue
		}
		if err := e.registry.Add(session.NewRecord(s)); err != nil {
			s.Status = session.StatusInUse
			if err := e.store.Write(ctx, s); err != nil {
				return err
			}
			if e.log != nil {
				e.log.Warnf("attach: session %#x deactivated: %v", uint32(s.ID), err)
			}
		}
		s.Zeroize()
	}
	if e.log != nil {
		e.log.Infof("attached: %d sessions, %d active", e.store.InUse(), e.registry.Len())
	}
	return nil
}

// versions returns the versions the engine was initialized for.
func (e *Engine) versions() protocol.VersionMask {
	return protocol.VersionMask(e.store.Header().Versions)
}

// txCaps returns the engine's TxCaps: the highest supported version.
func txCaps(m protocol.VersionMask) protocol.Caps {
	for v := protocol.Version22; ; v-- {
		if m.Has(v) || v == protocol.Version20 {
			return protocol.NewCaps(v, 0)
		}
	}
}

// load checks initialization and reads the session named by a raw id.
func (e *Engine) load(ctx context.Context, id uint32) (*session.Session, error) {
	if !e.store.Initialized() {
		return nil, ErrNotInitialized
	}
	return e.store.Read(ctx, session.ID(id))
}

// loadAt reads a session and checks that it is in one of the given stages.
func (e *Engine) loadAt(ctx context.Context, id uint32, stages ...session.Stage) (*session.Session, error) {
	s, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, st := range stages {
		if s.Stage == st {
			return s, nil
		}
	}
	err = fmt.Errorf("%w: expected %s stage, got %s", ErrInvalidStage, stages[0], s.Stage)
	s.Zeroize()
	return nil, err
}

// advance moves s to stage next and persists it.
func (e *Engine) advance(ctx context.Context, s *session.Session, next session.Stage) error {
	prev := s.Stage
	s.Stage = next
	if err := e.store.Write(ctx, s); err != nil {
		return err
	}
	if e.log != nil {
		e.log.Debugf("session %#x: %s -> %s", uint32(s.ID), prev, next)
	}
	return nil
}

// random fills buf from the accelerator.
func (e *Engine) random(buf []byte) error {
	return e.acc.Random(buf)
}
