package engine

import (
	"context"
	"fmt"

	"github.com/backkem/hdcp/pkg/accel"
	"github.com/backkem/hdcp/pkg/crypto"
	"github.com/backkem/hdcp/pkg/protocol"
	"github.com/backkem/hdcp/pkg/session"
)

func (e *Engine) readCaps(p *ReadCapsParams) error {
	versions := e.config.Versions
	if e.store.Initialized() {
		versions = e.versions()
	}
	p.Versions = versions
	p.MaxSessions = uint8(e.config.MaxSessions)
	p.MaxActiveSessions = uint8(e.config.MaxActiveSessions)
	p.MaxStreams = uint8(e.config.MaxStreams)
	p.TxCaps = txCaps(versions)
	p.Initialized = BoolOf(e.store.Initialized())
	p.ScratchSize = uint32(session.ScratchSize(e.config.MaxSessions))
	return nil
}

// init formats the scratch region. Every session of a previous Init becomes
// unreadable and the registry is emptied.
func (e *Engine) init(ctx context.Context, p *InitParams) error {
	if p.ScratchSize == 0 {
		return ErrScratchBufferNotSet
	}
	if need := session.ScratchSize(e.config.MaxSessions); int(p.ScratchSize) < need {
		return fmt.Errorf("%w: scratch region of %d bytes, need %d", ErrInvalidParam, p.ScratchSize, need)
	}
	versions := e.config.Versions
	if p.Versions != 0 {
		versions &= p.Versions
	}
	if versions == 0 {
		return fmt.Errorf("%w: no common version in %#02x", ErrUnsupportedVersion, uint8(p.Versions))
	}

	chipSecret, err := e.acc.SecretKey(accel.KeyChipSecret)
	if err != nil {
		return err
	}
	defer crypto.Zeroize(chipSecret)

	e.registry.Clear()
	if err := e.store.Init(ctx, chipSecret, session.Globals{Versions: uint8(versions), ChipID: p.ChipID}); err != nil {
		return err
	}
	if e.log != nil {
		e.log.Infof("initialized: %d session slots, versions %#02x", e.store.Capacity(), uint8(versions))
	}
	return nil
}

// exchangeInfo records the receiver's capabilities and returns ours. RxCaps
// is covered by H', so it can only change before VerifyHprime.
func (e *Engine) exchangeInfo(ctx context.Context, p *ExchangeInfoParams) error {
	s, err := e.load(ctx, p.SessionID)
	if err != nil {
		return err
	}
	defer s.Zeroize()

	if s.Status == session.StatusActive {
		return ErrSessionActive
	}
	if s.Stage != session.StageAkeInit && s.Stage != session.StageVerifyCert {
		return fmt.Errorf("%w: receiver info is fixed after %s", ErrInvalidStage, session.StageVerifyCert)
	}
	if err := e.checkVersion(s.TxCaps, p.RxCaps); err != nil {
		return err
	}
	s.RxCaps = p.RxCaps
	s.Repeater = p.RxCaps.Repeater()
	if err := e.store.Write(ctx, s); err != nil {
		return err
	}
	p.TxCaps = s.TxCaps
	return nil
}

// checkVersion rejects a receiver whose negotiated version the engine was
// not initialized for.
func (e *Engine) checkVersion(tx, rx protocol.Caps) error {
	v := min(tx.Version(), rx.Version())
	if !e.versions().Has(v) {
		return fmt.Errorf("%w: %s", ErrUnsupportedVersion, v)
	}
	return nil
}
