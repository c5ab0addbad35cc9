package engine

import (
	"context"

	"github.com/backkem/hdcp/pkg/crypto"
	"github.com/backkem/hdcp/pkg/protocol"
	"github.com/backkem/hdcp/pkg/session"
)

// generateLcInit draws Rn (or takes the transmitter's as receiver) and
// precomputes L.
func (e *Engine) generateLcInit(ctx context.Context, p *GenerateLcInitParams) error {
	s, err := e.loadAt(ctx, p.SessionID, session.StageVerifyHprime)
	if err != nil {
		return err
	}
	defer s.Zeroize()

	switch {
	case s.Role == session.RoleReceiver:
		s.Rn = p.Rn
	case e.config.KnownAnswers != nil:
		s.Rn = e.config.KnownAnswers.Rn
	default:
		if err := e.random(s.Rn[:]); err != nil {
			return err
		}
	}
	s.L = protocol.L(s.Kd, s.Rrx, s.Rn)
	if err := e.advance(ctx, s, session.StageGenerateLcInit); err != nil {
		return err
	}
	p.Rn = s.Rn
	return nil
}

// getRttChallenge returns the least-significant half of L for the
// pre-computed locality check.
func (e *Engine) getRttChallenge(ctx context.Context, p *GetRttChallengeParams) error {
	s, err := e.loadAt(ctx, p.SessionID, session.StageGenerateLcInit)
	if err != nil {
		return err
	}
	defer s.Zeroize()

	if err := e.advance(ctx, s, session.StageGetRttChallenge); err != nil {
		return err
	}
	copy(p.L[:], s.L[protocol.LprimeHalfSize:])
	return nil
}

// verifyLprime compares L' with L: all of it after GenerateLcInit, the
// most-significant half after GetRttChallenge.
func (e *Engine) verifyLprime(ctx context.Context, p *VerifyLprimeParams) error {
	s, err := e.loadAt(ctx, p.SessionID, session.StageGenerateLcInit, session.StageGetRttChallenge)
	if err != nil {
		return err
	}
	defer s.Zeroize()

	want, got := s.L[:], p.Lprime[:]
	if s.Stage == session.StageGetRttChallenge {
		want, got = want[:protocol.LprimeHalfSize], got[:protocol.LprimeHalfSize]
	}
	if !crypto.HMACEqual(want, got) {
		if e.log != nil {
			e.log.Warnf("session %#x: L' mismatch", uint32(s.ID))
		}
		return ErrLprimeMismatch
	}
	return e.advance(ctx, s, session.StageVerifyLprime)
}
