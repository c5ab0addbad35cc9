package engine

import (
	"context"
	"fmt"

	"github.com/backkem/hdcp/pkg/session"
)

func (e *Engine) sessionCtrl(ctx context.Context, p *SessionCtrlParams) error {
	s, err := e.load(ctx, p.SessionID)
	if err != nil {
		return err
	}
	defer s.Zeroize()

	switch p.Ctrl {
	case CtrlActivate:
		return e.activate(ctx, s)
	case CtrlDeactivate:
		return e.deactivate(ctx, s)
	case CtrlDelete:
		return e.delete(ctx, s)
	default:
		return fmt.Errorf("%w: session control %d", ErrInvalidParam, p.Ctrl)
	}
}

// activate admits a keyed session to the Active-Session Registry.
func (e *Engine) activate(ctx context.Context, s *session.Session) error {
	if s.Stage != session.StageGenerateSkeInit && s.Stage != session.StageVerifyVprime {
		return fmt.Errorf("%w: expected %s stage, got %s", ErrInvalidStage, session.StageGenerateSkeInit, s.Stage)
	}
	if s.Status == session.StatusActive {
		return ErrSessionActive
	}
	if s.Revocation == session.RevocationRevoked {
		return fmt.Errorf("%w: session %#x", ErrReceiverRevoked, uint32(s.ID))
	}

	if err := e.registry.Add(session.NewRecord(s)); err != nil {
		return err
	}
	s.Status = session.StatusActive
	if err := e.store.Write(ctx, s); err != nil {
		e.registry.Remove(s.ID)
		return err
	}
	if e.log != nil {
		e.log.Infof("session %#x active (%d of %d)", uint32(s.ID), e.registry.Len(), e.registry.Capacity())
	}
	return nil
}

// deactivate removes a session from the registry and keeps its counters.
func (e *Engine) deactivate(ctx context.Context, s *session.Session) error {
	if s.Status != session.StatusActive {
		return fmt.Errorf("%w: session %#x is not active", ErrIllegalOperation, uint32(s.ID))
	}
	rec, ok := e.registry.Remove(s.ID)
	if ok {
		rec.Mirror(s)
	}
	s.Status = session.StatusInUse
	if err := e.store.Write(ctx, s); err != nil {
		if ok {
			if aerr := e.registry.Add(rec); aerr != nil && e.log != nil {
				e.log.Errorf("session %#x: restore registry record: %v", uint32(s.ID), aerr)
			}
		}
		return err
	}
	if e.log != nil {
		e.log.Infof("session %#x deactivated", uint32(s.ID))
	}
	return nil
}

// delete zeroes and frees an inactive session.
func (e *Engine) delete(ctx context.Context, s *session.Session) error {
	if s.Status == session.StatusActive {
		return ErrSessionActive
	}
	if err := e.store.Free(ctx, s.ID); err != nil {
		return err
	}
	if e.log != nil {
		e.log.Debugf("session %#x deleted", uint32(s.ID))
	}
	return nil
}
