package engine

import (
	"context"
	"fmt"

	"github.com/backkem/hdcp/pkg/protocol"
	"github.com/backkem/hdcp/pkg/session"
	"github.com/backkem/hdcp/pkg/srm"
)

// checkRevocation validates the SRM at offset and matches candidates
// against it.
func (e *Engine) checkRevocation(ctx context.Context, offset uint64, length uint32, candidates []protocol.ReceiverID) (srm.Result, error) {
	if length == 0 {
		return srm.Result{}, fmt.Errorf("%w: SRM location not set", ErrInvalidParam)
	}
	roots, err := e.roots()
	if err != nil {
		return srm.Result{}, err
	}
	return e.srm.Validate(ctx, e.config.Transport, offset, int(length), roots, candidates)
}

func (e *Engine) validateSrm(ctx context.Context, p *ValidateSrmParams) error {
	if !e.store.Initialized() {
		return ErrNotInitialized
	}
	res, err := e.checkRevocation(ctx, p.SrmOffset, p.SrmLength, nil)
	if err != nil {
		return err
	}
	p.Version = res.Version
	p.Scheme = uint8(res.Scheme)
	p.Generations = uint8(res.Generations)
	p.Devices = uint32(res.Devices)
	return nil
}

// revocationCheck matches receiver ids against an SRM. With a session, its
// receiver is matched too and the outcome is recorded; a revoked active
// session is deactivated.
func (e *Engine) revocationCheck(ctx context.Context, p *RevocationCheckParams) error {
	if !e.store.Initialized() {
		return ErrNotInitialized
	}
	if int(p.Count) > protocol.MaxDeviceCount {
		return fmt.Errorf("%w: %d receiver ids", protocol.ErrTooManyDevices, p.Count)
	}
	candidates := make([]protocol.ReceiverID, p.Count, p.Count+1)
	copy(candidates, p.ReceiverIDs[:p.Count])

	var s *session.Session
	if p.SessionID != 0 {
		var err error
		if s, err = e.load(ctx, p.SessionID); err != nil {
			return err
		}
		defer s.Zeroize()
		candidates = append(candidates, s.ReceiverID)
	}

	res, err := e.checkRevocation(ctx, p.SrmOffset, p.SrmLength, candidates)
	if err != nil {
		return err
	}
	p.Revoked = BoolOf(res.Revoked)
	p.RevokedID = res.RevokedID
	if s == nil {
		return nil
	}

	if !res.Revoked {
		if s.Revocation == session.RevocationRevoked {
			return nil
		}
		s.Revocation = session.RevocationClean
		return e.store.Write(ctx, s)
	}

	s.Revocation = session.RevocationRevoked
	if s.Status != session.StatusActive {
		return e.store.Write(ctx, s)
	}
	if e.log != nil {
		e.log.Warnf("session %#x: receiver %s revoked, deactivating", uint32(s.ID), res.RevokedID)
	}
	return e.deactivate(ctx, s)
}
