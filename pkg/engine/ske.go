package engine

import (
	"context"

	"github.com/backkem/hdcp/pkg/crypto"
	"github.com/backkem/hdcp/pkg/protocol"
	"github.com/backkem/hdcp/pkg/session"
)

// generateSkeInit draws Ks and Riv, returns eKs and assigns every stream a
// fresh value of the global stream counter.
func (e *Engine) generateSkeInit(ctx context.Context, p *GenerateSkeInitParams) error {
	s, err := e.loadAt(ctx, p.SessionID, session.StageVerifyLprime)
	if err != nil {
		return err
	}
	defer s.Zeroize()

	if ka := e.config.KnownAnswers; ka != nil {
		s.Ks = ka.Ks
		s.Riv = ka.Riv
	} else {
		if err := e.random(s.Ks[:]); err != nil {
			return err
		}
		if err := e.random(s.Riv[:]); err != nil {
			return err
		}
	}

	dkey2, err := protocol.Dkey(e.acc, s.Km, s.Rn, s.Rtx, s.Rrx, s.DkeyCounter)
	if err != nil {
		return err
	}
	defer crypto.Zeroize(dkey2[:])
	eks := protocol.EKs(s.Ks, dkey2, s.Rrx)

	// Counters are reserved before the slot is written: a failed write burns
	// them, while the reverse order could hand the same values to two sessions.
	first, err := e.store.NextStreamCounters(ctx, int(s.StreamCount))
	if err != nil {
		return err
	}
	for i := range s.Streams {
		s.Streams[i] = session.Stream{}
		if i < int(s.StreamCount) {
			s.Streams[i].StreamCtr = first + uint32(i)
		}
	}
	s.DkeyCounter++
	s.SeqNumM = 0
	s.ManagedStreams = 0
	if err := e.advance(ctx, s, session.StageGenerateSkeInit); err != nil {
		return err
	}

	p.EKs = eks
	p.Riv = s.Riv
	return nil
}
