package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/backkem/hdcp/pkg/content"
	"github.com/backkem/hdcp/pkg/session"
)

// activeRecord returns the registry record for id. Only active sessions
// encrypt; the demo session stands in for ids that name no session when
// configured. Integrity and transport failures are never masked.
func (e *Engine) activeRecord(ctx context.Context, id uint32) (session.Record, error) {
	if rec, ok := e.registry.Lookup(session.ID(id)); ok {
		return rec, nil
	}
	s, err := e.load(ctx, id)
	if err == nil {
		s.Zeroize()
		return session.Record{}, fmt.Errorf("%w: session %#x is not active", ErrIllegalOperation, id)
	}
	unknown := errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrInvalidSessionID)
	if !e.config.DemoSession || !unknown {
		return session.Record{}, err
	}
	if e.log != nil {
		e.log.Warnf("encrypting for unauthenticated demo session %#x", id)
	}
	return session.Record{SessionID: session.ID(id), StreamCount: uint8(e.config.MaxStreams)}, nil
}

// encrypt runs the content pipeline for one stream of an active session
// and advances the stream's input counter by the blocks written, also when
// the transfer failed part-way.
func (e *Engine) encrypt(ctx context.Context, p *EncryptParams) error {
	if !e.store.Initialized() {
		return ErrNotInitialized
	}
	rec, err := e.activeRecord(ctx, p.SessionID)
	if err != nil {
		return err
	}
	if p.StreamIndex >= rec.StreamCount {
		return fmt.Errorf("%w: stream %d of %d", ErrInvalidParam, p.StreamIndex, rec.StreamCount)
	}
	st := &rec.Streams[p.StreamIndex]

	res, err := e.content.Encrypt(ctx, content.Request{
		Ks:        rec.Ks,
		Riv:       rec.Riv,
		StreamCtr: st.StreamCtr,
		InputCtr:  st.InputCtr,
		Src:       p.Src,
		Dst:       p.Dst,
		Blocks:    int(p.Blocks),
	})
	p.PESHeader = content.BuildPESHeader(st.StreamCtr, st.InputCtr)
	p.Encrypted = uint32(res.Blocks)
	p.InputCtr = res.InputCtr
	if res.Blocks == 0 {
		return err
	}

	st.InputCtr = res.InputCtr
	if _, ok := e.registry.Lookup(rec.SessionID); !ok {
		return err
	}
	if uerr := e.registry.Update(rec); uerr != nil {
		return uerr
	}
	if perr := e.persistCounters(ctx, rec); perr != nil && err == nil {
		err = perr
	}
	return err
}

// persistCounters mirrors the registry counters into the stored session so
// a restarted engine does not reuse a counter value.
func (e *Engine) persistCounters(ctx context.Context, rec session.Record) error {
	s, err := e.store.Read(ctx, rec.SessionID)
	if err != nil {
		return err
	}
	defer s.Zeroize()
	rec.Mirror(s)
	return e.store.Write(ctx, s)
}
