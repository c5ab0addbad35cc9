package engine

import (
	"context"
	"fmt"

	"github.com/backkem/hdcp/pkg/crypto"
	"github.com/backkem/hdcp/pkg/protocol"
	"github.com/backkem/hdcp/pkg/session"
	"github.com/backkem/hdcp/pkg/srm"
)

// verifyVprime checks a repeater's receiver id list. A mismatch counts
// against MaxVprimeAttempts and is persisted. A seq_num_V rollover or a
// revoked downstream device is persisted once V' matched.
func (e *Engine) verifyVprime(ctx context.Context, p *VerifyVprimeParams) error {
	s, err := e.loadAt(ctx, p.SessionID, session.StageGenerateSkeInit, session.StageVerifyVprime)
	if err != nil {
		return err
	}
	defer s.Zeroize()

	if !s.Repeater {
		return fmt.Errorf("%w: receiver %s is not a repeater", ErrIllegalOperation, s.ReceiverID)
	}
	if s.SeqNumVRollover {
		return ErrSeqNumRollover
	}
	if s.VprimeAttempts >= protocol.MaxVprimeAttempts {
		return ErrMaxAttempts
	}

	info := protocol.UnpackRxInfo(p.RxInfo)
	if err := info.CheckTopology(); err != nil {
		return err
	}
	if p.DeviceCount != info.DeviceCount || int(p.DeviceCount) > protocol.MaxDeviceCount {
		return fmt.Errorf("%w: %d ids for DEVICE_COUNT %d", ErrInvalidParam, p.DeviceCount, info.DeviceCount)
	}
	ids := make([]protocol.ReceiverID, p.DeviceCount)
	copy(ids, p.ReceiverIDs[:p.DeviceCount])

	// A rollover is only recorded once V' proves the repeater sent it.
	version := s.Version()
	rollover := false
	if version.UsesRxInfo() {
		seq := p.SeqNumV
		switch {
		case seq > protocol.MaxSeqNum:
			return fmt.Errorf("%w: seq_num_V %#x", ErrInvalidParam, seq)
		case s.SeqNumVSeen && seq == 0:
			rollover = true
		case s.SeqNumVSeen && seq <= s.SeqNumV:
			return fmt.Errorf("%w: seq_num_V %#x after %#x", ErrSeqNumReplay, seq, s.SeqNumV)
		case !s.SeqNumVSeen && seq != 0:
			return fmt.Errorf("%w: first seq_num_V is %#x", ErrInvalidParam, seq)
		}
	}

	v := protocol.V(s.Kd, ids, info, p.SeqNumV, version)
	defer crypto.Zeroize(v[:])
	match := crypto.HMACEqual(v[:protocol.VprimeSize], p.Vprime[:])

	var res srm.Result
	var srmErr error
	if p.SrmLength != 0 && !rollover && (match || p.CheckOnMismatch.Set()) {
		res, srmErr = e.checkRevocation(ctx, p.SrmOffset, p.SrmLength, append(ids, s.ReceiverID))
		if srmErr == nil {
			p.Revoked = BoolOf(res.Revoked)
			p.RevokedID = res.RevokedID
			if res.Revoked {
				s.Revocation = session.RevocationRevoked
			}
		}
	}

	if !match {
		s.VprimeAttempts++
		s.VprimeMismatch = true
		if err := e.store.Write(ctx, s); err != nil {
			return err
		}
		if e.log != nil {
			e.log.Warnf("session %#x: V' mismatch (attempt %d of %d)", uint32(s.ID), s.VprimeAttempts, protocol.MaxVprimeAttempts)
			if srmErr != nil {
				e.log.Warnf("session %#x: revocation check: %v", uint32(s.ID), srmErr)
			}
		}
		return ErrVprimeMismatch
	}
	if rollover {
		s.SeqNumVRollover = true
		if err := e.store.Write(ctx, s); err != nil {
			return err
		}
		if e.log != nil {
			e.log.Warnf("session %#x: seq_num_V rolled over", uint32(s.ID))
		}
		return ErrSeqNumRollover
	}
	if srmErr != nil {
		return srmErr
	}

	s.VprimeMismatch = false
	s.RxInfo = p.RxInfo
	if version.UsesRxInfo() {
		s.SeqNumV = p.SeqNumV
		s.SeqNumVSeen = true
	}
	if res.Revoked {
		if err := e.store.Write(ctx, s); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrReceiverRevoked, res.RevokedID)
	}
	if p.SrmLength != 0 {
		s.Revocation = session.RevocationClean
	}
	if err := e.advance(ctx, s, session.StageVerifyVprime); err != nil {
		return err
	}
	copy(p.V[:], v[protocol.VprimeSize:])
	return nil
}

// streamManage issues the next seq_num_M for the first StreamCount streams
// and records their content stream ids and types.
func (e *Engine) streamManage(ctx context.Context, p *StreamManageParams) error {
	s, err := e.loadAt(ctx, p.SessionID, session.StageGenerateSkeInit, session.StageVerifyVprime)
	if err != nil {
		return err
	}
	defer s.Zeroize()

	if !s.Repeater {
		return fmt.Errorf("%w: receiver %s is not a repeater", ErrIllegalOperation, s.ReceiverID)
	}
	k := int(p.StreamCount)
	if k == 0 || k > int(s.StreamCount) {
		return fmt.Errorf("%w: %d of %d streams", ErrStreamCountInvalid, k, s.StreamCount)
	}
	if s.SeqNumM > protocol.MaxSeqNum {
		return ErrSeqNumRollover
	}

	seq := s.SeqNumM
	for i := 0; i < k; i++ {
		s.Streams[i].ContentStreamID, s.Streams[i].Type = protocol.UnpackStreamIDType(p.StreamIDType[i])
	}
	s.SeqNumM++
	s.ManagedStreams = uint8(k)
	if err := e.store.Write(ctx, s); err != nil {
		return err
	}

	p.SeqNumM = seq
	for i := 0; i < k; i++ {
		p.StreamCtr[i] = s.Streams[i].StreamCtr
	}
	return nil
}

// streamReady checks M' for the last seq_num_M issued by streamManage.
func (e *Engine) streamReady(ctx context.Context, p *StreamReadyParams) error {
	s, err := e.loadAt(ctx, p.SessionID, session.StageGenerateSkeInit, session.StageVerifyVprime)
	if err != nil {
		return err
	}
	defer s.Zeroize()

	if !s.Repeater {
		return fmt.Errorf("%w: receiver %s is not a repeater", ErrIllegalOperation, s.ReceiverID)
	}
	if s.ManagedStreams == 0 {
		return fmt.Errorf("%w: no seq_num_M issued", ErrIllegalOperation)
	}

	entries := make([]protocol.StreamEntry, s.ManagedStreams)
	for i := range entries {
		st := s.Streams[i]
		entries[i] = protocol.StreamEntry{StreamCtr: st.StreamCtr, ContentStreamID: st.ContentStreamID, Type: st.Type}
	}
	m := protocol.M(s.Kd, entries, s.SeqNumM-1)
	if !crypto.HMACEqual(m[:], p.Mprime[:]) {
		if e.log != nil {
			e.log.Warnf("session %#x: M' mismatch for seq_num_M %#x", uint32(s.ID), s.SeqNumM-1)
		}
		return ErrMprimeMismatch
	}
	return nil
}
