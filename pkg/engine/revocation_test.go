package engine

import (
	"errors"
	"testing"

	"github.com/backkem/hdcp/pkg/protocol"
	"github.com/backkem/hdcp/pkg/session"
	"github.com/backkem/hdcp/pkg/srm"
)

func TestValidateSrm(t *testing.T) {
	h := newHarness(t, nil)

	tests := []struct {
		name    string
		scheme  srm.Scheme
		version uint16
		gens    []int
	}{
		{"modern", srm.SchemeModern, 12, []int{3, 5}},
		{"legacy", srm.SchemeLegacy, 2, []int{4}},
		{"empty generation", srm.SchemeModern, 1, []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gens := make([][]protocol.ReceiverID, len(tt.gens))
			total := 0
			for i, n := range tt.gens {
				gens[i] = downstream(t, n)
				total += n
			}
			n := h.placeSRM(tt.scheme, tt.version, gens...)

			p := &ValidateSrmParams{SrmOffset: srmOffset, SrmLength: n}
			h.must(p)
			if p.Version != tt.version || srm.Scheme(p.Scheme) != tt.scheme ||
				int(p.Generations) != len(tt.gens) || int(p.Devices) != total {
				t.Errorf("result = %+v", p)
			}
		})
	}

	t.Run("tampered", func(t *testing.T) {
		n := h.placeSRM(srm.SchemeModern, 4, downstream(t, 2))
		b := h.mem.Peek(srmOffset+srm.HeaderSize+4, 1)
		b[0] ^= 0x80
		h.mem.Poke(srmOffset+srm.HeaderSize+4, b)
		h.expect(&ValidateSrmParams{SrmOffset: srmOffset, SrmLength: n}, CodeSrmValidationFailed)
	})

	t.Run("truncated", func(t *testing.T) {
		n := h.placeSRM(srm.SchemeLegacy, 4, downstream(t, 2))
		h.expect(&ValidateSrmParams{SrmOffset: srmOffset, SrmLength: n - 8}, CodeSrmValidationFailed)
	})

	t.Run("location unset", func(t *testing.T) {
		h.expect(&ValidateSrmParams{SrmOffset: srmOffset}, CodeInvalidParam)
	})

	t.Run("transport failure", func(t *testing.T) {
		n := h.placeSRM(srm.SchemeModern, 4, downstream(t, 2))
		h.mem.SetReadFault(func(offset uint64, n int) error {
			if offset >= srmOffset+srm.ChunkSize {
				return errors.New("bus error")
			}
			return nil
		})
		defer h.mem.SetReadFault(nil)
		h.expect(&ValidateSrmParams{SrmOffset: srmOffset, SrmLength: n}, CodeTransport)
	})
}

func TestRevocationCheck(t *testing.T) {
	t.Run("ids", func(t *testing.T) {
		h := newHarness(t, nil)
		revoked := downstream(t, 3)
		n := h.placeSRM(srm.SchemeModern, 9, revoked)

		p := &RevocationCheckParams{SrmOffset: srmOffset, SrmLength: n, Count: 2}
		copy(p.ReceiverIDs[:], downstream(t, 1))
		p.ReceiverIDs[1] = revoked[2]
		h.must(p)
		if !p.Revoked.Set() || p.RevokedID != revoked[2] {
			t.Errorf("Revoked = %d id = %s", p.Revoked, p.RevokedID)
		}

		clean := &RevocationCheckParams{SrmOffset: srmOffset, SrmLength: n, Count: 1}
		copy(clean.ReceiverIDs[:], downstream(t, 1))
		h.must(clean)
		if clean.Revoked.Set() {
			t.Error("unlisted id reported revoked")
		}

		h.expect(&RevocationCheckParams{SrmOffset: srmOffset, SrmLength: n, Count: protocol.MaxDeviceCount + 1}, CodeTopologyExceeded)
	})

	t.Run("session", func(t *testing.T) {
		h := newHarness(t, nil)
		rx := h.newReceiver(false)
		id := h.toSke(rx, 1)

		n := h.placeSRM(srm.SchemeLegacy, 1, downstream(t, 2))
		h.must(&RevocationCheckParams{SessionID: id, SrmOffset: srmOffset, SrmLength: n})
		if h.stored(id).Revocation != session.RevocationClean {
			t.Fatal("clean check not recorded")
		}

		n = h.placeSRM(srm.SchemeLegacy, 2, []protocol.ReceiverID{rx.id})
		p := &RevocationCheckParams{SessionID: id, SrmOffset: srmOffset, SrmLength: n}
		h.must(p)
		if !p.Revoked.Set() || p.RevokedID != rx.id {
			t.Errorf("Revoked = %d id = %s", p.Revoked, p.RevokedID)
		}
		if h.stored(id).Revocation != session.RevocationRevoked {
			t.Fatal("revocation not recorded")
		}
		h.expect(&SessionCtrlParams{SessionID: id, Ctrl: CtrlActivate}, CodeReceiverRevoked)

		// A later clean SRM does not clear a revocation.
		n = h.placeSRM(srm.SchemeLegacy, 3, downstream(t, 1))
		h.must(&RevocationCheckParams{SessionID: id, SrmOffset: srmOffset, SrmLength: n})
		if h.stored(id).Revocation != session.RevocationRevoked {
			t.Error("revocation cleared")
		}
	})

	t.Run("active session", func(t *testing.T) {
		h := newHarness(t, nil)
		rx := h.newReceiver(false)
		id := h.toSke(rx, 1)
		h.activate(id)

		n := h.placeSRM(srm.SchemeModern, 5, []protocol.ReceiverID{rx.id})
		h.must(&RevocationCheckParams{SessionID: id, SrmOffset: srmOffset, SrmLength: n})
		s := h.stored(id)
		if s.Status == session.StatusActive || s.Revocation != session.RevocationRevoked {
			t.Errorf("status = %s revocation = %s", s.Status, s.Revocation)
		}
		if len(h.e.ActiveSessions()) != 0 {
			t.Error("revoked session still in the registry")
		}
		h.expect(&EncryptParams{SessionID: id, Blocks: 1, Src: contentOffset, Dst: contentOffset + contentRegion}, CodeIllegalOperation)
	})

	t.Run("unknown session", func(t *testing.T) {
		h := newHarness(t, nil)
		n := h.placeSRM(srm.SchemeModern, 5, downstream(t, 1))
		h.expect(&RevocationCheckParams{SessionID: 0x0101, SrmOffset: srmOffset, SrmLength: n}, CodeInvalidSession)
	})
}
