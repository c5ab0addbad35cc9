package engine

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"testing"

	"github.com/backkem/hdcp/pkg/content"
	"github.com/backkem/hdcp/pkg/crypto"
	"github.com/backkem/hdcp/pkg/session"
)

// encryptOnce encrypts one chunk of stream 0 and returns the input counter
// the PES header was built from.
func (h *harness) encryptOnce(id uint32) uint64 {
	h.t.Helper()
	p := &EncryptParams{
		SessionID: id,
		Blocks:    content.ChunkSize / crypto.AESBlockSize,
		Src:       contentOffset,
		Dst:       contentOffset + contentRegion,
	}
	h.must(p)
	_, inputCtr, err := content.ParsePESHeader(p.PESHeader[:])
	if err != nil {
		h.t.Fatal(err)
	}
	return inputCtr
}

const chunkBlocks = content.ChunkSize / crypto.AESBlockSize

func TestSessionCtrl(t *testing.T) {
	h := newHarness(t, nil)
	rx := h.newReceiver(false)
	id := h.toSke(rx, 1)

	h.expect(&SessionCtrlParams{SessionID: id, Ctrl: 9}, CodeInvalidParam)
	h.expect(&SessionCtrlParams{SessionID: id, Ctrl: CtrlDeactivate}, CodeIllegalOperation)
	h.expect(&EncryptParams{SessionID: id, Blocks: 1, Src: contentOffset, Dst: contentOffset + contentRegion}, CodeIllegalOperation)

	h.activate(id)
	h.expect(&SessionCtrlParams{SessionID: id, Ctrl: CtrlActivate}, CodeSessionActive)
	h.expect(&SessionCtrlParams{SessionID: id, Ctrl: CtrlDelete}, CodeSessionActive)
	h.expect(&EncryptParams{SessionID: id, StreamIndex: 1, Blocks: 1, Src: contentOffset, Dst: contentOffset + contentRegion}, CodeInvalidParam)

	if got := h.encryptOnce(id); got != 0 {
		t.Fatalf("first input counter = %d", got)
	}

	t.Run("deactivate keeps counters", func(t *testing.T) {
		h.must(&SessionCtrlParams{SessionID: id, Ctrl: CtrlDeactivate})
		s := h.stored(id)
		if s.Status == session.StatusActive || s.Streams[0].InputCtr != chunkBlocks {
			t.Fatalf("status = %s InputCtr = %d", s.Status, s.Streams[0].InputCtr)
		}
		if len(h.e.ActiveSessions()) != 0 {
			t.Fatal("registry not cleared")
		}

		h.activate(id)
		if got := h.encryptOnce(id); got != chunkBlocks {
			t.Errorf("input counter after reactivation = %d, want %d", got, chunkBlocks)
		}
	})

	t.Run("delete", func(t *testing.T) {
		h.must(&SessionCtrlParams{SessionID: id, Ctrl: CtrlDeactivate})
		h.must(&SessionCtrlParams{SessionID: id, Ctrl: CtrlDelete})
		h.expect(&SessionCtrlParams{SessionID: id, Ctrl: CtrlDelete}, CodeInvalidSession)
		h.expect(&GenerateLcInitParams{SessionID: id}, CodeInvalidSession)
	})
}

func TestActivation(t *testing.T) {
	t.Run("no free active slot", func(t *testing.T) {
		h := newHarness(t, func(c *Config) { c.MaxActiveSessions = 1 })
		rx := h.newReceiver(false)
		a := h.toSke(rx, 1)
		b := h.toSke(rx, 1)

		h.activate(a)
		h.expect(&SessionCtrlParams{SessionID: b, Ctrl: CtrlActivate}, CodeNoFreeActiveSlot)
		if h.stored(b).Status == session.StatusActive {
			t.Error("rejected session marked active")
		}
		h.must(&SessionCtrlParams{SessionID: a, Ctrl: CtrlDeactivate})
		h.activate(b)
	})

	t.Run("store failure", func(t *testing.T) {
		h := newHarness(t, nil)
		rx := h.newReceiver(false)
		id := h.toSke(rx, 1)

		h.mem.SetWriteFault(func(uint64, int) error { return errors.New("bus error") })
		h.expect(&SessionCtrlParams{SessionID: id, Ctrl: CtrlActivate}, CodeTransport)
		h.mem.SetWriteFault(nil)

		if len(h.e.ActiveSessions()) != 0 {
			t.Error("registry record left behind")
		}
		h.activate(id)
	})

	t.Run("before keys", func(t *testing.T) {
		h := newHarness(t, nil)
		rx := h.newReceiver(false)
		id := h.toHprime(rx, 1)
		h.expect(&SessionCtrlParams{SessionID: id, Ctrl: CtrlActivate}, CodeInvalidStage)
	})
}

func TestDemoSession(t *testing.T) {
	const demoID = 0x00FF0003

	t.Run("disabled", func(t *testing.T) {
		h := newHarness(t, nil)
		h.expect(&EncryptParams{SessionID: demoID, Blocks: 1, Src: contentOffset, Dst: contentOffset + contentRegion}, CodeInvalidSession)
	})

	t.Run("enabled", func(t *testing.T) {
		h := newHarness(t, func(c *Config) { c.DemoSession = true })
		plain := make([]byte, content.ChunkSize)
		h.mem.Poke(contentOffset, plain)

		// The demo session keeps no counters.
		for i := 0; i < 2; i++ {
			if got := h.encryptOnce(demoID); got != 0 {
				t.Fatalf("call %d: input counter = %d", i, got)
			}
		}

		// With Ks all zero the content key is lc128 itself.
		block, err := aes.NewCipher(h.lc)
		if err != nil {
			t.Fatal(err)
		}
		ctr := content.CounterBlock([8]byte{}, 0, 0)
		got := h.mem.Peek(contentOffset+contentRegion, content.ChunkSize)
		cipher.NewCTR(block, ctr[:]).XORKeyStream(got, got)
		if !bytes.Equal(got, plain) {
			t.Error("demo ciphertext does not use an all-zero Ks")
		}
	})

	t.Run("damaged session", func(t *testing.T) {
		h := newHarness(t, func(c *Config) { c.DemoSession = true })
		id, _ := h.create(1)
		slot := session.KeysBlockSize + session.HeaderBlockSize + session.ID(id).Slot()*session.SlotSize
		b := h.mem.Peek(slot+40, 1)
		b[0] ^= 0xFF
		h.mem.Poke(slot+40, b)

		p := &EncryptParams{SessionID: id, Blocks: 1, Src: contentOffset, Dst: contentOffset + contentRegion}
		h.expect(p, CodeIntegrity)
		if p.Encrypted != 0 {
			t.Errorf("encrypted %d blocks for a damaged session", p.Encrypted)
		}

		id2, _ := h.create(1)
		h.mem.SetReadFault(func(offset uint64, n int) error { return errors.New("dma timeout") })
		h.expect(&EncryptParams{SessionID: id2, Blocks: 1, Src: contentOffset, Dst: contentOffset + contentRegion}, CodeTransport)
		h.mem.SetReadFault(nil)
	})
}

func TestAttach(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxActiveSessions = 2 })
	rx := h.newReceiver(false)
	ids := []uint32{h.toSke(rx, 1), h.toSke(rx, 1), h.toSke(rx, 1)}
	h.activate(ids[0])
	h.activate(ids[1])
	h.encryptOnce(ids[0])
	h.encryptOnce(ids[0])

	restart := func(t *testing.T, maxActive int) *harness {
		t.Helper()
		e, err := New(Config{
			Transport:         h.mem,
			Accelerator:       h.acc,
			MaxSessions:       testMaxSessions,
			MaxActiveSessions: maxActive,
		})
		if err != nil {
			t.Fatal(err)
		}
		if e.Initialized() {
			t.Fatal("initialized before Attach")
		}
		if err := e.Attach(h.ctx); err != nil {
			t.Fatalf("Attach() error = %v", err)
		}
		return &harness{t: t, ctx: h.ctx, e: e, acc: h.acc, mem: h.mem, ca: h.ca, lc: h.lc}
	}

	t.Run("restores active sessions", func(t *testing.T) {
		r := restart(t, 2)
		if got := r.e.ActiveSessions(); len(got) != 2 {
			t.Fatalf("ActiveSessions() = %v", got)
		}
		if got := r.encryptOnce(ids[0]); got != 2*chunkBlocks {
			t.Errorf("input counter after restart = %d, want %d", got, 2*chunkBlocks)
		}
		r.expect(&EncryptParams{SessionID: ids[2], Blocks: 1, Src: contentOffset, Dst: contentOffset + contentRegion}, CodeIllegalOperation)
	})

	t.Run("demotes what does not fit", func(t *testing.T) {
		r := restart(t, 1)
		if got := r.e.ActiveSessions(); len(got) != 1 {
			t.Fatalf("ActiveSessions() = %v", got)
		}
		active := 0
		for _, id := range ids {
			if r.stored(id).Status == session.StatusActive {
				active++
			}
		}
		if active != 1 {
			t.Errorf("%d sessions stored as active", active)
		}
	})

	t.Run("wrong chip secret", func(t *testing.T) {
		e, err := New(Config{Transport: h.mem, Accelerator: newAccelWithSecret(t, 0xC2), MaxSessions: testMaxSessions})
		if err != nil {
			t.Fatal(err)
		}
		if err := e.Attach(h.ctx); CodeOf(err) != CodeIntegrity {
			t.Errorf("Attach() error = %v", err)
		}
	})
}
