package engine

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/backkem/hdcp/pkg/content"
	"github.com/backkem/hdcp/pkg/crypto"
	"github.com/backkem/hdcp/pkg/memory"
	"github.com/backkem/hdcp/pkg/protocol"
	"github.com/backkem/hdcp/pkg/session"
)

func TestConfigValidate(t *testing.T) {
	mem := memory.NewBuffer(1024)
	acc := newAccel(t)

	tests := []struct {
		name   string
		config Config
		want   error
	}{
		{"ok", Config{Transport: mem, Accelerator: acc}, nil},
		{"no transport", Config{Accelerator: acc}, ErrTransportRequired},
		{"no accelerator", Config{Transport: mem}, ErrAcceleratorRequired},
		{"misaligned base", Config{Transport: mem, Accelerator: acc, StoreBase: 16}, ErrInvalidStoreBase},
		{"too many sessions", Config{Transport: mem, Accelerator: acc, MaxSessions: 65}, ErrInvalidMaxSessions},
		{"too many streams", Config{Transport: mem, Accelerator: acc, MaxStreams: 17}, ErrInvalidMaxStreams},
		{"active above sessions", Config{Transport: mem, Accelerator: acc, MaxSessions: 2, MaxActiveSessions: 3}, ErrInvalidMaxActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("defaults", func(t *testing.T) {
		c := Config{Transport: mem, Accelerator: acc}
		c.applyDefaults()
		if c.MaxSessions != DefaultMaxSessions || c.MaxActiveSessions != DefaultMaxActiveSessions ||
			c.MaxStreams != DefaultMaxStreams || c.Versions != protocol.AllVersions || c.Rand == nil {
			t.Errorf("applyDefaults() = %+v", c)
		}
	})
}

func TestReadCapsAndInit(t *testing.T) {
	h := newEngine(t, nil)

	caps := &ReadCapsParams{}
	h.must(caps)
	if caps.Initialized.Set() {
		t.Error("Initialized before Init")
	}
	if caps.ScratchSize != uint32(session.ScratchSize(testMaxSessions)) {
		t.Errorf("ScratchSize = %d", caps.ScratchSize)
	}
	if caps.TxCaps.Version() != protocol.Version22 || caps.MaxStreams != protocol.MaxStreams {
		t.Errorf("caps = %+v", caps)
	}

	h.expect(&CreateSessionParams{Role: uint8(session.RoleTransmitter), StreamCount: 1}, CodeNotInitialized)
	h.expect(&ValidateSrmParams{SrmOffset: srmOffset, SrmLength: 64}, CodeNotInitialized)
	h.expect(&InitParams{}, CodeScratchBufferNotSet)
	h.expect(&InitParams{ScratchSize: 256}, CodeInvalidParam)

	h.must(&InitParams{ScratchSize: caps.ScratchSize, Versions: 1 << protocol.Version21})
	h.must(caps)
	if !caps.Initialized.Set() || caps.TxCaps.Version() != protocol.Version21 {
		t.Errorf("after Init: caps = %+v", caps)
	}
}

func TestHandshake(t *testing.T) {
	h := newHarness(t, nil)
	rx := h.newReceiver(false)
	id := h.toSke(rx, 2)

	s := h.stored(id)
	if s.Stage != session.StageGenerateSkeInit {
		t.Fatalf("stage = %s, want %s", s.Stage, session.StageGenerateSkeInit)
	}
	if s.Km != rx.km || s.Ks != rx.ks || s.Riv != rx.riv {
		t.Fatal("receiver and engine disagree on the keys")
	}
	if s.ReceiverID != rx.id || s.Repeater {
		t.Errorf("receiver = %s repeater %v", s.ReceiverID, s.Repeater)
	}
	if s.Streams[0].StreamCtr == s.Streams[1].StreamCtr {
		t.Error("streams share a stream counter")
	}

	h.activate(id)
	if ids := h.e.ActiveSessions(); len(ids) != 1 || ids[0] != session.ID(id) {
		t.Fatalf("ActiveSessions() = %v", ids)
	}
	if h.stored(id).Status != session.StatusActive {
		t.Error("status not Active")
	}

	plain := make([]byte, 3*content.ChunkSize/2)
	if _, err := rand.Read(plain); err != nil {
		t.Fatal(err)
	}
	h.mem.Poke(contentOffset, plain)

	enc := &EncryptParams{
		SessionID:   id,
		StreamIndex: 1,
		Blocks:      uint32(len(plain) / crypto.AESBlockSize),
		Src:         contentOffset,
		Dst:         contentOffset + contentRegion,
	}
	h.must(enc)
	if enc.InputCtr != uint64(enc.Blocks) || enc.Encrypted != enc.Blocks {
		t.Errorf("InputCtr = %d Encrypted = %d, want %d", enc.InputCtr, enc.Encrypted, enc.Blocks)
	}
	streamCtr, inputCtr, err := content.ParsePESHeader(enc.PESHeader[:])
	if err != nil {
		t.Fatal(err)
	}
	if streamCtr != s.Streams[1].StreamCtr || inputCtr != 0 {
		t.Errorf("PES header counters = %d/%d", streamCtr, inputCtr)
	}

	// Decrypt as the receiver would.
	var key [16]byte
	crypto.XOR(key[:], rx.ks[:], h.lc)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		t.Fatal(err)
	}
	ctr := content.CounterBlock(rx.riv, streamCtr, inputCtr)
	got := h.mem.Peek(contentOffset+contentRegion, len(plain))
	cipher.NewCTR(block, ctr[:]).XORKeyStream(got, got)
	if !bytes.Equal(got, plain) {
		t.Fatal("receiver could not decrypt the content")
	}

	// The next call continues the counter.
	h.must(enc)
	if _, inputCtr, _ := content.ParsePESHeader(enc.PESHeader[:]); inputCtr != uint64(enc.Blocks) {
		t.Errorf("second call starts at %d", inputCtr)
	}
	if c := h.stored(id).Streams[1].InputCtr; c != 2*uint64(enc.Blocks) {
		t.Errorf("persisted InputCtr = %d", c)
	}
}

func TestKnownAnswers(t *testing.T) {
	ka := &KnownAnswers{
		Rtx: [8]byte{1, 2, 3, 4, 5, 6, 7, 8},
		Km:  [16]byte{0x68, 0xbc, 0xc5, 0x1b, 0xa9, 0xdb, 0x1b, 0xd0, 0xfa, 0xf1, 0x5e, 0x9a, 0xd8, 0xa5, 0xaf, 0xb9},
		Rn:  [8]byte{0x32, 0x75, 0x3e, 0xa8, 0x78, 0xa6, 0x38, 0x1c},
		Ks:  [16]byte{0xf3, 0xdf, 0x1d, 0xd9, 0x57, 0x96, 0x12, 0x3f, 0x98, 0x97, 0x89, 0xb4, 0x21, 0xe1, 0x2d, 0xe1},
		Riv: [8]byte{0x40, 0x2b, 0x6b, 0x43, 0xc5, 0xe8, 0x86, 0xd8},
	}
	h := newHarness(t, func(c *Config) { c.KnownAnswers = ka })
	rx := h.newReceiver(false)
	id := h.toSke(rx, 1)

	if rx.rtx != ka.Rtx || rx.km != ka.Km || rx.rn != ka.Rn || rx.ks != ka.Ks || rx.riv != ka.Riv {
		t.Errorf("handshake did not use the known answers")
	}
	if h.stage(id) != session.StageGenerateSkeInit {
		t.Errorf("stage = %s", h.stage(id))
	}
}

func TestStageOrder(t *testing.T) {
	h := newHarness(t, nil)
	rx := h.newReceiver(false)
	id, _ := h.create(1)

	h.expect(&VerifyHprimeParams{SessionID: id}, CodeInvalidStage)
	h.expect(&GenerateEkmParams{SessionID: id}, CodeInvalidStage)
	h.expect(&GenerateLcInitParams{SessionID: id}, CodeInvalidStage)
	h.expect(&VerifyLprimeParams{SessionID: id}, CodeInvalidStage)
	h.expect(&GenerateSkeInitParams{SessionID: id}, CodeInvalidStage)
	h.expect(&EncryptPairingInfoParams{SessionID: id}, CodeInvalidStage)
	h.expect(&DecryptPairingInfoParams{SessionID: id}, CodeInvalidStage)
	h.expect(&SessionCtrlParams{SessionID: id, Ctrl: CtrlActivate}, CodeInvalidStage)
	h.expect(&StreamManageParams{SessionID: id, StreamCount: 1}, CodeInvalidStage)
	if st := h.stage(id); st != session.StageAkeInit {
		t.Fatalf("stage = %s after rejected methods", st)
	}

	h.must(&VerifyCertRxParams{SessionID: id, CertOffset: certOffset, Rrx: rx.rrx, RxCaps: rx.caps})
	h.expect(&VerifyCertRxParams{SessionID: id, CertOffset: certOffset, Rrx: rx.rrx, RxCaps: rx.caps}, CodeInvalidStage)
	h.expect(&GetRttChallengeParams{SessionID: id}, CodeInvalidStage)
	h.expect(&StreamReadyParams{SessionID: id}, CodeInvalidStage)
	if st := h.stage(id); st != session.StageVerifyCert {
		t.Fatalf("stage = %s, want %s", st, session.StageVerifyCert)
	}
}
