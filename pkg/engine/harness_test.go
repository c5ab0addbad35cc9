package engine

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"sync"
	"testing"

	"github.com/backkem/hdcp/pkg/accel"
	"github.com/backkem/hdcp/pkg/memory"
	"github.com/backkem/hdcp/pkg/protocol"
	"github.com/backkem/hdcp/pkg/session"
	"github.com/backkem/hdcp/pkg/srm"
)

// Test memory map.
const (
	testMaxSessions = 4
	certOffset      = 0x10000
	srmOffset       = 0x11000
	srmRegion       = 0x2000
	contentOffset   = 0x14000
	contentRegion   = 0x4000
	testMemorySize  = contentOffset + 2*contentRegion
)

var (
	fixtureOnce sync.Once
	fixtureErr  error
	testCA      *srm.Authority
	testRxKey   *rsa.PrivateKey
)

// fixtures returns the shared trust anchors and receiver key; generating
// them is slow.
func fixtures(t *testing.T) (*srm.Authority, *rsa.PrivateKey) {
	t.Helper()
	fixtureOnce.Do(func() {
		if testCA, fixtureErr = srm.NewAuthority(rand.Reader); fixtureErr != nil {
			return
		}
		testRxKey, fixtureErr = rsa.GenerateKey(rand.Reader, protocol.ModulusSize*8)
	})
	if fixtureErr != nil {
		t.Fatalf("fixtures: %v", fixtureErr)
	}
	return testCA, testRxKey
}

// receiver plays the peer of a transmitter session.
type receiver struct {
	id   protocol.ReceiverID
	cert []byte
	caps protocol.Caps
	rrx  [protocol.RrxSize]byte

	km  [protocol.KmSize]byte
	kd  [protocol.KdSize]byte
	rtx [protocol.RtxSize]byte
	rn  [protocol.RnSize]byte
	ks  [protocol.KsSize]byte
	riv [protocol.RivSize]byte
}

type harness struct {
	t   *testing.T
	ctx context.Context
	e   *Engine
	acc *accel.Software
	mem *memory.Buffer
	ca  *srm.Authority
	lc  []byte
}

var testLC128 = bytes.Repeat([]byte{0x5A}, protocol.KsSize)

// newAccel returns a software accelerator holding the test key table.
func newAccel(t *testing.T) *accel.Software {
	t.Helper()
	return newAccelWithSecret(t, 0xC1)
}

// newAccelWithSecret is newAccel with a chip secret filled with b.
func newAccelWithSecret(t *testing.T, b byte) *accel.Software {
	t.Helper()
	ca, _ := fixtures(t)
	roots := ca.Roots()
	acc, err := accel.NewSoftware(accel.SoftwareConfig{
		Keys: map[accel.KeyID][]byte{
			accel.KeyLC128:           testLC128,
			accel.KeyChipSecret:      bytes.Repeat([]byte{b}, 32),
			accel.KeyDCPRootModulus:  roots.RSA.Modulus,
			accel.KeyDCPRootExponent: roots.RSA.Exponent,
			accel.KeyDCPLegacyP:      roots.DSA.P,
			accel.KeyDCPLegacyQ:      roots.DSA.Q,
			accel.KeyDCPLegacyG:      roots.DSA.G,
			accel.KeyDCPLegacyY:      roots.DSA.Y,
			accel.KeyPairing:         bytes.Repeat([]byte{0x9A}, 16),
		},
		Rand: rand.Reader,
	})
	if err != nil {
		t.Fatal(err)
	}
	return acc
}

// newEngine creates an uninitialized engine over a fresh memory buffer.
func newEngine(t *testing.T, mod func(*Config)) *harness {
	t.Helper()
	ca, _ := fixtures(t)
	acc := newAccel(t)
	mem := memory.NewBuffer(testMemorySize)
	config := Config{
		Transport:   mem,
		Accelerator: acc,
		MaxSessions: testMaxSessions,
	}
	if mod != nil {
		mod(&config)
	}
	e, err := New(config)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &harness{t: t, ctx: context.Background(), e: e, acc: acc, mem: mem, ca: ca, lc: testLC128}
}

// newHarness creates an initialized engine.
func newHarness(t *testing.T, mod func(*Config)) *harness {
	t.Helper()
	h := newEngine(t, mod)
	h.must(&InitParams{ScratchSize: uint32(session.ScratchSize(h.e.config.MaxSessions))})
	return h
}

// call dispatches p and checks the section depth is balanced.
func (h *harness) call(p Params) Code {
	h.t.Helper()
	code := h.e.Dispatch(h.ctx, p)
	if code != p.Code() {
		h.t.Fatalf("%s: Dispatch() = %s, block holds %s", p.Method(), code, p.Code())
	}
	if d := h.acc.Depth(); d != 0 {
		h.t.Fatalf("%s: %d secure sections left open", p.Method(), d)
	}
	return code
}

func (h *harness) must(p Params) {
	h.t.Helper()
	if code := h.call(p); code != CodeNone {
		h.t.Fatalf("%s: code = %s, want None", p.Method(), code)
	}
}

func (h *harness) expect(p Params, want Code) {
	h.t.Helper()
	if code := h.call(p); code != want {
		h.t.Fatalf("%s: code = %s, want %s", p.Method(), code, want)
	}
}

// stored reads a session straight from the store.
func (h *harness) stored(id uint32) *session.Session {
	h.t.Helper()
	s, err := h.e.store.Read(h.ctx, session.ID(id))
	if err != nil {
		h.t.Fatalf("store.Read(%#x) error = %v", id, err)
	}
	return s
}

// patch rewrites a stored session.
func (h *harness) patch(id uint32, f func(*session.Session)) {
	h.t.Helper()
	s := h.stored(id)
	f(s)
	if err := h.e.store.Write(h.ctx, s); err != nil {
		h.t.Fatalf("store.Write() error = %v", err)
	}
}

func (h *harness) stage(id uint32) session.Stage {
	h.t.Helper()
	return h.stored(id).Stage
}

// newReceiver issues a certificate and places it at certOffset.
func (h *harness) newReceiver(repeater bool) *receiver {
	h.t.Helper()
	_, key := fixtures(h.t)
	id, err := srm.NewReceiverID(rand.Reader)
	if err != nil {
		h.t.Fatal(err)
	}
	cert, err := h.ca.IssueCertificate(rand.Reader, id, &key.PublicKey, 1)
	if err != nil {
		h.t.Fatal(err)
	}
	rx := &receiver{id: id, cert: cert.Marshal(), caps: protocol.NewCaps(protocol.Version22, 0)}
	if repeater {
		rx.caps = protocol.NewCaps(protocol.Version22, protocol.RepeaterBit)
	}
	if _, err := rand.Read(rx.rrx[:]); err != nil {
		h.t.Fatal(err)
	}
	h.mem.Poke(certOffset, rx.cert)
	return rx
}

// placeSRM writes an SRM at srmOffset and returns its length.
func (h *harness) placeSRM(scheme srm.Scheme, version uint16, generations ...[]protocol.ReceiverID) uint32 {
	h.t.Helper()
	b, err := h.ca.BuildSRM(rand.Reader, scheme, version, generations)
	if err != nil {
		h.t.Fatal(err)
	}
	if len(b) > srmRegion {
		h.t.Fatalf("SRM of %d bytes does not fit", len(b))
	}
	h.mem.Poke(srmOffset, b)
	return uint32(len(b))
}

func (h *harness) create(streams uint8) (uint32, [protocol.RtxSize]byte) {
	h.t.Helper()
	p := &CreateSessionParams{Role: uint8(session.RoleTransmitter), StreamCount: streams}
	h.must(p)
	return p.SessionID, p.Rtx
}

// toCert runs CreateSession and VerifyCertRx.
func (h *harness) toCert(rx *receiver, streams uint8) uint32 {
	h.t.Helper()
	id, rtx := h.create(streams)
	rx.rtx = rtx
	h.must(&VerifyCertRxParams{SessionID: id, CertOffset: certOffset, Rrx: rx.rrx, RxCaps: rx.caps})
	return id
}

// hprime is the receiver's H' for the session's Km.
func (h *harness) hprime(rx *receiver, id uint32) [protocol.HprimeSize]byte {
	h.t.Helper()
	kd, _, err := protocol.Kd(h.acc, rx.km, rx.rtx, rx.rrx, 0)
	if err != nil {
		h.t.Fatal(err)
	}
	rx.kd = kd
	s := h.stored(id)
	return protocol.H(kd, rx.rtx, rx.caps, s.TxCaps, 1)
}

// toHprime runs the exchange up to a verified H'.
func (h *harness) toHprime(rx *receiver, streams uint8) uint32 {
	h.t.Helper()
	_, key := fixtures(h.t)
	id := h.toCert(rx, streams)

	ekm := &GenerateEkmParams{SessionID: id}
	h.must(ekm)
	km, err := rsa.DecryptOAEP(sha256.New(), nil, key, ekm.Ekm[:], nil)
	if err != nil {
		h.t.Fatalf("DecryptOAEP() error = %v", err)
	}
	copy(rx.km[:], km)

	h.must(&VerifyHprimeParams{SessionID: id, Hprime: h.hprime(rx, id)})
	return id
}

// toSke runs the whole exchange up to GenerateSkeInit and recovers Ks.
func (h *harness) toSke(rx *receiver, streams uint8) uint32 {
	h.t.Helper()
	id := h.toHprime(rx, streams)

	lc := &GenerateLcInitParams{SessionID: id}
	h.must(lc)
	rx.rn = lc.Rn
	l := protocol.L(rx.kd, rx.rrx, rx.rn)
	h.must(&VerifyLprimeParams{SessionID: id, Lprime: l})

	ske := &GenerateSkeInitParams{SessionID: id}
	h.must(ske)
	dkey2, err := protocol.Dkey(h.acc, rx.km, rx.rn, rx.rtx, rx.rrx, 2)
	if err != nil {
		h.t.Fatal(err)
	}
	rx.ks = protocol.EKs(ske.EKs, dkey2, rx.rrx)
	rx.riv = ske.Riv
	return id
}

func (h *harness) activate(id uint32) {
	h.t.Helper()
	h.must(&SessionCtrlParams{SessionID: id, Ctrl: CtrlActivate})
}
