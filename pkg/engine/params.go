package engine

import (
	"fmt"

	"github.com/backkem/hdcp/pkg/protocol"
)

// Method is the operation code of an engine method. The values are a stable
// ABI.
type Method uint8

const (
	MethodReadCaps           Method = 0x00
	MethodInit               Method = 0x01
	MethodCreateSession      Method = 0x02
	MethodVerifyCertRx       Method = 0x03
	MethodGenerateEkm        Method = 0x04
	MethodVerifyHprime       Method = 0x05
	MethodEncryptPairingInfo Method = 0x06
	MethodDecryptPairingInfo Method = 0x07
	MethodGenerateLcInit     Method = 0x08
	MethodGetRttChallenge    Method = 0x09
	MethodVerifyLprime       Method = 0x0A
	MethodGenerateSkeInit    Method = 0x0B
	MethodVerifyVprime       Method = 0x0C
	MethodSessionCtrl        Method = 0x0D
	MethodStreamManage       Method = 0x0E
	MethodStreamReady        Method = 0x0F
	MethodValidateSrm        Method = 0x10
	MethodRevocationCheck    Method = 0x11
	MethodEncrypt            Method = 0x12
	MethodExchangeInfo       Method = 0x13
)

var methodNames = [...]string{
	MethodReadCaps:           "ReadCaps",
	MethodInit:               "Init",
	MethodCreateSession:      "CreateSession",
	MethodVerifyCertRx:       "VerifyCertRx",
	MethodGenerateEkm:        "GenerateEkm",
	MethodVerifyHprime:       "VerifyHprime",
	MethodEncryptPairingInfo: "EncryptPairingInfo",
	MethodDecryptPairingInfo: "DecryptPairingInfo",
	MethodGenerateLcInit:     "GenerateLcInit",
	MethodGetRttChallenge:    "GetRttChallenge",
	MethodVerifyLprime:       "VerifyLprime",
	MethodGenerateSkeInit:    "GenerateSkeInit",
	MethodVerifyVprime:       "VerifyVprime",
	MethodSessionCtrl:        "SessionCtrl",
	MethodStreamManage:       "StreamManage",
	MethodStreamReady:        "StreamReady",
	MethodValidateSrm:        "ValidateSrm",
	MethodRevocationCheck:    "RevocationCheck",
	MethodEncrypt:            "Encrypt",
	MethodExchangeInfo:       "ExchangeInfo",
}

// String returns the method name.
func (m Method) String() string {
	if m.IsValid() {
		return methodNames[m]
	}
	return fmt.Sprintf("Method(%d)", uint8(m))
}

// IsValid reports whether m is a defined method.
func (m Method) IsValid() bool {
	return int(m) < len(methodNames)
}

// NewParams returns a zeroed parameter block for m.
func NewParams(m Method) (Params, error) {
	switch m {
	case MethodReadCaps:
		return &ReadCapsParams{}, nil
	case MethodInit:
		return &InitParams{}, nil
	case MethodCreateSession:
		return &CreateSessionParams{}, nil
	case MethodVerifyCertRx:
		return &VerifyCertRxParams{}, nil
	case MethodGenerateEkm:
		return &GenerateEkmParams{}, nil
	case MethodVerifyHprime:
		return &VerifyHprimeParams{}, nil
	case MethodEncryptPairingInfo:
		return &EncryptPairingInfoParams{}, nil
	case MethodDecryptPairingInfo:
		return &DecryptPairingInfoParams{}, nil
	case MethodGenerateLcInit:
		return &GenerateLcInitParams{}, nil
	case MethodGetRttChallenge:
		return &GetRttChallengeParams{}, nil
	case MethodVerifyLprime:
		return &VerifyLprimeParams{}, nil
	case MethodGenerateSkeInit:
		return &GenerateSkeInitParams{}, nil
	case MethodVerifyVprime:
		return &VerifyVprimeParams{}, nil
	case MethodSessionCtrl:
		return &SessionCtrlParams{}, nil
	case MethodStreamManage:
		return &StreamManageParams{}, nil
	case MethodStreamReady:
		return &StreamReadyParams{}, nil
	case MethodValidateSrm:
		return &ValidateSrmParams{}, nil
	case MethodRevocationCheck:
		return &RevocationCheckParams{}, nil
	case MethodEncrypt:
		return &EncryptParams{}, nil
	case MethodExchangeInfo:
		return &ExchangeInfoParams{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, m)
	}
}

// Params is a method parameter block. Every block is a fixed-layout struct
// that encodes with encoding/binary and starts with a Ret.
type Params interface {
	// Method returns the operation code the block belongs to.
	Method() Method

	// Code returns the return code set by the engine.
	Code() Code

	ret() *Ret
}

// Ret is the return-code header of every parameter block.
type Ret struct {
	RetCode Code
	_       [3]byte
}

// Code returns the return code.
func (r *Ret) Code() Code { return r.RetCode }

func (r *Ret) ret() *Ret { return r }

// Bool is a one-byte boolean for parameter blocks.
type Bool uint8

// Set reports whether b is non-zero.
func (b Bool) Set() bool { return b != 0 }

// BoolOf converts a bool.
func BoolOf(v bool) Bool {
	if v {
		return 1
	}
	return 0
}

// ReadCapsParams reports the engine's capabilities. Legal before Init.
type ReadCapsParams struct {
	Ret
	Versions          protocol.VersionMask // out
	MaxSessions       uint8                // out
	MaxActiveSessions uint8                // out
	MaxStreams        uint8                // out
	TxCaps            protocol.Caps        // out
	Initialized       Bool                 // out
	ScratchSize       uint32               // out: bytes Init needs
}

// InitParams formats the session store.
type InitParams struct {
	Ret
	ScratchSize uint32 // in: size of the scratch region at the store base
	Versions    protocol.VersionMask
	_           [3]byte
	ChipID      [16]byte
}

// CreateSessionParams allocates a session.
type CreateSessionParams struct {
	Ret
	SessionID   uint32 // out
	Role        uint8  // in: session.Role
	StreamCount uint8  // in
	_           [2]byte
	Rtx         [protocol.RtxSize]byte // out as transmitter, in as receiver
	TxCaps      protocol.Caps          // out
	_           [1]byte
}

// VerifyCertRxParams verifies the receiver certificate at CertOffset.
type VerifyCertRxParams struct {
	Ret
	SessionID  uint32
	CertOffset uint64 // in: 16-byte aligned, 0 means unset
	Rrx        [protocol.RrxSize]byte
	RxCaps     protocol.Caps
	_          [1]byte
	ReceiverID protocol.ReceiverID // out
	Repeater   Bool                // out
	_          [2]byte
}

// GenerateEkmParams draws Km and encrypts it under the receiver key.
type GenerateEkmParams struct {
	Ret
	SessionID uint32
	Ekm       [protocol.EkmSize]byte // out
}

// VerifyHprimeParams checks the receiver's H'.
type VerifyHprimeParams struct {
	Ret
	SessionID uint32
	Hprime    [protocol.HprimeSize]byte
}

// EncryptPairingInfoParams seals Km for the stored-Km path.
type EncryptPairingInfoParams struct {
	Ret
	SessionID   uint32
	ReceiverID  protocol.ReceiverID      // out
	_           [3]byte
	PairingInfo [protocol.EkhKmSize]byte // out
}

// DecryptPairingInfoParams restores Km from sealed pairing info.
type DecryptPairingInfoParams struct {
	Ret
	SessionID   uint32
	PairingInfo [protocol.EkhKmSize]byte
}

// GenerateLcInitParams starts the locality check.
type GenerateLcInitParams struct {
	Ret
	SessionID uint32
	Rn        [protocol.RnSize]byte // out as transmitter, in as receiver
}

// GetRttChallengeParams returns the least-significant half of L.
type GetRttChallengeParams struct {
	Ret
	SessionID uint32
	L         [protocol.LprimeHalfSize]byte // out
}

// VerifyLprimeParams checks L'. After GetRttChallenge only the
// most-significant 16 bytes are compared.
type VerifyLprimeParams struct {
	Ret
	SessionID uint32
	Lprime    [protocol.LprimeSize]byte
}

// GenerateSkeInitParams draws the session key and returns it encrypted.
type GenerateSkeInitParams struct {
	Ret
	SessionID uint32
	EKs       [protocol.KsSize]byte  // out
	Riv       [protocol.RivSize]byte // out
}

// VerifyVprimeParams checks a repeater's V' over its downstream topology
// and optionally checks the topology against an SRM.
type VerifyVprimeParams struct {
	Ret
	SessionID       uint32
	ReceiverIDs     [protocol.MaxDeviceCount]protocol.ReceiverID
	DeviceCount     uint8
	_               [1]byte
	RxInfo          uint16
	SeqNumV         uint32
	Vprime          [protocol.VprimeSize]byte
	SrmOffset       uint64
	SrmLength       uint32 // 0 skips the revocation check
	CheckOnMismatch Bool   // run the revocation check even when V' fails
	Revoked         Bool   // out
	_               [2]byte
	RevokedID       protocol.ReceiverID       // out
	_               [3]byte
	V               [protocol.VprimeSize]byte // out: least-significant half of V
}

// SessionCtrl operations.
const (
	CtrlActivate   uint8 = 1
	CtrlDeactivate uint8 = 2
	CtrlDelete     uint8 = 3
)

// SessionCtrlParams activates, deactivates or deletes a session.
type SessionCtrlParams struct {
	Ret
	SessionID uint32
	Ctrl      uint8
	_         [3]byte
}

// StreamManageParams issues seq_num_M for the first StreamCount streams.
type StreamManageParams struct {
	Ret
	SessionID    uint32
	StreamCount  uint8
	_            [3]byte
	SeqNumM      uint32                       // out
	StreamIDType [protocol.MaxStreams]uint32 // in: ContentStreamID<<8 | Type
	StreamCtr    [protocol.MaxStreams]uint32 // out
}

// StreamReadyParams checks M' for the last issued seq_num_M.
type StreamReadyParams struct {
	Ret
	SessionID uint32
	Mprime    [protocol.MprimeSize]byte
}

// ValidateSrmParams checks an SRM's signatures.
type ValidateSrmParams struct {
	Ret
	SrmOffset   uint64
	SrmLength   uint32
	Version     uint16 // out
	Scheme      uint8  // out
	Generations uint8  // out
	Devices     uint32 // out
}

// RevocationCheckParams checks receiver ids against an SRM. With a non-zero
// SessionID the session's receiver is checked too and the result recorded.
type RevocationCheckParams struct {
	Ret
	SessionID   uint32
	SrmOffset   uint64
	SrmLength   uint32
	Count       uint8
	Revoked     Bool // out
	_           [2]byte
	ReceiverIDs [protocol.MaxDeviceCount]protocol.ReceiverID
	RevokedID   protocol.ReceiverID // out
	_           [1]byte
}

// EncryptParams encrypts Blocks 16-byte blocks of one stream from Src to Dst.
type EncryptParams struct {
	Ret
	SessionID   uint32
	StreamIndex uint8
	_           [3]byte
	Blocks      uint32
	Src         uint64
	Dst         uint64
	PESHeader   [16]byte // out: header for the first block
	InputCtr    uint64   // out: counter of the next block
	Encrypted   uint32   // out: blocks written, also on failure
	_           [4]byte
}

// ExchangeInfoParams updates the receiver's capabilities before activation.
type ExchangeInfoParams struct {
	Ret
	SessionID uint32
	RxCaps    protocol.Caps
	TxCaps    protocol.Caps // out
	_         [2]byte
}

func (*ReadCapsParams) Method() Method           { return MethodReadCaps }
func (*InitParams) Method() Method               { return MethodInit }
func (*CreateSessionParams) Method() Method      { return MethodCreateSession }
func (*VerifyCertRxParams) Method() Method       { return MethodVerifyCertRx }
func (*GenerateEkmParams) Method() Method        { return MethodGenerateEkm }
func (*VerifyHprimeParams) Method() Method       { return MethodVerifyHprime }
func (*EncryptPairingInfoParams) Method() Method { return MethodEncryptPairingInfo }
func (*DecryptPairingInfoParams) Method() Method { return MethodDecryptPairingInfo }
func (*GenerateLcInitParams) Method() Method     { return MethodGenerateLcInit }
func (*GetRttChallengeParams) Method() Method    { return MethodGetRttChallenge }
func (*VerifyLprimeParams) Method() Method       { return MethodVerifyLprime }
func (*GenerateSkeInitParams) Method() Method    { return MethodGenerateSkeInit }
func (*VerifyVprimeParams) Method() Method       { return MethodVerifyVprime }
func (*SessionCtrlParams) Method() Method        { return MethodSessionCtrl }
func (*StreamManageParams) Method() Method       { return MethodStreamManage }
func (*StreamReadyParams) Method() Method        { return MethodStreamReady }
func (*ValidateSrmParams) Method() Method        { return MethodValidateSrm }
func (*RevocationCheckParams) Method() Method    { return MethodRevocationCheck }
func (*EncryptParams) Method() Method            { return MethodEncrypt }
func (*ExchangeInfoParams) Method() Method       { return MethodExchangeInfo }
