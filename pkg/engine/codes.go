package engine

import (
	"errors"
	"fmt"

	"github.com/backkem/hdcp/pkg/content"
	"github.com/backkem/hdcp/pkg/memory"
	"github.com/backkem/hdcp/pkg/protocol"
	"github.com/backkem/hdcp/pkg/session"
	"github.com/backkem/hdcp/pkg/srm"
)

// Code is the numeric return code stored in every parameter block. The
// values are a stable ABI.
type Code uint8

// General codes.
const (
	CodeNone                Code = 0x00
	CodeInvalidSession      Code = 0x01
	CodeInvalidStage        Code = 0x02
	CodeScratchBufferNotSet Code = 0x03
	CodeNotInitialized      Code = 0x04
	CodeIllegalOperation    Code = 0x05
	CodeUnknown             Code = 0x06
	CodeInvalidParam        Code = 0x07
	CodeTransport           Code = 0x08
	CodeIntegrity           Code = 0x09
)

// Method-specific codes.
const (
	CodeCertificateInvalid     Code = 0x20
	CodeReceiverIDUnknown      Code = 0x21
	CodeHprimeValidationFailed Code = 0x22
	CodeLprimeValidationFailed Code = 0x23
	CodeVprimeValidationFailed Code = 0x24
	CodeMprimeValidationFailed Code = 0x25
	CodeSrmValidationFailed    Code = 0x26
	CodeReceiverRevoked        Code = 0x27
	CodeSeqNumRollover         Code = 0x28
	CodeSeqNumReplay           Code = 0x29
	CodeMaxAttemptsReached     Code = 0x2A
	CodeNoFreeSlot             Code = 0x2B
	CodeNoFreeActiveSlot       Code = 0x2C
	CodeSessionActive          Code = 0x2D
	CodeTopologyExceeded       Code = 0x2E
	CodePairingInfoInvalid     Code = 0x2F
	CodeStreamCountInvalid     Code = 0x30
	CodeUnsupportedVersion     Code = 0x31
)

var codeNames = map[Code]string{
	CodeNone:                   "None",
	CodeInvalidSession:         "InvalidSession",
	CodeInvalidStage:           "InvalidStage",
	CodeScratchBufferNotSet:    "ScratchBufferNotSet",
	CodeNotInitialized:         "NotInitialized",
	CodeIllegalOperation:       "IllegalOperation",
	CodeUnknown:                "Unknown",
	CodeInvalidParam:           "InvalidParam",
	CodeTransport:              "Transport",
	CodeIntegrity:              "Integrity",
	CodeCertificateInvalid:     "CertificateInvalid",
	CodeReceiverIDUnknown:      "ReceiverIDUnknown",
	CodeHprimeValidationFailed: "HprimeValidationFailed",
	CodeLprimeValidationFailed: "LprimeValidationFailed",
	CodeVprimeValidationFailed: "VprimeValidationFailed",
	CodeMprimeValidationFailed: "MprimeValidationFailed",
	CodeSrmValidationFailed:    "SrmValidationFailed",
	CodeReceiverRevoked:        "ReceiverRevoked",
	CodeSeqNumRollover:         "SeqNumRollover",
	CodeSeqNumReplay:           "SeqNumReplay",
	CodeMaxAttemptsReached:     "MaxAttemptsReached",
	CodeNoFreeSlot:             "NoFreeSlot",
	CodeNoFreeActiveSlot:       "NoFreeActiveSlot",
	CodeSessionActive:          "SessionActive",
	CodeTopologyExceeded:       "TopologyExceeded",
	CodePairingInfoInvalid:     "PairingInfoInvalid",
	CodeStreamCountInvalid:     "StreamCountInvalid",
	CodeUnsupportedVersion:     "UnsupportedVersion",
}

// String returns the code name.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%#02x)", uint8(c))
}

// IsValid reports whether c is a defined code.
func (c Code) IsValid() bool {
	_, ok := codeNames[c]
	return ok
}

// codeTable is matched in order; the first entry whose error is in the
// chain wins. Transport comes first so a failed transfer is never reported
// as a verification failure.
var codeTable = []struct {
	err  error
	code Code
}{
	{memory.ErrTransport, CodeTransport},
	{memory.ErrMisaligned, CodeInvalidParam},

	{ErrNotInitialized, CodeNotInitialized},
	{session.ErrNotInitialized, CodeNotInitialized},
	{ErrScratchBufferNotSet, CodeScratchBufferNotSet},
	{ErrInvalidStage, CodeInvalidStage},
	{ErrIllegalOperation, CodeIllegalOperation},
	{ErrInvalidParam, CodeInvalidParam},
	{ErrUnknownMethod, CodeIllegalOperation},

	{session.ErrInvalidSessionID, CodeInvalidSession},
	{session.ErrSessionNotFound, CodeInvalidSession},
	{session.ErrStaleSession, CodeInvalidSession},
	{session.ErrIntegrity, CodeIntegrity},
	{session.ErrFormat, CodeIntegrity},
	{session.ErrSessionTableFull, CodeNoFreeSlot},
	{session.ErrRegistryFull, CodeNoFreeActiveSlot},
	{session.ErrDuplicateSession, CodeSessionActive},
	{session.ErrStreamCounterExhausted, CodeSeqNumRollover},

	{srm.ErrCertificateMalformed, CodeCertificateInvalid},
	{srm.ErrCertificateInvalid, CodeCertificateInvalid},
	{srm.ErrMalformed, CodeSrmValidationFailed},
	{srm.ErrSignatureInvalid, CodeSrmValidationFailed},

	{ErrReceiverIDUnknown, CodeReceiverIDUnknown},
	{ErrHprimeMismatch, CodeHprimeValidationFailed},
	{ErrLprimeMismatch, CodeLprimeValidationFailed},
	{ErrVprimeMismatch, CodeVprimeValidationFailed},
	{ErrMprimeMismatch, CodeMprimeValidationFailed},
	{ErrReceiverRevoked, CodeReceiverRevoked},
	{ErrSeqNumRollover, CodeSeqNumRollover},
	{ErrSeqNumReplay, CodeSeqNumReplay},
	{ErrMaxAttempts, CodeMaxAttemptsReached},
	{ErrSessionActive, CodeSessionActive},
	{ErrPairingInfoInvalid, CodePairingInfoInvalid},
	{ErrStreamCountInvalid, CodeStreamCountInvalid},
	{ErrUnsupportedVersion, CodeUnsupportedVersion},

	{protocol.ErrTopologyExceeded, CodeTopologyExceeded},
	{protocol.ErrTooManyDevices, CodeTopologyExceeded},
	{protocol.ErrTooManyStreams, CodeStreamCountInvalid},

	{content.ErrInvalidRequest, CodeInvalidParam},
	{content.ErrCounterExhausted, CodeSeqNumRollover},
}

// CodeOf maps an error to its return code. A nil error is CodeNone and an
// unclassified error is CodeUnknown.
func CodeOf(err error) Code {
	if err == nil {
		return CodeNone
	}
	for _, e := range codeTable {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return CodeUnknown
}
