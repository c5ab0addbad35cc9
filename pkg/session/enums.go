// Package session persists HDCP authentication state.
//
// A Session holds everything one transmitter/receiver handshake needs across
// method invocations: the random values, the key hierarchy (Km, Kd, Ks), the
// receiver's public key and capabilities, and the per-stream counters used
// once the session encrypts content.
//
// Sessions live in a scratch region of external memory reached through a
// memory.Transport:
//
//	[keys block][header block][slot 0]...[slot N-1]
//
// Every region starts on a 256-byte boundary. Slots are AES-CTR encrypted
// under a key derived from the chip secret and signed with HMAC-SHA256, so a
// record that was corrupted or replayed from another slot fails to read.
//
// The Registry is the small in-memory table of sessions currently allowed to
// encrypt content.
package session

// Status is the lifecycle state of a session slot.
type Status uint8

const (
	// StatusFree marks an unused slot.
	StatusFree Status = iota

	// StatusInUse marks a session that is authenticating or deactivated.
	StatusInUse

	// StatusActive marks a session that has a Registry record and may encrypt.
	StatusActive
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusFree:
		return "Free"
	case StatusInUse:
		return "InUse"
	case StatusActive:
		return "Active"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the status is a defined value.
func (s Status) IsValid() bool {
	return s <= StatusActive
}

// Stage is the authentication stage: the last transition the session
// completed. Stages only move forward along the handshake.
type Stage uint8

const (
	StageNone Stage = iota
	StageAkeInit
	StageVerifyCert
	StageGenerateEkm
	StageVerifyHprime
	StageGenerateLcInit
	StageGetRttChallenge
	StageVerifyLprime
	StageGenerateSkeInit
	StageVerifyVprime
)

// String returns a human-readable name for the stage.
func (s Stage) String() string {
	switch s {
	case StageNone:
		return "None"
	case StageAkeInit:
		return "AkeInit"
	case StageVerifyCert:
		return "VerifyCert"
	case StageGenerateEkm:
		return "GenerateEkm"
	case StageVerifyHprime:
		return "VerifyHprime"
	case StageGenerateLcInit:
		return "GenerateLcInit"
	case StageGetRttChallenge:
		return "GetRttChallenge"
	case StageVerifyLprime:
		return "VerifyLprime"
	case StageGenerateSkeInit:
		return "GenerateSkeInit"
	case StageVerifyVprime:
		return "VerifyVprime"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the stage is a defined value.
func (s Stage) IsValid() bool {
	return s <= StageVerifyVprime
}

// Role is the local end of the handshake.
type Role uint8

const (
	// RoleUnknown indicates an uninitialized role.
	RoleUnknown Role = iota

	// RoleTransmitter generates Rtx, Km, Rn and Ks.
	RoleTransmitter

	// RoleReceiver takes Rn from the peer.
	RoleReceiver
)

// String returns a human-readable name for the role.
func (r Role) String() string {
	switch r {
	case RoleTransmitter:
		return "Transmitter"
	case RoleReceiver:
		return "Receiver"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the role is a defined value.
func (r Role) IsValid() bool {
	return r == RoleTransmitter || r == RoleReceiver
}

// RevocationStatus records the outcome of revocation checks on the session's
// receiver and its downstream devices.
type RevocationStatus uint8

const (
	// RevocationUnchecked means no SRM has been checked for this session.
	RevocationUnchecked RevocationStatus = iota

	// RevocationClean means the last check found no revoked device.
	RevocationClean

	// RevocationRevoked means a device was found in the SRM. The session can
	// never be activated.
	RevocationRevoked
)

// String returns a human-readable name for the revocation status.
func (r RevocationStatus) String() string {
	switch r {
	case RevocationUnchecked:
		return "Unchecked"
	case RevocationClean:
		return "Clean"
	case RevocationRevoked:
		return "Revoked"
	default:
		return "Unknown"
	}
}
