package accel

// KeyID names an entry in the accelerator's secret key table.
type KeyID uint8

const (
	// KeyUnknown is the zero value and never names a key.
	KeyUnknown KeyID = iota

	// KeyLC128 is the 128-bit global constant mixed into the content key.
	KeyLC128

	// KeyChipSecret is the per-chip secret the session-store keys derive from.
	KeyChipSecret

	// KeyDCPRootModulus is the 3072-bit modulus of the DCP root public key.
	KeyDCPRootModulus

	// KeyDCPRootExponent is the public exponent of the DCP root key.
	KeyDCPRootExponent

	// KeyDCPLegacyP is the DSA prime p of the legacy SRM signing key.
	KeyDCPLegacyP

	// KeyDCPLegacyQ is the DSA subgroup order q.
	KeyDCPLegacyQ

	// KeyDCPLegacyG is the DSA generator g.
	KeyDCPLegacyG

	// KeyDCPLegacyY is the DSA public value y.
	KeyDCPLegacyY

	// KeyPairing is the 128-bit key that seals stored pairing info.
	KeyPairing
)

// String returns a human-readable name for the key id.
func (k KeyID) String() string {
	switch k {
	case KeyLC128:
		return "LC128"
	case KeyChipSecret:
		return "ChipSecret"
	case KeyDCPRootModulus:
		return "DCPRootModulus"
	case KeyDCPRootExponent:
		return "DCPRootExponent"
	case KeyDCPLegacyP:
		return "DCPLegacyP"
	case KeyDCPLegacyQ:
		return "DCPLegacyQ"
	case KeyDCPLegacyG:
		return "DCPLegacyG"
	case KeyDCPLegacyY:
		return "DCPLegacyY"
	case KeyPairing:
		return "Pairing"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the key id is a defined value.
func (k KeyID) IsValid() bool {
	return k >= KeyLC128 && k <= KeyPairing
}
