package srm

import "errors"

// Validator errors. Transport failures are returned wrapped in
// memory.ErrTransport and are never mapped to these.
var (
	// ErrCertificateMalformed is returned when a receiver certificate has the
	// wrong size or reserved fields set.
	ErrCertificateMalformed = errors.New("srm: malformed certificate")

	// ErrCertificateInvalid is returned when the root signature over a
	// receiver certificate does not verify.
	ErrCertificateInvalid = errors.New("srm: certificate signature invalid")

	// ErrMalformed is returned when an SRM header, generation or length field
	// is inconsistent.
	ErrMalformed = errors.New("srm: malformed revocation list")

	// ErrSignatureInvalid is returned when a generation signature does not
	// verify.
	ErrSignatureInvalid = errors.New("srm: signature invalid")

	// ErrRootKey is returned when a trust anchor is missing or unusable.
	ErrRootKey = errors.New("srm: invalid root key")
)
