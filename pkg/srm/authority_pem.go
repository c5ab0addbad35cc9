package srm

import (
	"crypto/dsa" //nolint:staticcheck // legacy SRMs are DSA-signed
	"crypto/x509"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"math/big"

	"github.com/backkem/hdcp/pkg/protocol"
)

// PEM block types of an authority file.
const (
	pemRSAKey = "RSA PRIVATE KEY"
	pemDSAKey = "DSA PRIVATE KEY"
)

// dsaPrivateKey is the OpenSSL DSA private key layout.
type dsaPrivateKey struct {
	Version       int
	P, Q, G, Y, X *big.Int
}

// MarshalPEM encodes the signing keys: the RSA root as PKCS#1 and the DSA
// key in the OpenSSL layout. The output holds private keys.
func (a *Authority) MarshalPEM() ([]byte, error) {
	der, err := asn1.Marshal(dsaPrivateKey{
		P: a.dsaKey.P,
		Q: a.dsaKey.Q,
		G: a.dsaKey.G,
		Y: a.dsaKey.Y,
		X: a.dsaKey.X,
	})
	if err != nil {
		return nil, err
	}
	out := pem.EncodeToMemory(&pem.Block{Type: pemRSAKey, Bytes: x509.MarshalPKCS1PrivateKey(a.rsaKey)})
	return append(out, pem.EncodeToMemory(&pem.Block{Type: pemDSAKey, Bytes: der})...), nil
}

// ParseAuthorityPEM loads an Authority written by MarshalPEM.
func ParseAuthorityPEM(data []byte) (*Authority, error) {
	a := &Authority{}
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		switch block.Type {
		case pemRSAKey:
			k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrRootKey, err)
			}
			if k.N.BitLen() != protocol.RootModulusSize*8 {
				return nil, fmt.Errorf("%w: RSA root is %d bits", ErrRootKey, k.N.BitLen())
			}
			a.rsaKey = k
		case pemDSAKey:
			var k dsaPrivateKey
			if _, err := asn1.Unmarshal(block.Bytes, &k); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrRootKey, err)
			}
			if k.P == nil || k.Q == nil || k.G == nil || k.Y == nil || k.X == nil {
				return nil, fmt.Errorf("%w: incomplete DSA key", ErrRootKey)
			}
			a.dsaKey = &dsa.PrivateKey{
				PublicKey: dsa.PublicKey{Parameters: dsa.Parameters{P: k.P, Q: k.Q, G: k.G}, Y: k.Y},
				X:         k.X,
			}
		}
	}
	if a.rsaKey == nil || a.dsaKey == nil {
		return nil, fmt.Errorf("%w: authority needs an RSA and a DSA key", ErrRootKey)
	}
	return a, nil
}
