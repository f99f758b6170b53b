package certgen

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"key-management-service/internal/core"
)

// ParseCACredential parses a PEM-encoded CA certificate and its
// PEM-encoded PKCS#8 private key. Both are parsed permissively, matching
// the generator's tolerance for CA material written by other tooling.
// Any parse failure is reported as core.ErrInvalidCaMaterial.
func ParseCACredential(certPEM, keyPEM string) (*x509.Certificate, crypto.Signer, error) {
	certBlock, _ := pem.Decode([]byte(certPEM))
	if certBlock == nil {
		return nil, nil, fmt.Errorf("%w: no PEM block found in CA certificate", core.ErrInvalidCaMaterial)
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parsing CA certificate: %w", core.ErrInvalidCaMaterial, err)
	}

	keyBlock, _ := pem.Decode([]byte(keyPEM))
	if keyBlock == nil {
		return nil, nil, fmt.Errorf("%w: no PEM block found in CA private key", core.ErrInvalidCaMaterial)
	}

	signer, err := parsePrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parsing CA private key: %w", core.ErrInvalidCaMaterial, err)
	}
	return cert, signer, nil
}

func parsePrivateKey(der []byte) (crypto.Signer, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("PKCS#8 key is not a signer: %T", key)
		}
		return signer, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("unrecognized private key encoding")
}
