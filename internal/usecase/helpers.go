package usecase

import (
	"crypto"
	"crypto/x509"
)

func marshalECPrivateKey(priv crypto.Signer) ([]byte, error) {
	return x509.MarshalPKCS8PrivateKey(priv)
}

func parseCertForAudit(der []byte) (*x509.Certificate, error) {
	return x509.ParseCertificate(der)
}
