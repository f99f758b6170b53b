// Package domain defines persistence-level entities and business sentinel errors.
package domain

import "time"

// CAEntity is a stored certificate-authority credential: a CA certificate
// together with its private key, encrypted under one of the service's
// configured encryption keys. The plaintext private key is never persisted.
type CAEntity struct {
	ID                  string
	Name                string
	CertificatePEM      string
	EncryptedPrivateKey []byte
	Nonce               []byte
	KeyID               string // id of the encryption key (canary id) that produced EncryptedPrivateKey
	CreatedAt           time.Time
}

// IssuedCertificateRecord is an audit-trail entry for a minted certificate.
// It is never consulted to answer a request; it exists purely for observability.
type IssuedCertificateRecord struct {
	ID           string
	SerialNumber string
	Subject      string
	IssuerCAID   *string
	IsCA         bool
	NotBefore    time.Time
	NotAfter     time.Time
	CreatedAt    time.Time
}
