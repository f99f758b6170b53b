// Package certgen builds and signs X.509 v3 certificates: self-signed
// roots and leaves signed by a stored CA credential. It performs no I/O of
// its own; callers hand it parsed key material and get back a DER-encoded
// certificate.
package certgen

import (
	"crypto"
	"crypto/rand"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"time"

	"key-management-service/internal/core"
)

// KeyPair is the asymmetric key pair a certificate is issued for or signed
// with. Generation is the caller's concern; the generator only consumes it.
type KeyPair struct {
	Public  crypto.PublicKey
	Private crypto.Signer
}

// Clock supplies the current time, so tests can pin validity windows.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SerialGenerator supplies the certificate's serial number. Real
// deployments draw from crypto/rand; tests can substitute a fixed
// sequence to make assertions deterministic.
type SerialGenerator interface {
	Serial() (*big.Int, error)
}

type randomSerial struct{}

func (randomSerial) Serial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 159)
	return rand.Int(rand.Reader, limit)
}

// CertificateParameters describes the certificate to build. Subject is
// mandatory; everything else is optional and, per the extension ordering
// rule, emitted only when present.
type CertificateParameters struct {
	Subject         pkix.Name
	DurationDays    int
	IsCA            bool
	KeyUsage        x509.KeyUsage
	HasKeyUsage     bool
	ExtKeyUsage     []x509.ExtKeyUsage
	SubjectAltNames []string
}

// Generator builds certificates. Clock and SerialGenerator default to the
// system clock and crypto/rand respectively when left nil.
type Generator struct {
	Clock  Clock
	Serial SerialGenerator
}

// NewGenerator constructs a Generator using real time and real randomness.
func NewGenerator() *Generator {
	return &Generator{Clock: systemClock{}, Serial: randomSerial{}}
}

func (g *Generator) clock() Clock {
	if g.Clock != nil {
		return g.Clock
	}
	return systemClock{}
}

func (g *Generator) serial() SerialGenerator {
	if g.Serial != nil {
		return g.Serial
	}
	return randomSerial{}
}

// SelfSigned builds and signs a certificate whose issuer equals its
// subject: params.Subject signs its own key pair. If params.IsCA is set,
// the certificate is usable as an intermediate or root CA.
func (g *Generator) SelfSigned(keyPair KeyPair, params CertificateParameters) ([]byte, error) {
	serial, err := g.serial().Serial()
	if err != nil {
		return nil, fmt.Errorf("%w: generating serial number: %w", core.ErrSigningFailure, err)
	}

	ski, err := subjectKeyIdentifier(keyPair.Public)
	if err != nil {
		return nil, fmt.Errorf("%w: computing subject key identifier: %w", core.ErrSigningFailure, err)
	}

	subjectDER, err := asn1.Marshal(params.Subject.ToRDNSequence())
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling subject name: %w", core.ErrSigningFailure, err)
	}

	aki, err := authorityKeyIdentifier(ski, subjectDER, serial)
	if err != nil {
		return nil, fmt.Errorf("%w: building authority key identifier: %w", core.ErrSigningFailure, err)
	}

	now := g.clock().Now()
	template := buildTemplate(params, serial, now, ski, aki)
	template.Subject = params.Subject
	template.Issuer = params.Subject

	der, err := x509.CreateCertificate(rand.Reader, template, template, keyPair.Public, keyPair.Private)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSigningFailure, err)
	}
	return der, nil
}

// SignedBy builds a certificate for keyPair issued by the CA described by
// caCertPEM/caKeyPEM. Both are parsed permissively; parse failures are
// reported as core.ErrInvalidCaMaterial rather than core.ErrSigningFailure,
// since the certificate to be issued is never at fault.
func (g *Generator) SignedBy(caCertPEM string, caKeyPEM string, keyPair KeyPair, params CertificateParameters) ([]byte, error) {
	caCert, caSigner, err := ParseCACredential(caCertPEM, caKeyPEM)
	if err != nil {
		return nil, err
	}

	serial, err := g.serial().Serial()
	if err != nil {
		return nil, fmt.Errorf("%w: generating serial number: %w", core.ErrSigningFailure, err)
	}

	ski, err := subjectKeyIdentifier(keyPair.Public)
	if err != nil {
		return nil, fmt.Errorf("%w: computing subject key identifier: %w", core.ErrSigningFailure, err)
	}

	var aki []byte
	if len(caCert.SubjectKeyId) > 0 {
		aki, err = authorityKeyIdentifier(caCert.SubjectKeyId, caCert.RawSubject, caCert.SerialNumber)
		if err != nil {
			return nil, fmt.Errorf("%w: building authority key identifier: %w", core.ErrSigningFailure, err)
		}
	}

	now := g.clock().Now()
	template := buildTemplate(params, serial, now, ski, aki)
	template.Subject = params.Subject
	template.Issuer = caCert.Subject

	der, err := x509.CreateCertificate(rand.Reader, template, caCert, keyPair.Public, caSigner)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSigningFailure, err)
	}
	return der, nil
}

func buildTemplate(params CertificateParameters, serial *big.Int, now time.Time, ski, aki []byte) *x509.Certificate {
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		NotBefore:             now,
		NotAfter:              now.AddDate(0, 0, params.DurationDays),
		BasicConstraintsValid: true,
		IsCA:                  params.IsCA,
		SubjectKeyId:          ski,
	}
	if len(aki) > 0 {
		tmpl.ExtraExtensions = append(tmpl.ExtraExtensions, extraAuthorityKeyIdentifier(aki))
	}
	if params.HasKeyUsage {
		tmpl.KeyUsage = params.KeyUsage
	}
	if len(params.ExtKeyUsage) > 0 {
		tmpl.ExtKeyUsage = params.ExtKeyUsage
	}
	if len(params.SubjectAltNames) > 0 {
		tmpl.DNSNames = params.SubjectAltNames
	}
	return tmpl
}

// subjectKeyIdentifier computes the SHA-1 hash of the certificate's
// marshaled subject public key info, the first of the two methods RFC
// 5280 §4.2.1.2 describes.
func subjectKeyIdentifier(pub crypto.PublicKey) ([]byte, error) {
	spki, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	sum := sha1.Sum(spki)
	return sum[:], nil
}
