package certgen

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
)

func TestAuthorityKeyIdentifierRoundTrip(t *testing.T) {
	ski := []byte{1, 2, 3, 4, 5}
	subject := pkix.Name{CommonName: "issuer"}
	subjectDER, err := asn1.Marshal(subject.ToRDNSequence())
	if err != nil {
		t.Fatalf("marshaling subject: %v", err)
	}

	der, err := authorityKeyIdentifier(ski, subjectDER, big.NewInt(42))
	if err != nil {
		t.Fatalf("authorityKeyIdentifier: %v", err)
	}

	var decoded struct {
		KeyIdentifier []byte       `asn1:"optional,tag:0"`
		CertIssuer    asn1.RawValue `asn1:"optional,tag:1"`
		SerialNumber  *big.Int     `asn1:"optional,tag:2"`
	}
	if _, err := asn1.Unmarshal(der, &decoded); err != nil {
		t.Fatalf("unmarshaling AKI: %v", err)
	}
	if string(decoded.KeyIdentifier) != string(ski) {
		t.Fatalf("KeyIdentifier = %x, want %x", decoded.KeyIdentifier, ski)
	}
	if decoded.SerialNumber.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("SerialNumber = %v, want 42", decoded.SerialNumber)
	}
}
