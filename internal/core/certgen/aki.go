package certgen

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
)

// oidAuthorityKeyIdentifier is id-ce-authorityKeyIdentifier, RFC 5280 §4.2.1.1.
var oidAuthorityKeyIdentifier = asn1.ObjectIdentifier{2, 5, 29, 35}

// authorityKeyIdentifier builds the full RFC 5280 AuthorityKeyIdentifier
// SEQUENCE — keyIdentifier, authorityCertIssuer, authorityCertSerialNumber
// — rather than the keyIdentifier-only form crypto/x509 produces when a
// certificate template's AuthorityKeyId field is set directly. issuerSubjectDER
// is the DER encoding of the issuer's subject Name (an RDNSequence); serial
// is the issuer's own certificate serial number.
func authorityKeyIdentifier(issuerSKI []byte, issuerSubjectDER []byte, serial *big.Int) ([]byte, error) {
	keyIDTLV, err := wrapContext(0, false, issuerSKI)
	if err != nil {
		return nil, fmt.Errorf("wrapping key identifier: %w", err)
	}

	subjectContent, err := rawContent(issuerSubjectDER)
	if err != nil {
		return nil, fmt.Errorf("unwrapping issuer subject: %w", err)
	}
	directoryName, err := wrapContext(4, true, subjectContent)
	if err != nil {
		return nil, fmt.Errorf("wrapping directory name: %w", err)
	}
	generalNames, err := wrapContext(1, true, directoryName)
	if err != nil {
		return nil, fmt.Errorf("wrapping general names: %w", err)
	}

	serialContent, err := integerContent(serial)
	if err != nil {
		return nil, fmt.Errorf("encoding serial number: %w", err)
	}
	serialTLV, err := wrapContext(2, false, serialContent)
	if err != nil {
		return nil, fmt.Errorf("wrapping serial number: %w", err)
	}

	body := append(append(append([]byte{}, keyIDTLV...), generalNames...), serialTLV...)
	return asn1.Marshal(asn1.RawValue{Class: asn1.ClassUniversal, Tag: asn1.TagSequence, IsCompound: true, Bytes: body})
}

func extraAuthorityKeyIdentifier(akiDER []byte) pkix.Extension {
	return pkix.Extension{Id: oidAuthorityKeyIdentifier, Critical: false, Value: akiDER}
}

// wrapContext produces the TLV for an implicitly-tagged context-specific
// field: the tag number replaces the underlying type's universal tag, the
// content bytes are carried through unchanged.
func wrapContext(tag int, compound bool, content []byte) ([]byte, error) {
	return asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassContextSpecific,
		Tag:        tag,
		IsCompound: compound,
		Bytes:      content,
	})
}

// rawContent strips the outer tag and length from a DER TLV, returning
// just the content octets.
func rawContent(der []byte) ([]byte, error) {
	var raw asn1.RawValue
	if _, err := asn1.Unmarshal(der, &raw); err != nil {
		return nil, err
	}
	return raw.Bytes, nil
}

// integerContent returns the minimal two's-complement content bytes of an
// INTEGER's DER encoding, stripping the universal INTEGER tag and length.
func integerContent(n *big.Int) ([]byte, error) {
	full, err := asn1.Marshal(n)
	if err != nil {
		return nil, err
	}
	return rawContent(full)
}
