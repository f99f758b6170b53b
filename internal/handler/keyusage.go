package handler

import "crypto/x509"

var keyUsageByName = map[string]x509.KeyUsage{
	"digital_signature":  x509.KeyUsageDigitalSignature,
	"content_commitment": x509.KeyUsageContentCommitment,
	"key_encipherment":   x509.KeyUsageKeyEncipherment,
	"data_encipherment":  x509.KeyUsageDataEncipherment,
	"key_agreement":      x509.KeyUsageKeyAgreement,
	"cert_sign":          x509.KeyUsageCertSign,
	"crl_sign":           x509.KeyUsageCRLSign,
}

func parseKeyUsage(names []string) x509.KeyUsage {
	var usage x509.KeyUsage
	for _, name := range names {
		usage |= keyUsageByName[name]
	}
	return usage
}
