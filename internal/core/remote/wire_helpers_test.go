package remote

import "google.golang.org/protobuf/encoding/protowire"

// marshalEncryptResponseForTest and marshalDecryptResponseForTest stand in
// for the remote service's own marshaling, which this client never
// performs in production: they exist only so the unmarshal side can be
// exercised against known-good wire bytes.

func marshalEncryptResponseForTest(r encryptResponse) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Data)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Nonce)
	return b
}

func marshalDecryptResponseForTest(r decryptResponse) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Data)
	return b
}
