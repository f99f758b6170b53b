// Package remote speaks the structured, length-prefixed encryption RPC
// described by the spec: two unary calls, Encrypt and Decrypt, with the
// field numbering fixed at the wire level so existing deployments of the
// service stay compatible. The wire types here are hand-marshaled against
// that fixed numbering with google.golang.org/protobuf's low-level wire
// helpers rather than protoc-generated, since no .proto compiler runs as
// part of this build.
package remote

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// encryptRequest mirrors Encrypt(data: bytes, key: string).
type encryptRequest struct {
	Data []byte
	Key  string
}

func (r encryptRequest) marshalWire() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Data)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, r.Key)
	return b
}

// encryptResponse mirrors (data: bytes, nonce: bytes).
type encryptResponse struct {
	Data  []byte
	Nonce []byte
}

func (r *encryptResponse) unmarshalWire(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("malformed encrypt response: bad tag")
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("malformed encrypt response: bad data field")
			}
			r.Data = append([]byte(nil), v...)
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("malformed encrypt response: bad nonce field")
			}
			r.Nonce = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("malformed encrypt response: unknown field %d", num)
			}
			b = b[n:]
		}
	}
	return nil
}

// decryptRequest mirrors Decrypt(data: bytes, key: string, nonce: bytes).
type decryptRequest struct {
	Data  []byte
	Key   string
	Nonce []byte
}

func (r decryptRequest) marshalWire() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Data)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, r.Key)
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Nonce)
	return b
}

// decryptResponse mirrors (data: bytes).
type decryptResponse struct {
	Data []byte
}

func (r *decryptResponse) unmarshalWire(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("malformed decrypt response: bad tag")
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("malformed decrypt response: bad data field")
			}
			r.Data = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("malformed decrypt response: unknown field %d", num)
			}
			b = b[n:]
		}
	}
	return nil
}
