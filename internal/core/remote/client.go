package remote

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"

	"key-management-service/internal/core"
)

const (
	encryptMethod = "/credential.encryption.v1.EncryptionService/Encrypt"
	decryptMethod = "/credential.encryption.v1.EncryptionService/Decrypt"
)

// Remote is the core.Provider backed by the remote encryption service. Keys
// never leave that service: a Key minted by Remote carries only the label
// the service uses to identify the key on the wire.
type Remote struct {
	conns   []*grpc.ClientConn
	next    atomic.Uint64
	timeout time.Duration

	labels    map[*core.Key]string
	keys      []*core.Key
	activeKey *core.Key
}

// Dial opens a pool of poolSize mutually-authenticated connections to addr
// and materializes a Key for every descriptor. Exactly one descriptor
// should be marked active; that invariant is enforced by
// core.NewKeyRegistry, not here.
func Dial(ctx context.Context, addr string, tlsConfig *tls.Config, poolSize int, timeout time.Duration, descriptors []core.KeyDescriptor) (*Remote, error) {
	if poolSize < 1 {
		poolSize = 1
	}
	creds := credentials.NewTLS(tlsConfig)

	conns := make([]*grpc.ClientConn, 0, poolSize)
	for i := 0; i < poolSize; i++ {
		conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
		if err != nil {
			for _, c := range conns {
				_ = c.Close()
			}
			return nil, fmt.Errorf("dialing remote encryption service: %w", err)
		}
		conns = append(conns, conn)
	}

	r := &Remote{
		conns:   conns,
		timeout: timeout,
		labels:  make(map[*core.Key]string, len(descriptors)),
	}
	for _, d := range descriptors {
		key := core.NewRemoteKey()
		r.labels[key] = d.Value
		r.keys = append(r.keys, key)
		if d.Active {
			r.activeKey = key
		}
	}
	return r, nil
}

// Close releases every pooled connection.
func (r *Remote) Close() error {
	var firstErr error
	for _, c := range r.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Remote) conn() *grpc.ClientConn {
	i := r.next.Add(1) - 1
	return r.conns[i%uint64(len(r.conns))]
}

// ActiveKey implements core.Provider.
func (r *Remote) ActiveKey() (*core.Key, error) {
	if r.activeKey == nil {
		return nil, fmt.Errorf("remote provider has no active key")
	}
	return r.activeKey, nil
}

// Keys implements core.Provider.
func (r *Remote) Keys() []*core.Key { return r.keys }

// Encrypt implements core.Provider by invoking the remote Encrypt RPC.
func (r *Remote) Encrypt(ctx context.Context, key *core.Key, plaintext string) (core.EncryptionResult, error) {
	label, ok := r.labels[key]
	if !ok {
		return core.EncryptionResult{}, fmt.Errorf("key does not belong to this remote provider")
	}

	ctx, cancel := r.withDeadline(ctx)
	defer cancel()

	req := encryptRequest{Data: []byte(plaintext), Key: label}
	var resp encryptResponse
	if err := r.invoke(ctx, encryptMethod, req.marshalWire(), &resp); err != nil {
		return core.EncryptionResult{}, err
	}
	return core.EncryptionResult{Ciphertext: resp.Data, Nonce: resp.Nonce}, nil
}

// Decrypt implements core.Provider by invoking the remote Decrypt RPC. A
// failure whose message matches one of the known HSM/DSM wrong-key
// fragments is classified as core.WrongKeyError; everything else, including
// deadline exceeded and connection failures, is returned unwrapped and is
// treated by callers as fatal infrastructure failure.
func (r *Remote) Decrypt(ctx context.Context, key *core.Key, ciphertext, nonce []byte) (string, error) {
	label, ok := r.labels[key]
	if !ok {
		return "", fmt.Errorf("key does not belong to this remote provider")
	}

	ctx, cancel := r.withDeadline(ctx)
	defer cancel()

	req := decryptRequest{Data: ciphertext, Key: label, Nonce: nonce}
	var resp decryptResponse
	if err := r.invoke(ctx, decryptMethod, req.marshalWire(), &resp); err != nil {
		if st, ok := status.FromError(err); ok && looksLikeWrongKey(st.Message()) {
			return "", &core.WrongKeyError{Cause: err}
		}
		return "", err
	}
	return string(resp.Data), nil
}

func (r *Remote) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

type wireUnmarshaler interface {
	unmarshalWire([]byte) error
}

// invoke marshals req with the wire codec and sends it over the pooled
// connection via grpc.ClientConn.Invoke, bypassing any protoc-generated
// stub since none was compiled for this build.
func (r *Remote) invoke(ctx context.Context, method string, reqBytes []byte, resp wireUnmarshaler) error {
	var raw []byte
	err := r.conn().Invoke(ctx, method, rawBytes(reqBytes), (*rawBytes)(&raw), grpc.ForceCodec(wireCodec{}))
	if err != nil {
		return err
	}
	return resp.unmarshalWire(raw)
}

// rawBytes is the carrier type the codec marshals/unmarshals verbatim: the
// request side is already wire-encoded by marshalWire, and the response
// side is handed raw to unmarshalWire.
type rawBytes []byte

type wireCodec struct{}

func (wireCodec) Name() string { return "credential-wire" }

func (wireCodec) Marshal(v any) ([]byte, error) {
	b, ok := v.(rawBytes)
	if !ok {
		return nil, fmt.Errorf("wire codec: unsupported type %T", v)
	}
	return b, nil
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	p, ok := v.(*rawBytes)
	if !ok {
		return fmt.Errorf("wire codec: unsupported type %T", v)
	}
	*p = append((*p)[:0], data...)
	return nil
}
