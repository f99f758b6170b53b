// Package providers implements the concrete Provider variants: an
// in-process AEAD primitive and a remote RPC-backed service (see the
// sibling remote package).
package providers

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"key-management-service/internal/core"
)

// Local is the in-process AEAD provider: AES-256-GCM with a fresh 96-bit
// nonce drawn from crypto/rand on every call.
type Local struct {
	keys      []*core.Key
	activeKey *core.Key
	raw       map[*core.Key][]byte
}

// NewLocal builds a Local provider from the configured key descriptors.
// Each descriptor's Value must be a 64-character hex-encoded 32-byte
// AES-256 key. Exactly one descriptor should be marked active; that
// invariant is enforced by core.NewKeyRegistry, not here, so that the
// provider and the registry can be tested independently.
func NewLocal(descriptors []core.KeyDescriptor) (*Local, error) {
	p := &Local{raw: make(map[*core.Key][]byte, len(descriptors))}
	for _, d := range descriptors {
		raw, err := hex.DecodeString(d.Value)
		if err != nil {
			return nil, fmt.Errorf("decoding local key material: %w", err)
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("local key material must be 32 bytes, got %d", len(raw))
		}
		key := core.NewLocalKey()
		p.raw[key] = raw
		p.keys = append(p.keys, key)
		if d.Active {
			p.activeKey = key
		}
	}
	return p, nil
}

// ActiveKey implements core.Provider.
func (p *Local) ActiveKey() (*core.Key, error) {
	if p.activeKey == nil {
		return nil, fmt.Errorf("local provider has no active key")
	}
	return p.activeKey, nil
}

// Keys implements core.Provider.
func (p *Local) Keys() []*core.Key { return p.keys }

// Encrypt implements core.Provider.
func (p *Local) Encrypt(_ context.Context, key *core.Key, plaintext string) (core.EncryptionResult, error) {
	aead, err := p.aeadFor(key)
	if err != nil {
		return core.EncryptionResult{}, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return core.EncryptionResult{}, fmt.Errorf("generating nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, []byte(plaintext), nil)
	return core.EncryptionResult{Ciphertext: ciphertext, Nonce: nonce}, nil
}

// Decrypt implements core.Provider. A tag-mismatch failure from
// cipher.AEAD.Open is, for AES-GCM, always indistinguishable from a wrong
// key, so it is classified as core.WrongKeyError. A malformed nonce length
// is a structural error and is fatal.
func (p *Local) Decrypt(_ context.Context, key *core.Key, ciphertext, nonce []byte) (string, error) {
	aead, err := p.aeadFor(key)
	if err != nil {
		return "", err
	}
	if len(nonce) != aead.NonceSize() {
		return "", fmt.Errorf("nonce has wrong length: got %d, want %d", len(nonce), aead.NonceSize())
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", &core.WrongKeyError{Cause: err}
	}
	return string(plaintext), nil
}

func (p *Local) aeadFor(key *core.Key) (cipher.AEAD, error) {
	raw, ok := p.raw[key]
	if !ok {
		return nil, fmt.Errorf("key does not belong to this local provider")
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("constructing AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("constructing GCM AEAD: %w", err)
	}
	return aead, nil
}
