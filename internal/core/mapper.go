package core

import (
	"context"
	"fmt"
)

// Logger is the narrow observability collaborator the mapper uses to flag
// the one undocumented branch called out in the design notes: a decrypt
// that succeeds but returns a plaintext other than CanaryValue.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// CanaryMapper binds configured keys to persisted canary ids. It is built
// once at startup via Reconcile and is read-only thereafter: concurrent
// readers of EncryptionKeyMap/ActiveUUID/KeyFor need no coordination.
type CanaryMapper struct {
	provider Provider
	store    CanaryStore
	logger   Logger

	bindings map[string]*Key
	activeID string
}

// NewCanaryMapper constructs a mapper. logger may be nil, in which case a
// no-op logger is used.
func NewCanaryMapper(provider Provider, store CanaryStore, logger Logger) *CanaryMapper {
	if logger == nil {
		logger = noopLogger{}
	}
	return &CanaryMapper{provider: provider, store: store, logger: logger}
}

// Reconcile runs the startup algorithm described in the canary mapper
// design: it binds each configured key to the first persisted canary it
// decrypts, mints a fresh canary for the active key if none matches, and
// leaves unbound any non-active key that matches no canary. It must run once,
// synchronously, before any other operation is observable to callers.
func (m *CanaryMapper) Reconcile(ctx context.Context) error {
	keys := m.provider.Keys()
	active, err := m.provider.ActiveKey()
	if err != nil || len(keys) == 0 {
		return fmt.Errorf("%w: provider yielded no usable keys", ErrNoActiveKey)
	}

	canaries, err := m.store.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("%w: listing canary records: %w", ErrEncryptionInfrastructure, err)
	}

	consumed := make([]bool, len(canaries))
	bindings := make(map[string]*Key, len(keys))
	var activeID string

	for _, key := range keys {
		matchedIdx := -1
		for i, canary := range canaries {
			if consumed[i] {
				continue
			}
			plaintext, decErr := m.provider.Decrypt(ctx, key, canary.EncryptedValue, canary.Nonce)
			if decErr != nil {
				if IsWrongKey(decErr) {
					continue
				}
				return fmt.Errorf("%w: %w", ErrEncryptionInfrastructure, decErr)
			}
			if plaintext != CanaryValue {
				m.logger.Warn("canary decrypted to unexpected plaintext, treating as wrong key",
					"canary_id", canary.ID, "provider", key.Provider)
				continue
			}
			matchedIdx = i
			break
		}

		if matchedIdx >= 0 {
			consumed[matchedIdx] = true
			bindings[canaries[matchedIdx].ID] = key
			if key == active {
				activeID = canaries[matchedIdx].ID
			}
			continue
		}

		if key != active {
			// No canary matched and this key is not active: drop it from
			// the registry for this run rather than minting a canary it
			// doesn't need.
			continue
		}

		enc, encErr := m.provider.Encrypt(ctx, key, CanaryValue)
		if encErr != nil {
			return fmt.Errorf("%w: minting canary for active key: %w", ErrEncryptionInfrastructure, encErr)
		}
		saved, saveErr := m.store.Save(ctx, CanaryRecord{EncryptedValue: enc.Ciphertext, Nonce: enc.Nonce})
		if saveErr != nil {
			return fmt.Errorf("%w: saving new canary: %w", ErrEncryptionInfrastructure, saveErr)
		}
		bindings[saved.ID] = key
		activeID = saved.ID
	}

	if activeID == "" {
		return fmt.Errorf("%w: active key was never bound to a canary", ErrNoActiveKey)
	}

	m.bindings = bindings
	m.activeID = activeID
	return nil
}

// EncryptionKeyMap returns the read-only id-to-key snapshot produced by Reconcile.
func (m *CanaryMapper) EncryptionKeyMap() map[string]*Key {
	return m.bindings
}

// ActiveUUID returns the id bound to the provider's active key.
func (m *CanaryMapper) ActiveUUID() string {
	return m.activeID
}

// KeyFor resolves a stored canary id back to a key. It returns
// ErrUnknownCanary if id is not in the binding map, which indicates a
// ciphertext bound to a retired or missing key.
func (m *CanaryMapper) KeyFor(id string) (*Key, error) {
	key, ok := m.bindings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCanary, id)
	}
	return key, nil
}
