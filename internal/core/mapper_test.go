package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// fakeProvider is a minimal, deterministic Provider double: each key holds
// a byte identity used as an XOR "cipher", which is enough to exercise
// wrong-key classification without pulling in real AEAD machinery.
type fakeProvider struct {
	keys      []*Key
	activeKey *Key
	seeds     map[*Key]byte
	failWith  error // if set, every Decrypt/Encrypt fails with this error
}

func newFakeProvider(n int, active int) *fakeProvider {
	p := &fakeProvider{seeds: make(map[*Key]byte)}
	for i := 0; i < n; i++ {
		k := NewLocalKey()
		p.keys = append(p.keys, k)
		p.seeds[k] = byte(i + 1)
		if i == active {
			p.activeKey = k
		}
	}
	return p
}

func (p *fakeProvider) ActiveKey() (*Key, error) {
	if p.activeKey == nil {
		return nil, errors.New("no active key")
	}
	return p.activeKey, nil
}

func (p *fakeProvider) Keys() []*Key { return p.keys }

func (p *fakeProvider) Encrypt(_ context.Context, key *Key, plaintext string) (EncryptionResult, error) {
	if p.failWith != nil {
		return EncryptionResult{}, p.failWith
	}
	seed := p.seeds[key]
	ct := xorWith([]byte(plaintext), seed)
	return EncryptionResult{Ciphertext: ct, Nonce: []byte{seed}}, nil
}

func (p *fakeProvider) Decrypt(_ context.Context, key *Key, ciphertext, nonce []byte) (string, error) {
	if p.failWith != nil {
		return "", p.failWith
	}
	seed := p.seeds[key]
	if len(nonce) != 1 || nonce[0] != seed {
		return "", &WrongKeyError{Cause: fmt.Errorf("seed mismatch")}
	}
	return string(xorWith(ciphertext, seed)), nil
}

func xorWith(b []byte, seed byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = c ^ seed
	}
	return out
}

// fakeStore is an in-memory CanaryStore double.
type fakeStore struct {
	records []CanaryRecord
	nextID  int
	failAll error
	failGet error
}

func (s *fakeStore) FindAll(context.Context) ([]CanaryRecord, error) {
	if s.failAll != nil {
		return nil, s.failAll
	}
	return append([]CanaryRecord(nil), s.records...), nil
}

func (s *fakeStore) Save(_ context.Context, record CanaryRecord) (CanaryRecord, error) {
	if s.failGet != nil {
		return CanaryRecord{}, s.failGet
	}
	s.nextID++
	record.ID = fmt.Sprintf("canary-%d", s.nextID)
	s.records = append(s.records, record)
	return record, nil
}

type fakeLogger struct{ warnings []string }

func (l *fakeLogger) Warn(msg string, _ ...any) { l.warnings = append(l.warnings, msg) }

// S1: cold start, no persisted canaries, one configured key: mints exactly
// one canary and binds it to the active key.
func TestReconcileColdStartMintsCanaryForActiveKey(t *testing.T) {
	provider := newFakeProvider(1, 0)
	store := &fakeStore{}
	mapper := NewCanaryMapper(provider, store, nil)

	if err := mapper.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected exactly one canary minted, got %d", len(store.records))
	}
	if mapper.ActiveUUID() != store.records[0].ID {
		t.Fatalf("active id %q does not match minted canary %q", mapper.ActiveUUID(), store.records[0].ID)
	}
	got, err := mapper.KeyFor(mapper.ActiveUUID())
	if err != nil || got != provider.activeKey {
		t.Fatalf("KeyFor(active) = %v, %v; want provider active key", got, err)
	}
}

// S2: warm start, one persisted canary that matches the sole configured
// key: binds without minting anything new.
func TestReconcileWarmStartBindsExistingCanary(t *testing.T) {
	provider := newFakeProvider(1, 0)
	store := &fakeStore{}
	enc, err := provider.Encrypt(context.Background(), provider.keys[0], CanaryValue)
	if err != nil {
		t.Fatalf("seeding canary: %v", err)
	}
	store.records = []CanaryRecord{{ID: "existing", EncryptedValue: enc.Ciphertext, Nonce: enc.Nonce}}

	mapper := NewCanaryMapper(provider, store, nil)
	if err := mapper.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected no new canary minted, got %d records", len(store.records))
	}
	if mapper.ActiveUUID() != "existing" {
		t.Fatalf("active id = %q, want existing", mapper.ActiveUUID())
	}
}

// S3: key rotation. Two configured keys, one persisted canary bound to the
// now-retired key, active key has no canary yet: retired key keeps its
// binding (readable), and a new canary is minted for the active key.
func TestReconcileRotationKeepsRetiredBindingAndMintsForActive(t *testing.T) {
	provider := newFakeProvider(2, 1) // key index 1 (second configured) is active
	store := &fakeStore{}
	enc, err := provider.Encrypt(context.Background(), provider.keys[0], CanaryValue)
	if err != nil {
		t.Fatalf("seeding canary: %v", err)
	}
	store.records = []CanaryRecord{{ID: "retired-canary", EncryptedValue: enc.Ciphertext, Nonce: enc.Nonce}}

	mapper := NewCanaryMapper(provider, store, nil)
	if err := mapper.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(store.records) != 2 {
		t.Fatalf("expected retired canary kept and one new minted, got %d", len(store.records))
	}
	retiredKey, err := mapper.KeyFor("retired-canary")
	if err != nil || retiredKey != provider.keys[0] {
		t.Fatalf("KeyFor(retired) = %v, %v; want retired key", retiredKey, err)
	}
	if mapper.ActiveUUID() == "retired-canary" {
		t.Fatal("active id should not be the retired canary")
	}
}

// S4: a configured key with no matching canary and is not active is
// dropped silently rather than minting one for it.
func TestReconcileDropsUnmatchedNonActiveKey(t *testing.T) {
	provider := newFakeProvider(2, 0)
	store := &fakeStore{}
	enc, err := provider.Encrypt(context.Background(), provider.keys[0], CanaryValue)
	if err != nil {
		t.Fatalf("seeding canary: %v", err)
	}
	store.records = []CanaryRecord{{ID: "only-canary", EncryptedValue: enc.Ciphertext, Nonce: enc.Nonce}}

	mapper := NewCanaryMapper(provider, store, nil)
	if err := mapper.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected no canary minted for the unmatched non-active key, got %d records", len(store.records))
	}
	if _, ok := mapper.EncryptionKeyMap()["only-canary"]; !ok {
		t.Fatal("expected the only canary to still be bound to the active key")
	}
}

// S5: no active key configured is a fatal startup error.
func TestReconcileFailsWithNoActiveKey(t *testing.T) {
	provider := &fakeProvider{keys: []*Key{NewLocalKey()}} // activeKey left nil
	store := &fakeStore{}
	mapper := NewCanaryMapper(provider, store, nil)

	err := mapper.Reconcile(context.Background())
	if !errors.Is(err, ErrNoActiveKey) {
		t.Fatalf("Reconcile err = %v, want ErrNoActiveKey", err)
	}
}

// S6: store.FindAll failing is a fatal infrastructure error, not a
// wrong-key condition.
func TestReconcileFailsOnStoreListError(t *testing.T) {
	provider := newFakeProvider(1, 0)
	store := &fakeStore{failAll: errors.New("db unreachable")}
	mapper := NewCanaryMapper(provider, store, nil)

	err := mapper.Reconcile(context.Background())
	if !errors.Is(err, ErrEncryptionInfrastructure) {
		t.Fatalf("Reconcile err = %v, want ErrEncryptionInfrastructure", err)
	}
}

// S7: a decrypt success with the wrong plaintext is treated as wrong-key
// and logged, not treated as corruption.
func TestReconcileTreatsMismatchedPlaintextAsWrongKeyAndLogs(t *testing.T) {
	provider := newFakeProvider(1, 0)
	store := &fakeStore{}
	// Craft a record that decrypts successfully (nonce matches the seed)
	// but to a plaintext other than CanaryValue.
	seed := provider.seeds[provider.keys[0]]
	bogus := xorWith([]byte("NOT_THE_CANARY"), seed)
	store.records = []CanaryRecord{{ID: "bogus", EncryptedValue: bogus, Nonce: []byte{seed}}}

	logger := &fakeLogger{}
	mapper := NewCanaryMapper(provider, store, logger)
	if err := mapper.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(logger.warnings) == 0 {
		t.Fatal("expected a warning logged for the mismatched plaintext")
	}
	if len(store.records) != 2 {
		t.Fatalf("expected a fresh canary minted for the active key, got %d records", len(store.records))
	}
}

// S8: an infrastructure failure during decrypt aborts reconciliation
// entirely rather than being swallowed as wrong-key.
func TestReconcileAbortsOnInfrastructureDecryptError(t *testing.T) {
	provider := newFakeProvider(1, 0)
	provider.failWith = errors.New("hsm unreachable")
	store := &fakeStore{records: []CanaryRecord{{ID: "x", EncryptedValue: []byte("ct"), Nonce: []byte{1}}}}

	mapper := NewCanaryMapper(provider, store, nil)
	err := mapper.Reconcile(context.Background())
	if !errors.Is(err, ErrEncryptionInfrastructure) {
		t.Fatalf("Reconcile err = %v, want ErrEncryptionInfrastructure", err)
	}
}

// S9: KeyFor on an id absent from the binding map returns ErrUnknownCanary.
func TestKeyForUnknownCanaryID(t *testing.T) {
	provider := newFakeProvider(1, 0)
	store := &fakeStore{}
	mapper := NewCanaryMapper(provider, store, nil)
	if err := mapper.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	_, err := mapper.KeyFor("does-not-exist")
	if !errors.Is(err, ErrUnknownCanary) {
		t.Fatalf("KeyFor err = %v, want ErrUnknownCanary", err)
	}
}
