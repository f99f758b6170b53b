package usecase

import (
	"context"
	"crypto/x509/pkix"
	"errors"
	"testing"

	"key-management-service/internal/core"
	"key-management-service/internal/core/certgen"
	"key-management-service/internal/core/providers"
	"key-management-service/internal/domain"
)

type fakeCanaryStore struct {
	records []core.CanaryRecord
	nextID  int
}

func (s *fakeCanaryStore) FindAll(context.Context) ([]core.CanaryRecord, error) {
	return append([]core.CanaryRecord(nil), s.records...), nil
}

func (s *fakeCanaryStore) Save(_ context.Context, r core.CanaryRecord) (core.CanaryRecord, error) {
	s.nextID++
	r.ID = "canary"
	s.records = append(s.records, r)
	return r, nil
}

type fakeCAStore struct {
	byID map[string]*domain.CAEntity
}

func newFakeCAStore() *fakeCAStore { return &fakeCAStore{byID: make(map[string]*domain.CAEntity)} }

func (s *fakeCAStore) Create(_ context.Context, ca *domain.CAEntity) error {
	ca.ID = "ca-1"
	s.byID[ca.ID] = ca
	return nil
}

func (s *fakeCAStore) FindByID(_ context.Context, id string) (*domain.CAEntity, error) {
	ca, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrCANotFound
	}
	return ca, nil
}

func (s *fakeCAStore) FindAll(context.Context) ([]*domain.CAEntity, error) {
	var out []*domain.CAEntity
	for _, ca := range s.byID {
		out = append(out, ca)
	}
	return out, nil
}

type fakeCertStore struct {
	recorded []*domain.IssuedCertificateRecord
}

func (s *fakeCertStore) Record(_ context.Context, rec *domain.IssuedCertificateRecord) error {
	s.recorded = append(s.recorded, rec)
	return nil
}

func newTestCryptoService(t *testing.T) (*CryptoService, *fakeCAStore, *fakeCertStore) {
	t.Helper()
	descs := []core.KeyDescriptor{{Active: true, Value: "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"}}
	provider, err := providers.NewLocal(descs)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	registry, err := core.NewKeyRegistry(descs, provider)
	if err != nil {
		t.Fatalf("NewKeyRegistry: %v", err)
	}
	store := &fakeCanaryStore{}
	mapper := core.NewCanaryMapper(provider, store, nil)
	if err := mapper.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	caStore := newFakeCAStore()
	certStore := &fakeCertStore{}
	svc := NewCryptoService(provider, mapper, registry, certgen.NewGenerator(), caStore, certStore)
	return svc, caStore, certStore
}

func TestCryptoServiceEncryptDecryptRoundTrip(t *testing.T) {
	svc, _, _ := newTestCryptoService(t)
	ctx := context.Background()

	id, result, err := svc.EncryptActive(ctx, "super secret")
	if err != nil {
		t.Fatalf("EncryptActive: %v", err)
	}
	plaintext, err := svc.Decrypt(ctx, id, result.Ciphertext, result.Nonce)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plaintext != "super secret" {
		t.Fatalf("plaintext = %q, want %q", plaintext, "super secret")
	}
}

func TestCryptoServiceDecryptUnknownCanary(t *testing.T) {
	svc, _, _ := newTestCryptoService(t)
	_, err := svc.Decrypt(context.Background(), "no-such-id", []byte("x"), []byte("y"))
	if !errors.Is(err, core.ErrUnknownCanary) {
		t.Fatalf("err = %v, want ErrUnknownCanary", err)
	}
}

func TestCryptoServiceRegisterCAAndIssueSignedCertificate(t *testing.T) {
	svc, caStore, certStore := newTestCryptoService(t)
	ctx := context.Background()

	ca, err := svc.RegisterCA(ctx, "root-ca", certgen.CertificateParameters{
		Subject:      pkix.Name{CommonName: "root-ca"},
		DurationDays: 3650,
	})
	if err != nil {
		t.Fatalf("RegisterCA: %v", err)
	}
	if _, ok := caStore.byID[ca.ID]; !ok {
		t.Fatal("expected CA to be persisted")
	}

	certPEM, keyPEM, err := svc.IssueSignedByCA(ctx, ca.ID, certgen.CertificateParameters{
		Subject:      pkix.Name{CommonName: "leaf.example.com"},
		DurationDays: 90,
	})
	if err != nil {
		t.Fatalf("IssueSignedByCA: %v", err)
	}
	if certPEM == "" || keyPEM == "" {
		t.Fatal("expected non-empty cert and key PEM")
	}
	if len(certStore.recorded) != 1 {
		t.Fatalf("len(recorded) = %d, want 1", len(certStore.recorded))
	}
	if certStore.recorded[0].IssuerCAID == nil || *certStore.recorded[0].IssuerCAID != ca.ID {
		t.Fatal("expected issued certificate to be linked to the issuing CA")
	}
}

func TestCryptoServiceIssueSelfSigned(t *testing.T) {
	svc, _, certStore := newTestCryptoService(t)
	certPEM, keyPEM, err := svc.IssueSelfSigned(context.Background(), certgen.CertificateParameters{
		Subject:      pkix.Name{CommonName: "standalone"},
		DurationDays: 30,
	})
	if err != nil {
		t.Fatalf("IssueSelfSigned: %v", err)
	}
	if certPEM == "" || keyPEM == "" {
		t.Fatal("expected non-empty cert and key PEM")
	}
	if len(certStore.recorded) != 1 {
		t.Fatalf("len(recorded) = %d, want 1", len(certStore.recorded))
	}
	if certStore.recorded[0].IssuerCAID != nil {
		t.Fatal("self-signed certificate should have no issuer CA")
	}
}

func TestCryptoServiceListKeyBindings(t *testing.T) {
	svc, _, _ := newTestCryptoService(t)
	bindings := svc.ListKeyBindings()
	if len(bindings) != 1 {
		t.Fatalf("len(bindings) = %d, want 1", len(bindings))
	}
	if !bindings[0].Active {
		t.Fatal("expected the sole binding to be active")
	}
	if bindings[0].Provider != core.ProviderLocal {
		t.Fatalf("Provider = %v, want ProviderLocal", bindings[0].Provider)
	}
}
