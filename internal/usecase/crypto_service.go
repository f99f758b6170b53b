// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/pem"
	"fmt"

	"key-management-service/internal/core"
	"key-management-service/internal/core/certgen"
	"key-management-service/internal/domain"
)

// CAStore はCA認証情報のデータアクセスのインターフェース。
type CAStore interface {
	Create(ctx context.Context, ca *domain.CAEntity) error
	FindByID(ctx context.Context, id string) (*domain.CAEntity, error)
	FindAll(ctx context.Context) ([]*domain.CAEntity, error)
}

// CertificateStore は発行済み証明書の記録先のインターフェース。
type CertificateStore interface {
	Record(ctx context.Context, rec *domain.IssuedCertificateRecord) error
}

// KeyBinding はキー一覧APIに公開してよい範囲のキー情報。
type KeyBinding struct {
	CanaryID string
	Provider core.ProviderKind
	Active   bool
}

// CryptoService は暗号鍵の運用と証明書発行のビジネスロジックを提供する。
type CryptoService struct {
	provider  core.Provider
	mapper    *core.CanaryMapper
	registry  *core.KeyRegistry
	generator *certgen.Generator
	caStore   CAStore
	certStore CertificateStore
}

// NewCryptoService は新しいCryptoServiceを生成する。mapper.Reconcile は
// 呼び出し側が起動時に一度だけ実行しておく必要がある。
func NewCryptoService(provider core.Provider, mapper *core.CanaryMapper, registry *core.KeyRegistry, generator *certgen.Generator, caStore CAStore, certStore CertificateStore) *CryptoService {
	return &CryptoService{
		provider:  provider,
		mapper:    mapper,
		registry:  registry,
		generator: generator,
		caStore:   caStore,
		certStore: certStore,
	}
}

// EncryptActive は現在アクティブな鍵で平文を暗号化する。
func (s *CryptoService) EncryptActive(ctx context.Context, plaintext string) (canaryID string, result core.EncryptionResult, err error) {
	activeID := s.mapper.ActiveUUID()
	key, err := s.mapper.KeyFor(activeID)
	if err != nil {
		return "", core.EncryptionResult{}, fmt.Errorf("resolving active key: %w", err)
	}
	result, err = s.provider.Encrypt(ctx, key, plaintext)
	if err != nil {
		return "", core.EncryptionResult{}, fmt.Errorf("%w: %w", core.ErrEncryptionInfrastructure, err)
	}
	return activeID, result, nil
}

// Decrypt はカナリアIDが指す鍵で暗号文を復号する。
func (s *CryptoService) Decrypt(ctx context.Context, canaryID string, ciphertext, nonce []byte) (string, error) {
	key, err := s.mapper.KeyFor(canaryID)
	if err != nil {
		return "", err
	}
	plaintext, err := s.provider.Decrypt(ctx, key, ciphertext, nonce)
	if err != nil {
		if core.IsWrongKey(err) {
			return "", fmt.Errorf("%w: ciphertext does not match the bound key", core.ErrEncryptionInfrastructure)
		}
		return "", fmt.Errorf("%w: %w", core.ErrEncryptionInfrastructure, err)
	}
	return plaintext, nil
}

// ListKeyBindings はカナリアIDから鍵への対応関係を、鍵の生データを晒さない
// 形で列挙する。
func (s *CryptoService) ListKeyBindings() []KeyBinding {
	activeID := s.mapper.ActiveUUID()
	bindings := s.mapper.EncryptionKeyMap()
	result := make([]KeyBinding, 0, len(bindings))
	for id, key := range bindings {
		result = append(result, KeyBinding{
			CanaryID: id,
			Provider: key.Provider,
			Active:   id == activeID,
		})
	}
	return result
}

// RegisterCA は新しい自己署名CAを生成し、秘密鍵をアクティブな鍵で暗号化して
// 保存する。
func (s *CryptoService) RegisterCA(ctx context.Context, name string, params certgen.CertificateParameters) (*domain.CAEntity, error) {
	params.IsCA = true

	keyPair, keyPairPEM, err := generateLeafKeyPair()
	if err != nil {
		return nil, fmt.Errorf("%w: generating CA key pair: %w", core.ErrSigningFailure, err)
	}

	certDER, err := s.generator.SelfSigned(keyPair, params)
	if err != nil {
		return nil, err
	}
	certPEM := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}))

	activeID, encResult, err := s.EncryptActive(ctx, keyPairPEM)
	if err != nil {
		return nil, err
	}

	ca := &domain.CAEntity{
		Name:                name,
		CertificatePEM:      certPEM,
		EncryptedPrivateKey: encResult.Ciphertext,
		Nonce:               encResult.Nonce,
		KeyID:               activeID,
	}
	if err := s.caStore.Create(ctx, ca); err != nil {
		return nil, err
	}
	return ca, nil
}

// IssueSelfSigned は、どのCAにも紐付かない自己署名証明書を発行する。
func (s *CryptoService) IssueSelfSigned(ctx context.Context, params certgen.CertificateParameters) (certPEM string, keyPEM string, err error) {
	keyPair, keyPairPEM, err := generateLeafKeyPair()
	if err != nil {
		return "", "", fmt.Errorf("%w: generating key pair: %w", core.ErrSigningFailure, err)
	}

	certDER, err := s.generator.SelfSigned(keyPair, params)
	if err != nil {
		return "", "", err
	}
	certPEM = string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}))

	if err := s.recordIssuance(ctx, certDER, nil, params.IsCA); err != nil {
		return "", "", err
	}
	return certPEM, keyPairPEM, nil
}

// IssueSignedByCA は保存済みのCAに署名させた証明書を発行する。CAの秘密鍵は
// 保存時と同じ鍵で復号してから署名にのみ使い、呼び出し元には返さない。
func (s *CryptoService) IssueSignedByCA(ctx context.Context, caID string, params certgen.CertificateParameters) (certPEM string, keyPEM string, err error) {
	ca, err := s.caStore.FindByID(ctx, caID)
	if err != nil {
		return "", "", err
	}

	caKeyPEM, err := s.Decrypt(ctx, ca.KeyID, ca.EncryptedPrivateKey, ca.Nonce)
	if err != nil {
		return "", "", fmt.Errorf("%w: decrypting CA private key: %w", core.ErrInvalidCaMaterial, err)
	}

	keyPair, keyPairPEM, err := generateLeafKeyPair()
	if err != nil {
		return "", "", fmt.Errorf("%w: generating key pair: %w", core.ErrSigningFailure, err)
	}

	certDER, err := s.generator.SignedBy(ca.CertificatePEM, caKeyPEM, keyPair, params)
	if err != nil {
		return "", "", err
	}
	certPEM = string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}))

	if err := s.recordIssuance(ctx, certDER, &ca.ID, params.IsCA); err != nil {
		return "", "", err
	}
	return certPEM, keyPairPEM, nil
}

func (s *CryptoService) recordIssuance(ctx context.Context, certDER []byte, issuerCAID *string, isCA bool) error {
	cert, err := parseCertForAudit(certDER)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrSigningFailure, err)
	}
	return s.certStore.Record(ctx, &domain.IssuedCertificateRecord{
		SerialNumber: cert.SerialNumber.String(),
		Subject:      cert.Subject.String(),
		IssuerCAID:   issuerCAID,
		IsCA:         isCA,
		NotBefore:    cert.NotBefore,
		NotAfter:     cert.NotAfter,
	})
}

func generateLeafKeyPair() (certgen.KeyPair, string, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return certgen.KeyPair{}, "", err
	}
	der, err := marshalECPrivateKey(priv)
	if err != nil {
		return certgen.KeyPair{}, "", err
	}
	keyPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
	return certgen.KeyPair{Public: &priv.PublicKey, Private: priv}, keyPEM, nil
}
