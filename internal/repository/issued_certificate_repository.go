package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"key-management-service/internal/domain"
)

// IssuedCertificateModel はgorm用のモデル定義。証明書発行の履歴のみを保持し、
// 失効や検証は扱わない。
type IssuedCertificateModel struct {
	ID           string    `gorm:"type:char(36);primaryKey"`
	SerialNumber string    `gorm:"type:varchar(128);not null;index"`
	Subject      string    `gorm:"type:varchar(255);not null"`
	IssuerCAID   *string   `gorm:"type:char(36);index"`
	IsCA         bool      `gorm:"not null;default:false"`
	NotBefore    time.Time `gorm:"type:datetime(6);not null"`
	NotAfter     time.Time `gorm:"type:datetime(6);not null"`
	CreatedAt    time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
}

// TableName はテーブル名を返す。
func (IssuedCertificateModel) TableName() string {
	return "issued_certificates"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *IssuedCertificateModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

func (m *IssuedCertificateModel) toDomain() *domain.IssuedCertificateRecord {
	return &domain.IssuedCertificateRecord{
		ID:           m.ID,
		SerialNumber: m.SerialNumber,
		Subject:      m.Subject,
		IssuerCAID:   m.IssuerCAID,
		IsCA:         m.IsCA,
		NotBefore:    m.NotBefore,
		NotAfter:     m.NotAfter,
		CreatedAt:    m.CreatedAt,
	}
}

// IssuedCertificateRepository は発行済み証明書の記録を管理するリポジトリ。
type IssuedCertificateRepository struct {
	db *gorm.DB
}

// NewIssuedCertificateRepository は新しいIssuedCertificateRepositoryを生成する。
func NewIssuedCertificateRepository(db *gorm.DB) *IssuedCertificateRepository {
	return &IssuedCertificateRepository{db: db}
}

// Record は発行済み証明書を記録する。
func (r *IssuedCertificateRepository) Record(ctx context.Context, rec *domain.IssuedCertificateRecord) error {
	model := &IssuedCertificateModel{
		ID:           rec.ID,
		SerialNumber: rec.SerialNumber,
		Subject:      rec.Subject,
		IssuerCAID:   rec.IssuerCAID,
		IsCA:         rec.IsCA,
		NotBefore:    rec.NotBefore,
		NotAfter:     rec.NotAfter,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to record issued certificate",
			"operation", "record",
			"subject", rec.Subject,
			"error", err,
		)
		return err
	}
	rec.ID = model.ID
	rec.CreatedAt = model.CreatedAt
	return nil
}

// FindByCAID はCAから発行された証明書の一覧を取得する。
func (r *IssuedCertificateRepository) FindByCAID(ctx context.Context, caID string) ([]*domain.IssuedCertificateRecord, error) {
	var models []IssuedCertificateModel
	err := r.db.WithContext(ctx).Where("issuer_ca_id = ?", caID).Order("created_at ASC").Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find issued certificates by CA id",
			"operation", "find_by_ca_id",
			"ca_id", caID,
			"error", err,
		)
		return nil, err
	}
	records := make([]*domain.IssuedCertificateRecord, len(models))
	for i, m := range models {
		records[i] = m.toDomain()
	}
	return records, nil
}
