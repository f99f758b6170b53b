package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"key-management-service/internal/domain"
)

// CAEntityModel はgorm用のモデル定義。
type CAEntityModel struct {
	ID                  string    `gorm:"type:char(36);primaryKey"`
	Name                string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	CertificatePEM      string    `gorm:"type:text;not null"`
	EncryptedPrivateKey []byte    `gorm:"type:blob;not null"`
	Nonce               []byte    `gorm:"type:blob;not null"`
	KeyID               string    `gorm:"type:varchar(64);not null"`
	CreatedAt           time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
}

// TableName はテーブル名を返す。
func (CAEntityModel) TableName() string {
	return "ca_entities"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *CAEntityModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

func (m *CAEntityModel) toDomain() *domain.CAEntity {
	return &domain.CAEntity{
		ID:                  m.ID,
		Name:                m.Name,
		CertificatePEM:      m.CertificatePEM,
		EncryptedPrivateKey: m.EncryptedPrivateKey,
		Nonce:               m.Nonce,
		KeyID:               m.KeyID,
		CreatedAt:           m.CreatedAt,
	}
}

// CARepository はCA認証情報のデータアクセスを提供する。
type CARepository struct {
	db *gorm.DB
}

// NewCARepository は新しいCARepositoryを生成する。
func NewCARepository(db *gorm.DB) *CARepository {
	return &CARepository{db: db}
}

// Create は新しいCA認証情報を保存する。
func (r *CARepository) Create(ctx context.Context, ca *domain.CAEntity) error {
	model := &CAEntityModel{
		ID:                  ca.ID,
		Name:                ca.Name,
		CertificatePEM:      ca.CertificatePEM,
		EncryptedPrivateKey: ca.EncryptedPrivateKey,
		Nonce:               ca.Nonce,
		KeyID:               ca.KeyID,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrCAAlreadyExists
		}
		slog.ErrorContext(ctx, "failed to create CA entity",
			"operation", "create",
			"name", ca.Name,
			"error", err,
		)
		return err
	}
	ca.ID = model.ID
	ca.CreatedAt = model.CreatedAt
	return nil
}

// FindByID はIDからCA認証情報を取得する。
func (r *CARepository) FindByID(ctx context.Context, id string) (*domain.CAEntity, error) {
	var model CAEntityModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCANotFound
		}
		slog.ErrorContext(ctx, "failed to find CA entity",
			"operation", "find_by_id",
			"id", id,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// FindAll は登録済みのCA認証情報を全件取得する。
func (r *CARepository) FindAll(ctx context.Context) ([]*domain.CAEntity, error) {
	var models []CAEntityModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&models).Error; err != nil {
		slog.ErrorContext(ctx, "failed to find all CA entities",
			"operation", "find_all",
			"error", err,
		)
		return nil, err
	}
	cas := make([]*domain.CAEntity, len(models))
	for i, m := range models {
		cas[i] = m.toDomain()
	}
	return cas, nil
}
