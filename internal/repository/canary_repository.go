// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"key-management-service/internal/core"
)

// CanaryRecordModel はgorm用のモデル定義。
type CanaryRecordModel struct {
	ID             string    `gorm:"type:char(36);primaryKey"`
	EncryptedValue []byte    `gorm:"type:blob;not null"`
	Nonce          []byte    `gorm:"type:blob;not null"`
	CreatedAt      time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
}

// TableName はテーブル名を返す。
func (CanaryRecordModel) TableName() string {
	return "canary_records"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *CanaryRecordModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

func (m *CanaryRecordModel) toDomain() core.CanaryRecord {
	return core.CanaryRecord{ID: m.ID, EncryptedValue: m.EncryptedValue, Nonce: m.Nonce}
}

// CanaryRepository は core.CanaryStore のgorm実装。
type CanaryRepository struct {
	db *gorm.DB
}

// NewCanaryRepository は新しいCanaryRepositoryを生成する。
func NewCanaryRepository(db *gorm.DB) *CanaryRepository {
	return &CanaryRepository{db: db}
}

// FindAll は永続化済みのカナリアレコードを全件取得する。順序は保証しない。
func (r *CanaryRepository) FindAll(ctx context.Context) ([]core.CanaryRecord, error) {
	var models []CanaryRecordModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		slog.ErrorContext(ctx, "failed to find all canary records",
			"operation", "find_all",
			"error", err,
		)
		return nil, err
	}

	records := make([]core.CanaryRecord, len(models))
	for i, m := range models {
		records[i] = m.toDomain()
	}
	return records, nil
}

// Save は新しいカナリアレコードを保存し、IDを割り振った状態で返す。
func (r *CanaryRepository) Save(ctx context.Context, record core.CanaryRecord) (core.CanaryRecord, error) {
	model := &CanaryRecordModel{
		EncryptedValue: record.EncryptedValue,
		Nonce:          record.Nonce,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to save canary record",
			"operation", "save",
			"error", err,
		)
		return core.CanaryRecord{}, err
	}
	return model.toDomain(), nil
}
