// Package infra は外部サービスとの接続を提供する。
package infra

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	otelgorm "gorm.io/plugin/opentelemetry/tracing"

	"key-management-service/config"
)

// NewDB はgormによるデータベース接続を初期化する。OTel が有効な場合、
// クエリ単位のスパンを発行するトレーシングプラグインを登録する。
func NewDB(dsn string, cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// 重複キー等のドライバエラーを gorm.ErrDuplicatedKey などに変換する
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if cfg.OtelEnabled {
		if err := db.Use(otelgorm.NewPlugin()); err != nil {
			return nil, err
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 接続プール設定
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
