// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"key-management-service/internal/core"
)

// Config はアプリケーション設定を表す。
type Config struct {
	Port               string
	DatabaseURL        string
	GoogleCloudProject string
	LogLevel           string

	// ActiveEncryptionProvider は "local" または "remote" のいずれか。
	ActiveEncryptionProvider string
	// EncryptionKeys は ENCRYPTION_KEYS から読み込んだ鍵記述子の列。
	EncryptionKeys []core.KeyDescriptor

	RemoteEncryptionAddr    string
	RemoteEncryptionTLSCert string
	RemoteEncryptionTLSKey  string
	RemoteEncryptionTLSCA   string
	RemoteEncryptionTimeout time.Duration
	RemotePoolSize          int

	OtelEnabled      bool
	OtelEndpoint     string
	OtelServiceName  string
	OtelSamplingRate float64

	MigrationsDir string
}

// Load は環境変数から設定を読み込む。ENCRYPTION_KEYS の形式が不正な場合、
// エラーを返す。
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		GoogleCloudProject: os.Getenv("GOOGLE_CLOUD_PROJECT"),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),

		ActiveEncryptionProvider: getEnv("ACTIVE_ENCRYPTION_PROVIDER", "local"),

		RemoteEncryptionAddr:    os.Getenv("REMOTE_ENCRYPTION_ADDR"),
		RemoteEncryptionTLSCert: os.Getenv("REMOTE_ENCRYPTION_TLS_CERT"),
		RemoteEncryptionTLSKey:  os.Getenv("REMOTE_ENCRYPTION_TLS_KEY"),
		RemoteEncryptionTLSCA:   os.Getenv("REMOTE_ENCRYPTION_TLS_CA"),
		RemotePoolSize:          getEnvInt("REMOTE_ENCRYPTION_POOL_SIZE", 4),

		OtelEnabled:      getEnvBool("OTEL_ENABLED", false),
		OtelEndpoint:     getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OtelServiceName:  getEnv("OTEL_SERVICE_NAME", "credential-service"),
		OtelSamplingRate: getEnvFloat("OTEL_SAMPLING_RATE", 1.0),

		MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),
	}

	timeout, err := time.ParseDuration(getEnv("REMOTE_ENCRYPTION_TIMEOUT", "3s"))
	if err != nil {
		return nil, fmt.Errorf("parsing REMOTE_ENCRYPTION_TIMEOUT: %w", err)
	}
	cfg.RemoteEncryptionTimeout = timeout

	descriptors, err := parseEncryptionKeys(os.Getenv("ENCRYPTION_KEYS"))
	if err != nil {
		return nil, err
	}
	cfg.EncryptionKeys = descriptors

	return cfg, nil
}

// parseEncryptionKeys は ";" 区切りの "label:active-bit:opaque-value" 形式の
// エントリ列を解析する。active-bit は "1"（アクティブ）または "0" のいずれか。
func parseEncryptionKeys(raw string) ([]core.KeyDescriptor, error) {
	if raw == "" {
		return nil, nil
	}

	var descriptors []core.KeyDescriptor
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid ENCRYPTION_KEYS entry %q: want label:active-bit:opaque-value", entry)
		}
		label, activeBit, value := parts[0], parts[1], parts[2]
		var active bool
		switch activeBit {
		case "1":
			active = true
		case "0":
			active = false
		default:
			return nil, fmt.Errorf("invalid ENCRYPTION_KEYS entry %q: active-bit must be 0 or 1", entry)
		}
		descriptors = append(descriptors, core.KeyDescriptor{Label: label, Active: active, Value: value})
	}
	return descriptors, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return parsed
}
