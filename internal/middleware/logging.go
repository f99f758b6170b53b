// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"time"
)

// AuditLog は監査ログの構造体。
type AuditLog struct {
	Operation string `json:"operation"`
	CanaryID  string `json:"canary_id,omitempty"`
	Result    string `json:"result"`
	Timestamp string `json:"timestamp"`
}

// WriteAuditLog は監査ログを出力する。canaryID は対象の暗号操作が紐づく
// カナリアIDで、暗号化が失敗した場合は空文字列になる。
func WriteAuditLog(ctx context.Context, operation string, canaryID string, result string) {
	slog.InfoContext(ctx, "crypto operation completed",
		"operation", operation,
		"canary_id", canaryID,
		"result", result,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	)
}
