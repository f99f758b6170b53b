// Package main はAPIサーバーのエントリポイント。
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"key-management-service/config"
	"key-management-service/internal/core"
	"key-management-service/internal/core/certgen"
	"key-management-service/internal/core/providers"
	"key-management-service/internal/core/remote"
	"key-management-service/internal/handler"
	"key-management-service/internal/infra"
	"key-management-service/internal/repository"
	"key-management-service/internal/usecase"
)

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	// 設定読み込み
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// ログレベル設定
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "DEBUG":
		logLevel = slog.LevelDebug
	case "WARN":
		logLevel = slog.LevelWarn
	case "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	// トレース情報付きロガーを設定
	infra.SetupLogger(cfg, logLevel)

	// DB初期化
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is not set")
		os.Exit(1)
	}
	db, err := infra.NewDB(cfg.DatabaseURL, cfg)
	if err != nil {
		slog.Error("failed to init database", "error", err)
		os.Exit(1)
	}

	// 暗号鍵プロバイダを構成に応じて選択する
	provider, closeProvider, err := newProvider(ctx, cfg)
	if err != nil {
		slog.Error("failed to init encryption provider", "error", err)
		os.Exit(1)
	}
	if closeProvider != nil {
		defer closeProvider()
	}

	registry, err := core.NewKeyRegistry(cfg.EncryptionKeys, provider)
	if err != nil {
		slog.Error("failed to materialize key registry", "error", err)
		os.Exit(1)
	}

	canaryRepo := repository.NewCanaryRepository(db)
	mapper := core.NewCanaryMapper(provider, canaryRepo, slog.Default())
	if err := mapper.Reconcile(ctx); err != nil {
		slog.Error("failed to reconcile canary bindings", "error", err)
		os.Exit(1)
	}

	// DI
	caRepo := repository.NewCARepository(db)
	certRepo := repository.NewIssuedCertificateRepository(db)
	generator := certgen.NewGenerator()
	service := usecase.NewCryptoService(provider, mapper, registry, generator, caRepo, certRepo)
	h := handler.NewCryptoHandler(service)
	router := handler.NewRouter(h)

	// サーバー起動
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting server", "port", cfg.Port, "encryption_provider", cfg.ActiveEncryptionProvider)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// newProvider は設定に応じてローカルまたはリモートの暗号鍵プロバイダを構築する。
// リモートの場合、返り値の解放関数で接続プールを閉じる。
func newProvider(ctx context.Context, cfg *config.Config) (core.Provider, func(), error) {
	switch cfg.ActiveEncryptionProvider {
	case "remote":
		tlsConfig, err := infra.LoadMutualTLSConfig(cfg.RemoteEncryptionTLSCert, cfg.RemoteEncryptionTLSKey, cfg.RemoteEncryptionTLSCA)
		if err != nil {
			return nil, nil, err
		}
		r, err := remote.Dial(ctx, cfg.RemoteEncryptionAddr, tlsConfig, cfg.RemotePoolSize, cfg.RemoteEncryptionTimeout, cfg.EncryptionKeys)
		if err != nil {
			return nil, nil, err
		}
		return r, func() {
			if err := r.Close(); err != nil {
				slog.Error("failed to close remote encryption provider", "error", err)
			}
		}, nil
	default:
		p, err := providers.NewLocal(cfg.EncryptionKeys)
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil
	}
}
