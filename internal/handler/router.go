package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter はルーターを生成する。
func NewRouter(h *CryptoHandler) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)

	// ルート定義
	r.Route("/v1/keys", func(r chi.Router) {
		r.Get("/", h.ListKeys)
		r.Post("/active/encrypt", h.Encrypt)
		r.Post("/{id}/decrypt", h.Decrypt)
	})
	r.Route("/v1/cas", func(r chi.Router) {
		r.Post("/", h.RegisterCA)
		r.Post("/{ca_id}/certificates", h.IssueSignedByCA)
	})
	r.Route("/v1/certificates", func(r chi.Router) {
		r.Post("/self-signed", h.IssueSelfSigned)
	})

	return otelhttp.NewHandler(r, "credential-service")
}
