// Package handler はHTTPハンドラを提供する。
package handler

import (
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"key-management-service/internal/core"
	"key-management-service/internal/core/certgen"
	"key-management-service/internal/domain"
	"key-management-service/internal/middleware"
	"key-management-service/internal/usecase"
	"key-management-service/pkg/httputil"
)

// CryptoHandler はHTTPハンドラを提供する。
type CryptoHandler struct {
	service *usecase.CryptoService
}

// NewCryptoHandler は新しいCryptoHandlerを生成する。
func NewCryptoHandler(service *usecase.CryptoService) *CryptoHandler {
	return &CryptoHandler{service: service}
}

// encryptRequest はPOST /v1/keys/active/encrypt のリクエスト形式。
type encryptRequest struct {
	Plaintext string `json:"plaintext"`
}

// encryptResponse はPOST /v1/keys/active/encrypt のレスポンス形式。
type encryptResponse struct {
	CanaryID   string `json:"canary_id"`
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
}

// Encrypt はアクティブな鍵で平文を暗号化する。
func (h *CryptoHandler) Encrypt(w http.ResponseWriter, r *http.Request) {
	var req encryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed JSON body")
		return
	}

	canaryID, result, err := h.service.EncryptActive(r.Context(), req.Plaintext)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "ENCRYPT", canaryID, "FAILED")
		writeCoreError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "ENCRYPT", canaryID, "SUCCESS")
	httputil.JSON(w, http.StatusOK, encryptResponse{
		CanaryID:   canaryID,
		Ciphertext: base64.StdEncoding.EncodeToString(result.Ciphertext),
		Nonce:      base64.StdEncoding.EncodeToString(result.Nonce),
	})
}

// decryptRequest はPOST /v1/keys/{id}/decrypt のリクエスト形式。
type decryptRequest struct {
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
}

// decryptResponse はPOST /v1/keys/{id}/decrypt のレスポンス形式。
type decryptResponse struct {
	Plaintext string `json:"plaintext"`
}

// Decrypt はカナリアIDが指す鍵で暗号文を復号する。
func (h *CryptoHandler) Decrypt(w http.ResponseWriter, r *http.Request) {
	canaryID := chi.URLParam(r, "id")

	var req decryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed JSON body")
		return
	}
	ciphertext, err := base64.StdEncoding.DecodeString(req.Ciphertext)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "ciphertext must be base64")
		return
	}
	nonce, err := base64.StdEncoding.DecodeString(req.Nonce)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "nonce must be base64")
		return
	}

	plaintext, err := h.service.Decrypt(r.Context(), canaryID, ciphertext, nonce)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "DECRYPT", canaryID, "FAILED")
		writeCoreError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "DECRYPT", canaryID, "SUCCESS")
	httputil.JSON(w, http.StatusOK, decryptResponse{Plaintext: plaintext})
}

// keyBindingResponse はGET /v1/keys の一要素のレスポンス形式。
type keyBindingResponse struct {
	CanaryID string `json:"canary_id"`
	Provider string `json:"provider"`
	Active   bool   `json:"active"`
}

// ListKeys は構成済みの鍵バインディングを列挙する。
func (h *CryptoHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	bindings := h.service.ListKeyBindings()
	response := make([]keyBindingResponse, len(bindings))
	for i, b := range bindings {
		response[i] = keyBindingResponse{CanaryID: b.CanaryID, Provider: string(b.Provider), Active: b.Active}
	}
	httputil.JSON(w, http.StatusOK, response)
}

// certificateSubject はAPI越しに受け渡すX.500形式のサブジェクト。
type certificateSubject struct {
	CommonName         string `json:"common_name"`
	Organization       string `json:"organization,omitempty"`
	OrganizationalUnit string `json:"organizational_unit,omitempty"`
	Country            string `json:"country,omitempty"`
}

func (s certificateSubject) toPKIX() pkix.Name {
	name := pkix.Name{CommonName: s.CommonName}
	if s.Organization != "" {
		name.Organization = []string{s.Organization}
	}
	if s.OrganizationalUnit != "" {
		name.OrganizationalUnit = []string{s.OrganizationalUnit}
	}
	if s.Country != "" {
		name.Country = []string{s.Country}
	}
	return name
}

// issueCertificateRequest はCA登録と証明書発行に共通のリクエスト形式。
type issueCertificateRequest struct {
	Subject      certificateSubject `json:"subject"`
	DurationDays int                `json:"duration_days"`
	IsCA         bool               `json:"is_ca"`
	KeyUsage     []string           `json:"key_usage,omitempty"`
	DNSNames     []string           `json:"dns_names,omitempty"`
}

func (req issueCertificateRequest) toParams() certgen.CertificateParameters {
	params := certgen.CertificateParameters{
		Subject:         req.Subject.toPKIX(),
		DurationDays:    req.DurationDays,
		IsCA:            req.IsCA,
		SubjectAltNames: req.DNSNames,
	}
	if len(req.KeyUsage) > 0 {
		params.HasKeyUsage = true
		params.KeyUsage = parseKeyUsage(req.KeyUsage)
	}
	return params
}

// issuedCertificateResponse は発行された証明書とその秘密鍵のレスポンス形式。
// 秘密鍵は発行時にのみ返され、サーバー側には平文で保持されない。
type issuedCertificateResponse struct {
	CertificatePEM string `json:"certificate_pem"`
	PrivateKeyPEM  string `json:"private_key_pem"`
}

// RegisterCA は新しい自己署名CAを登録する。
func (h *CryptoHandler) RegisterCA(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		issueCertificateRequest
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed JSON body")
		return
	}

	ca, err := h.service.RegisterCA(r.Context(), req.Name, req.toParams())
	if err != nil {
		if errors.Is(err, domain.ErrCAAlreadyExists) {
			httputil.Error(w, http.StatusConflict, "CA_ALREADY_EXISTS", "a CA with this name already exists")
			return
		}
		writeCoreError(w, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		CertificatePEM string `json:"certificate_pem"`
	}{ID: ca.ID, Name: ca.Name, CertificatePEM: ca.CertificatePEM})
}

// IssueSelfSigned は自己署名証明書を発行する。
func (h *CryptoHandler) IssueSelfSigned(w http.ResponseWriter, r *http.Request) {
	var req issueCertificateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed JSON body")
		return
	}

	certPEM, keyPEM, err := h.service.IssueSelfSigned(r.Context(), req.toParams())
	if err != nil {
		writeCoreError(w, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, issuedCertificateResponse{CertificatePEM: certPEM, PrivateKeyPEM: keyPEM})
}

// IssueSignedByCA はCA IDの指すCAに署名させた証明書を発行する。
func (h *CryptoHandler) IssueSignedByCA(w http.ResponseWriter, r *http.Request) {
	caID := chi.URLParam(r, "ca_id")

	var req issueCertificateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed JSON body")
		return
	}

	certPEM, keyPEM, err := h.service.IssueSignedByCA(r.Context(), caID, req.toParams())
	if err != nil {
		if errors.Is(err, domain.ErrCANotFound) {
			httputil.Error(w, http.StatusNotFound, "CA_NOT_FOUND", "CA not found")
			return
		}
		writeCoreError(w, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, issuedCertificateResponse{CertificatePEM: certPEM, PrivateKeyPEM: keyPEM})
}

func writeCoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrUnknownCanary):
		httputil.Error(w, http.StatusNotFound, "UNKNOWN_CANARY", "canary id is not bound to any configured key")
	case errors.Is(err, core.ErrInvalidCaMaterial):
		httputil.Error(w, http.StatusBadRequest, "INVALID_CA_MATERIAL", "CA certificate or private key could not be parsed")
	case errors.Is(err, core.ErrSigningFailure):
		httputil.Error(w, http.StatusInternalServerError, "SIGNING_FAILURE", "certificate signing failed")
	case errors.Is(err, core.ErrEncryptionInfrastructure):
		httputil.Error(w, http.StatusBadGateway, "ENCRYPTION_INFRASTRUCTURE", "encryption provider failure")
	case errors.Is(err, core.ErrNoActiveKey):
		httputil.Error(w, http.StatusInternalServerError, "NO_ACTIVE_KEY", "no active key is configured")
	default:
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
