// Package handler exposes the storefront HTTP API: checkout, order
// retrieval, STL upload and configuration, and session management. Every
// response carries the uniform {success, message, data|error} envelope.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/makerforge/print-api/internal/appwrite"
	"github.com/makerforge/print-api/internal/domain/customer"
	"github.com/makerforge/print-api/internal/domain/order"
	"github.com/makerforge/print-api/internal/domain/pricing"
	"github.com/makerforge/print-api/internal/domain/stl"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// Project is the platform project id; it suffixes the session cookie
	// name the same way the platform's own web SDK does.
	Project string
	// MaxUploadFiles caps the number of files in one upload request.
	MaxUploadFiles int
	// MaxFileSize caps one uploaded file's size in bytes.
	MaxFileSize int64
	// SecureCookies marks session cookies Secure.
	SecureCookies bool
}

// FileStore stores uploaded model files in the object storage bucket.
type FileStore interface {
	Upload(ctx context.Context, filename string, content io.Reader) (fileID, url string, err error)
	Remove(ctx context.Context, fileID string) error
}

// Accounts is the slice of the platform account API the auth endpoints use.
// *appwrite.Client satisfies it.
type Accounts interface {
	CreateAccount(ctx context.Context, userID, email, password, name string) (*appwrite.User, error)
	CreateEmailSession(ctx context.Context, email, password string) (*appwrite.Session, error)
	GetAccount(ctx context.Context, session string) (*appwrite.User, error)
	DeleteSession(ctx context.Context, session, sessionID string) error
}

// Handler routes HTTP requests to the domain services.
type Handler struct {
	cfg      Config
	orders   *order.Service
	resolver *customer.Resolver
	stls     stl.Repository
	engine   *pricing.Engine
	files    FileStore
	accounts Accounts
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	orders *order.Service,
	resolver *customer.Resolver,
	stls stl.Repository,
	engine *pricing.Engine,
	files FileStore,
	accounts Accounts,
) *Handler {
	if cfg.MaxUploadFiles <= 0 {
		cfg.MaxUploadFiles = 10
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 50 << 20
	}
	return &Handler{
		cfg:      cfg,
		orders:   orders,
		resolver: resolver,
		stls:     stls,
		engine:   engine,
		files:    files,
		accounts: accounts,
	}
}

// Routes registers every endpoint on a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /orders", h.CreateOrder)
	mux.HandleFunc("GET /orders/{groupID}", h.GetOrderGroup)
	mux.HandleFunc("GET /orders/customer/{customerID}", h.GetCustomerOrders)

	mux.HandleFunc("POST /upload/stl", h.UploadSTL)
	mux.HandleFunc("PUT /upload/stl/{metadataID}/options", h.UpdatePrintOptions)
	mux.HandleFunc("GET /upload/stl/{stlID}/info", h.GetSTLInfo)
	mux.HandleFunc("DELETE /upload/stl/{stlID}", h.DeleteSTL)

	mux.HandleFunc("POST /auth/register", h.Register)
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("GET /auth/me", h.Me)
	mux.HandleFunc("POST /auth/logout", h.Logout)

	return mux
}

// envelope is the uniform response wrapper.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) respond(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string, details any) {
	writeJSON(w, status, envelope{Success: false, Error: message, Details: details})
}

// fail maps a domain error onto the HTTP taxonomy: 400 validation with
// field detail, 404 missing references, 409 platform conflicts, 422 strict
// pricing rejections, 502 for any other upstream failure.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *order.ValidationError
	if errors.As(err, &vErr) {
		h.respondError(w, http.StatusBadRequest, "validation failed", vErr.Fields)
		return
	}

	switch {
	case errors.Is(err, order.ErrGroupNotFound),
		errors.Is(err, customer.ErrNotFound),
		errors.Is(err, stl.ErrNotFound):
		h.respondError(w, http.StatusNotFound, err.Error(), nil)
		return
	case errors.Is(err, appwrite.ErrConflict):
		h.respondError(w, http.StatusConflict, err.Error(), nil)
		return
	case errors.Is(err, order.ErrNoLinesCreated):
		zctx.From(r.Context()).Error("checkout produced no lines", zap.Error(err))
		h.respondError(w, http.StatusBadGateway, err.Error(), nil)
		return
	}

	var (
		materialErr *pricing.UnknownMaterialError
		qualityErr  *pricing.UnknownQualityError
	)
	if errors.As(err, &materialErr) || errors.As(err, &qualityErr) {
		h.respondError(w, http.StatusUnprocessableEntity, err.Error(), nil)
		return
	}

	var apiErr *appwrite.Error
	if errors.As(err, &apiErr) {
		zctx.From(r.Context()).Error("upstream call failed", zap.Error(err))
		h.respondError(w, http.StatusBadGateway, "upstream service error", apiErr.Message)
		return
	}

	zctx.From(r.Context()).Error("request failed", zap.Error(err))
	h.respondError(w, http.StatusInternalServerError, "internal server error", nil)
}

// decodeBody reads a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}
