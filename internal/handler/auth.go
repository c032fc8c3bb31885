package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/makerforge/print-api/internal/appwrite"
	"github.com/makerforge/print-api/internal/domain/customer"
)

const sessionTTL = 30 * 24 * time.Hour

func (h *Handler) sessionCookieName() string {
	return "a_session_" + h.cfg.Project
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, secret string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionCookieName(),
		Value:    secret,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) sessionSecret(r *http.Request) string {
	c, err := r.Cookie(h.sessionCookieName())
	if err != nil {
		return ""
	}
	return c.Value
}

type registerDTO struct {
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Email           string `json:"email" validate:"required"`
	Phone           string `json:"phone" validate:"required,phone_digits"`
	DeliveryAddress string `json:"delivery_address" validate:"required,max=255"`
	Password        string `json:"password" validate:"required,min=8"`
}

type userResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	CustomerID string `json:"customer_id,omitempty"`
}

// Register handles POST /auth/register: create the platform account, the
// customer record, and an initial session.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var dto registerDTO
	if err := decodeBody(r, &dto); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if verr := checkValid(&dto); verr != nil {
		h.fail(w, r, verr)
		return
	}

	name := dto.FirstName + " " + dto.LastName
	user, err := h.accounts.CreateAccount(r.Context(), appwrite.IDUnique, dto.Email, dto.Password, name)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// The customer record is best-effort: the account exists either way and
	// checkout resolves customers by email on demand.
	cust, err := h.resolver.Resolve(r.Context(), customer.Customer{
		FirstName:       dto.FirstName,
		LastName:        dto.LastName,
		Email:           dto.Email,
		Phone:           dto.Phone,
		DeliveryAddress: dto.DeliveryAddress,
	})
	if err != nil {
		zctx.From(r.Context()).Warn("customer record not created on registration",
			zap.String("email", dto.Email), zap.Error(err))
	}

	session, err := h.accounts.CreateEmailSession(r.Context(), dto.Email, dto.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.setSessionCookie(w, session.Secret, sessionTTL)

	resp := userResponse{ID: user.ID, Email: user.Email, Name: user.Name}
	if cust != nil {
		resp.CustomerID = cust.ID
	}
	h.respond(w, http.StatusCreated, "user registered successfully", resp)
}

type loginDTO struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto loginDTO
	if err := decodeBody(r, &dto); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if verr := checkValid(&dto); verr != nil {
		h.fail(w, r, verr)
		return
	}

	session, err := h.accounts.CreateEmailSession(r.Context(), dto.Email, dto.Password)
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	user, err := h.accounts.GetAccount(r.Context(), session.Secret)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.setSessionCookie(w, session.Secret, sessionTTL)
	h.respond(w, http.StatusOK, "login successful",
		userResponse{ID: user.ID, Email: user.Email, Name: user.Name})
}

// Me handles GET /auth/me: the account behind the session cookie.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	secret := h.sessionSecret(r)
	if secret == "" {
		h.respondError(w, http.StatusUnauthorized, "not authenticated", nil)
		return
	}

	user, err := h.accounts.GetAccount(r.Context(), secret)
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "session expired or invalid", nil)
		return
	}

	h.respond(w, http.StatusOK, "session valid",
		userResponse{ID: user.ID, Email: user.Email, Name: user.Name})
}

// Logout handles POST /auth/logout: revoke the current session and clear
// the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	secret := h.sessionSecret(r)
	if secret != "" {
		if err := h.accounts.DeleteSession(r.Context(), secret, "current"); err != nil {
			zctx.From(r.Context()).Warn("session revocation failed", zap.Error(err))
		}
	}

	h.setSessionCookie(w, "", -time.Second)
	h.respond(w, http.StatusOK, "logged out", nil)
}
