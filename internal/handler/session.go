package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kathaghar/api/internal/middleware"
	"github.com/kathaghar/api/internal/model"
	"github.com/kathaghar/api/internal/service"
)

// SessionIssuer logs users in and signs tokens for new accounts.
type SessionIssuer interface {
	Login(ctx context.Context, email, password string) (*service.Token, *model.Session, error)
	Issue(ctx context.Context, identity *model.Identity) (*service.Token, error)
	Read(token string) (*model.Session, error)
	Pages() service.Pages
}

// AccountRegistrar creates accounts.
type AccountRegistrar interface {
	Register(ctx context.Context, req model.RegisterRequest) (*model.Identity, error)
}

// SessionHandler handles the session endpoints.
type SessionHandler struct {
	sessions     SessionIssuer
	accounts     AccountRegistrar
	secureCookie bool
	logger       *slog.Logger
}

// SessionHandlerConfig holds the handler's dependencies.
type SessionHandlerConfig struct {
	Sessions SessionIssuer
	Accounts AccountRegistrar
	// SecureCookie marks the session cookie HTTPS-only.
	SecureCookie bool
	Logger       *slog.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(cfg SessionHandlerConfig) *SessionHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		sessions:     cfg.Sessions,
		accounts:     cfg.Accounts,
		secureCookie: cfg.SecureCookie,
		logger:       logger,
	}
}

// LoginRequest is the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned after a successful login or sign-up.
type SessionResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Session   *model.Session `json:"session"`
}

// Login handles POST /api/session.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	token, session, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "login"))
		return
	}

	h.setCookie(w, token)
	WriteData(w, http.StatusOK, SessionResponse{
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
		Session:   session,
	}, map[string]string{"self": "/api/session"})
}

// Register handles POST /api/users. A new account is logged in directly.
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	identity, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "sign-up"))
		return
	}

	token, err := h.sessions.Issue(r.Context(), identity)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "issuing token for new account",
			slog.String("user_id", identity.ID),
			slog.String("error", err.Error()),
		)
		WriteError(w, MapServiceErrorWithContext(err, "sign-up"))
		return
	}

	session, err := h.sessions.Read(token.Value)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "sign-up"))
		return
	}

	h.setCookie(w, token)
	WriteData(w, http.StatusCreated, SessionResponse{
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
		Session:   session,
	}, map[string]string{"session": "/api/session"})
}

// Current handles GET /api/session. It must sit behind RequireSession.
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	if session == nil {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return
	}
	WriteData(w, http.StatusOK, session, nil)
}

// Logout handles DELETE /api/session. Tokens are stateless, so this only
// tells the browser to drop its cookie.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	WriteNoContent(w)
}

// Pages handles GET /api/session/pages.
func (h *SessionHandler) Pages(w http.ResponseWriter, r *http.Request) {
	WriteData(w, http.StatusOK, h.sessions.Pages(), nil)
}

func (h *SessionHandler) setCookie(w http.ResponseWriter, token *service.Token) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    token.Value,
		Path:     "/",
		Expires:  token.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
