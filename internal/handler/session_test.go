package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kathaghar/api/internal/middleware"
	"github.com/kathaghar/api/internal/model"
	"github.com/kathaghar/api/internal/service"
)

// ============================================================================
// Mocks
// ============================================================================

type mockSessions struct {
	loginFunc func(ctx context.Context, email, password string) (*service.Token, *model.Session, error)
	issueFunc func(ctx context.Context, identity *model.Identity) (*service.Token, error)
	readFunc  func(token string) (*model.Session, error)
	pages     service.Pages
}

func (m *mockSessions) Login(ctx context.Context, email, password string) (*service.Token, *model.Session, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, email, password)
	}
	return nil, nil, service.ErrInvalidCredentials
}

func (m *mockSessions) Issue(ctx context.Context, identity *model.Identity) (*service.Token, error) {
	if m.issueFunc != nil {
		return m.issueFunc(ctx, identity)
	}
	return testToken(), nil
}

func (m *mockSessions) Read(token string) (*model.Session, error) {
	if m.readFunc != nil {
		return m.readFunc(token)
	}
	return testSession(), nil
}

func (m *mockSessions) Pages() service.Pages { return m.pages }

type mockAccounts struct {
	registerFunc func(ctx context.Context, req model.RegisterRequest) (*model.Identity, error)
}

func (m *mockAccounts) Register(ctx context.Context, req model.RegisterRequest) (*model.Identity, error) {
	if m.registerFunc != nil {
		return m.registerFunc(ctx, req)
	}
	return &model.Identity{ID: "user:new", Email: req.Email, Name: req.Name}, nil
}

// ============================================================================
// Test Helpers
// ============================================================================

func testToken() *service.Token {
	return &service.Token{Value: "signed.token.value", ExpiresAt: time.Date(2026, 11, 14, 0, 0, 0, 0, time.UTC)}
}

func testSession() *model.Session {
	inst := "Kathmandu University"
	return &model.Session{
		User:    model.SessionUser{ID: "user:sita", Email: "sita@example.com", Name: "Sita", Institution: &inst},
		Expires: testToken().ExpiresAt,
	}
}

func newSessionHandler(s *mockSessions, a *mockAccounts) *SessionHandler {
	return NewSessionHandler(SessionHandlerConfig{Sessions: s, Accounts: a, SecureCookie: true})
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(b)
}

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.CookieName {
			return c
		}
	}
	return nil
}

// ============================================================================
// Login Tests
// ============================================================================

func TestLogin_Success_ReturnsTokenAndSetsCookie(t *testing.T) {
	t.Parallel()

	var gotEmail, gotPassword string
	sessions := &mockSessions{
		loginFunc: func(ctx context.Context, email, password string) (*service.Token, *model.Session, error) {
			gotEmail, gotPassword = email, password
			return testToken(), testSession(), nil
		},
	}
	h := newSessionHandler(sessions, &mockAccounts{})

	req := httptest.NewRequest(http.MethodPost, "/api/session", jsonBody(t, LoginRequest{Email: "sita@example.com", Password: "hunter22!"}))
	rr := httptest.NewRecorder()
	h.Login(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotEmail != "sita@example.com" || gotPassword != "hunter22!" {
		t.Errorf("credentials not passed through: %q %q", gotEmail, gotPassword)
	}

	var resp struct {
		Data SessionResponse `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Token != "signed.token.value" {
		t.Errorf("expected token in body, got %q", resp.Data.Token)
	}
	if resp.Data.Session == nil || resp.Data.Session.User.ID != "user:sita" {
		t.Errorf("expected session in body, got %+v", resp.Data.Session)
	}
	if resp.Data.Session.User.Institution == nil || *resp.Data.Session.User.Institution != "Kathmandu University" {
		t.Error("expected institution in session")
	}

	c := sessionCookie(rr)
	if c == nil {
		t.Fatal("expected session cookie")
	}
	if c.Value != "signed.token.value" || !c.HttpOnly || !c.Secure {
		t.Errorf("unexpected cookie: %+v", c)
	}
}

func TestLogin_BadCredentials_Returns401WithoutCookie(t *testing.T) {
	t.Parallel()
	h := newSessionHandler(&mockSessions{}, &mockAccounts{})

	req := httptest.NewRequest(http.MethodPost, "/api/session", jsonBody(t, LoginRequest{Email: "x@example.com", Password: "nope"}))
	rr := httptest.NewRecorder()
	h.Login(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "invalid email or password") {
		t.Errorf("expected generic failure, got %s", rr.Body.String())
	}
	if sessionCookie(rr) != nil {
		t.Error("expected no cookie on failure")
	}
}

func TestLogin_InvalidBody_Returns400(t *testing.T) {
	t.Parallel()
	h := newSessionHandler(&mockSessions{}, &mockAccounts{})

	tests := []struct {
		name string
		body string
	}{
		{"not json", "email=x"},
		{"unknown field", `{"email":"a@b.c","password":"x","remember":true}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rr := httptest.NewRecorder()
			h.Login(rr, httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader(tt.body)))
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestLogin_SigningFailure_Returns500(t *testing.T) {
	t.Parallel()
	sessions := &mockSessions{
		loginFunc: func(ctx context.Context, email, password string) (*service.Token, *model.Session, error) {
			return nil, nil, errors.New("signing session token: key unavailable")
		},
	}
	h := newSessionHandler(sessions, &mockAccounts{})

	rr := httptest.NewRecorder()
	h.Login(rr, httptest.NewRequest(http.MethodPost, "/api/session", jsonBody(t, LoginRequest{Email: "a@b.c", Password: "x"})))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "key unavailable") {
		t.Error("internal cause must not leak")
	}
}

// ============================================================================
// Register Tests
// ============================================================================

func TestRegister_Success_Returns201AndLogsIn(t *testing.T) {
	t.Parallel()

	var issuedFor *model.Identity
	sessions := &mockSessions{
		issueFunc: func(ctx context.Context, identity *model.Identity) (*service.Token, error) {
			issuedFor = identity
			return testToken(), nil
		},
	}
	h := newSessionHandler(sessions, &mockAccounts{})

	body := jsonBody(t, model.RegisterRequest{Name: "Sita", Email: "sita@example.com", Password: "long-enough"})
	rr := httptest.NewRecorder()
	h.Register(rr, httptest.NewRequest(http.MethodPost, "/api/users", body))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if issuedFor == nil || issuedFor.ID != "user:new" {
		t.Errorf("expected token issued for new account, got %+v", issuedFor)
	}
	if sessionCookie(rr) == nil {
		t.Error("expected session cookie")
	}
}

func TestRegister_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"duplicate email", service.ErrEmailAlreadyExists, http.StatusConflict},
		{"validation", model.ValidationFailed([]model.FieldError{{Field: "email", Message: "must be a valid email"}}), http.StatusUnprocessableEntity},
		{"storage", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			accounts := &mockAccounts{
				registerFunc: func(ctx context.Context, req model.RegisterRequest) (*model.Identity, error) {
					return nil, tt.err
				},
			}
			h := newSessionHandler(&mockSessions{}, accounts)

			rr := httptest.NewRecorder()
			h.Register(rr, httptest.NewRequest(http.MethodPost, "/api/users", jsonBody(t, model.RegisterRequest{Name: "A", Email: "a@b.c", Password: "x"})))

			if rr.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rr.Code)
			}
			if sessionCookie(rr) != nil {
				t.Error("expected no cookie")
			}
		})
	}
}

// ============================================================================
// Current / Logout / Pages Tests
// ============================================================================

func TestCurrent_WithSession_ReturnsIt(t *testing.T) {
	t.Parallel()
	sessions := &mockSessions{}
	h := newSessionHandler(sessions, &mockAccounts{})

	handler := middleware.Chain(http.HandlerFunc(h.Current), middleware.Session(sessions), middleware.RequireSession)
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: "signed.token.value"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"id":"user:sita"`) {
		t.Errorf("expected session user in body, got %s", rr.Body.String())
	}
}

func TestCurrent_Anonymous_Returns401(t *testing.T) {
	t.Parallel()
	h := newSessionHandler(&mockSessions{}, &mockAccounts{})

	rr := httptest.NewRecorder()
	h.Current(rr, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	t.Parallel()
	h := newSessionHandler(&mockSessions{}, &mockAccounts{})

	rr := httptest.NewRecorder()
	h.Logout(rr, httptest.NewRequest(http.MethodDelete, "/api/session", nil))

	if rr.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rr.Code)
	}
	c := sessionCookie(rr)
	if c == nil || c.MaxAge >= 0 || c.Value != "" {
		t.Errorf("expected expiring cookie, got %+v", c)
	}
}

func TestPages_ReturnsRedirectTargets(t *testing.T) {
	t.Parallel()
	h := newSessionHandler(&mockSessions{pages: service.Pages{SignIn: "/login", SignUp: "/register"}}, &mockAccounts{})

	rr := httptest.NewRecorder()
	h.Pages(rr, httptest.NewRequest(http.MethodGet, "/api/session/pages", nil))

	if !strings.Contains(rr.Body.String(), `"sign_in":"/login"`) || !strings.Contains(rr.Body.String(), `"sign_up":"/register"`) {
		t.Errorf("unexpected body: %s", rr.Body.String())
	}
}
