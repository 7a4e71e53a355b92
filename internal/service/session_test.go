package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/kathaghar/api/internal/model"
	"github.com/kathaghar/api/pkg/jwt"
)

type stubAuthorizer struct {
	identity *model.Identity
	err      error
}

func (s *stubAuthorizer) Authorize(ctx context.Context, email, password string) (*model.Identity, error) {
	return s.identity, s.err
}

func newTestSigner(t *testing.T, expiration time.Duration) *jwt.Service {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test RSA key: %v", err)
	}
	return jwt.NewServiceWithKey(key, "test-issuer", expiration)
}

func setupSessionService(t *testing.T, auth Authorizer) *SessionService {
	t.Helper()
	return NewSessionService(SessionServiceConfig{
		Auth:   auth,
		Tokens: newTestSigner(t, 30*24*time.Hour),
		Pages:  Pages{SignIn: "/login", SignUp: "/register"},
	})
}

func testIdentity() *model.Identity {
	inst := "Tribhuvan University"
	return &model.Identity{
		ID:          "user:maya",
		Email:       "maya@example.com",
		Name:        "Maya",
		Institution: &inst,
	}
}

func TestSessionService_Claims_CarryIDAndInstitution(t *testing.T) {
	t.Parallel()
	svc := setupSessionService(t, nil)

	claims := svc.Claims(testIdentity())

	if claims.UserID != "user:maya" || claims.Subject != "user:maya" {
		t.Errorf("expected id in claims, got %+v", claims)
	}
	if claims.Institution != "Tribhuvan University" {
		t.Errorf("expected institution in claims, got %q", claims.Institution)
	}
}

func TestSessionService_Session_ProjectsClaims(t *testing.T) {
	t.Parallel()
	svc := setupSessionService(t, nil)

	session := svc.Session(&jwt.Claims{UserID: "user:maya", Name: "Maya", ExpiresAt: 1767225600})

	if session.User.ID != "user:maya" || session.User.Name != "Maya" {
		t.Errorf("unexpected session user: %+v", session.User)
	}
	if session.User.Institution != nil {
		t.Errorf("expected no institution, got %v", *session.User.Institution)
	}
	if !session.Expires.Equal(time.Unix(1767225600, 0)) {
		t.Errorf("unexpected expiry %v", session.Expires)
	}
}

func TestSessionService_IssueAndRead_RoundTrip(t *testing.T) {
	t.Parallel()
	svc := setupSessionService(t, nil)

	token, err := svc.Issue(context.Background(), testIdentity())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if until := time.Until(token.ExpiresAt); until < 29*24*time.Hour {
		t.Errorf("expected ~30 day token, expires in %v", until)
	}

	session, err := svc.Read(token.Value)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if session.User.ID != "user:maya" {
		t.Errorf("expected user:maya, got %s", session.User.ID)
	}
	if session.User.Institution == nil || *session.User.Institution != "Tribhuvan University" {
		t.Errorf("expected institution to survive the round trip, got %v", session.User.Institution)
	}
	if !session.Expires.Equal(token.ExpiresAt) {
		t.Errorf("session expiry %v != token expiry %v", session.Expires, token.ExpiresAt)
	}
}

func TestSessionService_Issue_NoIdentity(t *testing.T) {
	t.Parallel()
	svc := setupSessionService(t, nil)

	if _, err := svc.Issue(context.Background(), nil); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSessionService_Read_Rejects(t *testing.T) {
	t.Parallel()
	svc := setupSessionService(t, nil)
	other := NewSessionService(SessionServiceConfig{Tokens: newTestSigner(t, time.Hour)})
	foreign, err := other.Issue(context.Background(), testIdentity())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	for name, token := range map[string]string{
		"empty":       "",
		"garbage":     "not.a.token",
		"foreign key": foreign.Value,
	} {
		if _, err := svc.Read(token); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("%s: expected ErrInvalidSession, got %v", name, err)
		}
	}
}

func TestSessionService_Read_Expired(t *testing.T) {
	t.Parallel()
	svc := setupSessionService(t, nil)
	svc.now = func() time.Time { return time.Now().Add(-31 * 24 * time.Hour) }

	token, err := svc.Issue(context.Background(), testIdentity())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := svc.Read(token.Value); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
}

func TestSessionService_Login(t *testing.T) {
	t.Parallel()
	svc := setupSessionService(t, &stubAuthorizer{identity: testIdentity()})

	token, session, err := svc.Login(context.Background(), "maya@example.com", "password123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if token.Value == "" {
		t.Error("expected a token")
	}
	if session.User.ID != "user:maya" {
		t.Errorf("expected session for user:maya, got %+v", session.User)
	}
}

func TestSessionService_Login_FailurePassesThrough(t *testing.T) {
	t.Parallel()
	svc := setupSessionService(t, &stubAuthorizer{err: ErrInvalidCredentials})

	token, session, err := svc.Login(context.Background(), "maya@example.com", "wrong")
	if err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if token != nil || session != nil {
		t.Error("expected nothing issued on failure")
	}
}

func TestSessionService_Pages(t *testing.T) {
	t.Parallel()
	svc := setupSessionService(t, nil)

	if p := svc.Pages(); p.SignIn != "/login" || p.SignUp != "/register" {
		t.Errorf("unexpected pages %+v", p)
	}
}
