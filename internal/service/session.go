package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kathaghar/api/internal/model"
	"github.com/kathaghar/api/pkg/jwt"
)

// TokenSigner signs and verifies session tokens.
type TokenSigner interface {
	Sign(claims jwt.Claims) (string, error)
	Validate(token string) (*jwt.Claims, error)
	Expiration() time.Duration
}

// Authorizer verifies credentials.
type Authorizer interface {
	Authorize(ctx context.Context, email, password string) (*model.Identity, error)
}

// Pages names the sign-in and sign-up destinations the UI redirects to.
type Pages struct {
	SignIn string `json:"sign_in"`
	SignUp string `json:"sign_up"`
}

// Token is a signed session token.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionService issues and reads stateless session tokens. Nothing is
// stored server side, so there is no revocation: logging out means the
// client drops its token.
type SessionService struct {
	auth   Authorizer
	tokens TokenSigner
	pages  Pages
	now    func() time.Time
}

// SessionServiceConfig holds the session service dependencies
type SessionServiceConfig struct {
	Auth   Authorizer
	Tokens TokenSigner
	Pages  Pages
}

// NewSessionService creates a new session service
func NewSessionService(cfg SessionServiceConfig) *SessionService {
	return &SessionService{
		auth:   cfg.Auth,
		tokens: cfg.Tokens,
		pages:  cfg.Pages,
		now:    time.Now,
	}
}

// Pages returns the configured redirect targets.
func (s *SessionService) Pages() Pages {
	return s.pages
}

// Claims folds an identity into token claims. id and institution are the
// fields sessions are built from; email and name ride along for display.
func (s *SessionService) Claims(identity *model.Identity) jwt.Claims {
	claims := jwt.Claims{
		Subject: identity.ID,
		UserID:  identity.ID,
		Email:   identity.Email,
		Name:    identity.Name,
	}
	if identity.Institution != nil {
		claims.Institution = *identity.Institution
	}
	return claims
}

// Session projects verified claims onto the session callers see.
func (s *SessionService) Session(claims *jwt.Claims) *model.Session {
	session := &model.Session{
		User: model.SessionUser{
			ID:    claims.UserID,
			Email: claims.Email,
			Name:  claims.Name,
		},
	}
	if claims.Institution != "" {
		inst := claims.Institution
		session.User.Institution = &inst
	}
	if claims.ExpiresAt != 0 {
		session.Expires = time.Unix(claims.ExpiresAt, 0).UTC()
	}
	return session
}

// Issue signs a token for an authorized identity.
func (s *SessionService) Issue(ctx context.Context, identity *model.Identity) (*Token, error) {
	token, _, err := s.issue(identity)
	return token, err
}

// Read verifies a token and returns its session. Expired tokens are
// ErrSessionExpired; anything else that fails is ErrInvalidSession.
func (s *SessionService) Read(token string) (*model.Session, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	claims, err := s.tokens.Validate(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrSessionExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if claims.UserID == "" {
		return nil, ErrInvalidSession
	}

	return s.Session(claims), nil
}

// Login authorizes the credentials and issues a token for them.
func (s *SessionService) Login(ctx context.Context, email, password string) (*Token, *model.Session, error) {
	identity, err := s.auth.Authorize(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}

	token, claims, err := s.issue(identity)
	if err != nil {
		return nil, nil, err
	}
	return token, s.Session(&claims), nil
}

func (s *SessionService) issue(identity *model.Identity) (*Token, jwt.Claims, error) {
	if identity == nil || identity.ID == "" {
		return nil, jwt.Claims{}, ErrInvalidCredentials
	}

	claims := s.Claims(identity)
	expires := s.now().Add(s.tokens.Expiration())
	claims.ExpiresAt = expires.Unix()

	value, err := s.tokens.Sign(claims)
	if err != nil {
		return nil, jwt.Claims{}, fmt.Errorf("signing session token: %w", err)
	}

	return &Token{Value: value, ExpiresAt: time.Unix(claims.ExpiresAt, 0).UTC()}, claims, nil
}
