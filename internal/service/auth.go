package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/kathaghar/api/internal/database"
	"github.com/kathaghar/api/internal/logging"
	"github.com/kathaghar/api/internal/metrics"
	"github.com/kathaghar/api/internal/model"
)

// UserStore is the slice of the user repository authentication needs.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, bool, error)
}

// dummyPassword is hashed once and compared against when the email is
// unknown, so a miss costs the same as a wrong password.
const dummyPassword = "kathaghar-timing-placeholder"

// AuthService verifies credentials and registers accounts.
type AuthService struct {
	users   UserStore
	hasher  PasswordHasher
	metrics *metrics.Metrics
	logger  *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// AuthServiceConfig holds the auth service dependencies. Hasher defaults to
// bcrypt at DefaultBcryptCost and Logger to slog.Default().
type AuthServiceConfig struct {
	Users   UserStore
	Hasher  PasswordHasher
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(cfg AuthServiceConfig) *AuthService {
	s := &AuthService{
		users:   cfg.Users,
		hasher:  cfg.Hasher,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
	if s.hasher == nil {
		s.hasher = NewBcryptHasher(DefaultBcryptCost)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Authorize checks an email and password and returns the public identity.
//
// Every failure, including lookup and hash errors and panics below this
// call, is reported as ErrInvalidCredentials. Operators see the real cause
// in the logs and in the auth_attempts metric.
func (s *AuthService) Authorize(ctx context.Context, email, password string) (identity *model.Identity, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.fail(ctx, oops.Code("AUTH_PANIC").With("panic", fmt.Sprint(r)).Errorf("authorize panicked"))
			identity, err = nil, ErrInvalidCredentials
		}
	}()

	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		s.metrics.ObserveAuth(metrics.AuthMissing)
		return nil, ErrInvalidCredentials
	}

	user, found, lookupErr := s.users.GetByEmail(ctx, email)
	if lookupErr != nil {
		s.fail(ctx, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr))
		return nil, ErrInvalidCredentials
	}

	hasHash := found && user.Hash != nil && *user.Hash != ""
	target := s.dummy()
	if hasHash {
		target = *user.Hash
	}

	// Always compare, even for an unknown email.
	valid, verifyErr := s.hasher.Verify(password, target)

	switch {
	case !found:
		s.metrics.ObserveAuth(metrics.AuthUnknown)
		return nil, ErrInvalidCredentials
	case verifyErr != nil && hasHash:
		s.fail(ctx, oops.Code("AUTH_VERIFY_FAILED").
			With("user_id", user.ID).
			Wrap(verifyErr))
		return nil, ErrInvalidCredentials
	case !hasHash || !valid:
		s.metrics.ObserveAuth(metrics.AuthMismatch)
		return nil, ErrInvalidCredentials
	}

	s.metrics.ObserveAuth(metrics.AuthSuccess)
	return user.Identity(), nil
}

// Register creates an account and returns its identity. A taken email is
// ErrEmailAlreadyExists; bad input is a *model.ValidationError.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.Identity, error) {
	req.Email = model.NormalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Institution != nil {
		trimmed := strings.TrimSpace(*req.Institution)
		req.Institution = &trimmed
		if trimmed == "" {
			req.Institution = nil
		}
	}

	if fields := req.Validate(); len(fields) > 0 {
		return nil, model.ValidationFailed(fields)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user := &model.User{
		Name:        req.Name,
		Email:       req.Email,
		Hash:        &hash,
		Institution: req.Institution,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrEmailAlreadyExists
		}
		if errors.Is(err, model.ErrValidation) {
			return nil, err
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return user.Identity(), nil
}

func (s *AuthService) fail(ctx context.Context, err error) {
	s.metrics.ObserveAuth(metrics.AuthError)
	logging.LogError(ctx, s.logger, "authorize failed", err)
}

// dummy returns the placeholder hash, computing it on first use. If hashing
// fails the empty string is returned and Verify reports an error, which
// Authorize treats as a miss.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		if h, err := s.hasher.Hash(dummyPassword); err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
