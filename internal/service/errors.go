package service

import "errors"

// Authentication errors. Authorize only ever returns ErrInvalidCredentials;
// the specific cause goes to the logs and metrics.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailAlreadyExists = errors.New("email already registered")
)

// Session errors
var (
	ErrInvalidSession = errors.New("invalid session token")
	ErrSessionExpired = errors.New("session expired")
)
