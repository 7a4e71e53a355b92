package model

import (
	"strings"
	"time"
)

// Field limits for users
const (
	MaxUserNameLength    = 100
	MaxInstitutionLength = 200
	MinPasswordLength    = 8
	MaxPasswordLength    = 72 // bcrypt ignores anything past 72 bytes
)

// User represents a registered account
type User struct {
	ID          string    `json:"id"`
	Name        string    `json:"name" validate:"required,max=100"`
	Email       string    `json:"email" validate:"required,email"`
	Hash        *string   `json:"-"` // Never expose password hash
	Institution *string   `json:"institution,omitempty" validate:"omitempty,max=200"`
	CreatedOn   time.Time `json:"created_on"`
}

// Validate checks the user's fields before it is written.
func (u *User) Validate() []FieldError {
	return validateStruct(u)
}

// Identity returns the public view of the user. The hash never leaves here.
func (u *User) Identity() *Identity {
	return &Identity{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Institution: u.Institution,
	}
}

// NormalizeEmail lower-cases and trims an email so lookups match the stored form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Identity is the minimal public identity produced by a successful login
type Identity struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	Institution *string `json:"institution,omitempty"`
}

// SessionUser is the user part of a session, projected from token claims
type SessionUser struct {
	ID          string  `json:"id"`
	Email       string  `json:"email,omitempty"`
	Name        string  `json:"name,omitempty"`
	Institution *string `json:"institution,omitempty"`
}

// Session is what callers see for an authenticated request
type Session struct {
	User    SessionUser `json:"user"`
	Expires time.Time   `json:"expires"`
}

// RegisterRequest represents a sign-up submission
type RegisterRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=8,max=72"`
	Institution *string `json:"institution,omitempty" validate:"omitempty,max=200"`
}

// Validate checks the sign-up fields.
func (r *RegisterRequest) Validate() []FieldError {
	return validateStruct(r)
}
