// Package fixtures provides test data factories for integration tests.
//
// Each factory method creates entities with sensible defaults while allowing
// customization via option functions. Entities are written through the
// repositories, so they pass the same validation as production writes.
//
// Usage:
//
//	f := fixtures.New(tdb.Manager)
//	user := f.CreateUser(t)
//	tale := f.CreateTale(t, user)
package fixtures

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kathaghar/api/internal/model"
	"github.com/kathaghar/api/internal/repository"
)

// DefaultPassword is the plaintext password of every fixture user unless
// overridden.
const DefaultPassword = "testpass123"

// Factory creates test entities in the database
type Factory struct {
	Users     *repository.UserRepository
	Tales     *repository.TaleRepository
	Analytics *repository.AnalyticsRepository
}

// New creates a new fixture factory
func New(conn repository.Connector) *Factory {
	analytics := repository.NewAnalyticsRepository(conn)
	return &Factory{
		Users:     repository.NewUserRepository(conn),
		Tales:     repository.NewTaleRepository(conn, analytics, nil),
		Analytics: analytics,
	}
}

// randomID generates a random hex ID
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return c
}

// ============================================================================
// User Fixtures
// ============================================================================

// UserOpts customizes user creation
type UserOpts struct {
	Name        string
	Email       string
	Password    string
	Institution *string
}

// CreateUser creates a user with optional customizations. The returned user
// carries its hash.
func (f *Factory) CreateUser(t *testing.T, opts ...func(*UserOpts)) *model.User {
	t.Helper()

	o := &UserOpts{
		Name:     fmt.Sprintf("User %s", randomID()),
		Email:    fmt.Sprintf("user_%s@test.local", randomID()),
		Password: DefaultPassword,
	}
	for _, fn := range opts {
		fn(o)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(o.Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("fixtures: failed to hash password: %v", err)
	}
	h := string(hash)

	user := &model.User{
		Name:        o.Name,
		Email:       o.Email,
		Hash:        &h,
		Institution: o.Institution,
	}
	if err := f.Users.Create(ctx(t), user); err != nil {
		t.Fatalf("fixtures: failed to create user: %v", err)
	}
	return user
}

// ============================================================================
// Tale Fixtures
// ============================================================================

// CreateTale creates a public Himalayan tale by author.
func (f *Factory) CreateTale(t *testing.T, author *model.User, opts ...func(*model.CreateTaleRequest)) *model.Tale {
	t.Helper()

	req := &model.CreateTaleRequest{
		Title:    fmt.Sprintf("Tale %s", randomID()),
		Story:    "Once upon a time in the hills.",
		Region:   model.RegionHimalayan,
		AuthorID: author.ID,
	}
	for _, fn := range opts {
		fn(req)
	}

	tale, err := f.Tales.Create(ctx(t), req)
	if err != nil {
		t.Fatalf("fixtures: failed to create tale: %v", err)
	}
	return tale
}

// Private makes a fixture tale private.
func Private(req *model.CreateTaleRequest) {
	private := false
	req.IsPublic = &private
}

// Titled sets a fixture tale's title.
func Titled(title string) func(*model.CreateTaleRequest) {
	return func(req *model.CreateTaleRequest) { req.Title = title }
}

// Story sets a fixture tale's body.
func Story(story string) func(*model.CreateTaleRequest) {
	return func(req *model.CreateTaleRequest) { req.Story = story }
}

// InRegion sets a fixture tale's region.
func InRegion(region model.Region) func(*model.CreateTaleRequest) {
	return func(req *model.CreateTaleRequest) { req.Region = region }
}
