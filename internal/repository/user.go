package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kathaghar/api/internal/database"
	"github.com/kathaghar/api/internal/model"
)

// UserRepository handles user data access
type UserRepository struct {
	conn Connector
}

// NewUserRepository creates a new user repository
func NewUserRepository(conn Connector) *UserRepository {
	return &UserRepository{conn: conn}
}

// Create inserts a new user and fills in its ID and CreatedOn.
// An email that is already registered returns database.ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	user.Email = model.NormalizeEmail(user.Email)

	fields := user.Validate()
	if user.Hash == nil || *user.Hash == "" {
		fields = append(fields, model.FieldError{Field: "hash", Message: "password hash is required"})
	}
	if err := model.ValidationFailed(fields); err != nil {
		return err
	}

	query := `
		CREATE type::thing("user", $key) CONTENT {
			name: $name,
			email: $email,
			hash: $hash,
			institution: IF $institution IS NOT NULL THEN $institution ELSE NONE END
		}
	`
	vars := map[string]interface{}{
		"key":         uuid.NewString(),
		"name":        user.Name,
		"email":       user.Email,
		"hash":        *user.Hash,
		"institution": ptrToNone(user.Institution),
	}

	var created map[string]interface{}
	err := withDB(ctx, r.conn, func(db database.Database) error {
		results, err := db.Query(ctx, query, vars)
		if err != nil {
			return err
		}
		created = firstRow(results, 0)
		return nil
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: email already exists", database.ErrDuplicate)
		}
		return fmt.Errorf("creating user: %w", storageError(err))
	}
	if created == nil {
		return fmt.Errorf("creating user: %w", database.ErrNotFound)
	}

	user.ID = convertSurrealID(created["id"])
	user.CreatedOn = getTime(created, "created_on")
	return nil
}

// GetByEmail retrieves a user by email, including the password hash.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, bool, error) {
	query := `SELECT * FROM user WHERE email = $email LIMIT 1`
	vars := map[string]interface{}{"email": model.NormalizeEmail(email)}

	return r.getOne(ctx, query, vars)
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, bool, error) {
	key, ok := recordKey("user", id)
	if !ok {
		return nil, false, nil
	}

	query := `SELECT * FROM type::thing("user", $key)`
	vars := map[string]interface{}{"key": key}

	return r.getOne(ctx, query, vars)
}

func (r *UserRepository) getOne(ctx context.Context, query string, vars map[string]interface{}) (*model.User, bool, error) {
	var result interface{}
	err := withDB(ctx, r.conn, func(db database.Database) error {
		var err error
		result, err = db.QueryOne(ctx, query, vars)
		return err
	})
	if errors.Is(err, database.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting user: %w", err)
	}

	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, false, nil
	}
	return parseUser(data), true, nil
}

func parseUser(data map[string]interface{}) *model.User {
	return &model.User{
		ID:          convertSurrealID(data["id"]),
		Name:        getString(data, "name"),
		Email:       getString(data, "email"),
		Hash:        getStringPtr(data, "hash"),
		Institution: getStringPtr(data, "institution"),
		CreatedOn:   getTime(data, "created_on"),
	}
}
