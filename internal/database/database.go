// Package database provides the storage layer for Kathaghar.
//
// The Database interface abstracts SurrealDB operations so repositories never
// touch the driver directly. Connections are owned by a Manager, which hands out
// exactly one live connection per process and is passed to every repository.
//
// # Interface Design
//
// The Database interface provides three query methods:
//   - Query: Returns the per-statement responses (for SELECT queries returning lists)
//   - QueryOne: Returns the first record of the first statement (for SELECT by ID)
//   - Execute: No return value (for schema statements and fire-and-forget mutations)
//
// # Error Handling
//
// Standard errors are defined for common failure cases:
//   - ErrNotFound: Record does not exist
//   - ErrDuplicate: Unique constraint violation
//   - ErrConnection: Database connection issues
//   - ErrQuery: Query execution failures
//
// Use errors.Is() to check error types:
//
//	if errors.Is(err, database.ErrConnection) {
//	    manager.Invalidate(db)
//	}
package database

import (
	"context"
	"errors"
)

// Standard errors for database operations.
// Use errors.Is() to check these error types in calling code.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate indicates a unique constraint violation (e.g., duplicate email).
	ErrDuplicate = errors.New("duplicate record")

	// ErrConnection indicates a failure to connect to or communicate with the database.
	ErrConnection = errors.New("database connection error")

	// ErrQuery indicates a query execution failure (syntax error, failed assertion, etc.).
	ErrQuery = errors.New("query error")
)

// Database defines the interface for database operations
type Database interface {
	Close() error
	Ping(ctx context.Context) error

	// Query executes a query and returns results
	Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error)

	// QueryOne executes a query and returns a single result
	QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error)

	// Execute runs a query without returning results
	Execute(ctx context.Context, query string, vars map[string]interface{}) error
}

// Config holds database configuration
type Config struct {
	// URL is the connection target, e.g. ws://localhost:8000
	URL       string
	User      string
	Password  string
	Namespace string
	Database  string
}
