// Package repository implements the data access layer for Kathaghar.
//
// Each repository handles the operations for one table (user, tale,
// analytics) using parameterized SurrealQL.
//
// # Connections
//
// Repositories take a Connector (normally *database.Manager) instead of a
// connection. Every operation asks the Connector for the live connection
// first; when an operation fails with database.ErrConnection the connection
// is invalidated so the next call re-dials.
//
// # Lookup Results
//
// Lookups return (record, found, error). A missing record is found == false
// with a nil error; errors are reserved for validation and storage failures:
//
//	tale, found, err := tales.GetByID(ctx, "tale:abc123")
//	if err != nil {
//	    return err
//	}
//	if !found {
//	    // soft miss
//	}
//
// # Record IDs
//
// IDs are passed around as "table:key" strings. Queries address records with
// type::thing($table, $key) so keys never go through the SurrealQL parser.
package repository
