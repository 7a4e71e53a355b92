package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/kathaghar/api/internal/database"
	"github.com/kathaghar/api/internal/model"
)

// Connector hands out the live connection. *database.Manager implements it.
type Connector interface {
	Connect(ctx context.Context) (database.Database, error)
	Invalidate(db database.Database)
}

// withDB runs fn against the live connection and drops that connection if
// fn reports it broken.
func withDB(ctx context.Context, c Connector, fn func(db database.Database) error) error {
	db, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	err = fn(db)
	if errors.Is(err, database.ErrConnection) {
		c.Invalidate(db)
	}
	return err
}

// recordKey returns the key part of id if it names a record in table.
// Bare keys are accepted as-is.
func recordKey(table, id string) (string, bool) {
	id = strings.TrimSpace(id)
	if prefix, key, ok := strings.Cut(id, ":"); ok {
		if prefix != table {
			return "", false
		}
		id = key
	}
	id = strings.TrimSuffix(strings.TrimPrefix(id, "⟨"), "⟩")
	id = strings.TrimSuffix(strings.TrimPrefix(id, "`"), "`")
	return id, id != ""
}

// isUniqueConstraintError checks if an error is a unique constraint violation
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "already contains") ||
		strings.Contains(errStr, "unique") ||
		strings.Contains(errStr, "duplicate") ||
		strings.Contains(errStr, "already exists")
}

var assertFieldPattern = regexp.MustCompile("field `([a-z_]+)`")

// isAssertionError reports whether the schema rejected a value.
func isAssertionError(err error) bool {
	if err == nil || !errors.Is(err, database.ErrQuery) {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "must conform to") ||
		strings.Contains(errStr, "Couldn't coerce") ||
		strings.Contains(errStr, "expected type")
}

// storageError maps schema rejections onto validation errors and leaves
// everything else unchanged.
func storageError(err error) error {
	if !isAssertionError(err) {
		return err
	}
	field := ""
	if m := assertFieldPattern.FindStringSubmatch(err.Error()); m != nil {
		field = m[1]
	}
	return fmt.Errorf("%w (%w)", model.ValidationFailed([]model.FieldError{{
		Field:   field,
		Message: "rejected by storage constraints",
	}}), err)
}

// resultRows returns the records produced by statement idx of a query.
func resultRows(results []interface{}, idx int) []map[string]interface{} {
	if idx >= len(results) {
		return nil
	}
	var raw interface{} = results[idx]
	if resp, ok := raw.(map[string]interface{}); ok {
		if _, hasStatus := resp["status"]; hasStatus {
			raw = resp["result"]
		}
	}

	switch v := raw.(type) {
	case []interface{}:
		rows := make([]map[string]interface{}, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				rows = append(rows, m)
			}
		}
		return rows
	case map[string]interface{}:
		return []map[string]interface{}{v}
	}
	return nil
}

// firstRow returns the first record of statement idx, or nil.
func firstRow(results []interface{}, idx int) map[string]interface{} {
	rows := resultRows(results, idx)
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

// extractCount reads a `count() AS count ... GROUP ALL` result. No rows
// means zero.
func extractCount(results []interface{}) int {
	row := firstRow(results, 0)
	if row == nil {
		return 0
	}
	return extractCountValue(row["count"])
}

// extractCountValue converts various numeric types to int
func extractCountValue(v interface{}) int {
	switch c := v.(type) {
	case float64:
		return int(c)
	case float32:
		return int(c)
	case int:
		return c
	case int64:
		return int(c)
	case uint64:
		return int(c)
	}
	return 0
}

// convertSurrealID converts a SurrealDB ID (which may be a complex object) to a string
func convertSurrealID(id interface{}) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case models.RecordID:
		return fmt.Sprintf("%s:%v", v.Table, v.ID)
	case *models.RecordID:
		if v != nil {
			return fmt.Sprintf("%s:%v", v.Table, v.ID)
		}
		return ""
	case map[string]interface{}:
		// {"tb": "user", "id": "xxx"} format
		tb, _ := v["tb"].(string)
		if key, ok := v["id"]; ok && tb != "" {
			return fmt.Sprintf("%s:%v", tb, key)
		}
	}
	return fmt.Sprintf("%v", id)
}

// getString extracts a string value from a map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// getStringPtr extracts an optional string value from a map
func getStringPtr(m map[string]interface{}, key string) *string {
	if v, ok := m[key].(string); ok && v != "" {
		return &v
	}
	return nil
}

// getInt extracts an int value from a map
func getInt(m map[string]interface{}, key string) int {
	return extractCountValue(m[key])
}

// getBool extracts a bool value from a map
func getBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

// getTime extracts a time value from a map
func getTime(m map[string]interface{}, key string) time.Time {
	switch v := m[key].(type) {
	case time.Time:
		return v
	case models.CustomDateTime:
		return v.Time
	case *models.CustomDateTime:
		if v != nil {
			return v.Time
		}
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// getMap extracts a nested object from a map
func getMap(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

// ptrToNone converts an optional value for use with
// `IF $x IS NOT NULL THEN $x ELSE NONE END`.
func ptrToNone[T any](p *T) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
