package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/kathaghar/api/internal/database"
	"github.com/kathaghar/api/internal/model"
)

const defaultEventListLimit = 50

// AnalyticsRepository appends usage events. Events are never updated or
// deleted, and their tale/user references are not checked.
type AnalyticsRepository struct {
	conn Connector
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(conn Connector) *AnalyticsRepository {
	return &AnalyticsRepository{conn: conn}
}

// Record appends one event of the given type. Keys are ULIDs so the table
// sorts by insertion time.
func (r *AnalyticsRepository) Record(ctx context.Context, eventType string, data model.EventData) (*model.AnalyticsEvent, error) {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return nil, model.ValidationFailed([]model.FieldError{{Field: "type", Message: "type is required"}})
	}

	var metadata interface{}
	if len(data.Metadata) > 0 {
		metadata = data.Metadata
	}

	query := `
		CREATE type::thing("analytics", $key) CONTENT {
			type: $type,
			tale_id: IF $tale_id IS NOT NULL THEN $tale_id ELSE NONE END,
			user_id: IF $user_id IS NOT NULL THEN $user_id ELSE NONE END,
			metadata: IF $metadata IS NOT NULL THEN $metadata ELSE NONE END
		}
	`
	vars := map[string]interface{}{
		"key":      ulid.Make().String(),
		"type":     eventType,
		"tale_id":  ptrToNone(data.TaleID),
		"user_id":  ptrToNone(data.UserID),
		"metadata": metadata,
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
		return nil, fmt.Errorf("recording %s event: %w", eventType, storageError(err))
	}
	if created == nil {
		return nil, fmt.Errorf("recording %s event: %w", eventType, database.ErrNotFound)
	}
	return parseEvent(created), nil
}

// CountByType counts events of a type, optionally restricted to one tale.
func (r *AnalyticsRepository) CountByType(ctx context.Context, eventType, taleID string) (int, error) {
	query := `SELECT count() AS count FROM analytics WHERE type = $type GROUP ALL`
	vars := map[string]interface{}{"type": eventType}
	if taleID != "" {
		query = `SELECT count() AS count FROM analytics WHERE type = $type AND tale_id = $tale_id GROUP ALL`
		vars["tale_id"] = taleID
	}

	var count int
	err := withDB(ctx, r.conn, func(db database.Database) error {
		results, err := db.Query(ctx, query, vars)
		if err != nil {
			return err
		}
		count = extractCount(results)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counting %s events: %w", eventType, err)
	}
	return count, nil
}

// ListByTale returns the newest events referencing a tale.
func (r *AnalyticsRepository) ListByTale(ctx context.Context, taleID string, limit int) ([]*model.AnalyticsEvent, error) {
	if limit < 1 || limit > model.MaxPageSize {
		limit = defaultEventListLimit
	}

	query := `SELECT * FROM analytics WHERE tale_id = $tale_id ORDER BY timestamp DESC LIMIT $limit`
	vars := map[string]interface{}{"tale_id": taleID, "limit": limit}

	var rows []map[string]interface{}
	err := withDB(ctx, r.conn, func(db database.Database) error {
		results, err := db.Query(ctx, query, vars)
		if err != nil {
			return err
		}
		rows = resultRows(results, 0)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	events := make([]*model.AnalyticsEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, parseEvent(row))
	}
	return events, nil
}

func parseEvent(data map[string]interface{}) *model.AnalyticsEvent {
	return &model.AnalyticsEvent{
		ID:        convertSurrealID(data["id"]),
		Type:      getString(data, "type"),
		TaleID:    getStringPtr(data, "tale_id"),
		UserID:    getStringPtr(data, "user_id"),
		Metadata:  getMap(data, "metadata"),
		Timestamp: getTime(data, "timestamp"),
	}
}
