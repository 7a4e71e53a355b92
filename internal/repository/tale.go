package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/kathaghar/api/internal/database"
	"github.com/kathaghar/api/internal/metrics"
	"github.com/kathaghar/api/internal/model"
)

// EventRecorder appends analytics events. *AnalyticsRepository implements it.
type EventRecorder interface {
	Record(ctx context.Context, eventType string, data model.EventData) (*model.AnalyticsEvent, error)
}

const (
	// Full author projection for single-tale reads.
	taleSelectFull = `SELECT *, author.name AS author_name, author.email AS author_email, author.institution AS author_institution`
	// Name-only projection for list views.
	taleSelectList = `SELECT *, author.name AS author_name`

	maxViewRetries = 5
)

// TaleRepository handles tale data access
type TaleRepository struct {
	conn    Connector
	events  EventRecorder
	metrics *metrics.Metrics
}

// NewTaleRepository creates a new tale repository. events receives one
// tale_view event per applied view increment.
func NewTaleRepository(conn Connector, events EventRecorder, mt *metrics.Metrics) *TaleRepository {
	return &TaleRepository{conn: conn, events: events, metrics: mt}
}

// Create inserts a new tale. The author ID is not checked for existence.
func (r *TaleRepository) Create(ctx context.Context, req *model.CreateTaleRequest) (*model.Tale, error) {
	fields := req.Validate()
	authorKey, ok := recordKey("user", req.AuthorID)
	if req.AuthorID != "" && !ok {
		fields = append(fields, model.FieldError{Field: "author_id", Message: "author_id must be a user id"})
	}
	if err := model.ValidationFailed(fields); err != nil {
		return nil, err
	}

	query := `
		CREATE type::thing("tale", $key) CONTENT {
			title: $title,
			story: $story,
			cultural_context: IF $cultural_context IS NOT NULL THEN $cultural_context ELSE NONE END,
			region: $region,
			author: type::thing("user", $author),
			image_url: IF $image_url IS NOT NULL THEN $image_url ELSE NONE END,
			audio_url: IF $audio_url IS NOT NULL THEN $audio_url ELSE NONE END,
			is_public: $is_public,
			views: 0
		}
	`
	vars := map[string]interface{}{
		"key":              uuid.NewString(),
		"title":            req.Title,
		"story":            req.Story,
		"cultural_context": ptrToNone(req.CulturalContext),
		"region":           string(req.Region),
		"author":           authorKey,
		"image_url":        ptrToNone(req.ImageURL),
		"audio_url":        ptrToNone(req.AudioURL),
		"is_public":        req.Public(),
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
		return nil, fmt.Errorf("creating tale: %w", storageError(err))
	}
	if created == nil {
		return nil, fmt.Errorf("creating tale: %w", database.ErrNotFound)
	}
	return parseTale(created), nil
}

// GetByID retrieves a tale with its author's name, email and institution.
func (r *TaleRepository) GetByID(ctx context.Context, id string) (*model.Tale, bool, error) {
	key, ok := recordKey("tale", id)
	if !ok {
		return nil, false, nil
	}

	query := taleSelectFull + ` FROM type::thing("tale", $key)`
	vars := map[string]interface{}{"key": key}

	var row map[string]interface{}
	err := withDB(ctx, r.conn, func(db database.Database) error {
		results, err := db.Query(ctx, query, vars)
		if err != nil {
			return err
		}
		row = firstRow(results, 0)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("getting tale: %w", err)
	}
	if row == nil {
		return nil, false, nil
	}
	return parseTale(row), true, nil
}

// Update applies the non-nil fields of req and stamps updated_on. It never
// creates a record; a missing tale is a soft miss.
func (r *TaleRepository) Update(ctx context.Context, id string, req *model.UpdateTaleRequest) (*model.Tale, bool, error) {
	if err := model.ValidationFailed(req.Validate()); err != nil {
		return nil, false, err
	}
	key, ok := recordKey("tale", id)
	if !ok {
		return nil, false, nil
	}

	vars := map[string]interface{}{"key": key}
	var sets []string
	set := func(field string, value interface{}) {
		sets = append(sets, field+" = $"+field)
		vars[field] = value
	}
	if req.Title != nil {
		set("title", *req.Title)
	}
	if req.Story != nil {
		set("story", *req.Story)
	}
	if req.CulturalContext != nil {
		set("cultural_context", *req.CulturalContext)
	}
	if req.Region != nil {
		set("region", string(*req.Region))
	}
	if req.ImageURL != nil {
		set("image_url", *req.ImageURL)
	}
	if req.AudioURL != nil {
		set("audio_url", *req.AudioURL)
	}
	if req.IsPublic != nil {
		set("is_public", *req.IsPublic)
	}
	sets = append(sets, "updated_on = time::now()")

	// UPDATE on a missing record returns nothing and creates nothing; the
	// SELECT then reads the post-update snapshot with its author resolved.
	query := `UPDATE type::thing("tale", $key) SET ` + strings.Join(sets, ", ") + ` RETURN AFTER;
		` + taleSelectFull + ` FROM type::thing("tale", $key);`

	var updated, row map[string]interface{}
	err := withDB(ctx, r.conn, func(db database.Database) error {
		results, err := db.Query(ctx, query, vars)
		if err != nil {
			return err
		}
		updated = firstRow(results, 0)
		row = firstRow(results, 1)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("updating tale: %w", storageError(err))
	}
	if updated == nil {
		return nil, false, nil
	}
	if row == nil {
		row = updated
	}
	return parseTale(row), true, nil
}

// Delete removes a tale and returns it. Deleting a missing tale is a soft
// miss, not an error.
func (r *TaleRepository) Delete(ctx context.Context, id string) (*model.Tale, bool, error) {
	key, ok := recordKey("tale", id)
	if !ok {
		return nil, false, nil
	}

	query := taleSelectFull + ` FROM type::thing("tale", $key);
		DELETE type::thing("tale", $key) RETURN BEFORE;`
	vars := map[string]interface{}{"key": key}

	var row, removed map[string]interface{}
	err := withDB(ctx, r.conn, func(db database.Database) error {
		results, err := db.Query(ctx, query, vars)
		if err != nil {
			return err
		}
		row = firstRow(results, 0)
		removed = firstRow(results, 1)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("deleting tale: %w", err)
	}
	if removed == nil {
		return nil, false, nil
	}
	if row == nil {
		row = removed
	}
	return parseTale(row), true, nil
}

// ListPublic returns one page of public tales, newest first, with author
// names. Search matches title or story case-insensitively.
func (r *TaleRepository) ListPublic(ctx context.Context, q model.TaleQuery) ([]*model.Tale, error) {
	if err := model.ValidationFailed(q.Validate()); err != nil {
		return nil, err
	}
	q = q.Normalize()

	conds := []string{"is_public = true"}
	vars := map[string]interface{}{
		"limit": q.Limit,
		"start": q.Offset(),
	}
	if search := strings.ToLower(strings.TrimSpace(q.Search)); search != "" {
		conds = append(conds, "(string::contains(string::lowercase(title), $search) OR string::contains(string::lowercase(story), $search))")
		vars["search"] = search
	}
	if q.Region != nil {
		conds = append(conds, "region = $region")
		vars["region"] = string(*q.Region)
	}

	query := taleSelectList + ` FROM tale WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY created_on DESC LIMIT $limit START $start`

	return r.list(ctx, query, vars)
}

// ListByAuthor returns every tale by a user, public or not, newest first.
func (r *TaleRepository) ListByAuthor(ctx context.Context, userID string) ([]*model.Tale, error) {
	key, ok := recordKey("user", userID)
	if !ok {
		return []*model.Tale{}, nil
	}

	query := taleSelectList + ` FROM tale WHERE author = type::thing("user", $author) ORDER BY created_on DESC`
	vars := map[string]interface{}{"author": key}

	return r.list(ctx, query, vars)
}

// CountPublic counts public tales.
func (r *TaleRepository) CountPublic(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT count() AS count FROM tale WHERE is_public = true GROUP ALL`, nil)
}

// CountByAuthor counts every tale by a user.
func (r *TaleRepository) CountByAuthor(ctx context.Context, userID string) (int, error) {
	key, ok := recordKey("user", userID)
	if !ok {
		return 0, nil
	}
	return r.count(ctx,
		`SELECT count() AS count FROM tale WHERE author = type::thing("user", $author) GROUP ALL`,
		map[string]interface{}{"author": key})
}

// IncrementViews adds exactly one view and then records a tale_view event.
// The increment and the updated_on stamp are a single atomic statement. The
// event is best effort: if it fails the increment stands and the failure is
// only logged. Returns false when the tale does not exist.
func (r *TaleRepository) IncrementViews(ctx context.Context, id string) (bool, error) {
	key, ok := recordKey("tale", id)
	if !ok {
		return false, nil
	}

	query := `UPDATE type::thing("tale", $key) SET views += 1, updated_on = time::now() RETURN AFTER`
	vars := map[string]interface{}{"key": key}

	var updated map[string]interface{}
	backoff := retry.WithMaxRetries(maxViewRetries, retry.WithJitter(2*time.Millisecond, retry.NewExponential(5*time.Millisecond)))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := withDB(ctx, r.conn, func(db database.Database) error {
			results, err := db.Query(ctx, query, vars)
			if err != nil {
				return err
			}
			updated = firstRow(results, 0)
			return nil
		})
		if isConflictError(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return false, fmt.Errorf("incrementing views: %w", err)
	}
	if updated == nil {
		return false, nil
	}
	r.metrics.ObserveView()

	taleID := convertSurrealID(updated["id"])
	if taleID == "" {
		taleID = "tale:" + key
	}
	if r.events != nil {
		// The increment already happened, so the caller going away does not
		// cancel the event.
		eventCtx := context.WithoutCancel(ctx)
		if _, err := r.events.Record(eventCtx, model.EventTaleView, model.EventData{TaleID: &taleID}); err != nil {
			r.metrics.ObserveDroppedEvent()
			slog.WarnContext(ctx, "tale view event dropped",
				slog.String("tale_id", taleID),
				slog.String("error", err.Error()),
			)
		}
	}
	return true, nil
}

func (r *TaleRepository) list(ctx context.Context, query string, vars map[string]interface{}) ([]*model.Tale, error) {
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
		return nil, fmt.Errorf("listing tales: %w", err)
	}

	tales := make([]*model.Tale, 0, len(rows))
	for _, row := range rows {
		tales = append(tales, parseTale(row))
	}
	return tales, nil
}

func (r *TaleRepository) count(ctx context.Context, query string, vars map[string]interface{}) (int, error) {
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
		return 0, fmt.Errorf("counting tales: %w", err)
	}
	return count, nil
}

// isConflictError reports a write-write conflict that SurrealDB says can be
// retried.
func isConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "can be retried") || strings.Contains(msg, "read or write conflict")
}

func parseTale(data map[string]interface{}) *model.Tale {
	tale := &model.Tale{
		ID:              convertSurrealID(data["id"]),
		Title:           getString(data, "title"),
		Story:           getString(data, "story"),
		CulturalContext: getStringPtr(data, "cultural_context"),
		Region:          model.Region(getString(data, "region")),
		AuthorID:        convertSurrealID(data["author"]),
		ImageURL:        getStringPtr(data, "image_url"),
		AudioURL:        getStringPtr(data, "audio_url"),
		IsPublic:        getBool(data, "is_public"),
		Views:           getInt(data, "views"),
		CreatedOn:       getTime(data, "created_on"),
		UpdatedOn:       getTime(data, "updated_on"),
	}

	// A dangling author resolves to NONE and leaves Author nil.
	if name := getString(data, "author_name"); name != "" {
		tale.Author = &model.AuthorSummary{
			Name:        name,
			Email:       getString(data, "author_email"),
			Institution: getStringPtr(data, "author_institution"),
		}
	}
	return tale
}
