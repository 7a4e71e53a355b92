package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kathaghar/api/internal/database"
	"github.com/kathaghar/api/internal/model"
)

// Connector hands out the shared database connection.
type Connector interface {
	Connect(ctx context.Context) (database.Database, error)
	Invalidate(db database.Database)
}

// HealthHandler reports whether storage is reachable.
type HealthHandler struct {
	conn    Connector
	timeout time.Duration
	logger  *slog.Logger
}

// NewHealthHandler creates a health handler. A zero timeout means 2s.
func NewHealthHandler(conn Connector, timeout time.Duration, logger *slog.Logger) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{conn: conn, timeout: timeout, logger: logger}
}

// HealthResponse is the health check body.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Check handles GET /healthz.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	db, err := h.conn.Connect(ctx)
	if err == nil {
		if err = db.Ping(ctx); err != nil {
			h.conn.Invalidate(db)
		}
	}
	if err != nil {
		h.logger.WarnContext(r.Context(), "health check failed", slog.String("error", err.Error()))
		WriteError(w, model.NewUnavailableError("database unreachable"))
		return
	}

	WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok", Database: "ok"})
}
