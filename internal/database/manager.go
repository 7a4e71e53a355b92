package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/kathaghar/api/internal/metrics"
)

// Dialer opens a new, ready-to-use connection.
type Dialer func(ctx context.Context) (Database, error)

const (
	connectKey         = "connect"
	defaultDialTimeout = 10 * time.Second
)

// Manager owns the process-wide database connection.
//
// The first Connect call dials; callers arriving while that attempt is in
// flight wait for the same attempt instead of dialing again. A successful
// connection is cached and returned to every later caller. A failed attempt
// is forgotten so the next call dials afresh.
type Manager struct {
	dial        Dialer
	dialTimeout time.Duration
	backoff     retry.Backoff
	metrics     *metrics.Metrics
	logger      *slog.Logger

	mu    sync.RWMutex
	conn  Database
	group singleflight.Group
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithDialTimeout bounds a single connection attempt.
func WithDialTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.dialTimeout = d }
}

// WithRetry retries each connection attempt with the given backoff before
// reporting failure.
func WithRetry(b retry.Backoff) ManagerOption {
	return func(m *Manager) { m.backoff = b }
}

// WithMetrics records connection attempts.
func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mt }
}

// WithLogger sets the logger used for connection lifecycle events.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager in the unconnected state.
func NewManager(dial Dialer, opts ...ManagerOption) *Manager {
	m := &Manager{
		dial:        dial,
		dialTimeout: defaultDialTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect returns the live connection, dialing if none exists yet.
//
// ctx only bounds how long this caller waits. The shared attempt itself is
// not cancelled when one waiter gives up.
func (m *Manager) Connect(ctx context.Context) (Database, error) {
	if conn := m.cached(); conn != nil {
		return conn, nil
	}

	ch := m.group.DoChan(connectKey, func() (interface{}, error) {
		// An attempt that finished between our cache check and DoChan
		// already stored the connection.
		if conn := m.cached(); conn != nil {
			return conn, nil
		}

		dialCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.dialTimeout)
		defer cancel()

		conn, err := m.dialOnce(dialCtx)
		m.metrics.ObserveConnect(err)
		if err != nil {
			m.logger.Error("database connection failed", slog.String("error", err.Error()))
			return nil, err
		}

		m.mu.Lock()
		m.conn = conn
		m.mu.Unlock()

		m.logger.Info("database connected")
		return conn, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Database), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrConnection, ctx.Err())
	}
}

// Invalidate drops conn if it is still the cached connection, so the next
// Connect dials again. Repositories call this after ErrConnection.
func (m *Manager) Invalidate(conn Database) {
	if conn == nil {
		return
	}

	m.mu.Lock()
	if m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.mu.Unlock()

	m.logger.Warn("database connection invalidated")
	_ = conn.Close()
}

// Close closes the cached connection, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (m *Manager) cached() Database {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conn
}

func (m *Manager) dialOnce(ctx context.Context) (Database, error) {
	var conn Database
	attempt := func(ctx context.Context) error {
		c, err := m.dial(ctx)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}

	var err error
	if m.backoff == nil {
		err = attempt(ctx)
	} else {
		err = retry.Do(ctx, m.backoff, func(ctx context.Context) error {
			if err := attempt(ctx); err != nil {
				m.logger.Warn("database dial failed, retrying", slog.String("error", err.Error()))
				return retry.RetryableError(err)
			}
			return nil
		})
	}

	if err != nil {
		if !errors.Is(err, ErrConnection) {
			err = fmt.Errorf("%w: %w", ErrConnection, err)
		}
		return nil, err
	}
	return conn, nil
}
