package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sethvargo/go-retry"
	"go.uber.org/goleak"

	"github.com/kathaghar/api/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ============================================================================
// Test Helpers
// ============================================================================

type fakeConn struct {
	id     int
	closed atomic.Bool
}

func (c *fakeConn) Close() error                  { c.closed.Store(true); return nil }
func (c *fakeConn) Ping(ctx context.Context) error { return nil }
func (c *fakeConn) Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
	return nil, nil
}
func (c *fakeConn) QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error) {
	return nil, ErrNotFound
}
func (c *fakeConn) Execute(ctx context.Context, query string, vars map[string]interface{}) error {
	return nil
}

// countingDialer hands out a new fakeConn per dial. Each dial blocks until
// release is closed (if set) and fails while failures remain.
type countingDialer struct {
	dials    atomic.Int32
	failures atomic.Int32
	release  chan struct{}
}

func (d *countingDialer) Dial(ctx context.Context) (Database, error) {
	n := d.dials.Add(1)
	if d.release != nil {
		select {
		case <-d.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.failures.Load() > 0 {
		d.failures.Add(-1)
		return nil, errors.New("connection refused")
	}
	return &fakeConn{id: int(n)}, nil
}

// ============================================================================
// Connect Tests
// ============================================================================

func TestConnect_ConcurrentCallers_SingleDialSameConnection(t *testing.T) {
	t.Parallel()

	dialer := &countingDialer{release: make(chan struct{})}
	m := NewManager(dialer.Dial)

	const callers = 25
	var wg sync.WaitGroup
	conns := make([]Database, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conns[i], errs[i] = m.Connect(context.Background())
		}(i)
	}

	// Give the callers a moment to pile up on the in-flight attempt.
	time.Sleep(20 * time.Millisecond)
	close(dialer.release)
	wg.Wait()

	if got := dialer.dials.Load(); got != 1 {
		t.Fatalf("expected exactly 1 dial, got %d", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: unexpected error %v", i, errs[i])
		}
		if conns[i] != conns[0] {
			t.Fatalf("caller %d got a different connection", i)
		}
	}
}

func TestConnect_Connected_ReturnsCachedWithoutDialing(t *testing.T) {
	t.Parallel()

	dialer := &countingDialer{}
	m := NewManager(dialer.Dial)

	first, err := m.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	second, err := m.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if first != second {
		t.Error("expected the cached connection")
	}
	if got := dialer.dials.Load(); got != 1 {
		t.Errorf("expected 1 dial, got %d", got)
	}
}

func TestConnect_Failure_ResetsSoNextCallRetries(t *testing.T) {
	t.Parallel()

	dialer := &countingDialer{}
	dialer.failures.Store(1)
	m := NewManager(dialer.Dial)

	_, err := m.Connect(context.Background())
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}

	conn, err := m.Connect(context.Background())
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if conn == nil {
		t.Fatal("expected a connection")
	}
	if got := dialer.dials.Load(); got != 2 {
		t.Errorf("expected 2 dials, got %d", got)
	}
}

func TestConnect_ConcurrentFailure_AllWaitersSeeSameError(t *testing.T) {
	t.Parallel()

	dialer := &countingDialer{release: make(chan struct{})}
	dialer.failures.Store(1)
	m := NewManager(dialer.Dial)

	const callers = 10
	var wg sync.WaitGroup
	var failed atomic.Int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Connect(context.Background()); errors.Is(err, ErrConnection) {
				failed.Add(1)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(dialer.release)
	wg.Wait()

	// Callers that arrived after the failed attempt may have dialed again
	// and succeeded; the ones that shared the first attempt all failed.
	if failed.Load() == 0 {
		t.Error("expected at least the first attempt's callers to fail")
	}
	if got := dialer.dials.Load(); got > 2 {
		t.Errorf("expected at most one dial after the failure, got %d dials", got)
	}
}

func TestConnect_WaiterCancelled_AttemptContinuesForOthers(t *testing.T) {
	t.Parallel()

	dialer := &countingDialer{release: make(chan struct{})}
	m := NewManager(dialer.Dial)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.Connect(ctx)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	err := <-done
	if !errors.Is(err, ErrConnection) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected ErrConnection wrapping context.Canceled, got %v", err)
	}

	close(dialer.release)
	conn, err := m.Connect(context.Background())
	if err != nil {
		t.Fatalf("expected the shared attempt to succeed, got %v", err)
	}
	if conn == nil {
		t.Fatal("expected a connection")
	}
	if got := dialer.dials.Load(); got != 1 {
		t.Errorf("expected 1 dial, got %d", got)
	}
}

func TestConnect_WithRetry_RetriesWithinOneAttempt(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	mt := metrics.New(reg)
	dialer := &countingDialer{}
	dialer.failures.Store(2)
	m := NewManager(dialer.Dial,
		WithRetry(retry.WithMaxRetries(3, retry.NewConstant(time.Millisecond))),
		WithMetrics(mt),
	)

	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got := dialer.dials.Load(); got != 3 {
		t.Errorf("expected 3 dials, got %d", got)
	}
	if got := testutil.ToFloat64(mt.ConnectAttempts.WithLabelValues(metrics.ResultSuccess)); got != 1 {
		t.Errorf("expected 1 successful attempt recorded, got %v", got)
	}
}

func TestConnect_WithRetry_ExhaustedReturnsErrConnection(t *testing.T) {
	t.Parallel()

	dialer := &countingDialer{}
	dialer.failures.Store(10)
	m := NewManager(dialer.Dial, WithRetry(retry.WithMaxRetries(1, retry.NewConstant(time.Millisecond))))

	_, err := m.Connect(context.Background())
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if got := dialer.dials.Load(); got != 2 {
		t.Errorf("expected 2 dials, got %d", got)
	}
}

// ============================================================================
// Invalidate / Close Tests
// ============================================================================

func TestInvalidate_CurrentConnection_ForcesRedial(t *testing.T) {
	t.Parallel()

	dialer := &countingDialer{}
	m := NewManager(dialer.Dial)

	first, err := m.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	m.Invalidate(first)

	if !first.(*fakeConn).closed.Load() {
		t.Error("expected invalidated connection to be closed")
	}

	second, err := m.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if second == first {
		t.Error("expected a new connection after invalidation")
	}
	if got := dialer.dials.Load(); got != 2 {
		t.Errorf("expected 2 dials, got %d", got)
	}
}

func TestInvalidate_StaleConnection_NoOp(t *testing.T) {
	t.Parallel()

	dialer := &countingDialer{}
	m := NewManager(dialer.Dial)

	current, err := m.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	stale := &fakeConn{id: 99}
	m.Invalidate(stale)
	m.Invalidate(nil)

	again, _ := m.Connect(context.Background())
	if again != current {
		t.Error("expected the current connection to survive a stale invalidation")
	}
	if current.(*fakeConn).closed.Load() {
		t.Error("current connection should not be closed")
	}
}

func TestClose_ClosesCachedConnection(t *testing.T) {
	t.Parallel()

	dialer := &countingDialer{}
	m := NewManager(dialer.Dial)

	if err := m.Close(); err != nil {
		t.Fatalf("Close on unconnected manager failed: %v", err)
	}

	conn, err := m.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !conn.(*fakeConn).closed.Load() {
		t.Error("expected connection to be closed")
	}
}
