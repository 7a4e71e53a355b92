package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestThrottle(cfg ThrottleConfig) (*Throttle, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	th := NewThrottle(cfg)
	th.now = clock.Now
	return th, clock
}

// ============================================================================
// Throttle Tests
// ============================================================================

func TestNewThrottle_Defaults(t *testing.T) {
	t.Parallel()
	th := NewThrottle(ThrottleConfig{})

	if th.rate != 5 || th.window != time.Minute || th.burst != 10 {
		t.Errorf("unexpected defaults: rate=%d window=%v burst=%d", th.rate, th.window, th.burst)
	}
}

func TestAllow_BurstThenDeny(t *testing.T) {
	t.Parallel()
	th, _ := newTestThrottle(ThrottleConfig{Rate: 1, Window: time.Minute, Burst: 3})

	for i := 0; i < 3; i++ {
		ok, remaining, _ := th.Allow("10.0.0.1")
		if !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		if remaining != 2-i {
			t.Errorf("attempt %d: expected %d remaining, got %d", i+1, 2-i, remaining)
		}
	}

	ok, _, wait := th.Allow("10.0.0.1")
	if ok {
		t.Fatal("fourth attempt should be denied")
	}
	if wait <= 0 || wait > time.Minute {
		t.Errorf("expected wait within one window, got %v", wait)
	}
}

func TestAllow_RefillsOverTime(t *testing.T) {
	t.Parallel()
	th, clock := newTestThrottle(ThrottleConfig{Rate: 2, Window: time.Minute, Burst: 2})

	th.Allow("k")
	th.Allow("k")
	if ok, _, _ := th.Allow("k"); ok {
		t.Fatal("expected bucket empty")
	}

	clock.Advance(30 * time.Second)
	if ok, _, _ := th.Allow("k"); !ok {
		t.Error("expected one token back after half a window")
	}
	if ok, _, _ := th.Allow("k"); ok {
		t.Error("expected only one token refilled")
	}
}

func TestAllow_DeniedAttempt_ConsumesNothing(t *testing.T) {
	t.Parallel()
	th, clock := newTestThrottle(ThrottleConfig{Rate: 1, Window: time.Minute, Burst: 1})

	th.Allow("k")
	for i := 0; i < 5; i++ {
		ok, _, wait := th.Allow("k")
		if ok {
			t.Fatalf("attempt %d should be denied", i+2)
		}
		if wait < 59*time.Second || wait > time.Minute+time.Millisecond {
			t.Errorf("attempt %d: expected about a minute to wait, got %v", i+2, wait)
		}
	}

	clock.Advance(time.Minute)
	if ok, _, _ := th.Allow("k"); !ok {
		t.Error("expected denied attempts not to push the refill back")
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	t.Parallel()
	th, _ := newTestThrottle(ThrottleConfig{Rate: 1, Window: time.Minute, Burst: 1})

	th.Allow("a")
	if ok, _, _ := th.Allow("b"); !ok {
		t.Error("other client should not be throttled")
	}
}

func TestAllow_ConcurrentAccess_NeverExceedsBurst(t *testing.T) {
	t.Parallel()
	th, _ := newTestThrottle(ThrottleConfig{Rate: 1, Window: time.Hour, Burst: 10})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _, _ := th.Allow("same"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 10 {
		t.Errorf("expected exactly 10 allowed, got %d", allowed)
	}
}

func TestEvictIdle_DropsFullBuckets(t *testing.T) {
	t.Parallel()
	th, clock := newTestThrottle(ThrottleConfig{Rate: 1, Window: time.Minute, Burst: 2})

	th.Allow("idle")
	th.Allow("busy")
	th.Allow("busy")
	clock.Advance(time.Minute)
	th.evictIdle()

	if _, ok := th.limiters["idle"]; ok {
		t.Error("expected refilled bucket evicted")
	}
	if _, ok := th.limiters["busy"]; !ok {
		t.Error("expected partially drained bucket kept")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()
	th := NewThrottle(ThrottleConfig{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		th.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

// ============================================================================
// Limit Middleware Tests
// ============================================================================

func TestLimit_DeniedRequest_Returns429WithRetryAfter(t *testing.T) {
	t.Parallel()
	th, _ := newTestThrottle(ThrottleConfig{Rate: 1, Window: time.Minute, Burst: 1})
	next := &captureHandler{}
	handler := Limit(th)(next)

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/session", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	handler.ServeHTTP(first, req)
	if first.Code != http.StatusOK {
		t.Fatalf("expected first attempt through, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/session", nil)
	req.RemoteAddr = "192.0.2.1:6666" // same host, new port
	handler.ServeHTTP(second, req)

	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") != "60" {
		t.Errorf("expected Retry-After 60, got %q", second.Header().Get("Retry-After"))
	}
	if second.Header().Get("X-RateLimit-Limit") != "1" {
		t.Errorf("expected limit header, got %q", second.Header().Get("X-RateLimit-Limit"))
	}
}

func TestClientIP_NoPort_ReturnsRaw(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "unix-socket"

	if got := clientIP(req); got != "unix-socket" {
		t.Errorf("expected raw address, got %q", got)
	}
}
