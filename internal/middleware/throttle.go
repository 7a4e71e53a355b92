package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kathaghar/api/internal/model"
)

// Throttle is a per-client token bucket. It guards credential checks
// against brute force: each client gets Burst attempts at once, refilled
// at Rate per Window.
type Throttle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	rate     int
	window   time.Duration
	burst    int
	now      func() time.Time
}

// ThrottleConfig holds throttle configuration
type ThrottleConfig struct {
	Rate   int           // attempts refilled per window (default 5)
	Window time.Duration // refill window (default 1 minute)
	Burst  int           // bucket size (default 10)
}

// NewThrottle creates a throttle. Call Run to evict idle clients.
func NewThrottle(cfg ThrottleConfig) *Throttle {
	if cfg.Rate <= 0 {
		cfg.Rate = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	return &Throttle{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(cfg.Window / time.Duration(cfg.Rate)),
		rate:     cfg.Rate,
		window:   cfg.Window,
		burst:    cfg.Burst,
		now:      time.Now,
	}
}

// Run evicts idle limiters every interval until ctx is done.
func (t *Throttle) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.evictIdle()
		case <-ctx.Done():
			return
		}
	}
}

// evictIdle drops limiters that have refilled completely; they carry no
// state a fresh limiter would not.
func (t *Throttle) evictIdle() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for key, l := range t.limiters {
		if l.TokensAt(now) >= float64(t.burst) {
			delete(t.limiters, key)
		}
	}
}

// Allow takes one token for key. When none is left it reports how long
// until the next one and consumes nothing.
func (t *Throttle) Allow(key string) (allowed bool, remaining int, retryAfter time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	l, ok := t.limiters[key]
	if !ok {
		l = rate.NewLimiter(t.limit, t.burst)
		t.limiters[key] = l
	}

	r := l.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, 0, delay
	}
	return true, int(l.TokensAt(now)), 0
}

// Limit returns a middleware that throttles by client address.
func Limit(t *Throttle) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, wait := t.Allow(clientIP(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(t.burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				// Round up to whole seconds, ignoring sub-millisecond noise.
				retryAfter := int((wait + time.Second - time.Millisecond) / time.Second)
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				model.NewTooManyRequestsError(retryAfter).WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
