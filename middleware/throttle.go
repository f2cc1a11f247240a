package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const throttleIdle = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttler holds one token bucket per client IP.
type Throttler struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// NewThrottler allows rps sustained requests with the given burst per IP.
func NewThrottler(rps float64, burst int) *Throttler {
	if burst < 1 {
		burst = 1
	}
	return &Throttler{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow reports whether ip may proceed now.
func (t *Throttler) Allow(ip string) bool {
	now := t.now()

	t.mu.Lock()
	v, ok := t.visitors[ip]
	if !ok {
		if len(t.visitors) > 0 && len(t.visitors)%1024 == 0 {
			t.sweepLocked(now)
		}
		v = &visitor{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.visitors[ip] = v
	}
	v.lastSeen = now
	t.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

func (t *Throttler) sweepLocked(now time.Time) {
	for ip, v := range t.visitors {
		if now.Sub(v.lastSeen) > throttleIdle {
			delete(t.visitors, ip)
		}
	}
}

// Throttle rejects requests from an IP whose bucket is empty. A zero or
// negative rps disables it.
func Throttle(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	t := NewThrottler(rps, burst)
	return t.Middleware
}

// Middleware wraps next with t.
func (t *Throttler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.Allow(ClientIP(r)) {
			writeTooManyRequests(w, time.Duration(float64(time.Second)/float64(t.limit)))
			return
		}
		next.ServeHTTP(w, r)
	})
}
