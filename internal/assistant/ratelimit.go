package assistant

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"nexus-backend/internal/auth"
	"nexus-backend/internal/httpx"
)

// Limiter applies a token bucket per user to the model-backed routes.
type Limiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewLimiter allows perMinute requests per user with bursts of up to burst.
// A non-positive perMinute disables limiting.
func NewLimiter(perMinute, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &Limiter{limit: limit, burst: burst, buckets: make(map[string]*rate.Limiter)}
}

func (l *Limiter) Allow(userID string) bool {
	l.mu.Lock()
	b, ok := l.buckets[userID]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[userID] = b
	}
	l.mu.Unlock()
	return b.Allow()
}

// Wrap rejects over-limit requests with 429. It expects the auth middleware
// to have run first.
func (l *Limiter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !l.Allow(uid) {
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfterSeconds()))
			httpx.Error(w, http.StatusTooManyRequests, "too many assistant requests")
			return
		}
		next(w, r)
	}
}

func (l *Limiter) retryAfterSeconds() int {
	if l.limit == rate.Inf || l.limit <= 0 {
		return 1
	}
	return max(1, int(1/float64(l.limit)))
}
