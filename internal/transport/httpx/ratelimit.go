package httpx

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// idleBucketTTL is long enough for any bucket to refill completely, so
// forgetting an idle user never grants extra requests.
const idleBucketTTL = 10 * time.Minute

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// UserRateLimiter keeps one token bucket per authenticated user. Buckets idle
// for idleBucketTTL are dropped.
type UserRateLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

func NewUserRateLimiter(perMinute, burst int) *UserRateLimiter {
	if perMinute <= 0 {
		perMinute = 20
	}
	if burst <= 0 {
		burst = 5
	}
	return &UserRateLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (l *UserRateLimiter) allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= idleBucketTTL {
		l.sweep(now)
	}

	b, ok := l.buckets[userID]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[userID] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

func (l *UserRateLimiter) sweep(now time.Time) {
	for id, b := range l.buckets {
		if now.Sub(b.seen) >= idleBucketTTL {
			delete(l.buckets, id)
		}
	}
	l.lastSweep = now
}

func (l *UserRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Middleware must run after RequireUser.
func (l *UserRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(UserID(r.Context())) {
			w.Header().Set("Retry-After", "60")
			WriteError(w, r, nil, status.Error(codes.ResourceExhausted, "too many checkout attempts"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
