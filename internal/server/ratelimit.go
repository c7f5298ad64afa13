package server

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	apierrors "github.com/gridbase/gridbase/internal/errors"
)

// rateLimiter keeps a token bucket per client for mutating commands. The
// server fronts a local GUI, so the key space stays tiny; entries are never
// evicted.
type rateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	return &rateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: make(map[string]*rate.Limiter),
	}
}

func (l *rateLimiter) allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.clients[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.clients[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// wrap returns next guarded by the per-client limiter.
func (l *rateLimiter) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if host, _, err := net.SplitHostPort(key); err == nil {
			key = host
		}
		if !l.allow(key) {
			writeErrorResponse(w, http.StatusTooManyRequests, apierrors.ErrRateLimited, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
