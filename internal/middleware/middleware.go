package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tgdrive/dropshare/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Middleware = func(http.Handler) http.Handler

func InjectLogger(lg *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(logging.WithLogger(r.Context(), lg)))
		})
	}
}

// Limiter hands out one token bucket per client address.
type Limiter struct {
	mu        sync.Mutex
	every     rate.Limit
	burst     int
	ttl       time.Duration
	clients   map[string]*client
	lastSweep time.Time
	now       func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter allows ratePerMin events per minute per client with the given burst.
// Clients idle for longer than ttl are dropped by a sweep that runs at most
// once per ttl.
func NewLimiter(ratePerMin float64, burst int, ttl time.Duration) *Limiter {
	return &Limiter{
		every:   rate.Limit(ratePerMin / 60),
		burst:   burst,
		ttl:     ttl,
		clients: make(map[string]*client),
		now:     time.Now,
	}
}

func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.ttl {
		for k, c := range l.clients {
			if now.Sub(c.lastSeen) > l.ttl {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.every, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// RateLimit rejects requests over the per-client budget by calling onLimit.
// A nil limiter disables the check.
func RateLimit(l *Limiter, onLimit http.HandlerFunc) Middleware {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientKey(r)) {
				logging.FromContext(r.Context()).Debug("rate limited", zap.String("ip", r.RemoteAddr))
				onLimit(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
