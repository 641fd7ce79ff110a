package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// WriteLimiter is an in-memory per-IP token bucket applied only to
// mutating requests. Reads are cheap and cache-backed, so they pass
// through; registrations and deletes are what need protecting.
type WriteLimiter struct {
	burst int
	rate  int
	mu    sync.Mutex
	state map[string]*bucket
	swept time.Time
}

type bucket struct {
	tokens int
	last   time.Time
}

// staleAfter is how long an idle bucket survives before the sweep
// drops it.
const staleAfter = 10 * time.Minute

// NewWriteLimiter creates a limiter refilling rate tokens per minute
// with the given burst.
func NewWriteLimiter(burst, perMinute int) *WriteLimiter {
	if burst <= 0 {
		burst = perMinute
	}
	return &WriteLimiter{
		burst: burst,
		rate:  perMinute,
		state: make(map[string]*bucket),
		swept: time.Now(),
	}
}

// GinMiddleware returns a gin handler enforcing per-IP limits on
// POST/PUT/PATCH/DELETE.
func (l *WriteLimiter) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "rate limit"})
			return
		}
		c.Next()
	}
}

func (l *WriteLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	l.sweep(now)

	b, ok := l.state[key]
	if !ok {
		b = &bucket{tokens: l.burst - 1, last: now}
		l.state[key] = b
		return true
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.burst {
			b.tokens = l.burst
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops buckets idle long enough to be fully refilled anyway.
// Called with the lock held.
func (l *WriteLimiter) sweep(now time.Time) {
	if now.Sub(l.swept) < staleAfter {
		return
	}
	for key, b := range l.state {
		if now.Sub(b.last) > staleAfter {
			delete(l.state, key)
		}
	}
	l.swept = now
}
