package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// IPRateLimiter is an in-memory per-IP token bucket. Guard devices share
// the hostel wifi NAT, so the burst must cover a whole floor submission;
// for multi-node deployments swap the state map for Redis.
type IPRateLimiter struct {
	burst     int
	perMinute int
	skip      map[string]bool

	mu      sync.Mutex
	state   map[string]*bucket
	pruned  time.Time
	nowFunc func() time.Time
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewIPRateLimiter creates a limiter refilling perMinute tokens with the
// given burst capacity. Requests to skipPaths are never limited.
func NewIPRateLimiter(burst, perMinute int, skipPaths ...string) *IPRateLimiter {
	if burst <= 0 {
		burst = perMinute
	}
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return &IPRateLimiter{
		burst:     burst,
		perMinute: perMinute,
		skip:      skip,
		state:     make(map[string]*bucket),
		nowFunc:   time.Now,
	}
}

// GinMiddleware returns a gin handler enforcing the per-IP limit.
func (l *IPRateLimiter) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.skip[c.Request.URL.Path] {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (l *IPRateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	l.maybePrune(now)

	b, ok := l.state[key]
	if !ok {
		l.state[key] = &bucket{tokens: l.burst - 1, last: now}
		return true
	}
	refill := int(now.Sub(b.last).Minutes() * float64(l.perMinute))
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

// maybePrune drops buckets idle long enough to be full again, at most once
// a minute, so one-off clients don't grow the map forever.
func (l *IPRateLimiter) maybePrune(now time.Time) {
	if now.Sub(l.pruned) < time.Minute {
		return
	}
	l.pruned = now
	for key, b := range l.state {
		if now.Sub(b.last) > 10*time.Minute {
			delete(l.state, key)
		}
	}
}
