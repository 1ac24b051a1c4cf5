package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// DefaultIdleTTL is how long a client's bucket survives without requests.
const DefaultIdleTTL = 10 * time.Minute

type clientBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter keeps one token bucket per client key and drops buckets
// that have been idle for longer than the idle TTL.
type ClientLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
	lastSweep time.Time
	clients   map[string]*clientBucket
}

// NewClientLimiter allows perMinute requests per client with an equal burst.
func NewClientLimiter(perMinute int) *ClientLimiter {
	if perMinute <= 0 {
		perMinute = 120
	}
	return &ClientLimiter{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   perMinute,
		idleTTL: DefaultIdleTTL,
		now:     time.Now,
		clients: make(map[string]*clientBucket),
	}
}

// WithClock replaces the time source used for idle tracking.
func (l *ClientLimiter) WithClock(now func() time.Time) *ClientLimiter {
	l.now = now
	return l
}

func (l *ClientLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idleTTL {
		l.sweep(now)
	}
	b, ok := l.clients[key]
	if !ok {
		b = &clientBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = b
	}
	b.lastSeen = now
	return b.lim
}

// sweep must be called with mu held.
func (l *ClientLimiter) sweep(now time.Time) {
	for key, b := range l.clients {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.clients, key)
		}
	}
	l.lastSweep = now
}

// Allow consumes one token for key.
func (l *ClientLimiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// Clients returns the number of tracked client buckets.
func (l *ClientLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// GinMiddleware returns gin handler enforcing per-IP limits.
func (l *ClientLimiter) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.Allow(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}
