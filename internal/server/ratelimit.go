package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ipLimiter hands out one token bucket per client IP. Buckets idle for an
// hour are dropped to keep the map bounded; stop() ends the sweeper so the
// limiter can be torn down with its server.
type ipLimiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*ipBucket

	stopOnce sync.Once
	done     chan struct{}
	exited   chan struct{}
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(rps float64, burst int) *ipLimiter {
	l := &ipLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*ipBucket),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, exists := l.limiters[ip]
	if !exists {
		bucket = &ipBucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[ip] = bucket
	}
	bucket.lastSeen = time.Now()

	return bucket.limiter.Allow()
}

func (l *ipLimiter) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

func (l *ipLimiter) cleanupLoop() {
	defer close(l.exited)

	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-time.Hour)
			l.mu.Lock()
			for ip, bucket := range l.limiters {
				if bucket.lastSeen.Before(cutoff) {
					delete(l.limiters, ip)
				}
			}
			l.mu.Unlock()
		}
	}
}

// middleware rejects clients exceeding their per-IP budget.
func (l *ipLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
