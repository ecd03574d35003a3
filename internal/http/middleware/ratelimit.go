package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to its bucket identity.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys buckets by the identity set by Identity, falling back to
// the client IP. The prefixes keep the two namespaces apart.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if uid := UserID(c); uid != "" {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter gives every caller its own token bucket so one voter toggling
// in a loop cannot starve the rest. Buckets are process-local; buckets idle
// for longer than ttl are dropped on a later lookup.
type RateLimiter struct {
	rps        rate.Limit
	burst      int
	keyFn      keyFunc
	retryAfter string

	mu        sync.Mutex
	buckets   map[string]*bucket
	ttl       time.Duration
	lastSweep time.Time
}

// maxRetryAfter caps the Retry-After hint for very slow refill rates.
const maxRetryAfter = 60

// NewRateLimiter builds a limiter refilling rps tokens per second. burst is
// coerced to at least 1.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:        rate.Limit(rps),
		burst:      burst,
		keyFn:      keyFn,
		retryAfter: strconv.Itoa(retryAfterSeconds(rps)),
		buckets:    make(map[string]*bucket),
		ttl:        10 * time.Minute,
		lastSweep:  time.Now(),
	}
}

// retryAfterSeconds is the wait for one token, between 1 and maxRetryAfter.
func retryAfterSeconds(rps float64) int {
	if rps <= 0 {
		return maxRetryAfter
	}
	s := int(math.Ceil(1 / rps))
	return max(1, min(s, maxRetryAfter))
}

// limiterFor returns the bucket for key, creating it if absent.
func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.ttl {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.ttl {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// IsRateBypass reports whether IdempotencyValidator flagged this request as
// a replay that may skip rate limiting.
func IsRateBypass(c *gin.Context) bool { return c.GetBool(ctxKeyRateBypass) }

// Handler rejects callers over their budget with 429, a Retry-After hint
// and the standard error envelope with code "rate_limited".
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) || rl.limiterFor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}
		c.Header("Retry-After", rl.retryAfter)
		abortWithError(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
	}
}
