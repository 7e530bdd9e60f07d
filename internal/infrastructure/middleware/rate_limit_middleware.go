package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"dealerhub/pkg/config"
	"dealerhub/pkg/errors"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an unused per-client limiter is kept.
const idleLimiterTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiterStore stores per-key (for example, per IP) rate limiters.
type rateLimiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	rate      rate.Limit
	burstSize int
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiterStore(r rate.Limit, burst int) *rateLimiterStore {
	return &rateLimiterStore{
		limiters:  make(map[string]*limiterEntry),
		rate:      r,
		burstSize: burst,
		now:       time.Now,
	}
}

func (s *rateLimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > idleLimiterTTL {
		for k, e := range s.limiters {
			if now.Sub(e.lastSeen) > idleLimiterTTL {
				delete(s.limiters, k)
			}
		}
		s.lastSweep = now
	}

	entry, exists := s.limiters[key]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(s.rate, s.burstSize)}
		s.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// clientIP prefers the first X-Forwarded-For hop, then the peer address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMetrics is told about every rejected request.
type RateLimitMetrics interface {
	RecordRateLimited(limiter string)
}

// NewLoginRateLimitMiddleware throttles login attempts per client IP to
// slow down password guessing.
func NewLoginRateLimitMiddleware(cfg *config.Config, metrics RateLimitMetrics) gin.HandlerFunc {
	if !cfg.RateLimiting.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	perSecond := rate.Limit(cfg.RateLimiting.Login.RequestsPerMinute / 60)
	store := newRateLimiterStore(perSecond, cfg.RateLimiting.Login.Burst)

	return func(c *gin.Context) {
		limiter := store.getLimiter(clientIP(c.Request))
		if limiter.Allow() {
			c.Next()
			return
		}

		if metrics != nil {
			metrics.RecordRateLimited("login")
		}
		retryAfter := int(time.Duration(float64(time.Second) / float64(perSecond)).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.Error(errors.NewRateLimitError().WithContext("retry_after_seconds", retryAfter))
		c.Abort()
	}
}
