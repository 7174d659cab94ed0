package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"tender-evaluator/internal/shared/server/respond"
)

const (
	defaultRateLimitGroup = "DEFAULT"

	// RateGroupPolling covers snapshot reads a UI issues while jobs run.
	RateGroupPolling = "POLLING"
	// RateGroupJobs covers intents that start upstream OCR or evaluation work.
	RateGroupJobs = "JOBS"
)

// DefaultRateLimitRules returns per-group limits for the workflow routes.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		defaultRateLimitGroup: {Rate: 5, Burst: 20},
		RateGroupPolling:      {Rate: 10, Burst: 40},
		RateGroupJobs:         {Rate: 1, Burst: 10},
	}
}

// WorkflowRateGroup classifies a request by the route it matched.
func WorkflowRateGroup(c *gin.Context) string {
	switch c.FullPath() {
	case "/api/v1/workflow":
		return RateGroupPolling
	case "/api/v1/workflow/documents/:id/ocr", "/api/v1/workflow/ocr/pending", "/api/v1/workflow/evaluation", "/api/v1/workflow/export", "/api/v1/vendors/:id/documents":
		return RateGroupJobs
	default:
		return defaultRateLimitGroup
	}
}

type RateLimitRule struct {
	Rate  float64
	Burst int
}

type RateLimitConfig struct {
	Rules        map[string]RateLimitRule
	DefaultGroup string
	GroupFor     func(*gin.Context) string
	Limiter      *RateLimiter
}

// RateLimiter keeps one token bucket per principal and group. Buckets idle
// longer than bucketIdleTTL are refilled anyway, so they are evicted.
type RateLimiter struct {
	mu      sync.Mutex
	buckets *cache.Cache
	now     func() time.Time
}

const bucketIdleTTL = 30 * time.Minute

type rateBucket struct {
	tokens float64
	last   time.Time
}

func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		buckets: cache.New(bucketIdleTTL, bucketIdleTTL/2),
		now:     now,
	}
}

// RateLimit enforces cfg.Rules keyed by the caller (user id, else client IP).
// Groups without a rule are not limited.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(nil)
	}
	if cfg.DefaultGroup == "" {
		cfg.DefaultGroup = defaultRateLimitGroup
	}
	return func(c *gin.Context) {
		group := cfg.DefaultGroup
		if cfg.GroupFor != nil {
			if g := strings.TrimSpace(cfg.GroupFor(c)); g != "" {
				group = g
			}
		}
		rule, ok := cfg.Rules[group]
		if !ok {
			c.Next()
			return
		}
		principal := UserIDFromContext(c)
		if principal == "" {
			principal = "ip:" + c.ClientIP()
		}
		allowed, wait := cfg.Limiter.Allow(principal+"|"+group, rule)
		if allowed {
			c.Next()
			return
		}
		if wait < time.Second {
			wait = time.Second
		}
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "too many requests", gin.H{
			"group":        group,
			"retryAfterMs": wait.Milliseconds(),
		})
	}
}

// Allow takes one token from key's bucket. When empty it reports how long
// until the next token.
func (l *RateLimiter) Allow(key string, rule RateLimitRule) (bool, time.Duration) {
	if l == nil || rule.Rate <= 0 || rule.Burst <= 0 {
		return true, 0
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b := &rateBucket{tokens: float64(rule.Burst), last: now}
	if v, ok := l.buckets.Get(key); ok {
		b = v.(*rateBucket)
		if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
			b.tokens = math.Min(float64(rule.Burst), b.tokens+elapsed*rule.Rate)
			b.last = now
		}
	}
	l.buckets.SetDefault(key, b)
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := (1 - b.tokens) / rule.Rate
	return false, time.Duration(math.Ceil(wait*1000)) * time.Millisecond
}

// Len reports live buckets.
func (l *RateLimiter) Len() int {
	if l == nil {
		return 0
	}
	return l.buckets.ItemCount()
}
