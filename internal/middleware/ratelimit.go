package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"

	"github.com/threadsclone/backend/internal/errors"
	"github.com/threadsclone/backend/internal/httputil"
	"github.com/threadsclone/backend/internal/logging"
	"github.com/threadsclone/backend/internal/metrics"
)

// Tier is a named request budget: Limit requests per Window for each client.
type Tier struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Default tiers.
var (
	APITier   = Tier{Name: "api", Limit: 100, Window: 15 * time.Minute}
	AuthTier  = Tier{Name: "auth", Limit: 5, Window: time.Hour}
	ResetTier = Tier{Name: "reset", Limit: 3, Window: time.Hour}
)

// RateLimiter keeps one token bucket per client key. Buckets idle for a full
// window are evicted from the cache.
type RateLimiter struct {
	tier     Tier
	limiters *ttlcache.Cache[string, *rate.Limiter]
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// NewRateLimiter creates a new rate limiter. m may be nil.
func NewRateLimiter(tier Tier, logger *logging.Logger, m *metrics.Metrics) *RateLimiter {
	if tier.Limit <= 0 {
		tier.Limit = 1
	}
	if tier.Window <= 0 {
		tier.Window = time.Minute
	}
	return &RateLimiter{
		tier: tier,
		limiters: ttlcache.New[string, *rate.Limiter](
			ttlcache.WithTTL[string, *rate.Limiter](tier.Window),
		),
		logger:  logger,
		metrics: m,
	}
}

// Tier returns the configured budget.
func (rl *RateLimiter) Tier() Tier {
	return rl.tier
}

// Start runs the cache expiry loop until Stop is called.
func (rl *RateLimiter) Start() {
	go rl.limiters.Start()
}

// Stop ends the expiry loop.
func (rl *RateLimiter) Stop() {
	rl.limiters.Stop()
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	every := rl.tier.Window / time.Duration(rl.tier.Limit)
	item, _ := rl.limiters.GetOrSet(key, rate.NewLimiter(rate.Every(every), rl.tier.Limit))
	return item.Value()
}

// Allow consumes one request from key's budget.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Check is Allow for operation-level limits: it returns a RateLimited error
// and records the rejection.
func (rl *RateLimiter) Check(ctx context.Context, key string) error {
	if key == "" {
		key = "unknown"
	}
	if rl.Allow(key) {
		return nil
	}
	rl.reject(ctx, key, "")
	return errors.RateLimitExceeded(rl.tier.Limit, rl.tier.Window.String())
}

func (rl *RateLimiter) reject(ctx context.Context, key, path string) {
	if rl.metrics != nil {
		rl.metrics.RateLimited(rl.tier.Name)
	}
	rl.logger.LogSecurityEvent(ctx, "rate_limit_exceeded", map[string]interface{}{
		"tier": rl.tier.Name,
		"key":  key,
		"path": path,
	})
}

// Handler returns the rate limiting middleware handler. Requests are keyed by
// client address.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := httputil.ClientIPFromContext(r.Context())
		if key == "" {
			key = httputil.ClientIP(r)
		}

		if !rl.Allow(key) {
			rl.reject(r.Context(), key, r.URL.Path)
			retry := int(math.Ceil((rl.tier.Window / time.Duration(rl.tier.Limit)).Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			serviceErr := errors.RateLimitExceeded(rl.tier.Limit, rl.tier.Window.String())
			httputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code),
				"Too many requests from this IP, please try again later", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
