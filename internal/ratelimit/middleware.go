package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/obs"
)

// Limiter decides whether one more event for key fits max events per window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

// Config describes one rate limit policy.
type Config struct {
	// Name labels the policy in metrics and prefixes every key.
	Name   string
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// ClientKey keys requests by client IP.
func ClientKey(r *http.Request) string {
	return common.ClientIP(r)
}

// Handler enforces a policy before delegating to the next handler. Limiter
// failures let the request through and are reported to OnError.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
}

// Middleware implements the http.Handler middleware interface.
func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Limiter == nil || h.Config.Key == nil || h.Config.Max <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := h.Config.Key(r)
		if h.Config.Name != "" {
			key = h.Config.Name + ":" + key
		}
		allowed, remaining, resetAt, err := h.Limiter.Allow(r.Context(), key, h.Config.Window, h.Config.Max)
		if err != nil {
			h.record("error")
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(h.Config.Max))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
		if allowed {
			h.record("allowed")
			next.ServeHTTP(w, r)
			return
		}

		h.record("limited")
		retryAfter := int(math.Ceil(time.Until(resetAt).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		headers.Set("Retry-After", strconv.Itoa(retryAfter))
		common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", map[string]any{"retryAfterSeconds": retryAfter})
	})
}

func (h Handler) record(result string) {
	if obs.RateLimitDecisions == nil {
		return
	}
	policy := h.Config.Name
	if policy == "" {
		policy = "default"
	}
	obs.RateLimitDecisions.WithLabelValues(policy, result).Inc()
}
