package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/scribewell/plugin-gateway/api/responses"
	"github.com/scribewell/plugin-gateway/internal/ratelimit"
	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/logger"
	"github.com/scribewell/plugin-gateway/pkg/metrics"
)

// RateLimitPolicy defines the throttling parameters for a traffic surface.
type RateLimitPolicy struct {
	Name   string
	Limit  int
	Window time.Duration
}

func (p RateLimitPolicy) enabled() bool {
	return p.Limit > 0 && p.Window > 0
}

func (p RateLimitPolicy) key(id string) string {
	return fmt.Sprintf("rl:%s:%s", p.Name, id)
}

// TenantRateLimit throttles authenticated plugin traffic per tenant. It must
// run after TenantAuth.
func TenantRateLimit(limiter ratelimit.Limiter, policy RateLimitPolicy, m *metrics.GatewayMetrics, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := TenantFromContext(r.Context())
			if !policy.enabled() || limiter == nil || tenant == nil {
				next.ServeHTTP(w, r)
				return
			}

			decide(w, r, next, limiter, policy, policy.key(tenant.ID.String()), m, logg)
		})
	}
}

// IPRateLimit throttles unauthenticated traffic per client address. Used on
// the registration surface where no tenant exists yet.
func IPRateLimit(limiter ratelimit.Limiter, policy RateLimitPolicy, m *metrics.GatewayMetrics, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !policy.enabled() || limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			decide(w, r, next, limiter, policy, policy.key(clientIP(r)), m, logg)
		})
	}
}

func decide(w http.ResponseWriter, r *http.Request, next http.Handler, limiter ratelimit.Limiter, policy RateLimitPolicy, key string, m *metrics.GatewayMetrics, logg *logger.Logger) {
	decision, err := limiter.Allow(r.Context(), key, policy.Limit, policy.Window)
	if err != nil {
		// Limiter backend trouble must not take down the request path.
		if logg != nil {
			logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "rate limiter unavailable, allowing request")
		}
		next.ServeHTTP(w, r)
		return
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(policy.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

	if !decision.Allowed {
		retryAfter := int(decision.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		if m != nil {
			m.IncRejected(policy.Name)
		}
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded").
			WithDetails(map[string]any{"retry_after_seconds": retryAfter}))
		return
	}

	next.ServeHTTP(w, r)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
