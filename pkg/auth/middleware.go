package auth

import (
	"log/slog"
	"net/http"

	"github.com/rhuss/spielwerk/pkg/api"
	"github.com/rhuss/spielwerk/pkg/observability"
	"github.com/rhuss/spielwerk/pkg/storage"
	"github.com/rhuss/spielwerk/pkg/transport"
)

// DefaultBypass lists the paths that skip authentication when the caller
// does not configure its own list.
var DefaultBypass = []string{"/healthz", "/readyz", "/metrics"}

// Middleware wraps a handler with authentication and, when limiter is
// non-nil, rate limiting. Requests to a bypass path pass straight
// through. Everything else must clear the chain; the granted identity
// and its tenant end up in the request context.
func Middleware(chain *Chain, limiter Limiter, bypass []string) func(http.Handler) http.Handler {
	if bypass == nil {
		bypass = DefaultBypass
	}
	open := make(map[string]bool, len(bypass))
	for _, path := range bypass {
		open[path] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if open[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			res := chain.Authenticate(r.Context(), r)
			if res.Verdict != Granted || res.Identity == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", res.Err,
				)
				transport.WriteErrorResponse(w,
					api.NewInvalidRequestError("", "authentication required"),
					http.StatusUnauthorized)
				return
			}
			if res.Identity.Subject == "" {
				slog.Error("authenticator granted an identity without a subject")
				transport.WriteErrorResponse(w,
					api.NewServerError("internal authentication error"),
					http.StatusInternalServerError)
				return
			}

			if limiter != nil {
				if err := limiter.Allow(r.Context(), res.Identity); err != nil {
					slog.Warn("rate limit exceeded",
						"subject", res.Identity.Subject,
						"tier", res.Identity.Tier,
					)
					observability.RateLimitRejectedTotal.WithLabelValues(res.Identity.Tier).Inc()
					transport.WriteErrorResponse(w,
						api.NewTooManyRequestsError("rate limit exceeded"),
						http.StatusTooManyRequests)
					return
				}
			}

			ctx := WithIdentity(r.Context(), res.Identity)
			if res.Identity.Tenant != "" {
				ctx = storage.SetTenant(ctx, res.Identity.Tenant)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
