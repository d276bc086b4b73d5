/*
middleware.go - Authentication, authorization, and rate limiting

PURPOSE:
  The cross-cutting stages in front of the statistics endpoint, each a
  standard chi middleware so they compose and test independently:

    authenticate -> authorize -> rate-check -> handler

  RequireAuth resolves the bearer token to an identity and rejects with 401.
  RequireRole gates on the caller's role and rejects with 403 (the body names
  the accepted roles and the caller's actual role, never any statistics).
  RateLimit bounds requests per caller per fixed window and rejects with 429
  carrying a retryAfter hint in seconds.

RATE LIMITER:
  go-chi/httprate, keyed by authenticated profile ID. Counter updates are
  atomic, and httprate sets the X-RateLimit-Limit / -Remaining / -Reset
  headers on every response.
*/
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"github.com/warp/leave-engine/auth"
)

type contextKey string

const identityKey contextKey = "identity"

// IdentityFrom returns the authenticated caller, if any.
func IdentityFrom(ctx context.Context) (*auth.Identity, bool) {
	ident, ok := ctx.Value(identityKey).(*auth.Identity)
	return ident, ok
}

// RequireAuth validates the Authorization bearer token and stores the
// resulting identity in the request context.
func RequireAuth(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)

			ident, err := verifier.Verify(r.Context(), token)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{
					Error: "Unauthorized. Invalid or missing authentication token.",
				})
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireRole rejects callers whose role is not in the allowed set. Must run
// after RequireAuth.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := IdentityFrom(r.Context())
			if !ok {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{
					Error: "Unauthorized. Invalid or missing authentication token.",
				})
				return
			}

			for _, role := range roles {
				if ident.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeJSON(w, http.StatusForbidden, ForbiddenResponse{
				Error:        "Insufficient permissions to access this resource.",
				RequiredRole: names,
				CurrentRole:  string(ident.Role),
			})
		})
	}
}

// RateLimit bounds each caller to limit requests per fixed window. Must run
// after RequireAuth so the counter keys on the profile ID.
func RateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(keyByIdentity),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			retryAfter := int(window.Seconds())
			if v, err := strconv.Atoi(w.Header().Get("Retry-After")); err == nil && v > 0 {
				retryAfter = v
			}
			writeJSON(w, http.StatusTooManyRequests, RateLimitedResponse{
				Error:      "Rate limit exceeded. Please retry later.",
				RetryAfter: retryAfter,
			})
		}),
	)
}

func keyByIdentity(r *http.Request) (string, error) {
	if ident, ok := IdentityFrom(r.Context()); ok {
		return ident.ID, nil
	}
	return httprate.KeyByIP(r)
}
