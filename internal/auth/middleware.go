package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/lanch-pos/lanch-pos/internal/platform/httpx"
	"github.com/lanch-pos/lanch-pos/internal/shared"
)

type claimsContextKey struct{}

// ClaimsFromContext extracts the token claims stored by Middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*Claims)
	return claims, ok
}

// Middleware validates the bearer token, checks the revocation list and
// stores the actor in the request context.
func Middleware(tokens *TokenIssuer, revoked *RevocationStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authorization header required")
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authorization header must be Bearer {token}")
				return
			}

			claims, err := tokens.Parse(parts[1])
			if err != nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
				return
			}

			if revoked != nil {
				isRevoked, err := revoked.IsRevoked(r.Context(), claims.ID)
				if err != nil {
					logger.Error("revocation check", slog.Any("error", err))
					httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "could not verify session")
					return
				}
				if isRevoked {
					httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "token revoked")
					return
				}
			}

			userID, err := strconv.ParseInt(claims.Subject, 10, 64)
			if err != nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid token claims")
				return
			}

			ctx := shared.ContextWithActor(r.Context(), shared.Actor{
				UserID:   userID,
				Username: claims.Username,
				Role:     claims.Role,
			})
			ctx = context.WithValue(ctx, claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin guards admin-only route groups.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := shared.ActorFromContext(r.Context())
		if !ok || !actor.IsAdmin() {
			httpx.RespondError(w, shared.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole guards routes accessible to any of the listed roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			if _, ok := allowed[actor.Role]; !ok {
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
