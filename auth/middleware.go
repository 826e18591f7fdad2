package auth

import (
	"context"
	"net/http"
	"strings"

	"market-chat/domain"
)

type contextKey string

const identityKey contextKey = "identity"

// Middleware validates the Bearer token of incoming HTTP calls and
// injects the resulting identity into the request context for
// downstream handlers.
func Middleware(tokens Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "authorization token is missing", http.StatusUnauthorized)
				return
			}

			// Expecting the standard "Bearer <token>" format
			tokenStr := strings.TrimPrefix(header, "Bearer ")

			claims, err := tokens.Validate(tokenStr)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := WithIdentity(r.Context(), IdentityFromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromClaims maps validated claims onto the domain identity
// attached to connections and requests.
func IdentityFromClaims(claims *CustomClaims) domain.Identity {
	return domain.Identity{
		ID:           claims.UserID,
		FullName:     claims.FullName,
		Capabilities: domain.CapabilitiesFromRoles(claims.Roles),
	}
}

func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext retrieves the identity injected by Middleware.
// The boolean is false for unauthenticated contexts.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(domain.Identity)
	return identity, ok
}
