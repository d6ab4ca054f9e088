package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sonetyo/ledger/internal/domain/ledger"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

type identityKey struct{}

// IdentityResolver resolves a ledger identity from a bearer token.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (ledger.Identity, error)
}

// IdentityFromContext returns the caller identity from context, if present.
func IdentityFromContext(ctx context.Context) (ledger.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(ledger.Identity)
	return identity, ok && !identity.IsZero()
}

// WithIdentity returns ctx carrying identity.
func WithIdentity(ctx context.Context, identity ledger.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// AuthMiddleware enforces bearer token authentication.
func AuthMiddleware(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			identity, err := resolver.ResolveIdentity(r.Context(), token)
			if err != nil || identity.IsZero() {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// StaticIdentityMiddleware attributes every request to identity. Used when
// auth is disabled.
func StaticIdentityMiddleware(identity ledger.Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}
