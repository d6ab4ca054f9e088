package mcp

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sonetyo/ledger/internal/domain/ledger"
)

type contextKey int

const identityKey contextKey = iota

// withIdentity returns ctx carrying the caller identity.
func withIdentity(ctx context.Context, identity ledger.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// identityFromContext extracts the caller identity from context.
func identityFromContext(ctx context.Context) ledger.Identity {
	v, _ := ctx.Value(identityKey).(ledger.Identity)
	return v
}

// IdentityResolver resolves a ledger identity from a bearer token.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (ledger.Identity, error)
}

// authMiddleware implements bearer token authentication as MCP middleware.
func authMiddleware(resolver IdentityResolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			// Skip auth for protocol methods
			if method == "initialize" || method == "ping" || strings.HasPrefix(method, "notifications/") {
				return next(ctx, method, req)
			}
			extra := req.GetExtra()
			if extra == nil || extra.Header == nil {
				return nil, fmt.Errorf("%w: missing headers", ErrUnauthorized)
			}

			auth := extra.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				return nil, fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
			}

			identity, err := resolver.ResolveIdentity(ctx, token)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
			}
			if identity.IsZero() {
				return nil, fmt.Errorf("%w: invalid bearer token", ErrUnauthorized)
			}

			return next(withIdentity(ctx, identity), method, req)
		}
	}
}

// noAuthMiddleware injects a fixed identity when auth is disabled.
func noAuthMiddleware(identity ledger.Identity) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			return next(withIdentity(ctx, identity), method, req)
		}
	}
}
