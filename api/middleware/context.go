package middleware

import (
	"context"

	"github.com/skshopping/shop-backend/pkg/auth"
)

type contextKey string

const ctxClaims contextKey = "access_claims"

// ClaimsFromContext returns the verified token claims, or nil for anonymous requests.
func ClaimsFromContext(ctx context.Context) *auth.AccessTokenClaims {
	if ctx == nil {
		return nil
	}
	claims, _ := ctx.Value(ctxClaims).(*auth.AccessTokenClaims)
	return claims
}

// WithClaims injects verified claims; used by Auth and by handler tests.
func WithClaims(ctx context.Context, claims *auth.AccessTokenClaims) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxClaims, claims)
}

// UserIDFromContext returns the caller's user id or "" when anonymous.
func UserIDFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.UserID.String()
	}
	return ""
}
