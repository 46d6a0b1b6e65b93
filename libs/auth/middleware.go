package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/staffsync/libs/httpx"
)

type ctxKey int

const (
	ctxKeyClaims ctxKey = iota
	ctxKeyToken
)

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKeyClaims).(*Claims)
	return c, ok
}

// TokenFromContext returns the verified bearer token so outgoing calls to
// peer services can act on behalf of the caller.
func TokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(ctxKeyToken).(string)
	return t
}

func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKeyToken, token)
}

// Require rejects requests without a valid bearer token carrying one of roles.
// A nil verifier disables the check.
func Require(v *Verifier, roles ...string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		if v == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				httpx.WriteError(w, r, http.StatusUnauthorized, httpx.CodeUnauthorized, "missing or invalid Authorization header")
				return
			}
			claims, err := v.Verify(r.Context(), token)
			if err != nil {
				httpx.WriteError(w, r, http.StatusUnauthorized, httpx.CodeUnauthorized, "invalid token")
				return
			}
			if !claims.HasAnyRole(roles...) {
				httpx.WriteError(w, r, http.StatusForbidden, httpx.CodeForbidden, "missing required role")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyClaims, claims)
			ctx = ContextWithToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
