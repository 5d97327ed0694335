package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/portcullis-auth/portcullis/internal/auth"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
)

type principalKey struct{}

// ContextWithClaims stores the verified token claims on the context.
func ContextWithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, principalKey{}, claims)
}

// ClaimsFromContext returns the verified claims for the request, if any.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(principalKey{}).(*auth.Claims)
	return claims, ok
}

// requireToken guards protected routes with bearer-token verification.
func (a *API) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := extractBearerToken(r.Header.Get(authHeader))
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := a.tokens.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

func extractBearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}
