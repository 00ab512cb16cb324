package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/OmorFaruk63/blogauth"
)

// DefaultCookieName is the session cookie set by the HTTP API.
const DefaultCookieName = "blogauth_session"

// SessionParser verifies session tokens. *blogauth.Engine satisfies it.
type SessionParser interface {
	ParseSession(token string) (*blogauth.SessionClaims, error)
}

var _ SessionParser = (*blogauth.Engine)(nil)

type sessionContextKey struct{}

// SessionFromContext returns the claims stored by RequireSession.
func SessionFromContext(ctx context.Context) (*blogauth.SessionClaims, bool) {
	claims, ok := ctx.Value(sessionContextKey{}).(*blogauth.SessionClaims)
	return claims, ok && claims != nil
}

// WithSession stores claims in ctx.
func WithSession(ctx context.Context, claims *blogauth.SessionClaims) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, claims)
}

// RequireSession rejects requests that do not carry a valid session token.
// cookieName defaults to DefaultCookieName.
func RequireSession(parser SessionParser, cookieName string) func(http.Handler) http.Handler {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if parser == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := SessionToken(r, cookieName)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := parser.ParseSession(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), claims)))
		})
	}
}

// SessionToken extracts the session token from the cookie or a bearer
// Authorization header.
func SessionToken(r *http.Request, cookieName string) (string, bool) {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
