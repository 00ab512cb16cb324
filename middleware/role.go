package middleware

import (
	"net/http"

	"github.com/OmorFaruk63/blogauth"
)

// RequireRole admits sessions holding one of roles. It must run after
// RequireSession; a request without claims is answered 401.
func RequireRole(roles ...blogauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := SessionFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !claims.HasRole(roles...) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin chains RequireSession and RequireRole(blogauth.RoleAdmin).
func RequireAdmin(parser SessionParser, cookieName string) func(http.Handler) http.Handler {
	session := RequireSession(parser, cookieName)
	admin := RequireRole(blogauth.RoleAdmin)
	return func(next http.Handler) http.Handler {
		return session(admin(next))
	}
}
