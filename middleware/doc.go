// Package middleware exposes net/http middleware that authenticates requests
// with a blogauth session token and gates routes by role.
//
// # Guards
//
//   - [RequireSession]: rejects requests without a valid session (401).
//   - [RequireRole]: rejects sessions lacking one of the given roles (403).
//   - [RequireAdmin]: both, for ADMIN-only routes.
//
// The token is read from the session cookie first, then from an
// "Authorization: Bearer" header. Validated claims are stored in the request
// context; read them with [SessionFromContext].
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine.ParseSession).
//   - Touch account storage.
package middleware
