// Package blogauth is the account-security core of the blog: credential
// sign-in with failed-login lockout, an email verification gate with a
// rate-limited resend, single-use verification and password-reset tokens,
// federated sign-in with account linking by email, and role-carrying
// session tokens.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after [Builder.Build].
//
// # Architecture boundaries
//
// blogauth is the public surface. It exposes [Engine], [Builder], [Config],
// the store interfaces and value types. Flow orchestration, rate limiting,
// lockout and audit dispatch live under internal/. Storage backends live in
// store/sqlstore and store/redisstore, email transport in mailer, and the
// Google provider in oauth.
//
// # What this package must NOT do
//
//   - Import a storage, mail or HTTP package (they import blogauth).
//   - Return raw store errors from security rejections. Unknown emails,
//     wrong passwords and bad tokens all surface as sentinel errors.
//   - Fail an operation because an email could not be delivered.
package blogauth
