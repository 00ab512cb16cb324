// Package limiters provides account-security policies built on top of
// counting primitives.
//
// # Limiters
//
//   - [LockoutLimiter]: failed-login counter with timed lock, persisted by a [FailureStore].
//   - [Throttle]: per-identifier + per-IP budget for registration and password-reset requests.
//
// [Throttle] is nil-safe: Enforce on a nil receiver returns nil.
//
// # What this package must NOT do
//
//   - Import blogauth or any sibling internal package.
//   - Make policy decisions beyond counting. The Engine decides consequences.
package limiters
