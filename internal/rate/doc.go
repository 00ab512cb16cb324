// Package rate provides fixed-window limiters keyed by arbitrary strings such
// as "verify:<email>".
//
// # Window semantics
//
// [Memory] keeps {count, windowStart} per key in-process. [Redis] uses
// INCR + conditional PEXPIRE on first hit. Both lower-case keys.
//
// # What this package must NOT do
//
//   - Decide what is limited or with which budget (the Engine does).
//   - Be imported outside the blogauth module.
package rate
