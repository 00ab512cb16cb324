// Package internal contains helper utilities that are intentionally private to blogauth,
// chiefly secure random generation for emailed tokens and OAuth state.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - config: server configuration loading (YAML, .env, environment)
//   - flows: flow orchestrators for credential, verification and reset operations
//   - httpapi: chi routes exposing the Engine over HTTP
//   - limiters: failed-login lockout and request throttles
//   - metrics: lock-free counters and latency histograms
//   - rate: fixed-window rate limiters (memory and Redis)
//   - security: security posture report assembly
//
// # What this package must NOT do
//
//   - Export types that appear in the public blogauth API.
//   - Be imported by any package outside the blogauth module.
package internal
