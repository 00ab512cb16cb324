// Package flows contains the orchestration behind each Engine operation.
//
// Each Run* function takes a dependency struct of closures and plain values
// and returns a result. The root package builds those structs once and owns
// every resource behind them: stores, rate limiter, mailer, audit dispatcher
// and metrics.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root package (import cycle).
//   - Perform I/O directly. All I/O goes through the dependency closures.
package flows
