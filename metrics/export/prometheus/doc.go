// Package prometheus renders blogauth engine metrics in the Prometheus text
// exposition format.
//
// Mount [Exporter.Handler] at /metrics. Counters are named blogauth_*_total;
// the single histogram is blogauth_login_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate engine state.
package prometheus
