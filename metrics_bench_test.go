package blogauth

import (
	"testing"
	"time"
)

// A failed login bumps the failure counter and records latency.
func BenchmarkFailedLoginMetrics(b *testing.B) {
	e := &Engine{metrics: NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})}
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			e.metricInc(MetricLoginFailure)
			e.metricObserve(MetricLoginLatency, 40*time.Millisecond)
		}
	})
}

func BenchmarkResendThrottledMetricsDisabled(b *testing.B) {
	e := &Engine{metrics: NewMetrics(MetricsConfig{Enabled: false})}
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		e.metricInc(MetricRateLimitHit)
	}
}

func BenchmarkMetricsSnapshotForScrape(b *testing.B) {
	e := &Engine{metrics: NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})}
	for id := MetricID(0); id < MetricLoginLatency; id++ {
		e.metricInc(id)
	}
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = e.MetricsSnapshot()
	}
}
