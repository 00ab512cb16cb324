package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/OmorFaruk63/blogauth"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot blogauth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() blogauth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := blogauth.MetricsSnapshot{
		Counters:   make(map[blogauth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[blogauth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumValue(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 {
		t.Fatalf("expected one int64 sum point for %s, got %#v", m.Name, m.Data)
	}
	return sum.DataPoints[0].Value
}

func TestExporterPublishesCounters(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: blogauth.MetricsSnapshot{
			Counters: map[blogauth.MetricID]uint64{
				blogauth.MetricLoginSuccess: 3,
				blogauth.MetricLoginLocked:  1,
			},
			Histograms: map[blogauth.MetricID][]uint64{
				blogauth.MetricLoginLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 4,
	}

	exp, err := New(provider.Meter("blogauth-test"), src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	metrics := collect(t, reader)
	if got := sumValue(t, metrics["blogauth_login_success_total"]); got != 3 {
		t.Fatalf("expected login success 3, got %d", got)
	}
	if got := sumValue(t, metrics["blogauth_login_locked_total"]); got != 1 {
		t.Fatalf("expected login locked 1, got %d", got)
	}
	if got := sumValue(t, metrics["blogauth_audit_dropped_total"]); got != 4 {
		t.Fatalf("expected dropped 4, got %d", got)
	}
	if got := sumValue(t, metrics["blogauth_login_latency_seconds_count"]); got != 8 {
		t.Fatalf("expected histogram count 8, got %d", got)
	}

	gauge, ok := metrics["blogauth_login_latency_seconds_bucket"].Data.(metricdata.Gauge[int64])
	if !ok {
		t.Fatalf("expected bucket gauge, got %#v", metrics["blogauth_login_latency_seconds_bucket"].Data)
	}
	if len(gauge.DataPoints) != 8 {
		t.Fatalf("expected 8 bucket points, got %d", len(gauge.DataPoints))
	}
	byBound := map[string]int64{}
	for _, dp := range gauge.DataPoints {
		le, _ := dp.Attributes.Value(attribute.Key("le"))
		byBound[le.AsString()] = dp.Value
	}
	if byBound["0.005"] != 1 || byBound["0.1"] != 5 || byBound["+Inf"] != 8 {
		t.Fatalf("unexpected cumulative buckets %v", byBound)
	}
}

func TestExporterSkipsDisabledHistogram(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: blogauth.MetricsSnapshot{
			Counters:   map[blogauth.MetricID]uint64{blogauth.MetricLoginSuccess: 1},
			Histograms: map[blogauth.MetricID][]uint64{},
		},
	}

	exp, err := New(provider.Meter("blogauth-test"), src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer exp.Close()

	metrics := collect(t, reader)
	if m, ok := metrics["blogauth_login_latency_seconds_bucket"]; ok {
		if g, ok := m.Data.(metricdata.Gauge[int64]); ok && len(g.DataPoints) > 0 {
			t.Fatalf("expected no bucket points, got %d", len(g.DataPoints))
		}
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newReader()

	if _, err := New(provider.Meter("blogauth-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := New(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: blogauth.MetricsSnapshot{
			Counters: map[blogauth.MetricID]uint64{
				blogauth.MetricLoginSuccess: 1,
			},
			Histograms: map[blogauth.MetricID][]uint64{
				blogauth.MetricLoginLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := New(provider.Meter("blogauth-test"), src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[blogauth.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
