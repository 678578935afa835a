package otel

import (
	"context"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/swahilipot/hubauth"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot hubauth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() hubauth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := hubauth.MetricsSnapshot{
		Counters:   make(map[hubauth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[hubauth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
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

func findSum(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.DataPoint[int64] {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) != 1 {
				t.Fatalf("%s: unexpected data %T", name, m.Data)
			}
			return sum.DataPoints[0]
		}
	}
	t.Fatalf("metric %s not collected", name)
	return metricdata.DataPoint[int64]{}
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: hubauth.MetricsSnapshot{
			Counters: map[hubauth.MetricID]uint64{
				hubauth.MetricLoginSuccess:  3,
				hubauth.MetricAccountLocked: 1,
			},
			Histograms: map[hubauth.MetricID][]uint64{
				hubauth.MetricValidateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporterFromSource(provider.Meter("hubauth-test"), src,
		WithAttributes(attribute.String("service", "hubauthd")))
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	login := findSum(t, rm, "hubauth_login_success_total")
	if login.Value != 3 {
		t.Fatalf("expected 3 logins, got %d", login.Value)
	}
	if v, ok := login.Attributes.Value("service"); !ok || v.AsString() != "hubauthd" {
		t.Fatalf("expected service attribute, got %v", login.Attributes)
	}
	if got := findSum(t, rm, "hubauth_account_locked_total").Value; got != 1 {
		t.Fatalf("expected 1 lock, got %d", got)
	}
	if got := findSum(t, rm, "hubauth_audit_dropped_total").Value; got != 1 {
		t.Fatalf("expected 1 dropped, got %d", got)
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader()

	if _, err := NewExporterFromSource(provider.Meter("hubauth-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewExporter(provider.Meter("hubauth-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil engine, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: hubauth.MetricsSnapshot{
			Counters: map[hubauth.MetricID]uint64{
				hubauth.MetricLoginSuccess: 1,
			},
			Histograms: map[hubauth.MetricID][]uint64{
				hubauth.MetricValidateLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewExporterFromSource(provider.Meter("hubauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
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
			src.snapshot.Counters[hubauth.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
