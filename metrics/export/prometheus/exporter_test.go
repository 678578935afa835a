package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/swahilipot/hubauth"
)

type fakeSource struct {
	snapshot hubauth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() hubauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                     { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: hubauth.MetricsSnapshot{
			Counters:   map[hubauth.MetricID]uint64{},
			Histograms: map[hubauth.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCountersAndHistogram(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: hubauth.MetricsSnapshot{
			Counters: map[hubauth.MetricID]uint64{
				hubauth.MetricLoginSuccess:  7,
				hubauth.MetricAccountLocked: 2,
			},
			Histograms: map[hubauth.MetricID][]uint64{
				hubauth.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"hubauth_login_success_total 7",
		"hubauth_account_locked_total 2",
		"hubauth_refresh_expired_total 0",
		"hubauth_validate_latency_seconds_bucket{le=\"0.005\"} 1",
		"hubauth_validate_latency_seconds_bucket{le=\"+Inf\"} 36",
		"hubauth_validate_latency_seconds_count 36",
		"hubauth_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderSkipsHistogramWhenLatencyDisabled(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: hubauth.MetricsSnapshot{
			Counters:   map[hubauth.MetricID]uint64{hubauth.MetricLoginSuccess: 1},
			Histograms: map[hubauth.MetricID][]uint64{},
		},
	})

	if out := exp.Render(); strings.Contains(out, "validate_latency") {
		t.Fatalf("histogram must be omitted, got:\n%s", out)
	}
}

func TestRenderWithConstLabels(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: hubauth.MetricsSnapshot{
			Counters: map[hubauth.MetricID]uint64{hubauth.MetricSignupSuccess: 4},
			Histograms: map[hubauth.MetricID][]uint64{
				hubauth.MetricValidateLatency: {1},
			},
		},
	}, WithConstLabels(map[string]string{"service": "hubauthd", "env": "prod"}))

	out := exp.Render()
	if !strings.Contains(out, `hubauth_signup_success_total{env="prod",service="hubauthd"} 4`) {
		t.Fatalf("expected labelled counter, got:\n%s", out)
	}
	if !strings.Contains(out, `hubauth_validate_latency_seconds_bucket{env="prod",service="hubauthd",le="0.005"} 1`) {
		t.Fatalf("expected labelled bucket, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: hubauth.MetricsSnapshot{
			Counters:   map[hubauth.MetricID]uint64{hubauth.MetricLoginSuccess: 1},
			Histograms: map[hubauth.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
