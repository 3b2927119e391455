package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goSession "github.com/MrEthical07/goSession"
)

type fakeSource struct {
	snapshot goSession.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goSession.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                       { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporter(fakeSource{snapshot: goSession.MetricsSnapshot{}})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output, got:\n%s", got)
	}
}

func TestRenderCountersAndHistogram(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricLoginSuccess:    7,
				goSession.MetricResolveMiss:     3,
				goSession.MetricRefreshRestored: 1,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricAuthenticateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
			HistogramSum: map[goSession.MetricID]time.Duration{
				goSession.MetricAuthenticateLatency: 1500 * time.Millisecond,
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"gosession_login_success_total 7",
		"gosession_resolve_miss_total 3",
		"gosession_refresh_restored_total 1",
		"gosession_logout_total 0",
		`gosession_authenticate_latency_seconds_bucket{le="0.001"} 1`,
		`gosession_authenticate_latency_seconds_bucket{le="0.002"} 3`,
		`gosession_authenticate_latency_seconds_bucket{le="+Inf"} 36`,
		"gosession_authenticate_latency_seconds_sum 1.5",
		"gosession_authenticate_latency_seconds_count 36",
		"# TYPE gosession_authenticate_latency_seconds histogram",
		"gosession_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderSkipsHistogramWhenLatencyDisabled(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{goSession.MetricLogout: 1},
		},
	})

	out := exp.Render()
	if strings.Contains(out, "latency") {
		t.Fatalf("expected no histogram, got:\n%s", out)
	}
	if !strings.Contains(out, "gosession_logout_total 1") {
		t.Fatalf("expected logout counter, got:\n%s", out)
	}
}

func TestHandlerServesText(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{goSession.MetricAccessIssued: 4},
		},
	})

	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "gosession_access_issued_total 4") {
		t.Fatalf("unexpected body:\n%s", rec.Body.String())
	}
}

func TestEscapeHelp(t *testing.T) {
	if got := escapeHelp("a\\b\nc"); got != `a\\b\nc` {
		t.Fatalf("unexpected escape %q", got)
	}
}
