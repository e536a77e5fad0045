package metrics

import (
	"strings"
	"testing"
	"time"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.IncrCounter("polls_total")
	m.IncrCounter("polls_total")
	m.IncrCounter("poll_errors_total")

	if got := m.Counter("polls_total"); got != 2 {
		t.Errorf("expected polls_total=2, got %d", got)
	}
	if got := m.Counter("poll_errors_total"); got != 1 {
		t.Errorf("expected poll_errors_total=1, got %d", got)
	}
	if got := m.Counter("missing"); got != 0 {
		t.Errorf("expected missing counter to be 0, got %d", got)
	}
}

func TestMetrics_RecordRequest(t *testing.T) {
	m := New()

	m.RecordRequest("GET", "/api/v1/uploads/abc/status", 200, 10*time.Millisecond)
	m.RecordRequest("GET", "/api/v1/uploads/abc/status", 500, 20*time.Millisecond)

	snap := m.Snapshot()
	if !strings.Contains(snap, "GET /api/v1/uploads/abc/status: 2 requests") {
		t.Errorf("snapshot missing request line:\n%s", snap)
	}
}

func TestMetrics_Gauges(t *testing.T) {
	m := New()

	m.SetGauge("display_progress", 45)
	m.SetGauge("display_progress", 60)

	if got := m.Gauge("display_progress"); got != 60 {
		t.Errorf("expected gauge 60, got %g", got)
	}
}
