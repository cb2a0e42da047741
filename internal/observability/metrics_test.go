package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.ObserveAPI("POST", "/webhooks/whatsapp", "200", 120*time.Millisecond)
	m.ObserveAPI("POST", "/api/chat", "502", 2*time.Second)
	m.IncRelayOutcome("followup_sent")
	m.IncRelayOutcome("followup_sent")
	m.APIInflightInc()

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`mwanafrika_api_requests_total{method="POST",route="/webhooks/whatsapp",status="200"} 1`,
		`mwanafrika_api_server_errors_total 1`,
		`mwanafrika_relay_outcomes_total{outcome="followup_sent"} 2`,
		`mwanafrika_api_request_duration_seconds_bucket{method="POST",route="/api/chat",le="1"} 0`,
		`mwanafrika_api_request_duration_seconds_bucket{method="POST",route="/api/chat",le="+Inf"} 1`,
		`mwanafrika_api_inflight_requests 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/", "200", time.Millisecond)
	m.IncRelayOutcome("x")
	m.APIInflightDec()

	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestLabelEscaping(t *testing.T) {
	got := labelString([]string{"a", "b"}, []string{`x"y`})
	if got != `{a="x\"y",b="unknown"}` {
		t.Fatalf("labels: %s", got)
	}
}
