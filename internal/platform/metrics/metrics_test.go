package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"livestream-console/internal/stream"
)

func scrape(t *testing.T, m *Metrics, update func()) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler(update).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMetrics_observers(t *testing.T) {
	m := New()
	m.ObserveRemoteCall("update", nil)
	m.ObserveRemoteCall("update", errors.New("boom"))
	m.ObserveNegotiation(stream.KindHLS, nil)
	m.ObserveNegotiation("", errors.New("boom"))
	m.ObserveGesture("position", "persisted")

	out := scrape(t, m, func() { m.SetOverlays(3) })
	for _, want := range []string{
		`console_remote_calls_total{op="update",outcome="ok"} 1`,
		`console_remote_calls_total{op="update",outcome="error"} 1`,
		`console_stream_negotiations_total{kind="hls"} 1`,
		`console_stream_negotiations_total{kind="error"} 1`,
		`console_gestures_total{kind="position",outcome="persisted"} 1`,
		`console_overlays 3`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in scrape:\n%s", want, out)
		}
	}
}

func TestMetrics_nil_receiver(t *testing.T) {
	var m *Metrics
	m.ObserveRemoteCall("list", nil)
	m.ObserveNegotiation(stream.KindDirect, nil)
	m.ObserveGesture("size", "failed")
	m.SetOverlays(1)
	m.SetWebsocketClients(1)
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bad", nil))

	out := scrape(t, m, nil)
	if !strings.Contains(out, "console_requests_total 2") || !strings.Contains(out, "console_errors_total 1") {
		t.Errorf("unexpected counters:\n%s", out)
	}
}
