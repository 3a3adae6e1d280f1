package metrics

import (
	"net/http"

	"livestream-console/internal/overlay"
	"livestream-console/internal/stream"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the console's Prometheus collectors. All methods accept a nil
// receiver so components can run without metrics (e.g. in tests).
type Metrics struct {
	registry          *prometheus.Registry
	requestsTotal     prometheus.Counter
	errorsTotal       prometheus.Counter
	remoteCallsTotal  *prometheus.CounterVec
	gesturesTotal     *prometheus.CounterVec
	negotiationsTotal *prometheus.CounterVec
	overlays          prometheus.Gauge
	websocketClients  prometheus.Gauge
}

var (
	_ overlay.Observer = (*Metrics)(nil)
	_ stream.Observer  = (*Metrics)(nil)
)

// New creates and registers the console's metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "console_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "console_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		remoteCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_remote_calls_total",
			Help: "Backend overlay calls by operation and outcome",
		}, []string{"op", "outcome"}),
		gesturesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_gestures_total",
			Help: "Completed drag/resize gestures by kind and outcome",
		}, []string{"kind", "outcome"}),
		negotiationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_stream_negotiations_total",
			Help: "Stream negotiations by declared media kind (\"error\" for failures)",
		}, []string{"kind"}),
		overlays: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "console_overlays",
			Help: "Number of overlays in the local collection",
		}),
		websocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "console_ws_clients",
			Help: "Number of connected websocket views",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.remoteCallsTotal,
		m.gesturesTotal,
		m.negotiationsTotal,
		m.overlays,
		m.websocketClients,
	)
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveRemoteCall implements overlay.Observer.
func (m *Metrics) ObserveRemoteCall(op string, err error) {
	if m == nil {
		return
	}
	m.remoteCallsTotal.WithLabelValues(op, outcome(err)).Inc()
}

// ObserveNegotiation implements stream.Observer.
func (m *Metrics) ObserveNegotiation(kind stream.Kind, err error) {
	if m == nil {
		return
	}
	label := string(kind)
	if err != nil {
		label = "error"
	}
	m.negotiationsTotal.WithLabelValues(label).Inc()
}

// ObserveGesture counts a finished gesture. outcome is "persisted", "failed" or "cancelled".
func (m *Metrics) ObserveGesture(kind, outcome string) {
	if m == nil {
		return
	}
	m.gesturesTotal.WithLabelValues(kind, outcome).Inc()
}

// SetOverlays sets the overlay gauge.
func (m *Metrics) SetOverlays(n int) {
	if m == nil {
		return
	}
	m.overlays.Set(float64(n))
}

// SetWebsocketClients sets the connected-view gauge.
func (m *Metrics) SetWebsocketClients(n int) {
	if m == nil {
		return
	}
	m.websocketClients.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
