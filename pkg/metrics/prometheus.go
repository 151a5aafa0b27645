package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder is a Recorder backed by the Prometheus client library.
// All metrics live in a private registry so tests can run several recorders
// side by side.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	packets      prometheus.Counter
	decodeErrors *prometheus.CounterVec
	options      *prometheus.CounterVec
	ignored      prometheus.Counter
	duplicates   prometheus.Counter
	configures   *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder with all listener metrics
// registered.
func NewPrometheusRecorder() *PrometheusRecorder {
	r := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		packets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "routelistener_packets_received_total",
			Help: "Router Advertisement packets pulled from the capture source.",
		}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routelistener_decode_errors_total",
			Help: "Packets or options dropped by the decoder, by kind.",
		}, []string{"kind"}),
		options: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routelistener_options_decoded_total",
			Help: "Neighbor discovery options decoded, by kind.",
		}, []string{"kind"}),
		ignored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "routelistener_prefixes_ignored_total",
			Help: "Announced prefixes classified as non-ULA and ignored.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "routelistener_duplicate_routes_total",
			Help: "Advertisements for routes that were already configured.",
		}),
		configures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routelistener_configure_attempts_total",
			Help: "Invocations of the route configuration action, by outcome.",
		}, []string{"outcome"}),
	}

	r.registry.MustRegister(r.packets, r.decodeErrors, r.options, r.ignored, r.duplicates, r.configures)
	return r
}

func (r *PrometheusRecorder) PacketReceived() { r.packets.Inc() }

func (r *PrometheusRecorder) DecodeError(kind string) {
	r.decodeErrors.WithLabelValues(kind).Inc()
}

func (r *PrometheusRecorder) OptionDecoded(kind string) {
	r.options.WithLabelValues(kind).Inc()
}

func (r *PrometheusRecorder) PrefixIgnored() { r.ignored.Inc() }

func (r *PrometheusRecorder) DuplicateRoute() { r.duplicates.Inc() }

func (r *PrometheusRecorder) ConfigureAttempt(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	r.configures.WithLabelValues(outcome).Inc()
}

// Handler exposes the private registry for scraping.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
