package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the weather station service
type Metrics struct {
	// Device ingest metrics
	LinesReceived     prometheus.Counter
	ReadingsStored    prometheus.Counter
	GreetingsReceived prometheus.Counter
	LinesUnrecognized prometheus.Counter

	// Connection metrics
	ConnectionsAccepted prometheus.Counter
	ConnectionsRejected prometheus.Counter
	ConnectionTimeouts  prometheus.Counter
	ActiveConnections   prometheus.Gauge
	ConnectionDuration  prometheus.Histogram

	// Admin session metrics
	SessionsIssued prometheus.Counter
	SessionsSwept  prometheus.Counter
	LoginFailures  prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics with the given
// registerer. Production code passes prometheus.DefaultRegisterer; tests pass
// a private registry so packages can be instantiated repeatedly.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Device ingest metrics
		LinesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "station_lines_received_total",
			Help: "Total number of lines received from device connections",
		}),
		ReadingsStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "station_readings_stored_total",
			Help: "Total number of readings written to the sensor state store",
		}),
		GreetingsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "station_greetings_received_total",
			Help: "Total number of HELLO handshake lines received",
		}),
		LinesUnrecognized: factory.NewCounter(prometheus.CounterOpts{
			Name: "station_lines_unrecognized_total",
			Help: "Total number of lines that produced no reading",
		}),

		// Connection metrics
		ConnectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "station_connections_accepted_total",
			Help: "Total number of device connections accepted",
		}),
		ConnectionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "station_connections_rejected_total",
			Help: "Total number of device connections rejected by the connection cap",
		}),
		ConnectionTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "station_connection_timeouts_total",
			Help: "Total number of device connections closed by inactivity timeout",
		}),
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "station_active_connections",
			Help: "Current number of live device connections",
		}),
		ConnectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "station_connection_duration_seconds",
			Help:    "Lifetime of device connections in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),

		// Admin session metrics
		SessionsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "station_sessions_issued_total",
			Help: "Total number of admin sessions issued",
		}),
		SessionsSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "station_sessions_swept_total",
			Help: "Total number of expired admin sessions removed by sweeps",
		}),
		LoginFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "station_login_failures_total",
			Help: "Total number of rejected admin login attempts",
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "station_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "station_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "station_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordLine increments the received-lines counter
func (m *Metrics) RecordLine() {
	m.LinesReceived.Inc()
}

// RecordReadingStored increments the stored-readings counter
func (m *Metrics) RecordReadingStored() {
	m.ReadingsStored.Inc()
}

// RecordGreeting increments the greetings counter
func (m *Metrics) RecordGreeting() {
	m.GreetingsReceived.Inc()
}

// RecordUnrecognized increments the unrecognized-lines counter
func (m *Metrics) RecordUnrecognized() {
	m.LinesUnrecognized.Inc()
}

// RecordConnectionAccepted increments the accepted-connections counter
func (m *Metrics) RecordConnectionAccepted() {
	m.ConnectionsAccepted.Inc()
}

// RecordConnectionRejected increments the rejected-connections counter
func (m *Metrics) RecordConnectionRejected() {
	m.ConnectionsRejected.Inc()
}

// RecordConnectionTimeout increments the timeout counter
func (m *Metrics) RecordConnectionTimeout() {
	m.ConnectionTimeouts.Inc()
}

// SetActiveConnections sets the live connection gauge
func (m *Metrics) SetActiveConnections(count int) {
	m.ActiveConnections.Set(float64(count))
}

// RecordConnectionClosed records the lifetime of a finished connection
func (m *Metrics) RecordConnectionClosed(durationSeconds float64) {
	m.ConnectionDuration.Observe(durationSeconds)
}

// RecordSessionIssued increments the issued-sessions counter
func (m *Metrics) RecordSessionIssued() {
	m.SessionsIssued.Inc()
}

// RecordSessionsSwept adds to the swept-sessions counter
func (m *Metrics) RecordSessionsSwept(count int) {
	m.SessionsSwept.Add(float64(count))
}

// RecordLoginFailure increments the rejected-logins counter
func (m *Metrics) RecordLoginFailure() {
	m.LoginFailures.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
