package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for Forecourt
type Metrics struct {
	// Lifecycle counters
	DomainConnectTotal *prometheus.CounterVec
	DomainVerifyTotal  *prometheus.CounterVec
	DomainRemoveTotal  *prometheus.CounterVec

	// Domain gauges
	DomainsByStatus *prometheus.GaugeVec

	// DNS metrics
	DNSCheckDurationSeconds prometheus.Histogram
	DNSLookupErrorsTotal    *prometheus.CounterVec

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec
	APIErrorsTotal            *prometheus.CounterVec

	// System metrics
	UptimeSeconds prometheus.Gauge
	Goroutines    prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		// Lifecycle counters
		DomainConnectTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecourt_domain_connect_total",
				Help: "Total number of domain connect attempts",
			},
			[]string{"outcome"},
		),
		DomainVerifyTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecourt_domain_verify_total",
				Help: "Total number of domain verification attempts",
			},
			[]string{"outcome"},
		),
		DomainRemoveTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecourt_domain_remove_total",
				Help: "Total number of domain removal attempts",
			},
			[]string{"outcome"},
		),

		// Domain gauges
		DomainsByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "forecourt_domains",
				Help: "Number of connected domains by lifecycle status",
			},
			[]string{"status"},
		),

		// DNS metrics
		DNSCheckDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "forecourt_dns_check_duration_seconds",
				Help:    "DNS verification check duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		DNSLookupErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecourt_dns_lookup_errors_total",
				Help: "Total number of failed DNS lookups",
			},
			[]string{"record_type"},
		),

		// API metrics
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecourt_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forecourt_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		APIErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecourt_api_errors_total",
				Help: "Total number of API errors",
			},
			[]string{"error_type"},
		),

		// System metrics
		UptimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "forecourt_uptime_seconds",
				Help: "Server uptime in seconds",
			},
		),
		Goroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "forecourt_goroutines",
				Help: "Number of active goroutines",
			},
		),

		registry: reg,
	}

	// Register all metrics
	reg.MustRegister(
		m.DomainConnectTotal,
		m.DomainVerifyTotal,
		m.DomainRemoveTotal,
		m.DomainsByStatus,
		m.DNSCheckDurationSeconds,
		m.DNSLookupErrorsTotal,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.APIErrorsTotal,
		m.UptimeSeconds,
		m.Goroutines,
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetGlobal sets the global metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// IncConnect increments the connect counter for an outcome
func IncConnect(outcome string) {
	if m := Global(); m != nil {
		m.DomainConnectTotal.WithLabelValues(outcome).Inc()
	}
}

// IncVerify increments the verify counter for an outcome
func IncVerify(outcome string) {
	if m := Global(); m != nil {
		m.DomainVerifyTotal.WithLabelValues(outcome).Inc()
	}
}

// IncRemove increments the remove counter for an outcome
func IncRemove(outcome string) {
	if m := Global(); m != nil {
		m.DomainRemoveTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveDNSCheck records the duration of one verification check
func ObserveDNSCheck(seconds float64) {
	if m := Global(); m != nil {
		m.DNSCheckDurationSeconds.Observe(seconds)
	}
}

// IncDNSLookupError increments the lookup failure counter
func IncDNSLookupError(recordType string) {
	if m := Global(); m != nil {
		m.DNSLookupErrorsTotal.WithLabelValues(recordType).Inc()
	}
}
