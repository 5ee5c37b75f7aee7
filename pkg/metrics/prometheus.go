package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusProvider implements the Provider interface using Prometheus
type PrometheusProvider struct {
	registerer prometheus.Registerer

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec
	dbQueryTotal    *prometheus.CounterVec
}

// NewPrometheusProvider creates a new Prometheus metrics provider.
// Metrics register against reg; passing nil uses the default registry.
// Constructing two providers on the same registry panics on duplicate
// registration, so tests should pass their own prometheus.NewRegistry().
func NewPrometheusProvider(reg prometheus.Registerer) *PrometheusProvider {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusProvider{
		registerer: reg,
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "viewspec_request_duration_seconds",
				Help:    "Resource operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"resource", "operation", "status"},
		),
		requestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "viewspec_requests_total",
				Help: "Total number of resource operations",
			},
			[]string{"resource", "operation", "status"},
		),
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "viewspec_db_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),
		dbQueryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "viewspec_db_queries_total",
				Help: "Total number of database queries",
			},
			[]string{"operation", "table", "status"},
		),
	}
}

// RecordRequest implements Provider interface
func (p *PrometheusProvider) RecordRequest(resource, operation string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	p.requestDuration.WithLabelValues(resource, operation, code).Observe(duration.Seconds())
	p.requestTotal.WithLabelValues(resource, operation, code).Inc()
}

// RecordDBQuery implements Provider interface
func (p *PrometheusProvider) RecordDBQuery(operation, table string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	p.dbQueryTotal.WithLabelValues(operation, table, status).Inc()
}

// Handler implements Provider interface. It serves the provider's own
// registry when one was supplied, the default registry otherwise.
func (p *PrometheusProvider) Handler() http.Handler {
	if gatherer, ok := p.registerer.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}
