// Package metrics records per-resource request and query metrics. The
// prometheus provider is the real implementation; Noop serves tests and
// deployments that do not scrape.
package metrics

import (
	"net/http"
	"time"
)

// Provider defines the interface for metric collection
type Provider interface {
	// RecordRequest records one resource operation: resource is the
	// entity name, operation the verb (retrieve, list, create, update,
	// destroy), status the HTTP status written.
	RecordRequest(resource, operation string, status int, duration time.Duration)

	// RecordDBQuery records metrics for a database query
	RecordDBQuery(operation, table string, duration time.Duration, err error)

	// Handler returns an HTTP handler for exposing metrics (e.g., /metrics endpoint)
	Handler() http.Handler
}

// globalProvider is the global metrics provider
var globalProvider Provider

// SetProvider sets the global metrics provider
func SetProvider(p Provider) {
	globalProvider = p
}

// GetProvider returns the current metrics provider
func GetProvider() Provider {
	if globalProvider == nil {
		return Noop()
	}
	return globalProvider
}

// Noop returns a provider that records nothing.
func Noop() Provider {
	return noopProvider{}
}

type noopProvider struct{}

func (noopProvider) RecordRequest(resource, operation string, status int, duration time.Duration) {}
func (noopProvider) RecordDBQuery(operation, table string, duration time.Duration, err error)     {}
func (noopProvider) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "metrics provider not configured", http.StatusNotFound)
	})
}
