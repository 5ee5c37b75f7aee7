package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusProviderIsolatedRegistries(t *testing.T) {
	// Two providers must be constructible side by side when each gets
	// its own registry.
	regA := prometheus.NewRegistry()
	regB := prometheus.NewRegistry()

	a := NewPrometheusProvider(regA)
	require.NotPanics(t, func() { NewPrometheusProvider(regB) })

	a.RecordRequest("posts", "list", 200, 5*time.Millisecond)
	a.RecordRequest("posts", "list", 200, 5*time.Millisecond)
	a.RecordDBQuery("SELECT", "posts", time.Millisecond, nil)
	a.RecordDBQuery("INSERT", "posts", time.Millisecond, errors.New("boom"))

	assert.Equal(t, float64(2), testutil.ToFloat64(
		a.requestTotal.WithLabelValues("posts", "list", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		a.dbQueryTotal.WithLabelValues("SELECT", "posts", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		a.dbQueryTotal.WithLabelValues("INSERT", "posts", "error")))

	// Nothing leaked into the second registry.
	count, err := testutil.GatherAndCount(regB, "viewspec_requests_total")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPrometheusProviderHandlerServesOwnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheusProvider(reg)
	p.RecordRequest("tags", "retrieve", 404, time.Millisecond)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	p.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "viewspec_requests_total")
}
