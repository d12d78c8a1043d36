package metrics_test

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-container/framework/container"
	"github.com/km-arc/go-container/framework/metrics"
)

func TestCollector_CountsResolutions(t *testing.T) {
	m := metrics.NewCollector("test")
	c := container.New()
	m.Attach(c)

	require.NoError(t, c.Share("cache", func(*container.Container) (any, error) { return "redis", nil }))
	require.NoError(t, c.Set("ids", func(*container.Container) (any, error) { return 1, nil }))

	for range 3 {
		_, err := c.Get("cache")
		require.NoError(t, err)
		_, err = c.Get("ids")
		require.NoError(t, err)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("cache")), "shared resources resolve once")
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("ids")))
}

func TestCollector_ObserveError(t *testing.T) {
	m := metrics.NewCollector("test")
	c := container.New()
	require.NoError(t, c.Protect("locked", 1))

	_, err := c.Get("missing")
	m.ObserveError(err)
	m.ObserveError(c.Set("locked", 2))
	m.ObserveError(&container.DependencyResolutionError{Reason: container.ReasonCircular, Class: "A"})
	m.ObserveError(fmt.Errorf("wrapped: %w", errors.New("boom")))
	m.ObserveError(nil)

	tests := map[string]float64{
		"key_not_found": 1,
		"protected_key": 1,
		"circular":      1,
		"other":         1,
	}
	for reason, want := range tests {
		assert.Equal(t, want, testutil.ToFloat64(m.ResolutionErrors.WithLabelValues(reason)), reason)
	}
}

func TestReason_WrappedDependencyError(t *testing.T) {
	err := fmt.Errorf("resolving tag: %w", &container.DependencyResolutionError{Reason: container.ReasonScalar})
	assert.Equal(t, "scalar", metrics.Reason(err))
}

func TestCollector_HandlerExposesMetrics(t *testing.T) {
	m := metrics.NewCollector("demo")
	c := container.New()
	m.Attach(c)
	require.NoError(t, c.Set("a", 1))
	c.Alias("b", "a")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body, _ := io.ReadAll(rr.Body)
	assert.Contains(t, string(body), "demo_registered_keys 2")
}

func TestCollector_Middleware(t *testing.T) {
	m := metrics.NewCollector("demo")

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/services/{key}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) })
	r.Get("/healthz", func(http.ResponseWriter, *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/services/cache", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/services/db", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/services/{key}", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/healthz", "200")))
}
