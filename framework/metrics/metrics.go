// Package metrics exposes container activity as Prometheus metrics on a
// private registry.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/km-arc/go-container/framework/container"
)

// Collector holds the Prometheus metrics for one application.
type Collector struct {
	registry  *prometheus.Registry
	namespace string

	// Container metrics
	Resolutions      *prometheus.CounterVec
	ResolutionErrors *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewCollector creates a collector whose metrics live under namespace.
func NewCollector(namespace string) *Collector {
	m := &Collector{
		registry:  prometheus.NewRegistry(),
		namespace: namespace,
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_total",
				Help:      "Instances produced by factories and autowiring, by key.",
			},
			[]string{"key"},
		),
		ResolutionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolution_errors_total",
				Help:      "Failed resolutions, by reason.",
			},
			[]string{"reason"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
	m.registry.MustRegister(m.Resolutions, m.ResolutionErrors, m.HTTPRequests, m.HTTPDuration)
	return m
}

// Registry returns the private registry.
func (m *Collector) Registry() *prometheus.Registry { return m.registry }

// Attach counts every instance c produces and exports the number of
// registered keys as a gauge. Attach a container once.
func (m *Collector) Attach(c *container.Container) {
	c.AfterResolving(func(key string, _ any) {
		m.Resolutions.WithLabelValues(key).Inc()
	})
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Name:      "registered_keys",
			Help:      "Keys and aliases registered in the container.",
		},
		func() float64 { return float64(len(c.Keys())) },
	))
}

// ObserveError counts err under its reason label. Nil is ignored.
func (m *Collector) ObserveError(err error) {
	if err != nil {
		m.ResolutionErrors.WithLabelValues(Reason(err)).Inc()
	}
}

// Reason maps a container error to a metric label.
func Reason(err error) string {
	var dre *container.DependencyResolutionError
	switch {
	case errors.As(err, &dre):
		return string(dre.Reason)
	case errors.Is(err, container.ErrKeyNotFound):
		return "key_not_found"
	case errors.Is(err, container.ErrProtectedKey):
		return "protected_key"
	default:
		return "other"
	}
}

// Middleware records request counts and latency by chi route pattern.
func (m *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
