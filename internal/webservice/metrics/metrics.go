// Package metrics provides middleware collecting HTTP metrics of the lead intake service, to be scraped by Prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type label string

// LabelRoute is the context key holding the route label of a request.
const LabelRoute label = "route"

// Middleware collects HTTP request metrics.
type Middleware struct {
	buckets  []float64
	registry prometheus.Registerer
}

// New creates a new Middleware registering its collectors on registry.
func New(registry prometheus.Registerer) *Middleware {
	return &Middleware{
		// Leads wait on two upstream calls, so allow up to ~41s.
		buckets:  prometheus.ExponentialBuckets(0.01, 2, 13),
		registry: registry,
	}
}

// Monitor wraps handler to count requests, time them and measure their size.
//
// Requests are labeled with the route set by ApplyLabels, or "unknown" if the handler never set one.
func (m *Middleware) Monitor(handlerName string, handler http.Handler) http.HandlerFunc {
	reg := prometheus.WrapRegistererWith(prometheus.Labels{"handler": handlerName}, m.registry)
	labels := []string{"method", "code", string(LabelRoute)}

	requestsTotal := promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Tracks the number of HTTP requests.",
		}, labels,
	)
	requestDuration := promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Tracks the latencies for HTTP requests.",
			Buckets: m.buckets,
		},
		labels,
	)
	requestSize := promauto.With(reg).NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "http_request_size_bytes",
			Help: "Tracks the size of HTTP requests.",
		},
		labels,
	)

	routeLabel := promhttp.WithLabelFromCtx(string(LabelRoute), routeLabelFromCtx)
	base := promhttp.InstrumentHandlerCounter(
		requestsTotal,
		promhttp.InstrumentHandlerDuration(
			requestDuration,
			promhttp.InstrumentHandlerRequestSize(requestSize, handler, routeLabel),
			routeLabel,
		),
		routeLabel,
	)

	return func(w http.ResponseWriter, r *http.Request) {
		// Inner handlers may run on a copy of r, so the label is shared through a pointer.
		var route string
		base.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), LabelRoute, &route)))
	}
}

func routeLabelFromCtx(ctx context.Context) string {
	if route, ok := ctx.Value(LabelRoute).(*string); ok && *route != "" {
		return *route
	}
	return "unknown"
}

// ApplyLabels records the matched route pattern of r, or its path when no pattern matched, as the route label.
// It is a no-op outside of a monitored handler.
func ApplyLabels(r *http.Request) {
	route := r.Pattern
	if route == "" {
		route = r.URL.Path
	}
	if holder, ok := r.Context().Value(LabelRoute).(*string); ok {
		*holder = route
	}
}

// HandlerApplyLabels is a middleware helper function to apply labels to an HTTP handler.
func HandlerApplyLabels(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ApplyLabels(r)
		handler.ServeHTTP(w, r)
	})
}
