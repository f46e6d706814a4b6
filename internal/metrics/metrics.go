package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts handled HTTP requests.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// RequestLatency observes HTTP handling time.
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_requests_latency_seconds",
			Help:    "Latency of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	// UserMutations counts committed user writes by operation (create|edit|delete|seed).
	UserMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "user_mutations_total",
			Help: "Total committed user mutations",
		},
		[]string{"op"},
	)

	// ValidationFailures counts rejected form submissions by operation.
	ValidationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "user_validation_failures_total",
			Help: "Total rejected user form submissions",
		},
		[]string{"op"},
	)

	registerOnce sync.Once
)

// Init registers the collectors with the default registry. Safe to call twice.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestsTotal, RequestLatency, UserMutations, ValidationFailures)
	})
}

// Handler serves /metrics.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// Middleware records count and latency per matched route.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			labels := []string{route, c.Request().Method, strconv.Itoa(status)}
			RequestsTotal.WithLabelValues(labels...).Inc()
			RequestLatency.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
