package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	applogger "StratEngine/pkg/logger"
)

// HTTPMetrics holds the request collectors for one registry.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// reuse returns the collector already registered under the same name, so
// several servers may share one registry.
func reuse[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// NewHTTPMetrics registers request metrics on reg.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &HTTPMetrics{
		requests: reuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strat_http_requests_total",
			Help: "Query API requests by route template and status.",
		}, []string{"route", "method", "status"})),
		duration: reuse(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "strat_http_request_duration_seconds",
			Help:    "Query API latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"route", "method"})),
		inFlight: reuse(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "strat_http_in_flight_requests",
			Help: "Query API requests being served.",
		})),
	}
}

// Middleware labels requests by echo route template so symbols and query
// strings never become label values. Requests slower than slow are logged.
func (m *HTTPMetrics) Middleware(l *applogger.Logger, slow time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.inFlight.Inc()
			defer m.inFlight.Dec()
			start := time.Now()

			if err := next(c); err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := c.Response().Status
			elapsed := time.Since(start)

			m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			m.duration.WithLabelValues(route, method).Observe(elapsed.Seconds())
			if l != nil && slow > 0 && elapsed >= slow {
				l.Warn("http request slow",
					applogger.String("route", route),
					applogger.Int("status", status),
					applogger.Duration("elapsed", elapsed))
			}
			return nil
		}
	}
}
