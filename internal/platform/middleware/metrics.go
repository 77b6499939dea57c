package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics holds the request instruments. Labels use the route template,
// never the raw path, so lbp values do not create new series.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patientrecords",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "patientrecords",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := strconv.Itoa(responseStatus(c, err))

			m.requests.WithLabelValues(method, route, status).Inc()
			m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// AccessCounter is an AuditRecorder that counts patient accesses by action
// and status class.
type AccessCounter struct {
	accesses *prometheus.CounterVec
}

func NewAccessCounter(reg prometheus.Registerer) *AccessCounter {
	a := &AccessCounter{
		accesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patientrecords",
			Subsystem: "audit",
			Name:      "patient_access_total",
			Help:      "Audited patient accesses by action and status class.",
		}, []string{"action", "status_class"}),
	}
	reg.MustRegister(a.accesses)
	return a
}

func (a *AccessCounter) RecordAccess(entry AuditEntry) error {
	a.accesses.WithLabelValues(entry.Action, statusClass(entry.StatusCode)).Inc()
	return nil
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
