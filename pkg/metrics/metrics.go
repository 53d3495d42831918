package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadboard_http_requests_total",
			Help: "Total HTTP requests by method, path and status code.",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadboard_http_request_duration_seconds",
			Help:    "HTTP request latency by method and path.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	importedLeads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadboard_imported_leads_total",
			Help: "Leads processed by the import pipeline, by outcome.",
		},
		[]string{"outcome"},
	)

	syncAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadboard_crm_sync_attempts_total",
			Help: "CRM sync pushes, by outcome.",
		},
		[]string{"outcome"},
	)
)

// RecordImport counts an import outcome, "imported" or "failed".
func RecordImport(outcome string, n int) {
	importedLeads.WithLabelValues(outcome).Add(float64(n))
}

// RecordSync counts a CRM sync attempt outcome, "ok" or "error".
func RecordSync(outcome string) {
	syncAttempts.WithLabelValues(outcome).Inc()
}

// Middleware records per-request counters and latency histograms.
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

			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}

			requestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			requestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
