// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of http request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)

	CalendarRenders = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calendar_grid_builds_total",
		Help: "Month grids built for the calendar",
	})
	CalendarSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calendar_sessions_skipped_total",
		Help: "Sessions left out of a grid because they have no start time",
	})
	Cancellations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_cancellations_total",
			Help: "Cancel attempts by result",
		},
		[]string{"result"},
	)
	ParticipantFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "participant_fetch_failures_total",
		Help: "Participant list loads that failed and fell back to an empty list",
	})
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_events_published_total",
			Help: "session.cancelled events by publish result",
		},
		[]string{"result"},
	)
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the token bucket",
		},
		[]string{"path"},
	)
	OpenViews = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "session_detail_views_open",
		Help: "Detail views currently held by the API",
	})
)

// Middleware records request counts and latencies by route template.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			labels := prometheus.Labels{
				"method":      c.Request().Method,
				"path":        c.Path(),
				"status_code": strconv.Itoa(status),
			}
			HTTPRequestTotal.With(labels).Inc()
			HTTPRequestDuration.With(labels).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
