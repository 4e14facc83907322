package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/hackrf-stream/internal/observability/metrics"
)

// StatusKey is the context key under which handlers store the driver status name
// of a failed call.
const StatusKey = "hackrf_status"

// NewMetrics records request counts, latency and response size into m.
// Requests are labelled by route pattern to keep cardinality bounded.
func NewMetrics(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}

			start := time.Now()
			m.RequestStarted()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			method, path := c.Request().Method, c.Path()
			m.RecordHTTPRequest(method, path, c.Response().Status,
				time.Since(start).Seconds(), c.Response().Size)
			if status, ok := c.Get(StatusKey).(string); ok {
				m.RecordHTTPRequestError(method, path, status)
			}
			return nil
		}
	}
}
