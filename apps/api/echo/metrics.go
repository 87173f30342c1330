package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// requestCount is registered at package level so every server instance
// shares the one collector; registering per server would panic on the
// second NewServer call.
var requestCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "darasa_http_requests_total",
	Help: "Count of handled HTTP requests by method, route and status.",
}, []string{"method", "path", "status"})

// countRequests records every handled request. Errors are dispatched to
// the error handler here so the final status code is known when the
// counter is bumped.
func countRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if err := next(ctx); err != nil {
			ctx.Error(err)
		}

		path := ctx.Path() // route template, not the raw URL, to bound cardinality
		if path == "" {
			path = ctx.Request().URL.Path
		}
		status := strconv.Itoa(ctx.Response().Status)
		requestCount.WithLabelValues(ctx.Request().Method, path, status).Inc()
		return nil
	}
}
