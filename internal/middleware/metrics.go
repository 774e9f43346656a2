package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/interview-rescheduler/internal/service"
)

// unmatchedRoute labels requests gin could not route, keeping the path label bounded.
const unmatchedRoute = "unmatched"

type requestObserver interface {
	ObserveHTTPRequest(method, path string, status int, duration time.Duration)
}

// Metrics records method, route pattern, status and latency of every request
// except the scrapes of skipPaths.
func Metrics(metricsSvc *service.MetricsService, skipPaths ...string) gin.HandlerFunc {
	if metricsSvc == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return observe(metricsSvc, skipPaths)
}

func observe(obs requestObserver, skipPaths []string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if _, ok := skip[path]; ok {
			return
		}
		if path == "" {
			path = unmatchedRoute
		}
		obs.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
