package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/teresa-solution/tenant-provisioning-service/internal/monitoring"
)

// Metrics records request counts and latencies per route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		monitoring.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		monitoring.HTTPDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
