package middleware

import (
	"time"

	"ingredient-detector/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics 記錄請求數與延遲；未註冊的路由歸為 unmatched
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
