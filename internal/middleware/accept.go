package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// AcceptRewriteMiddleware patches absent or wildcard Accept headers on the
// streaming descriptor path. Some MCP clients omit the header and would
// otherwise be rejected by transports that negotiate event streams.
func AcceptRewriteMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasSuffix(c.Request.URL.Path, "/sse") {
			accept := strings.TrimSpace(c.GetHeader("Accept"))
			if accept == "" || accept == "*/*" {
				c.Request.Header.Set("Accept", "application/json, text/event-stream")
			}
		}
		c.Next()
	}
}
