package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/rentease_backend/appctx"
	"github.com/mmdatafocus/rentease_backend/utils"
)

const correlationHeader = "X-Correlation-Id"

// CorrelationMiddleware threads a correlation id through the request context
// so receipts, log lines and outbox events for one request share an id. The
// caller's header wins; otherwise one is minted and echoed back.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Request.Header.Get(correlationHeader)
		if id == "" {
			id = utils.NewCorrelationId()
		}
		ctx := appctx.Set(c.Request.Context(), appctx.ContextKeyCorrelationId, id)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(correlationHeader, id)
		c.Next()
	}
}
