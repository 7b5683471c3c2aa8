// Package middleware provides the gin middleware shared by all services.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/cortex-x/pkg/id"
)

// HeaderXRequestID is the request ID header name.
const HeaderXRequestID = "X-Request-ID"

// RequestIDKey is the gin context key holding the request ID.
const RequestIDKey = "request_id"

// RequestID assigns each request a unique ID, honoring an ID supplied by the
// caller. The ID is echoed in the response header and stored in the context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderXRequestID)
		if requestID == "" {
			requestID = id.NewRequestID()
		}

		c.Set(RequestIDKey, requestID)
		c.Header(HeaderXRequestID, requestID)
		c.Next()
	}
}

// GetRequestID returns the request ID from the gin context, or "".
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(RequestIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
