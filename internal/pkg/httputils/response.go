// Package httputils provides HTTP utility functions shared by the service
// handlers.
package httputils

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/cortex-x/pkg/errors"
	"github.com/kart-io/cortex-x/pkg/response"
)

// WriteResponse writes the response to the client. It handles both success
// and error cases, ensuring a consistent envelope.
func WriteResponse(c *gin.Context, err error, data any) {
	if err != nil {
		resp := response.Err(errors.FromError(err))
		if rid := c.GetString(RequestIDKey); rid != "" {
			resp.RequestID = rid
		}
		c.JSON(resp.HTTPStatus(), resp)
		return
	}

	resp := response.Success(data)
	if rid := c.GetString(RequestIDKey); rid != "" {
		resp.RequestID = rid
	}
	c.JSON(resp.HTTPStatus(), resp)
}

// RequestIDKey is the gin context key carrying the per-request id.
const RequestIDKey = "request_id"
