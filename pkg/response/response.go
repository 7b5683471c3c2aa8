// Package response provides the unified API response envelope.
// All HTTP endpoints return this format so clients can rely on a single
// code/message/data shape for both success and failure.
package response

import (
	"net/http"

	"github.com/kart-io/cortex-x/pkg/errors"
)

// Response is the unified API response structure.
type Response struct {
	// Code is the business error code (0 = success)
	Code int `json:"code"`

	// Message is a human-readable message
	Message string `json:"message"`

	// Data contains the response payload (nil for errors)
	Data any `json:"data,omitempty"`

	// RequestID is the unique request identifier for tracing
	RequestID string `json:"request_id,omitempty"`

	// httpCode is the HTTP status to write, derived from the errno
	httpCode int
}

// Success creates a successful response with data.
func Success(data any) *Response {
	return &Response{
		Code:     0,
		Message:  "success",
		Data:     data,
		httpCode: http.StatusOK,
	}
}

// Err creates an error response from an Errno.
func Err(e *errors.Errno) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{
		Code:     e.Code,
		Message:  e.MessageEN,
		httpCode: e.HTTPStatus(),
	}
}

// HTTPStatus returns the HTTP status code to write for this response.
func (r *Response) HTTPStatus() int {
	if r.httpCode != 0 {
		return r.httpCode
	}
	if r.Code == 0 {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

// IsSuccess reports whether the response carries a success code.
func (r *Response) IsSuccess() bool {
	return r.Code == 0
}
