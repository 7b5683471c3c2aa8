// Package handler provides the query service HTTP handlers.
package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/cortex-x/internal/pkg/httputils"
	"github.com/kart-io/cortex-x/internal/query/biz"
	"github.com/kart-io/cortex-x/pkg/errors"
	"github.com/kart-io/cortex-x/pkg/validator"
)

// QueryHandler serves retrieval queries.
type QueryHandler struct {
	service *biz.Service
}

// NewQueryHandler creates a QueryHandler.
func NewQueryHandler(service *biz.Service) *QueryHandler {
	return &QueryHandler{service: service}
}

// Query runs one retrieval query and returns the assembled context with
// its diagnostics manifest.
func (h *QueryHandler) Query(c *gin.Context) {
	var req biz.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrInvalidQuery.WithCause(validator.Translate(err)), nil)
		return
	}

	result, err := h.service.Query(c.Request.Context(), &req)
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, result)
}

// ClearCache invalidates cached query results. With a tenant_id query
// parameter only that tenant's entries are swept.
func (h *QueryHandler) ClearCache(c *gin.Context) {
	removed, err := h.service.ClearCache(c.Request.Context(), c.Query("tenant_id"))
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, gin.H{"removed": removed})
}
