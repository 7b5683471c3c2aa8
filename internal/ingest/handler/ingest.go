// Package handler provides the ingest service HTTP handlers.
package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/cortex-x/internal/ingest/biz"
	"github.com/kart-io/cortex-x/internal/pkg/httputils"
	"github.com/kart-io/cortex-x/internal/pkg/model"
	"github.com/kart-io/cortex-x/pkg/errors"
	"github.com/kart-io/cortex-x/pkg/validator"
)

// IngestHandler serves source item submission and lifecycle endpoints.
type IngestHandler struct {
	pipeline *biz.Pipeline
}

// NewIngestHandler creates an IngestHandler.
func NewIngestHandler(pipeline *biz.Pipeline) *IngestHandler {
	return &IngestHandler{pipeline: pipeline}
}

// submitRequest is the POST body for source item submission.
type submitRequest struct {
	ID          string         `json:"id" binding:"required"`
	TenantID    string         `json:"tenant_id" binding:"required"`
	ContentType string         `json:"content_type" binding:"required"`
	Content     string         `json:"content" binding:"required"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Submit enqueues a source item for ingestion. The pipeline runs
// asynchronously; poll the status endpoint for progress.
func (h *IngestHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithCause(validator.Translate(err)), nil)
		return
	}

	item := &model.SourceItem{
		ID:          req.ID,
		TenantID:    req.TenantID,
		ContentType: model.ContentType(req.ContentType),
		Content:     req.Content,
		Metadata:    req.Metadata,
	}
	if err := h.pipeline.Submit(item); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	status, err := h.pipeline.Status(item.ID)
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, status)
}

// Status returns the pipeline state of a source item.
func (h *IngestHandler) Status(c *gin.Context) {
	status, err := h.pipeline.Status(c.Param("id"))
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, status)
}

// Delete cancels any in-flight ingestion of a source item and cascades the
// removal of its chunks, vectors and graph evidence.
func (h *IngestHandler) Delete(c *gin.Context) {
	if err := h.pipeline.Delete(c.Request.Context(), c.Param("id")); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, gin.H{"deleted": c.Param("id")})
}
