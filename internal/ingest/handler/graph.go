package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/cortex-x/internal/extractor"
	"github.com/kart-io/cortex-x/internal/pkg/httputils"
	"github.com/kart-io/cortex-x/internal/pkg/model"
	"github.com/kart-io/cortex-x/pkg/errors"
	"github.com/kart-io/cortex-x/pkg/validator"
)

// GraphHandler serves the observe-by-ID endpoint for external
// collaborators that chunk and persist on their own.
type GraphHandler struct {
	extractor *extractor.Extractor
}

// NewGraphHandler creates a GraphHandler.
func NewGraphHandler(ex *extractor.Extractor) *GraphHandler {
	return &GraphHandler{extractor: ex}
}

// observeRequest is the POST body for graph observation. Chunks are
// referenced by id only; text is hydrated from the durable store.
type observeRequest struct {
	TenantID string           `json:"tenant_id,omitempty"`
	SourceID string           `json:"source_id,omitempty"`
	Chunks   []model.ChunkRef `json:"chunks" binding:"required"`
}

// Observe extracts entities, relationships and evidence from the referenced
// chunks. Chunks that fail extraction are skipped; the stats report how many
// were processed.
func (h *GraphHandler) Observe(c *gin.Context) {
	var req observeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithCause(validator.Translate(err)), nil)
		return
	}
	if len(req.Chunks) == 0 {
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithMessage("chunks must not be empty"), nil)
		return
	}

	stats, err := h.extractor.Observe(c.Request.Context(), req.TenantID, req.SourceID, req.Chunks)
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, stats)
}
