// Package biz implements the query pipeline: plan, retrieve, build. The
// pipeline prefers partial answers over failures; only an empty plan or an
// invalid request errors out.
package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/cortex-x/internal/pkg/model"
	"github.com/kart-io/cortex-x/pkg/errors"
	retrieveropts "github.com/kart-io/cortex-x/pkg/options/retriever"
)

// QueryRequest is one retrieval query.
type QueryRequest struct {
	Query     string               `json:"query" binding:"required,min=1,max=500"`
	Mode      model.RetrievalMode  `json:"mode,omitempty" binding:"omitempty,oneof=auto vector hybrid agentic"`
	TenantID  string               `json:"tenant_id,omitempty"`
	MaxTokens int                  `json:"max_tokens,omitempty" binding:"omitempty,min=1"`
	MaxBlocks int                  `json:"max_blocks,omitempty" binding:"omitempty,min=1"`
	Rerank    model.RerankStrategy `json:"rerank,omitempty" binding:"omitempty,oneof=score_based reciprocal_rank_fusion diversity_aware recency_biased"`
	Filters   *model.QueryFilters  `json:"filters,omitempty"`
}

// SourceRef points a consumer back at one contributing source.
type SourceRef struct {
	SourceID   string  `json:"source_id"`
	SourceType string  `json:"source_type"`
	Score      float64 `json:"score"`
}

// QueryResult is the assembled answer context plus its provenance. The
// answer context keeps its block structure so consumers see per-block
// sources and token counts.
type QueryResult struct {
	AnswerContext []model.ContextBlock   `json:"answer_context"`
	ModeUsed      model.RetrievalMode    `json:"mode_used"`
	Sources       []SourceRef            `json:"sources"`
	Confidence    float64                `json:"confidence"`
	QueryTimeMS   int64                  `json:"query_time_ms"`
	TotalTokens   int                    `json:"total_tokens"`
	Truncated     bool                   `json:"truncated"`
	Cached        bool                   `json:"cached,omitempty"`
	Diagnostics   []model.StepDiagnostic `json:"diagnostics"`
}

// Service runs queries end to end.
type Service struct {
	planner   *Planner
	retriever *Retriever
	builder   *ContextBuilder
	cache     *QueryCache
	opts      *retrieveropts.Options
}

// NewService wires the query pipeline.
func NewService(planner *Planner, retriever *Retriever, builder *ContextBuilder, cache *QueryCache, opts *retrieveropts.Options) *Service {
	if opts == nil {
		opts = retrieveropts.NewOptions()
	}
	return &Service{
		planner:   planner,
		retriever: retriever,
		builder:   builder,
		cache:     cache,
		opts:      opts,
	}
}

// Query plans, retrieves, and builds context for one request under the
// query deadline. Step failures surface as diagnostics on a partial
// result, not as errors.
func (s *Service) Query(ctx context.Context, req *QueryRequest) (*QueryResult, error) {
	if n := len(strings.TrimSpace(req.Query)); n == 0 || n > 500 {
		return nil, errors.ErrInvalidQuery.WithMessagef("query length must be 1..500 characters, got %d", len(req.Query))
	}

	plan := s.planner.Plan(req.Query, req.Mode, req.MaxTokens, req.MaxBlocks, req.Rerank)
	if len(plan.Steps) == 0 {
		return &QueryResult{ModeUsed: plan.Mode, Confidence: 0}, errors.ErrEmptyPlan
	}

	cacheKey := s.cache.Key(req.TenantID, req.Query, req.Filters, plan.Mode, plan.MaxBlocks)
	if cached := s.cache.Get(ctx, cacheKey); cached != nil {
		logger.Debugw("query served from cache", "tenant_id", req.TenantID, "mode", string(plan.Mode))
		return cached, nil
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryDeadline)
	defer cancel()

	blocks, diags := s.retriever.Retrieve(ctx, plan, req.Query, req.TenantID, req.Filters)
	confidence := confidenceOf(blocks)
	built := s.builder.Build(blocks, plan)

	result := &QueryResult{
		AnswerContext: built.Blocks,
		ModeUsed:      plan.Mode,
		Sources:       sourcesOf(built.Blocks),
		Confidence:    confidence,
		QueryTimeMS:   time.Since(start).Milliseconds(),
		TotalTokens:   built.TotalTokens,
		Truncated:     built.Truncated,
		Diagnostics:   diags,
	}

	s.cache.Set(ctx, cacheKey, result)
	logger.Infow("query completed",
		"tenant_id", req.TenantID,
		"mode", string(plan.Mode),
		"blocks", len(built.Blocks),
		"tokens", built.TotalTokens,
		"confidence", confidence,
		"duration_ms", result.QueryTimeMS)
	return result, nil
}

// ClearCache invalidates cached results for a tenant, or every tenant
// when tenantID is empty.
func (s *Service) ClearCache(ctx context.Context, tenantID string) (int64, error) {
	return s.cache.Clear(ctx, tenantID)
}

// confidenceOf scores the result by the mean of the top three retrieval
// scores, clamped to [0, 1]. No blocks means no confidence.
func confidenceOf(blocks []model.ContextBlock) float64 {
	if len(blocks) == 0 {
		return 0
	}
	scored := make([]model.ContextBlock, len(blocks))
	copy(scored, blocks)
	sortByScore(scored)

	n := 3
	if len(scored) < n {
		n = len(scored)
	}
	var sum float64
	for _, b := range scored[:n] {
		sum += b.Score
	}
	c := sum / float64(n)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func sourcesOf(blocks []model.ContextBlock) []SourceRef {
	refs := make([]SourceRef, 0, len(blocks))
	for _, b := range blocks {
		refs = append(refs, SourceRef{SourceID: b.SourceID, SourceType: b.SourceType, Score: b.Score})
	}
	return refs
}
