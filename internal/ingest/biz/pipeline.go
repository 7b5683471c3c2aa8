// Package biz implements the ingest pipeline business logic.
package biz

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"

	"github.com/kart-io/cortex-x/internal/chunker"
	"github.com/kart-io/cortex-x/internal/embedding"
	"github.com/kart-io/cortex-x/internal/extractor"
	"github.com/kart-io/cortex-x/internal/pkg/model"
	"github.com/kart-io/cortex-x/pkg/errors"
	ingestopts "github.com/kart-io/cortex-x/pkg/options/ingest"
	"github.com/kart-io/cortex-x/pkg/store/chunkstore"
	"github.com/kart-io/cortex-x/pkg/store/graphstore"
	"github.com/kart-io/cortex-x/pkg/store/vectorstore"
)

// Stage names one phase of the ingest pipeline.
type Stage string

const (
	StageReceived   Stage = "received"
	StageChunking   Stage = "chunking"
	StageEmbedding  Stage = "embedding"
	StageExtracting Stage = "extracting"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// ItemStatus is the externally visible pipeline state of one source item.
type ItemStatus struct {
	SourceItemID string                  `json:"source_item_id"`
	TenantID     string                  `json:"tenant_id"`
	Stage        Stage                   `json:"stage"`
	Error        string                  `json:"error,omitempty"`
	ChunkCount   int                     `json:"chunk_count"`
	GraphStats   *extractor.ObserveStats `json:"graph_stats,omitempty"`
	SubmittedAt  time.Time               `json:"submitted_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

// itemState is the pipeline-internal state for one item. Stage outputs are
// kept here so a retried submission resumes instead of redoing finished work.
type itemState struct {
	item      *model.SourceItem
	status    ItemStatus
	cancel    context.CancelFunc
	completed map[Stage]bool
	chunks    []model.Chunk
}

// Pipeline runs source items through chunking, embedding and extraction on a
// shared worker pool.
type Pipeline struct {
	chunker    *chunker.Chunker
	embedder   *embedding.Service
	extractor  *extractor.Extractor
	chunks     chunkstore.Store
	vectors    vectorstore.Store
	graph      graphstore.Store
	opts       *ingestopts.Options
	collection string
	dimension  int

	pool *ants.Pool

	mu    sync.RWMutex
	items map[string]*itemState
}

// NewPipeline creates a pipeline with its worker pool.
func NewPipeline(
	ck *chunker.Chunker,
	embedder *embedding.Service,
	ex *extractor.Extractor,
	chunks chunkstore.Store,
	vectors vectorstore.Store,
	graph graphstore.Store,
	opts *ingestopts.Options,
	collection string,
	dimension int,
) (*Pipeline, error) {
	if opts == nil {
		opts = ingestopts.NewOptions()
	}

	pool, err := ants.NewPool(opts.Workers, ants.WithPanicHandler(func(p any) {
		logger.Errorw("ingest worker panic recovered", "panic", p)
	}))
	if err != nil {
		return nil, errors.ErrInternal.WithCause(err)
	}

	return &Pipeline{
		chunker:    ck,
		embedder:   embedder,
		extractor:  ex,
		chunks:     chunks,
		vectors:    vectors,
		graph:      graph,
		opts:       opts,
		collection: collection,
		dimension:  dimension,
		pool:       pool,
		items:      make(map[string]*itemState),
	}, nil
}

// Close stops the worker pool. In-flight items finish their current stage.
func (p *Pipeline) Close() {
	p.pool.Release()
}

// Submit enqueues a source item. A resubmitted item resumes at its first
// incomplete stage; an item already in flight is rejected.
func (p *Pipeline) Submit(item *model.SourceItem) error {
	if item.ID == "" || item.TenantID == "" {
		return errors.ErrInvalidParam.WithMessage("source item id and tenant_id are required")
	}
	if !item.ContentType.Valid() {
		return errors.ErrUnsupportedContentType.WithMessagef("content type %q", item.ContentType)
	}

	p.mu.Lock()
	st, ok := p.items[item.ID]
	if ok && st.status.Stage != StageDone && st.status.Stage != StageFailed {
		p.mu.Unlock()
		return errors.ErrInvalidParam.WithMessagef("source item %s is already being ingested", item.ID)
	}
	if !ok {
		st = &itemState{completed: make(map[Stage]bool)}
		p.items[item.ID] = st
	}
	ctx, cancel := context.WithCancel(context.Background())
	st.item = item
	st.cancel = cancel
	st.status = ItemStatus{
		SourceItemID: item.ID,
		TenantID:     item.TenantID,
		Stage:        StageReceived,
		ChunkCount:   st.status.ChunkCount,
		SubmittedAt:  time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	p.mu.Unlock()

	if err := p.pool.Submit(func() { p.run(ctx, st) }); err != nil {
		cancel()
		p.setFailed(st, errors.ErrInternal.WithCause(err))
		return errors.ErrInternal.WithCause(err)
	}
	return nil
}

// Status returns a copy of the pipeline state for a source item.
func (p *Pipeline) Status(sourceItemID string) (*ItemStatus, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st, ok := p.items[sourceItemID]
	if !ok {
		return nil, errors.ErrSourceNotFound.WithMessagef("source item %s", sourceItemID)
	}
	status := st.status
	return &status, nil
}

// Delete cancels any in-flight run and cascades the removal of a source
// item's chunks, vectors and graph evidence.
func (p *Pipeline) Delete(ctx context.Context, sourceItemID string) error {
	p.mu.Lock()
	if st, ok := p.items[sourceItemID]; ok && st.cancel != nil {
		st.cancel()
	}
	delete(p.items, sourceItemID)
	p.mu.Unlock()

	count, err := p.chunks.CountBySource(ctx, sourceItemID)
	if err != nil {
		return err
	}

	// Chunk ids are deterministic in (source item, index), so the stored
	// set is recoverable from the count alone.
	chunkIDs := make([]uuid.UUID, 0, count)
	for i := 0; i < int(count); i++ {
		chunkIDs = append(chunkIDs, model.ChunkIDFor(sourceItemID, i))
	}

	if err := p.graph.DeleteByChunks(ctx, chunkIDs); err != nil {
		return err
	}
	filter := vectorstore.NewFilter().Eq("source_item_id", sourceItemID)
	if err := p.vectors.DeleteByFilter(ctx, p.collection, filter); err != nil {
		return err
	}
	if err := p.chunks.DeleteBySource(ctx, sourceItemID); err != nil {
		return err
	}

	logger.Infow("source item deleted", "source_item_id", sourceItemID, "chunks", count)
	return nil
}

// run drives one item through its remaining stages. Cancellation is observed
// at stage boundaries; a finished stage is never undone.
func (p *Pipeline) run(ctx context.Context, st *itemState) {
	stages := []struct {
		stage Stage
		fn    func(context.Context, *itemState) error
	}{
		{StageChunking, p.stageChunk},
		{StageEmbedding, p.stageEmbed},
		{StageExtracting, p.stageExtract},
	}

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			p.setFailed(st, err)
			return
		}
		p.mu.Lock()
		done := st.completed[s.stage]
		if !done {
			st.status.Stage = s.stage
			st.status.UpdatedAt = time.Now().UTC()
		}
		p.mu.Unlock()
		if done {
			continue
		}

		if err := p.retryStage(ctx, st, s.stage, s.fn); err != nil {
			p.setFailed(st, err)
			return
		}

		p.mu.Lock()
		st.completed[s.stage] = true
		p.mu.Unlock()
	}

	p.mu.Lock()
	st.status.Stage = StageDone
	st.status.Error = ""
	st.status.UpdatedAt = time.Now().UTC()
	p.mu.Unlock()
	logger.Infow("ingest finished",
		"source_item_id", st.item.ID,
		"tenant_id", st.item.TenantID,
		"chunks", len(st.chunks),
	)
}

// retryStage runs one stage with exponential backoff. Errors that reject the
// input outright are not retried.
func (p *Pipeline) retryStage(ctx context.Context, st *itemState, stage Stage, fn func(context.Context, *itemState) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(p.opts.RetryBaseDelay, p.opts.RetryMaxDelay, attempt)
			logger.Warnw("retrying ingest stage",
				"source_item_id", st.item.ID,
				"stage", stage,
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		lastErr = fn(ctx, st)
		if lastErr == nil {
			return nil
		}
		if errors.IsCode(lastErr, errors.ErrUnsupportedContentType.Code) {
			return lastErr
		}
	}
	return lastErr
}

// backoffDelay returns the delay before the given retry attempt (1-based),
// doubling from base and capped at max.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	delay := base << (attempt - 1)
	if delay > max || delay <= 0 {
		return max
	}
	return delay
}

func (p *Pipeline) stageChunk(ctx context.Context, st *itemState) error {
	chunks, err := p.chunker.Chunk(st.item)
	if err != nil {
		return err
	}
	if err := p.chunks.UpsertChunks(ctx, chunks); err != nil {
		return err
	}

	p.mu.Lock()
	st.chunks = chunks
	st.status.ChunkCount = len(chunks)
	p.mu.Unlock()
	return nil
}

func (p *Pipeline) stageEmbed(ctx context.Context, st *itemState) error {
	results, err := p.embedder.EmbedChunks(ctx, st.chunks, st.item.Profile())
	if err != nil {
		return err
	}

	points := make([]vectorstore.Point, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			logger.Warnw("chunk embedding failed, skipping",
				"source_item_id", st.item.ID,
				"chunk_id", r.Chunk.ChunkID,
				"error", r.Err,
			)
			continue
		}
		points = append(points, vectorstore.PointFromEmbedding(r.Embedding, st.item))
	}
	if len(points) == 0 {
		return errors.ErrEmbeddingFailed.WithMessagef("no chunk of %s could be embedded", st.item.ID)
	}

	return p.vectors.Upsert(ctx, p.collection, p.dimension, points)
}

func (p *Pipeline) stageExtract(ctx context.Context, st *itemState) error {
	refs := make([]model.ChunkRef, 0, len(st.chunks))
	for _, c := range st.chunks {
		refs = append(refs, model.ChunkRef{
			ChunkID:   c.ChunkID,
			BlockType: c.BlockType,
			Language:  c.Language,
			Metadata:  c.Metadata,
		})
	}

	stats, err := p.extractor.Observe(ctx, st.item.TenantID, st.item.ID, refs)
	if err != nil {
		return err
	}

	p.mu.Lock()
	st.status.GraphStats = stats
	p.mu.Unlock()
	return nil
}

func (p *Pipeline) setFailed(st *itemState, err error) {
	p.mu.Lock()
	failedAt := st.status.Stage
	st.status.Stage = StageFailed
	st.status.Error = err.Error()
	st.status.UpdatedAt = time.Now().UTC()
	p.mu.Unlock()
	logger.Warnw("ingest failed",
		"source_item_id", st.status.SourceItemID,
		"stage", failedAt,
		"error", err,
	)
}
