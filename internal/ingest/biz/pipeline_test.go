package biz

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/cortex-x/internal/chunker"
	"github.com/kart-io/cortex-x/internal/embedding"
	"github.com/kart-io/cortex-x/internal/extractor"
	"github.com/kart-io/cortex-x/internal/pkg/model"
	"github.com/kart-io/cortex-x/pkg/errors"
	chunkeropts "github.com/kart-io/cortex-x/pkg/options/chunker"
	embeddingopts "github.com/kart-io/cortex-x/pkg/options/embedding"
	ingestopts "github.com/kart-io/cortex-x/pkg/options/ingest"
	"github.com/kart-io/cortex-x/pkg/store/vectorstore"
)

type stubProvider struct{}

func (stubProvider) Embed(_ context.Context, _ string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (s stubProvider) EmbedSingle(ctx context.Context, model, text string) ([]float32, error) {
	vecs, err := s.Embed(ctx, model, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (stubProvider) Name() string { return "stub" }

type fakeChunkStore struct {
	mu             sync.Mutex
	texts          map[uuid.UUID]model.ChunkText
	bySource       map[string][]uuid.UUID
	upsertCalls    int
	failUpserts    int
	deletedSources []string
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{
		texts:    make(map[uuid.UUID]model.ChunkText),
		bySource: make(map[string][]uuid.UUID),
	}
}

func (f *fakeChunkStore) UpsertChunks(_ context.Context, chunks []model.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	if f.failUpserts > 0 {
		f.failUpserts--
		return errors.ErrChunkPersistFailed.WithMessage("injected failure")
	}
	for _, c := range chunks {
		f.texts[c.ChunkID] = model.ChunkText{
			ChunkID:   c.ChunkID,
			Content:   c.Content,
			BlockType: c.BlockType,
			Language:  c.Language,
			Metadata:  c.Metadata,
		}
		f.bySource[c.SourceItemID] = append(f.bySource[c.SourceItemID], c.ChunkID)
	}
	return nil
}

func (f *fakeChunkStore) FetchByIDs(_ context.Context, ids []uuid.UUID) ([]model.ChunkText, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.ChunkText, 0, len(ids))
	for _, id := range ids {
		if t, ok := f.texts[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeChunkStore) CountBySource(_ context.Context, sourceItemID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.bySource[sourceItemID])), nil
}

func (f *fakeChunkStore) DeleteBySource(_ context.Context, sourceItemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.bySource[sourceItemID] {
		delete(f.texts, id)
	}
	delete(f.bySource, sourceItemID)
	f.deletedSources = append(f.deletedSources, sourceItemID)
	return nil
}

type fakeVectorStore struct {
	mu          sync.Mutex
	points      map[string]vectorstore.Point
	failUpserts int
	deleteExprs []string
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{points: make(map[string]vectorstore.Point)}
}

func (f *fakeVectorStore) EnsureCollection(_ context.Context, _ string, _ int) error { return nil }

func (f *fakeVectorStore) Upsert(_ context.Context, _ string, _ int, points []vectorstore.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpserts != 0 {
		if f.failUpserts > 0 {
			f.failUpserts--
		}
		return errors.ErrVectorStore.WithMessage("injected failure")
	}
	for _, p := range points {
		f.points[p.ID] = p
	}
	return nil
}

func (f *fakeVectorStore) Search(_ context.Context, _ string, _ []float32, _ int, _ vectorstore.Filter) ([]vectorstore.Hit, error) {
	return nil, nil
}

func (f *fakeVectorStore) DeleteByFilter(_ context.Context, _ string, filter vectorstore.Filter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteExprs = append(f.deleteExprs, filter.Expr())
	return nil
}

func (f *fakeVectorStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points)
}

type fakeGraphStore struct {
	mu            sync.Mutex
	ids           map[string]uuid.UUID
	evidence      int
	relationships int
	deletedChunks []uuid.UUID
}

func newFakeGraphStore() *fakeGraphStore {
	return &fakeGraphStore{ids: make(map[string]uuid.UUID)}
}

func (f *fakeGraphStore) UpsertEntity(_ context.Context, entity *model.Entity) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := string(entity.EntityType) + ":" + entity.NormalizedName
	if id, ok := f.ids[key]; ok {
		return id, nil
	}
	id := uuid.New()
	f.ids[key] = id
	return id, nil
}

func (f *fakeGraphStore) AddEvidence(_ context.Context, _ model.Evidence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evidence++
	return nil
}

func (f *fakeGraphStore) UpsertRelationship(_ context.Context, _ *model.Relationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.relationships++
	return nil
}

func (f *fakeGraphStore) FindEntitiesByName(_ context.Context, _ string, _ int) ([]model.Entity, error) {
	return nil, nil
}

func (f *fakeGraphStore) GetEntities(_ context.Context, _ []uuid.UUID) ([]model.Entity, error) {
	return nil, nil
}

func (f *fakeGraphStore) Neighbors(_ context.Context, _ []uuid.UUID, _, _ int) ([]model.Entity, []model.Relationship, error) {
	return nil, nil, nil
}

func (f *fakeGraphStore) Paths(_ context.Context, _, _ uuid.UUID, _, _ int) ([]model.GraphPath, error) {
	return nil, nil
}

func (f *fakeGraphStore) DeleteByChunks(_ context.Context, chunkIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedChunks = append(f.deletedChunks, chunkIDs...)
	return nil
}

func (f *fakeGraphStore) Stats(_ context.Context) (int64, int64, error) { return 0, 0, nil }

type pipelineFixture struct {
	pipeline *Pipeline
	chunks   *fakeChunkStore
	vectors  *fakeVectorStore
	graph    *fakeGraphStore
}

func newPipelineFixture(t *testing.T, opts *ingestopts.Options) *pipelineFixture {
	t.Helper()

	chunks := newFakeChunkStore()
	vectors := newFakeVectorStore()
	graph := newFakeGraphStore()

	embedOpts := embeddingopts.NewOptions()
	embedOpts.Models = []embeddingopts.ModelOptions{
		{Name: "m1", Dimension: 4, MaxInputTokens: 1000, Role: embeddingopts.RolePrimary},
	}
	embedService := embedding.NewService(embedOpts, stubProvider{})

	ck := chunker.New(&chunkeropts.Options{
		MaxChunk:             64,
		Overlap:              8,
		CodeMaxTokens:        64,
		CodeOverlapTokens:    8,
		CodeFallbackMaxChunk: 128,
		MinChunkChars:        4,
	})
	ex := extractor.New(chunks, graph)

	if opts == nil {
		opts = &ingestopts.Options{
			Workers:        2,
			MaxRetries:     2,
			RetryBaseDelay: time.Millisecond,
			RetryMaxDelay:  5 * time.Millisecond,
		}
	}

	pipeline, err := NewPipeline(ck, embedService, ex, chunks, vectors, graph, opts, "chunks_test", 4)
	require.NoError(t, err)
	t.Cleanup(pipeline.Close)

	return &pipelineFixture{pipeline: pipeline, chunks: chunks, vectors: vectors, graph: graph}
}

func waitForTerminal(t *testing.T, p *Pipeline, id string) *ItemStatus {
	t.Helper()
	var status *ItemStatus
	require.Eventually(t, func() bool {
		st, err := p.Status(id)
		if err != nil {
			return false
		}
		status = st
		return st.Stage == StageDone || st.Stage == StageFailed
	}, 5*time.Second, 5*time.Millisecond)
	return status
}

func proseItem(id string) *model.SourceItem {
	return &model.SourceItem{
		ID:          id,
		TenantID:    "acme",
		ContentType: model.ContentTypePlain,
		Content:     strings.Repeat("The indexing service stores documents for later retrieval. ", 6),
	}
}

func TestPipelineRunsAllStages(t *testing.T) {
	fx := newPipelineFixture(t, nil)

	require.NoError(t, fx.pipeline.Submit(proseItem("doc-1")))
	status := waitForTerminal(t, fx.pipeline, "doc-1")

	assert.Equal(t, StageDone, status.Stage)
	assert.Empty(t, status.Error)
	assert.Greater(t, status.ChunkCount, 0)
	require.NotNil(t, status.GraphStats)
	assert.Equal(t, status.ChunkCount, status.GraphStats.TotalChunks)
	assert.Equal(t, status.ChunkCount, status.GraphStats.ChunksProcessed)
	assert.Equal(t, status.ChunkCount, fx.vectors.count())
}

func TestSubmitRejectsInvalidItems(t *testing.T) {
	fx := newPipelineFixture(t, nil)

	err := fx.pipeline.Submit(&model.SourceItem{TenantID: "acme", ContentType: model.ContentTypePlain, Content: "x"})
	assert.True(t, errors.IsCode(errors.FromError(err), errors.ErrInvalidParam.Code))

	err = fx.pipeline.Submit(&model.SourceItem{ID: "doc-2", TenantID: "acme", ContentType: "audio/wav", Content: "x"})
	assert.True(t, errors.IsCode(errors.FromError(err), errors.ErrUnsupportedContentType.Code))
}

func TestStatusUnknownItem(t *testing.T) {
	fx := newPipelineFixture(t, nil)

	_, err := fx.pipeline.Status("missing")
	assert.True(t, errors.IsCode(errors.FromError(err), errors.ErrSourceNotFound.Code))
}

func TestStageRetriesTransientFailure(t *testing.T) {
	fx := newPipelineFixture(t, nil)
	fx.chunks.failUpserts = 1

	require.NoError(t, fx.pipeline.Submit(proseItem("doc-3")))
	status := waitForTerminal(t, fx.pipeline, "doc-3")

	assert.Equal(t, StageDone, status.Stage)
	fx.chunks.mu.Lock()
	calls := fx.chunks.upsertCalls
	fx.chunks.mu.Unlock()
	assert.Equal(t, 2, calls)
}

func TestStageFailsAfterRetryBudget(t *testing.T) {
	fx := newPipelineFixture(t, nil)
	fx.vectors.failUpserts = -1 // fail forever

	require.NoError(t, fx.pipeline.Submit(proseItem("doc-4")))
	status := waitForTerminal(t, fx.pipeline, "doc-4")

	assert.Equal(t, StageFailed, status.Stage)
	assert.NotEmpty(t, status.Error)
	// Chunking finished before the embedding stage gave up.
	assert.Greater(t, status.ChunkCount, 0)
}

func TestResubmitSkipsCompletedStages(t *testing.T) {
	fx := newPipelineFixture(t, nil)
	fx.vectors.failUpserts = 3 // exactly the first run's attempts, then recovers

	item := proseItem("doc-5")
	require.NoError(t, fx.pipeline.Submit(item))
	status := waitForTerminal(t, fx.pipeline, "doc-5")
	require.Equal(t, StageFailed, status.Stage)

	require.NoError(t, fx.pipeline.Submit(item))
	status = waitForTerminal(t, fx.pipeline, "doc-5")
	assert.Equal(t, StageDone, status.Stage)

	// The chunking stage succeeded on the first run and was not redone.
	fx.chunks.mu.Lock()
	calls := fx.chunks.upsertCalls
	fx.chunks.mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestDeleteCascades(t *testing.T) {
	fx := newPipelineFixture(t, nil)

	require.NoError(t, fx.pipeline.Submit(proseItem("doc-6")))
	status := waitForTerminal(t, fx.pipeline, "doc-6")
	require.Equal(t, StageDone, status.Stage)

	require.NoError(t, fx.pipeline.Delete(context.Background(), "doc-6"))

	assert.Contains(t, fx.chunks.deletedSources, "doc-6")
	assert.Len(t, fx.graph.deletedChunks, status.ChunkCount)
	require.Len(t, fx.vectors.deleteExprs, 1)
	assert.Contains(t, fx.vectors.deleteExprs[0], `source_item_id == "doc-6"`)

	_, err := fx.pipeline.Status("doc-6")
	assert.True(t, errors.IsCode(errors.FromError(err), errors.ErrSourceNotFound.Code))
}

func TestBackoffDelaySchedule(t *testing.T) {
	base := time.Second
	max := 30 * time.Second

	assert.Equal(t, time.Second, backoffDelay(base, max, 1))
	assert.Equal(t, 2*time.Second, backoffDelay(base, max, 2))
	assert.Equal(t, 4*time.Second, backoffDelay(base, max, 3))
	assert.Equal(t, 16*time.Second, backoffDelay(base, max, 5))
	assert.Equal(t, max, backoffDelay(base, max, 6))
	assert.Equal(t, max, backoffDelay(base, max, 70))
}
