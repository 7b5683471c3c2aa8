package biz

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/cortex-x/internal/embedding"
	"github.com/kart-io/cortex-x/internal/pkg/model"
	embeddingopts "github.com/kart-io/cortex-x/pkg/options/embedding"
	"github.com/kart-io/cortex-x/pkg/store/vectorstore"
)

// fixedProvider returns the same vector for every input.
type fixedProvider struct{ vec []float32 }

func (p *fixedProvider) Name() string { return "fixed" }

func (p *fixedProvider) Embed(_ context.Context, _ string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = p.vec
	}
	return out, nil
}

func (p *fixedProvider) EmbedSingle(_ context.Context, _, _ string) ([]float32, error) {
	return p.vec, nil
}

type fakeVectorStore struct {
	hits      []vectorstore.Hit
	gotTopK   int
	gotFilter string
	err       error
}

func (f *fakeVectorStore) EnsureCollection(context.Context, string, int) error { return nil }

func (f *fakeVectorStore) Upsert(context.Context, string, int, []vectorstore.Point) error {
	return nil
}

func (f *fakeVectorStore) Search(_ context.Context, _ string, _ []float32, topK int, filter vectorstore.Filter) ([]vectorstore.Hit, error) {
	f.gotTopK = topK
	f.gotFilter = filter.Expr()
	return f.hits, f.err
}

func (f *fakeVectorStore) DeleteByFilter(context.Context, string, vectorstore.Filter) error {
	return nil
}

type fakeChunkStore struct {
	texts map[uuid.UUID]model.ChunkText
}

func (f *fakeChunkStore) UpsertChunks(context.Context, []model.Chunk) error { return nil }

func (f *fakeChunkStore) FetchByIDs(_ context.Context, ids []uuid.UUID) ([]model.ChunkText, error) {
	var out []model.ChunkText
	for _, id := range ids {
		if t, ok := f.texts[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeChunkStore) CountBySource(context.Context, string) (int64, error) { return 0, nil }
func (f *fakeChunkStore) DeleteBySource(context.Context, string) error         { return nil }

type fakeGraphStore struct {
	byName    map[string][]model.Entity
	neighbors map[uuid.UUID][]model.Entity
	paths     []model.GraphPath
	lookupErr error
}

func (f *fakeGraphStore) UpsertEntity(_ context.Context, e *model.Entity) (uuid.UUID, error) {
	return e.EntityID, nil
}

func (f *fakeGraphStore) AddEvidence(context.Context, model.Evidence) error { return nil }

func (f *fakeGraphStore) UpsertRelationship(context.Context, *model.Relationship) error {
	return nil
}

func (f *fakeGraphStore) FindEntitiesByName(_ context.Context, name string, _ int) ([]model.Entity, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.byName[name], nil
}

func (f *fakeGraphStore) GetEntities(context.Context, []uuid.UUID) ([]model.Entity, error) {
	return nil, nil
}

func (f *fakeGraphStore) Neighbors(_ context.Context, seeds []uuid.UUID, _, _ int) ([]model.Entity, []model.Relationship, error) {
	var out []model.Entity
	for _, s := range seeds {
		out = append(out, f.neighbors[s]...)
	}
	return out, nil, nil
}

func (f *fakeGraphStore) Paths(context.Context, uuid.UUID, uuid.UUID, int, int) ([]model.GraphPath, error) {
	return f.paths, nil
}

func (f *fakeGraphStore) DeleteByChunks(context.Context, []uuid.UUID) error { return nil }
func (f *fakeGraphStore) Stats(context.Context) (int64, int64, error)       { return 0, 0, nil }

func singleModelService() *embedding.Service {
	opts := &embeddingopts.Options{
		Models: []embeddingopts.ModelOptions{
			{Name: "m", Dimension: 3, Role: embeddingopts.RolePrimary},
		},
		FusionStrategy: embeddingopts.FusionMean,
		BatchSize:      16,
	}
	return embedding.NewService(opts, &fixedProvider{vec: []float32{1, 0, 0}})
}

func TestRetrieveVectorSearchHydratesChunks(t *testing.T) {
	chunkID := model.ChunkIDFor("item", 0)
	vs := &fakeVectorStore{hits: []vectorstore.Hit{
		{PointID: chunkID.String() + ":prose", ChunkID: chunkID, Score: 0.92, Timestamp: 1700000000},
	}}
	cs := &fakeChunkStore{texts: map[uuid.UUID]model.ChunkText{
		chunkID: {ChunkID: chunkID, Content: "the billing service retries twice"},
	}}
	r := NewRetriever(singleModelService(), vs, cs, &fakeGraphStore{}, nil, "chunks_v1")

	plan := &model.RetrievalPlan{Mode: model.ModeVector, Steps: []model.StepKind{model.StepVectorSearch}, MaxBlocks: 20}
	blocks, diags := r.Retrieve(context.Background(), plan, "billing retries", "acme", nil)

	require.Len(t, blocks, 1)
	assert.Equal(t, chunkID.String(), blocks[0].SourceID)
	assert.Equal(t, "the billing service retries twice", blocks[0].Text)
	assert.Equal(t, "chunk", blocks[0].SourceType)
	assert.InDelta(t, 0.92, blocks[0].Score, 1e-6)
	require.NotNil(t, blocks[0].Timestamp)

	assert.Equal(t, 100, vs.gotTopK)
	assert.Contains(t, vs.gotFilter, `tenant_id == "acme"`)

	require.Len(t, diags, 1)
	assert.Equal(t, model.StepVectorSearch, diags[0].Step)
	assert.Equal(t, 1, diags[0].Blocks)
	assert.False(t, diags[0].Deadlined)
}

func TestRetrieveTopKScalesWithBlockBudget(t *testing.T) {
	vs := &fakeVectorStore{}
	r := NewRetriever(singleModelService(), vs, &fakeChunkStore{}, &fakeGraphStore{}, nil, "chunks_v1")

	plan := &model.RetrievalPlan{Steps: []model.StepKind{model.StepVectorSearch}, MaxBlocks: 4}
	r.Retrieve(context.Background(), plan, "q", "", nil)
	assert.Equal(t, 20, vs.gotTopK)
}

func TestRetrieveEntityLookup(t *testing.T) {
	id := uuid.New()
	gs := &fakeGraphStore{byName: map[string][]model.Entity{
		"paymentprocessor": {{EntityID: id, EntityType: model.EntityTypeClass, CanonicalName: "PaymentProcessor", OccurrenceCount: 7}},
	}}
	r := NewRetriever(singleModelService(), &fakeVectorStore{}, &fakeChunkStore{}, gs, nil, "chunks_v1")

	plan := &model.RetrievalPlan{Steps: []model.StepKind{model.StepEntityLookup}, MaxBlocks: 20}
	blocks, _ := r.Retrieve(context.Background(), plan, "who owns PaymentProcessor", "", nil)

	require.Len(t, blocks, 1)
	assert.Equal(t, "entity:"+id.String(), blocks[0].SourceID)
	assert.Equal(t, "graph", blocks[0].SourceType)
	assert.Equal(t, 1.0, blocks[0].Score)
	assert.Contains(t, blocks[0].Text, "PaymentProcessor")
}

func TestRetrieveNeighborsExpandFromLookup(t *testing.T) {
	seed := uuid.New()
	hop := uuid.New()
	gs := &fakeGraphStore{
		byName: map[string][]model.Entity{
			"auth_service": {{EntityID: seed, EntityType: model.EntityTypeModule, CanonicalName: "auth_service"}},
		},
		neighbors: map[uuid.UUID][]model.Entity{
			seed: {{EntityID: hop, EntityType: model.EntityTypeFunction, CanonicalName: "validateToken"}},
		},
	}
	r := NewRetriever(singleModelService(), &fakeVectorStore{}, &fakeChunkStore{}, gs, nil, "chunks_v1")

	plan := &model.RetrievalPlan{Steps: []model.StepKind{model.StepEntityLookup, model.StepNeighbors}, MaxBlocks: 20}
	blocks, diags := r.Retrieve(context.Background(), plan, "what is related to auth_service", "", nil)

	require.Len(t, blocks, 2)
	assert.Equal(t, "entity:"+hop.String(), blocks[1].SourceID)
	assert.Equal(t, 0.5, blocks[1].Score)
	assert.Equal(t, 1, diags[1].Blocks)
}

func TestRetrieveGraphPaths(t *testing.T) {
	a, b, mid := uuid.New(), uuid.New(), uuid.New()
	gs := &fakeGraphStore{
		byName: map[string][]model.Entity{
			"checkout_service": {{EntityID: a, CanonicalName: "checkout_service"}},
			"payment_gateway":  {{EntityID: b, CanonicalName: "payment_gateway"}},
		},
		paths: []model.GraphPath{{EntityIDs: []uuid.UUID{a, mid, b}, Length: 2}},
	}
	r := NewRetriever(singleModelService(), &fakeVectorStore{}, &fakeChunkStore{}, gs, nil, "chunks_v1")

	plan := &model.RetrievalPlan{Mode: model.ModeAgentic, Steps: []model.StepKind{model.StepGraphPaths}, MaxBlocks: 20}
	blocks, _ := r.Retrieve(context.Background(), plan, "trace checkout_service to payment_gateway", "", nil)

	require.Len(t, blocks, 3)
	var path *model.ContextBlock
	for i := range blocks {
		if blocks[i].Metadata["step"] == string(model.StepGraphPaths) {
			path = &blocks[i]
		}
	}
	require.NotNil(t, path)
	assert.Equal(t, 0.5, path.Score)
	assert.Contains(t, path.Text, "checkout_service")
	assert.Contains(t, path.Text, "payment_gateway")
}

func TestRetrieveAppliesLanguageFilter(t *testing.T) {
	goID, pyID := uuid.New(), uuid.New()
	gs := &fakeGraphStore{byName: map[string][]model.Entity{
		"load_config": {
			{EntityID: goID, EntityType: model.EntityTypeFunction, CanonicalName: "load_config", Language: "go"},
			{EntityID: pyID, EntityType: model.EntityTypeFunction, CanonicalName: "load_config", Language: "python"},
		},
	}}
	vs := &fakeVectorStore{}
	r := NewRetriever(singleModelService(), vs, &fakeChunkStore{}, gs, nil, "chunks_v1")

	plan := &model.RetrievalPlan{Steps: []model.StepKind{model.StepVectorSearch, model.StepEntityLookup}, MaxBlocks: 20}
	filters := &model.QueryFilters{Languages: []string{"go"}}
	blocks, _ := r.Retrieve(context.Background(), plan, "where is load_config", "", filters)

	assert.Contains(t, vs.gotFilter, `language in ["go"]`)

	require.Len(t, blocks, 1)
	assert.Equal(t, "entity:"+goID.String(), blocks[0].SourceID)
}

func TestRetrieveStepFailureIsDiagnosticNotError(t *testing.T) {
	vs := &fakeVectorStore{err: fmt.Errorf("milvus unavailable")}
	r := NewRetriever(singleModelService(), vs, &fakeChunkStore{}, &fakeGraphStore{}, nil, "chunks_v1")

	plan := &model.RetrievalPlan{Steps: []model.StepKind{model.StepVectorSearch, model.StepEntityLookup}, MaxBlocks: 20}
	blocks, diags := r.Retrieve(context.Background(), plan, "anything at all", "", nil)

	assert.Empty(t, blocks)
	require.Len(t, diags, 2)
	assert.NotEmpty(t, diags[0].Err)
	assert.Empty(t, diags[1].Err)
}

func TestSurfaceFormTokens(t *testing.T) {
	tokens := surfaceFormRe.FindAllString("how did PaymentProcessor relate to auth_service and pkg.Config after PLAT-99", -1)
	assert.Contains(t, tokens, "PaymentProcessor")
	assert.Contains(t, tokens, "auth_service")
	assert.Contains(t, tokens, "pkg.Config")
	assert.Contains(t, tokens, "PLAT-99")
}
