package extractor

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/cortex-x/internal/pkg/model"
)

// fakeChunkStore serves chunk text from memory.
type fakeChunkStore struct {
	texts    map[uuid.UUID]model.ChunkText
	fetchErr error
}

func (f *fakeChunkStore) UpsertChunks(context.Context, []model.Chunk) error { return nil }

func (f *fakeChunkStore) FetchByIDs(_ context.Context, ids []uuid.UUID) ([]model.ChunkText, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
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

// fakeGraphStore records writes and assigns stable entity ids per
// uniqueness key.
type fakeGraphStore struct {
	ids       map[string]uuid.UUID
	entities  []model.Entity
	evidence  []model.Evidence
	relations []model.Relationship
	failAfter int
	writes    int
}

func (f *fakeGraphStore) UpsertEntity(_ context.Context, e *model.Entity) (uuid.UUID, error) {
	f.writes++
	if f.failAfter > 0 && f.writes > f.failAfter {
		return uuid.Nil, fmt.Errorf("graph store down")
	}
	if f.ids == nil {
		f.ids = map[string]uuid.UUID{}
	}
	key := string(e.EntityType) + ":" + e.NormalizedName
	id, ok := f.ids[key]
	if !ok {
		id = uuid.New()
		f.ids[key] = id
	}
	e.EntityID = id
	f.entities = append(f.entities, *e)
	return id, nil
}

func (f *fakeGraphStore) AddEvidence(_ context.Context, ev model.Evidence) error {
	f.evidence = append(f.evidence, ev)
	return nil
}

func (f *fakeGraphStore) UpsertRelationship(_ context.Context, r *model.Relationship) error {
	f.relations = append(f.relations, *r)
	return nil
}

func (f *fakeGraphStore) FindEntitiesByName(context.Context, string, int) ([]model.Entity, error) {
	return nil, nil
}

func (f *fakeGraphStore) GetEntities(context.Context, []uuid.UUID) ([]model.Entity, error) {
	return nil, nil
}

func (f *fakeGraphStore) Neighbors(context.Context, []uuid.UUID, int, int) ([]model.Entity, []model.Relationship, error) {
	return nil, nil, nil
}

func (f *fakeGraphStore) Paths(context.Context, uuid.UUID, uuid.UUID, int, int) ([]model.GraphPath, error) {
	return nil, nil
}

func (f *fakeGraphStore) DeleteByChunks(context.Context, []uuid.UUID) error { return nil }
func (f *fakeGraphStore) Stats(context.Context) (int64, int64, error)       { return 0, 0, nil }

func (f *fakeGraphStore) relationOfType(rt model.RelationshipType) *model.Relationship {
	for i := range f.relations {
		if f.relations[i].RelationshipType == rt {
			return &f.relations[i]
		}
	}
	return nil
}

func newFixture(texts ...model.ChunkText) (*Extractor, *fakeChunkStore, *fakeGraphStore) {
	cs := &fakeChunkStore{texts: map[uuid.UUID]model.ChunkText{}}
	for _, t := range texts {
		cs.texts[t.ChunkID] = t
	}
	gs := &fakeGraphStore{}
	return New(cs, gs), cs, gs
}

func refsFor(texts ...model.ChunkText) []model.ChunkRef {
	refs := make([]model.ChunkRef, len(texts))
	for i, t := range texts {
		refs[i] = model.ChunkRef{ChunkID: t.ChunkID, BlockType: t.BlockType, Language: t.Language}
	}
	return refs
}

func TestObserveRustImplBlock(t *testing.T) {
	text := model.ChunkText{
		ChunkID:   model.ChunkIDFor("rust-item", 0),
		BlockType: model.BlockTypeClass,
		Language:  "rust",
		Content:   "impl Display for Point {\n    fn fmt(&self, f: &mut Formatter) -> Result {\n        write!(f, \"{}\", self.x)\n    }\n}\n",
	}
	ex, _, gs := newFixture(text)

	stats, err := ex.Observe(context.Background(), "", "", refsFor(text))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalChunks)
	assert.Equal(t, 1, stats.ChunksProcessed)

	impl := gs.relationOfType(model.RelImplements)
	require.NotNil(t, impl)
	assert.InDelta(t, 0.95, impl.Confidence, 1e-9)
	assert.Equal(t, gs.ids["class:point"], impl.FromEntityID)
	assert.Equal(t, gs.ids["class:display"], impl.ToEntityID)
	assert.Equal(t, text.ChunkID.String(), impl.Source)

	contains := gs.relationOfType(model.RelContains)
	require.NotNil(t, contains)
	assert.Equal(t, gs.ids["class:point"], contains.FromEntityID)
	assert.Equal(t, gs.ids["function:fmt"], contains.ToEntityID)
}

func TestObserveSingleLineImplBlock(t *testing.T) {
	text := model.ChunkText{
		ChunkID:   model.ChunkIDFor("rust-one-line", 0),
		BlockType: model.BlockTypeCode,
		Language:  "rust",
		Content:   "impl Display for MyStruct { fn fmt(&self, f: &mut Formatter) -> Result { write!(f, \"{}\", self.x) } }",
	}
	ex, _, gs := newFixture(text)

	_, err := ex.Observe(context.Background(), "acme", "rust-one-line", refsFor(text))
	require.NoError(t, err)

	require.Contains(t, gs.ids, "function:fmt")
	require.Contains(t, gs.ids, "class:mystruct")
	require.Contains(t, gs.ids, "class:display")

	impl := gs.relationOfType(model.RelImplements)
	require.NotNil(t, impl)
	assert.Equal(t, gs.ids["class:mystruct"], impl.FromEntityID)
	assert.Equal(t, gs.ids["class:display"], impl.ToEntityID)

	contains := gs.relationOfType(model.RelContains)
	require.NotNil(t, contains)
	assert.Equal(t, gs.ids["class:mystruct"], contains.FromEntityID)
	assert.Equal(t, gs.ids["function:fmt"], contains.ToEntityID)
}

func TestObserveFunctionAndImports(t *testing.T) {
	text := model.ChunkText{
		ChunkID:   model.ChunkIDFor("go-item", 0),
		BlockType: model.BlockTypeFunction,
		Language:  "go",
		Content:   "import \"net/http\"\n\nfunc ServeIndex(w http.ResponseWriter) {\n}\n",
	}
	ex, _, gs := newFixture(text)

	_, err := ex.Observe(context.Background(), "", "", refsFor(text))
	require.NoError(t, err)

	require.Contains(t, gs.ids, "function:serveindex")
	require.Contains(t, gs.ids, "module:net/http")

	imp := gs.relationOfType(model.RelImports)
	require.NotNil(t, imp)
	assert.InDelta(t, 0.85, imp.Confidence, 1e-9)
	assert.Equal(t, gs.ids["function:serveindex"], imp.FromEntityID)
}

func TestObserveCallEdgeAcrossChunks(t *testing.T) {
	callee := model.ChunkText{
		ChunkID:   model.ChunkIDFor("svc", 0),
		BlockType: model.BlockTypeFunction,
		Language:  "go",
		Content:   "func LoadConfig(path string) error {\n\treturn nil\n}\n",
	}
	caller := model.ChunkText{
		ChunkID:   model.ChunkIDFor("svc", 1),
		BlockType: model.BlockTypeFunction,
		Language:  "go",
		Content:   "func Run() error {\n\treturn LoadConfig(\"app.yaml\")\n}\n",
	}
	ex, _, gs := newFixture(callee, caller)

	_, err := ex.Observe(context.Background(), "", "", refsFor(callee, caller))
	require.NoError(t, err)

	call := gs.relationOfType(model.RelCalls)
	require.NotNil(t, call)
	assert.InDelta(t, 0.7, call.Confidence, 1e-9)
	assert.Equal(t, gs.ids["function:run"], call.FromEntityID)
	assert.Equal(t, gs.ids["function:loadconfig"], call.ToEntityID)
}

func TestObserveTicketsRoutesAndPRs(t *testing.T) {
	text := model.ChunkText{
		ChunkID:   model.ChunkIDFor("docs", 0),
		BlockType: model.BlockTypeText,
		Content:   "PLAT-482 tracks the regression, fixed in PR-96. The handler serves GET /v1/items and uses retry_policy throughout.",
	}
	ex, _, gs := newFixture(text)

	stats, err := ex.Observe(context.Background(), "", "", refsFor(text))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ChunksProcessed)

	assert.Contains(t, gs.ids, "issue:plat-482")
	assert.Contains(t, gs.ids, "pull_request:pr-96")
	assert.Contains(t, gs.ids, "api_endpoint:get /v1/items")
	assert.Contains(t, gs.ids, "concept:retry_policy")
	assert.Equal(t, stats.EntitiesCreated, stats.EvidenceCreated)
}

func TestObserveEmptyBatch(t *testing.T) {
	ex, _, _ := newFixture()
	stats, err := ex.Observe(context.Background(), "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalChunks)
}

func TestObserveStoreFetchFailure(t *testing.T) {
	text := model.ChunkText{ChunkID: model.ChunkIDFor("x", 0), Content: "anything"}
	ex, cs, _ := newFixture(text)
	cs.fetchErr = fmt.Errorf("connection refused")

	_, err := ex.Observe(context.Background(), "", "", refsFor(text))
	require.Error(t, err)
}

func TestObserveContinuesPastBadChunk(t *testing.T) {
	good := model.ChunkText{
		ChunkID:   model.ChunkIDFor("mix", 0),
		BlockType: model.BlockTypeFunction,
		Language:  "go",
		Content:   "func First() {}\n",
	}
	alsoGood := model.ChunkText{
		ChunkID:   model.ChunkIDFor("mix", 1),
		BlockType: model.BlockTypeFunction,
		Language:  "go",
		Content:   "func Second() {}\n",
	}
	ex, _, gs := newFixture(good, alsoGood)
	gs.failAfter = 1

	stats, err := ex.Observe(context.Background(), "", "", refsFor(good, alsoGood))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalChunks)
	assert.Equal(t, 1, stats.ChunksProcessed)
}
