package biz

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/kart-io/cortex-x/internal/embedding"
	"github.com/kart-io/cortex-x/internal/pkg/model"
	retrieveropts "github.com/kart-io/cortex-x/pkg/options/retriever"
	"github.com/kart-io/cortex-x/pkg/store/chunkstore"
	"github.com/kart-io/cortex-x/pkg/store/graphstore"
	"github.com/kart-io/cortex-x/pkg/store/vectorstore"
)

const (
	// topKCeiling caps vector recall regardless of block budget.
	topKCeiling = 100

	// neighborFanout caps 1-hop expansion per entity.
	neighborFanout = 50

	// pathsPerPair and maxPathHops bound graph path exploration.
	pathsPerPair = 10
	maxPathHops  = 4
)

// surfaceFormRe matches query tokens that look like graph entity names:
// CamelCase identifiers, snake_case, dotted paths, and ticket keys.
var surfaceFormRe = regexp.MustCompile(`\b(?:[A-Z][A-Z0-9]{1,9}-\d+|[A-Z][a-z0-9]+(?:[A-Z][a-z0-9]+)+|[A-Za-z]\w*(?:\.\w+)+|[a-z]+(?:_[a-z0-9]+)+)\b`)

// Retriever executes a retrieval plan step by step over a shared
// accumulator. Entities discovered by entity_lookup seed the graph steps
// that follow it.
type Retriever struct {
	embedder   *embedding.Service
	vectors    vectorstore.Store
	chunks     chunkstore.Store
	graph      graphstore.Store
	opts       *retrieveropts.Options
	collection string
}

// NewRetriever wires the retriever over its stores.
func NewRetriever(embedder *embedding.Service, vectors vectorstore.Store, chunks chunkstore.Store, graph graphstore.Store, opts *retrieveropts.Options, collection string) *Retriever {
	if opts == nil {
		opts = retrieveropts.NewOptions()
	}
	return &Retriever{
		embedder:   embedder,
		vectors:    vectors,
		chunks:     chunks,
		graph:      graph,
		opts:       opts,
		collection: collection,
	}
}

// retrievalState accumulates across plan steps.
type retrievalState struct {
	query    string
	filters  *model.QueryFilters
	tenantID string
	plan     *model.RetrievalPlan
	blocks   []model.ContextBlock
	entities []model.Entity
}

// Retrieve runs the plan. Every step gets its own deadline; a step that
// times out or fails contributes a diagnostic and the plan moves on, so a
// degraded backend yields partial context instead of an error.
func (r *Retriever) Retrieve(ctx context.Context, plan *model.RetrievalPlan, query, tenantID string, filters *model.QueryFilters) ([]model.ContextBlock, []model.StepDiagnostic) {
	state := &retrievalState{query: query, filters: filters, tenantID: tenantID, plan: plan}

	steps := plan.Steps
	if plan.Mode == model.ModeAgentic && len(steps) > r.opts.MaxAgenticSteps {
		steps = steps[:r.opts.MaxAgenticSteps]
	}

	diags := make([]model.StepDiagnostic, 0, len(steps))
	for _, step := range steps {
		diags = append(diags, r.runStep(ctx, step, state))
	}
	return dedupeBlocks(state.blocks), diags
}

func (r *Retriever) runStep(ctx context.Context, step model.StepKind, state *retrievalState) model.StepDiagnostic {
	stepCtx, cancel := context.WithTimeout(ctx, r.opts.PerStepTimeout)
	defer cancel()

	start := time.Now()
	before := len(state.blocks)

	var err error
	switch step {
	case model.StepVectorSearch:
		err = r.vectorSearch(stepCtx, state)
	case model.StepEntityLookup:
		err = r.entityLookup(stepCtx, state)
	case model.StepNeighbors:
		err = r.neighbors(stepCtx, state)
	case model.StepGraphPaths:
		err = r.graphPaths(stepCtx, state)
	default:
		err = fmt.Errorf("unknown step %q", step)
	}

	// Rank within the step, in emission order. Duplicate sources keep one
	// rank per step so rank fusion can sum their contributions.
	for i := before; i < len(state.blocks); i++ {
		if state.blocks[i].StepRanks == nil {
			state.blocks[i].StepRanks = map[string]int{}
		}
		state.blocks[i].StepRanks[string(step)] = i - before
	}

	diag := model.StepDiagnostic{
		Step:       step,
		Blocks:     len(state.blocks) - before,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		if stepCtx.Err() != nil {
			diag.Deadlined = true
		}
		diag.Err = err.Error()
		logger.Warnw("retrieval step degraded", "step", string(step), "error", err.Error(), "deadlined", diag.Deadlined)
	}
	return diag
}

// vectorSearch embeds the query and recalls topK candidate chunks, then
// hydrates their text from the chunk store.
func (r *Retriever) vectorSearch(ctx context.Context, state *retrievalState) error {
	vecs, err := r.embedder.Generate(ctx, []string{state.query}, model.ProfileQuery)
	if err != nil {
		return err
	}

	topK := state.plan.MaxBlocks * r.opts.TopKMultiplier
	if topK > topKCeiling {
		topK = topKCeiling
	}

	hits, err := r.vectors.Search(ctx, r.collection, vecs[0], topK, r.searchFilter(state))
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ChunkID)
	}
	texts, err := r.chunks.FetchByIDs(ctx, ids)
	if err != nil {
		return err
	}
	textByID := make(map[uuid.UUID]model.ChunkText, len(texts))
	for _, t := range texts {
		textByID[t.ChunkID] = t
	}

	for _, h := range hits {
		text, ok := textByID[h.ChunkID]
		if !ok {
			continue
		}
		block := model.ContextBlock{
			ID:         h.PointID,
			SourceID:   h.ChunkID.String(),
			Text:       text.Content,
			SourceType: "chunk",
			Score:      float64(h.Score),
			Metadata:   map[string]any{"step": string(model.StepVectorSearch)},
		}
		if h.Timestamp > 0 {
			ts := time.Unix(h.Timestamp, 0).UTC()
			block.Timestamp = &ts
		}
		state.blocks = append(state.blocks, block)
	}
	return nil
}

// entityLookup resolves name-shaped query tokens against the graph and
// seeds the entity accumulator for the graph steps.
func (r *Retriever) entityLookup(ctx context.Context, state *retrievalState) error {
	tokens := surfaceFormRe.FindAllString(state.query, -1)
	if len(tokens) == 0 {
		return nil
	}

	rank := 0
	seen := map[uuid.UUID]bool{}
	for _, tok := range tokens {
		entities, err := r.graph.FindEntitiesByName(ctx, strings.ToLower(tok), 10)
		if err != nil {
			return err
		}
		for _, e := range entities {
			if seen[e.EntityID] || !languageAllowed(state.filters, e.Language) {
				continue
			}
			seen[e.EntityID] = true
			state.entities = append(state.entities, e)
			state.blocks = append(state.blocks, entityBlock(e, 1.0/float64(1+rank), model.StepEntityLookup))
			rank++
		}
	}
	return nil
}

// neighbors expands each accumulated entity one hop, concurrently.
func (r *Retriever) neighbors(ctx context.Context, state *retrievalState) error {
	if len(state.entities) == 0 {
		return nil
	}

	type expansion struct {
		entities []model.Entity
		err      error
	}
	results := make([]expansion, len(state.entities))

	var wg sync.WaitGroup
	for i, seed := range state.entities {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			entities, _, err := r.graph.Neighbors(ctx, []uuid.UUID{id}, 1, neighborFanout)
			results[i] = expansion{entities: entities, err: err}
		}(i, seed.EntityID)
	}
	wg.Wait()

	seen := map[uuid.UUID]bool{}
	for _, e := range state.entities {
		seen[e.EntityID] = true
	}
	var firstErr error
	for _, res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		for _, e := range res.entities {
			if seen[e.EntityID] || !languageAllowed(state.filters, e.Language) {
				continue
			}
			seen[e.EntityID] = true
			state.blocks = append(state.blocks, entityBlock(e, 0.5, model.StepNeighbors))
		}
	}
	return firstErr
}

// graphPaths walks up to pathsPerPair paths for every unordered pair of
// accumulated entities. Pairs come from entity lookup; agentic plans that
// run graph_paths first derive entities from the query on demand.
func (r *Retriever) graphPaths(ctx context.Context, state *retrievalState) error {
	if len(state.entities) < 2 {
		if err := r.entityLookup(ctx, state); err != nil {
			return err
		}
		if len(state.entities) < 2 {
			return nil
		}
	}

	byID := make(map[uuid.UUID]string, len(state.entities))
	for _, e := range state.entities {
		byID[e.EntityID] = e.CanonicalName
	}

	for i := 0; i < len(state.entities); i++ {
		for j := i + 1; j < len(state.entities); j++ {
			from, to := state.entities[i], state.entities[j]
			paths, err := r.graph.Paths(ctx, from.EntityID, to.EntityID, maxPathHops, pathsPerPair)
			if err != nil {
				return err
			}
			for k, p := range paths {
				if p.Length == 0 {
					continue
				}
				state.blocks = append(state.blocks, pathBlock(from, to, p, k, byID))
			}
		}
	}
	return nil
}

func (r *Retriever) searchFilter(state *retrievalState) vectorstore.Filter {
	f := vectorstore.NewFilter()
	if state.tenantID != "" {
		f = f.Eq("tenant_id", state.tenantID)
	}
	if state.filters != nil {
		f = f.In("source_type", state.filters.SourceTypes)
		f = f.In("language", state.filters.Languages)
		if rng := parseDateRange(state.filters.DateRange); rng != nil {
			f = f.TimeRange(rng[0], rng[1])
		}
	}
	return f
}

// languageAllowed applies the languages filter to graph entities. Entities
// without a language (issues, endpoints, concepts) always pass.
func languageAllowed(filters *model.QueryFilters, lang string) bool {
	if filters == nil || len(filters.Languages) == 0 || lang == "" {
		return true
	}
	for _, l := range filters.Languages {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}

// parseDateRange converts a [from, to] RFC 3339 date pair to unix bounds.
func parseDateRange(dates []string) []int64 {
	if len(dates) != 2 {
		return nil
	}
	from, err1 := time.Parse("2006-01-02", dates[0])
	to, err2 := time.Parse("2006-01-02", dates[1])
	if err1 != nil || err2 != nil {
		return nil
	}
	return []int64{from.Unix(), to.AddDate(0, 0, 1).Unix() - 1}
}

func entityBlock(e model.Entity, score float64, step model.StepKind) model.ContextBlock {
	text := fmt.Sprintf("%s %q", e.EntityType, e.CanonicalName)
	if e.ServiceName != "" {
		text += " in service " + e.ServiceName
	}
	if e.Language != "" {
		text += " (" + e.Language + ")"
	}
	text += fmt.Sprintf(", seen %d times", e.OccurrenceCount)

	return model.ContextBlock{
		ID:         "entity:" + e.EntityID.String(),
		SourceID:   "entity:" + e.EntityID.String(),
		Text:       text,
		SourceType: "graph",
		Score:      score,
		Metadata:   map[string]any{"step": string(step), "entity_type": string(e.EntityType)},
	}
}

func pathBlock(from, to model.Entity, p model.GraphPath, idx int, names map[uuid.UUID]string) model.ContextBlock {
	hops := make([]string, 0, len(p.EntityIDs))
	for _, id := range p.EntityIDs {
		if name, ok := names[id]; ok {
			hops = append(hops, name)
		} else {
			hops = append(hops, id.String())
		}
	}
	return model.ContextBlock{
		ID:         fmt.Sprintf("path:%s:%s:%d", from.EntityID, to.EntityID, idx),
		SourceID:   fmt.Sprintf("path:%s:%s:%d", from.EntityID, to.EntityID, idx),
		Text:       fmt.Sprintf("%s connects to %s via %s", from.CanonicalName, to.CanonicalName, strings.Join(hops, " -> ")),
		SourceType: "graph",
		Score:      1.0 / float64(p.Length),
		Metadata:   map[string]any{"step": string(model.StepGraphPaths), "path_length": p.Length},
	}
}

// dedupeBlocks collapses blocks sharing a SourceID to the higher-scoring
// one, preserving first-appearance order. The survivor keeps the best rank
// the source earned in every step, so rank fusion still sees each step's
// contribution.
func dedupeBlocks(blocks []model.ContextBlock) []model.ContextBlock {
	best := make(map[string]int, len(blocks))
	out := make([]model.ContextBlock, 0, len(blocks))
	for _, b := range blocks {
		if i, ok := best[b.SourceID]; ok {
			ranks := mergeRanks(out[i].StepRanks, b.StepRanks)
			if b.Score > out[i].Score {
				out[i] = b
			}
			out[i].StepRanks = ranks
			continue
		}
		best[b.SourceID] = len(out)
		out = append(out, b)
	}
	return out
}

func mergeRanks(a, b map[string]int) map[string]int {
	merged := make(map[string]int, len(a)+len(b))
	for step, r := range a {
		merged[step] = r
	}
	for step, r := range b {
		if prev, ok := merged[step]; !ok || r < prev {
			merged[step] = r
		}
	}
	return merged
}

// sortByScore orders blocks by descending score with SourceID as the tie
// break so output stays deterministic.
func sortByScore(blocks []model.ContextBlock) {
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].Score != blocks[j].Score {
			return blocks[i].Score > blocks[j].Score
		}
		return blocks[i].SourceID < blocks[j].SourceID
	})
}
