// Package extractor mines chunks for graph entities and relationships.
// It never receives chunk text directly: callers hand over chunk ids and
// the extractor hydrates text from the durable chunk store, keeping the
// store the single source of truth for what was observed.
package extractor

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/kart-io/cortex-x/internal/pkg/model"
	"github.com/kart-io/cortex-x/pkg/store/chunkstore"
	"github.com/kart-io/cortex-x/pkg/store/graphstore"
)

// ObserveStats summarizes one observe batch. Counts reflect upsert
// attempts that reached the store, not distinct new rows.
type ObserveStats struct {
	TotalChunks          int `json:"total_chunks"`
	ChunksProcessed      int `json:"chunks_processed"`
	EntitiesCreated      int `json:"entities_created"`
	RelationshipsCreated int `json:"relationships_created"`
	EvidenceCreated      int `json:"evidence_created"`
}

// Extractor turns chunk references into graph writes.
type Extractor struct {
	chunks chunkstore.Store
	graph  graphstore.Store
}

// New creates an Extractor over the chunk and graph stores.
func New(chunks chunkstore.Store, graph graphstore.Store) *Extractor {
	return &Extractor{chunks: chunks, graph: graph}
}

// Observe hydrates the referenced chunks, extracts entities and
// relationships, and persists them. The tenant and source identify who the
// observation is for; they scope the log trail, not the graph rows. A chunk
// that fails to extract or persist is logged and skipped; only a failure to
// read the chunk store itself fails the batch.
func (e *Extractor) Observe(ctx context.Context, tenantID, sourceID string, refs []model.ChunkRef) (*ObserveStats, error) {
	stats := &ObserveStats{TotalChunks: len(refs)}
	if len(refs) == 0 {
		return stats, nil
	}

	ids := make([]uuid.UUID, 0, len(refs))
	meta := make(map[uuid.UUID]model.ChunkRef, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ChunkID)
		meta[r.ChunkID] = r
	}

	texts, err := e.chunks.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	// Refs may carry fresher block type hints than the stored row.
	extractions := make([]*chunkExtraction, len(texts))
	declared := map[string]string{}
	for i, text := range texts {
		if ref, ok := meta[text.ChunkID]; ok {
			if text.BlockType == "" {
				text.BlockType = ref.BlockType
			}
			if text.Language == "" {
				text.Language = ref.Language
			}
			texts[i] = text
		}
		ex := extractChunk(text, serviceNameFor(text))
		extractions[i] = ex
		for _, fn := range ex.declaredFuncs {
			declared[normalizeName(fn)] = string(model.EntityTypeFunction) + ":" + normalizeName(fn)
		}
	}

	addCallEdges(texts, extractions, declared)

	for i, text := range texts {
		if err := e.persistChunk(ctx, text, extractions[i], stats); err != nil {
			logger.Warnw("skipping chunk after graph persistence failure",
				"tenant_id", tenantID,
				"source_id", sourceID,
				"chunk_id", text.ChunkID.String(),
				"error", err.Error())
			continue
		}
		stats.ChunksProcessed++
	}

	logger.Infow("observe batch complete",
		"tenant_id", tenantID,
		"source_id", sourceID,
		"chunks", stats.ChunksProcessed,
		"entities", stats.EntitiesCreated,
		"relationships", stats.RelationshipsCreated)
	return stats, nil
}

// persistChunk writes one chunk's extraction. Entities resolve to canonical
// ids first; relations then address both endpoints by those ids.
func (e *Extractor) persistChunk(ctx context.Context, text model.ChunkText, ex *chunkExtraction, stats *ObserveStats) error {
	idByKey := make(map[string]uuid.UUID, len(ex.entities))

	for _, cand := range ex.entities {
		entity := cand.entity
		id, err := e.graph.UpsertEntity(ctx, &entity)
		if err != nil {
			return err
		}
		idByKey[string(entity.EntityType)+":"+entity.NormalizedName] = id
		stats.EntitiesCreated++

		if err := e.graph.AddEvidence(ctx, model.Evidence{
			EntityID:         id,
			ChunkID:          text.ChunkID,
			Confidence:       cand.confidence,
			ExtractionMethod: cand.method,
		}); err != nil {
			return err
		}
		stats.EvidenceCreated++
	}

	for _, rel := range ex.relations {
		from, okFrom := idByKey[rel.fromKey]
		to, okTo := idByKey[rel.toKey]
		if !okFrom || !okTo || from == to {
			continue
		}
		err := e.graph.UpsertRelationship(ctx, &model.Relationship{
			FromEntityID:     from,
			ToEntityID:       to,
			RelationshipType: rel.relType,
			Confidence:       rel.confidence,
			Source:           text.ChunkID.String(),
		})
		if err != nil {
			return err
		}
		stats.RelationshipsCreated++
	}
	return nil
}

// addCallEdges links functions declared in one chunk to call sites in
// sibling chunks of the same batch. Recurrence of a declared identifier
// followed by an argument list counts as a call.
func addCallEdges(texts []model.ChunkText, extractions []*chunkExtraction, declared map[string]string) {
	if len(declared) == 0 {
		return
	}
	for i, ex := range extractions {
		if ex.primaryKey == "" {
			continue
		}
		own := map[string]bool{}
		for _, fn := range ex.declaredFuncs {
			own[normalizeName(fn)] = true
		}
		for norm, key := range declared {
			if own[norm] {
				continue
			}
			if !callsIdentifier(texts[i].Content, norm) {
				continue
			}
			ex.relations = append(ex.relations, relation{
				fromKey:    ex.primaryKey,
				toKey:      key,
				relType:    model.RelCalls,
				confidence: confCalls,
			})
			// The callee lives in a sibling chunk; register a stub
			// candidate so the edge can resolve to its canonical id.
			ex.entities = appendCalleeStub(ex.entities, key, norm, texts[i])
		}
	}
}

// appendCalleeStub adds a function candidate for a cross-chunk callee if
// the chunk does not already carry one.
func appendCalleeStub(entities []candidate, key, norm string, text model.ChunkText) []candidate {
	for _, c := range entities {
		if string(c.entity.EntityType)+":"+c.entity.NormalizedName == key {
			return entities
		}
	}
	return append(entities, candidate{
		entity: model.Entity{
			EntityType:     model.EntityTypeFunction,
			CanonicalName:  norm,
			NormalizedName: norm,
			Language:       text.Language,
			ServiceName:    serviceNameFor(text),
		},
		confidence: confCalls,
		method:     "call_site",
	})
}

// callsIdentifier reports whether content contains identifier immediately
// followed by an opening parenthesis, case-insensitively.
func callsIdentifier(content, norm string) bool {
	lower := strings.ToLower(content)
	for i := 0; ; {
		j := strings.Index(lower[i:], norm)
		if j < 0 {
			return false
		}
		j += i
		end := j + len(norm)
		boundedLeft := j == 0 || !isIdentByte(lower[j-1])
		if boundedLeft && end < len(lower) && lower[end] == '(' {
			return true
		}
		i = end
	}
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// serviceNameFor reads the owning service from chunk metadata.
func serviceNameFor(text model.ChunkText) string {
	if text.Metadata == nil {
		return ""
	}
	for _, k := range []string{"service", "service_name"} {
		if v, ok := text.Metadata[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
