package graphstore

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/kart-io/cortex-x/internal/pkg/model"
	"github.com/kart-io/cortex-x/pkg/errors"
)

// Neighbors walks the adjacency outward from the seeds, treating edges as
// undirected, and returns the entities reached plus the edges among them.
func (s *graphStore) Neighbors(ctx context.Context, seeds []uuid.UUID, maxDepth, maxFanout int) ([]model.Entity, []model.Relationship, error) {
	if len(seeds) == 0 {
		return nil, nil, nil
	}
	if maxDepth <= 0 {
		maxDepth = 2
	}
	if maxFanout <= 0 {
		maxFanout = 50
	}

	seedIDs := make([]string, len(seeds))
	for i, id := range seeds {
		seedIDs[i] = id.String()
	}

	// Total result cap scales with seed count so a dense seed set cannot
	// blow up the frontier.
	limit := maxFanout * len(seeds)

	var reachedIDs []string
	err := s.db.WithContext(ctx).Raw(`
		WITH RECURSIVE walk(entity_id, depth) AS (
			SELECT entity_id, 0
			FROM graph_entities
			WHERE entity_id IN ?
		UNION
			SELECT CASE
				WHEN r.from_entity_id = w.entity_id THEN r.to_entity_id
				ELSE r.from_entity_id
			END,
			w.depth + 1
			FROM graph_relationships r
			JOIN walk w ON w.entity_id IN (r.from_entity_id, r.to_entity_id)
			WHERE w.depth < ?
		)
		SELECT DISTINCT entity_id FROM walk LIMIT ?`,
		seedIDs, maxDepth, limit,
	).Scan(&reachedIDs).Error
	if err != nil {
		return nil, nil, errors.ErrGraphStore.WithCause(err)
	}
	if len(reachedIDs) == 0 {
		return nil, nil, nil
	}

	var entityRows []entityRow
	if err := s.db.WithContext(ctx).Where("entity_id IN ?", reachedIDs).Find(&entityRows).Error; err != nil {
		return nil, nil, errors.ErrGraphStore.WithCause(err)
	}

	var relRows []relationshipRow
	err = s.db.WithContext(ctx).
		Where("from_entity_id IN ? AND to_entity_id IN ?", reachedIDs, reachedIDs).
		Find(&relRows).Error
	if err != nil {
		return nil, nil, errors.ErrGraphStore.WithCause(err)
	}

	entities := make([]model.Entity, len(entityRows))
	for i, r := range entityRows {
		entities[i] = r.toModel()
	}
	relationships := make([]model.Relationship, len(relRows))
	for i, r := range relRows {
		relationships[i] = r.toModel()
	}
	return entities, relationships, nil
}

// Paths finds acyclic paths between two entities with a recursive CTE. Each
// returned path starts at from and ends at to.
func (s *graphStore) Paths(ctx context.Context, from, to uuid.UUID, maxHops, limit int) ([]model.GraphPath, error) {
	if maxHops <= 0 {
		maxHops = 4
	}
	if limit <= 0 {
		limit = 10
	}

	var pathStrings []string
	err := s.db.WithContext(ctx).Raw(`
		WITH RECURSIVE paths(last_id, path, depth) AS (
			SELECT e.entity_id, ARRAY[e.entity_id], 0
			FROM graph_entities e
			WHERE e.entity_id = ?
		UNION ALL
			SELECT
				CASE WHEN r.from_entity_id = p.last_id THEN r.to_entity_id ELSE r.from_entity_id END,
				p.path || CASE WHEN r.from_entity_id = p.last_id THEN r.to_entity_id ELSE r.from_entity_id END,
				p.depth + 1
			FROM graph_relationships r
			JOIN paths p ON p.last_id IN (r.from_entity_id, r.to_entity_id)
			WHERE p.depth < ?
			  AND NOT (CASE WHEN r.from_entity_id = p.last_id THEN r.to_entity_id ELSE r.from_entity_id END = ANY(p.path))
		)
		SELECT array_to_string(path, ',')
		FROM paths
		WHERE last_id = ?
		ORDER BY depth
		LIMIT ?`,
		from.String(), maxHops, to.String(), limit,
	).Scan(&pathStrings).Error
	if err != nil {
		return nil, errors.ErrGraphStore.WithCause(err)
	}

	paths := make([]model.GraphPath, 0, len(pathStrings))
	for _, raw := range pathStrings {
		parts := strings.Split(raw, ",")
		ids := make([]uuid.UUID, 0, len(parts))
		for _, part := range parts {
			id, err := uuid.Parse(part)
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
		if len(ids) < 2 {
			continue
		}
		paths = append(paths, model.GraphPath{
			EntityIDs: ids,
			Length:    len(ids) - 1,
		})
	}
	return paths, nil
}
