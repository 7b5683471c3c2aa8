package graphstore

import (
	"context"

	"github.com/kart-io/logger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kart-io/cortex-x/internal/pkg/model"
	neo4jcomponent "github.com/kart-io/cortex-x/pkg/component/neo4j"
)

// Mirror receives best-effort copies of graph writes. Implementations must
// tolerate being behind PostgreSQL; reads never hit the mirror.
type Mirror interface {
	MirrorEntity(ctx context.Context, entity *model.Entity) error
	MirrorRelationship(ctx context.Context, rel *model.Relationship) error
	DeleteOrphans(ctx context.Context) error
}

// Neo4jMirror mirrors graph writes into Neo4j for Cypher-native exploration.
type Neo4jMirror struct {
	client *neo4jcomponent.Client
}

var _ Mirror = (*Neo4jMirror)(nil)

// NewNeo4jMirror creates a mirror backed by the given Neo4j client.
func NewNeo4jMirror(client *neo4jcomponent.Client) *Neo4jMirror {
	return &Neo4jMirror{client: client}
}

// MirrorEntity merges the entity node by its canonical id.
func (m *Neo4jMirror) MirrorEntity(ctx context.Context, entity *model.Entity) error {
	_, err := m.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MERGE (e:Entity {entity_id: $entity_id})
			SET e.entity_type = $entity_type,
			    e.canonical_name = $canonical_name,
			    e.normalized_name = $normalized_name,
			    e.service_name = $service_name,
			    e.language = $language,
			    e.occurrence_count = $occurrence_count`,
			map[string]any{
				"entity_id":        entity.EntityID.String(),
				"entity_type":      string(entity.EntityType),
				"canonical_name":   entity.CanonicalName,
				"normalized_name":  entity.NormalizedName,
				"service_name":     entity.ServiceName,
				"language":         entity.Language,
				"occurrence_count": entity.OccurrenceCount,
			})
	})
	return err
}

// MirrorRelationship merges the edge between two mirrored nodes.
func (m *Neo4jMirror) MirrorRelationship(ctx context.Context, rel *model.Relationship) error {
	_, err := m.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MATCH (from:Entity {entity_id: $from_id})
			MATCH (to:Entity {entity_id: $to_id})
			MERGE (from)-[r:RELATES {relationship_type: $rel_type, source: $source}]->(to)
			SET r.confidence = $confidence`,
			map[string]any{
				"from_id":    rel.FromEntityID.String(),
				"to_id":      rel.ToEntityID.String(),
				"rel_type":   string(rel.RelationshipType),
				"source":     rel.Source,
				"confidence": rel.Confidence,
			})
	})
	return err
}

// DeleteOrphans removes mirrored nodes that no longer exist upstream. The
// mirror carries no evidence, so it deletes nodes with no edges.
func (m *Neo4jMirror) DeleteOrphans(ctx context.Context) error {
	_, err := m.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MATCH (e:Entity)
			WHERE NOT (e)--()
			DELETE e`, nil)
	})
	return err
}

// mirrorEntity forwards the write to the mirror when configured. Mirror
// failures are logged, never surfaced.
func (s *graphStore) mirrorEntity(ctx context.Context, entity *model.Entity) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.MirrorEntity(ctx, entity); err != nil {
		logger.Warnw("graph mirror entity write failed", "entity_id", entity.EntityID.String(), "error", err.Error())
	}
}

func (s *graphStore) mirrorRelationship(ctx context.Context, rel *model.Relationship) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.MirrorRelationship(ctx, rel); err != nil {
		logger.Warnw("graph mirror relationship write failed", "edge_id", rel.EdgeID.String(), "error", err.Error())
	}
}

func (s *graphStore) mirrorDeleteOrphans(ctx context.Context) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.DeleteOrphans(ctx); err != nil {
		logger.Warnw("graph mirror orphan cleanup failed", "error", err.Error())
	}
}
