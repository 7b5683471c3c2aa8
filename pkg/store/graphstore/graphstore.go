// Package graphstore persists the knowledge graph. PostgreSQL is the system
// of record for entities, relationships, and evidence; traversal queries run
// as recursive CTEs over the adjacency. An optional Neo4j mirror receives
// best-effort copies of every write and never fails a request.
package graphstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kart-io/cortex-x/internal/pkg/model"
	"github.com/kart-io/cortex-x/pkg/errors"
	"github.com/kart-io/cortex-x/pkg/store"
)

// Store defines the graph persistence interface.
type Store interface {
	// UpsertEntity inserts the entity or, when the uniqueness key
	// (entity_type, normalized_name, service_name, language) already
	// exists, bumps occurrence_count and last_seen_at. Returns the
	// canonical entity id either way.
	UpsertEntity(ctx context.Context, entity *model.Entity) (uuid.UUID, error)

	// AddEvidence links an entity to an attesting chunk. Duplicate links
	// are ignored.
	AddEvidence(ctx context.Context, evidence model.Evidence) error

	// UpsertRelationship inserts a typed edge. Inserts are idempotent on
	// (from, to, type, source).
	UpsertRelationship(ctx context.Context, rel *model.Relationship) error

	// FindEntitiesByName looks up entities by normalized name.
	FindEntitiesByName(ctx context.Context, normalizedName string, limit int) ([]model.Entity, error)

	// GetEntities fetches entities by id.
	GetEntities(ctx context.Context, ids []uuid.UUID) ([]model.Entity, error)

	// Neighbors expands outward from the seed entities up to maxDepth
	// hops, following edges in both directions, with per-node fan-out
	// capped at maxFanout.
	Neighbors(ctx context.Context, seeds []uuid.UUID, maxDepth, maxFanout int) ([]model.Entity, []model.Relationship, error)

	// Paths finds up to limit acyclic paths between two entities within
	// maxHops hops.
	Paths(ctx context.Context, from, to uuid.UUID, maxHops, limit int) ([]model.GraphPath, error)

	// DeleteByChunks removes evidence rows for the given chunks and
	// garbage-collects entities left without evidence, with their edges.
	DeleteByChunks(ctx context.Context, chunkIDs []uuid.UUID) error

	// Stats returns entity and relationship counts.
	Stats(ctx context.Context) (entities int64, relationships int64, err error)
}

type entityRow struct {
	EntityID        string        `gorm:"column:entity_id;type:uuid;primaryKey"`
	EntityType      string        `gorm:"column:entity_type;type:varchar(32);uniqueIndex:uq_entities_key"`
	CanonicalName   string        `gorm:"column:canonical_name;type:varchar(512)"`
	NormalizedName  string        `gorm:"column:normalized_name;type:varchar(512);uniqueIndex:uq_entities_key;index:idx_entities_normalized"`
	ServiceName     string        `gorm:"column:service_name;type:varchar(255);uniqueIndex:uq_entities_key"`
	Language        string        `gorm:"column:language;type:varchar(64);uniqueIndex:uq_entities_key"`
	Metadata        store.JSONMap `gorm:"column:metadata"`
	FirstSeenAt     time.Time     `gorm:"column:first_seen_at"`
	LastSeenAt      time.Time     `gorm:"column:last_seen_at"`
	OccurrenceCount int           `gorm:"column:occurrence_count"`
}

func (entityRow) TableName() string { return "graph_entities" }

type relationshipRow struct {
	EdgeID           string        `gorm:"column:edge_id;type:uuid;primaryKey"`
	FromEntityID     string        `gorm:"column:from_entity_id;type:uuid;uniqueIndex:uq_relationships_key;index:idx_relationships_from"`
	ToEntityID       string        `gorm:"column:to_entity_id;type:uuid;uniqueIndex:uq_relationships_key;index:idx_relationships_to"`
	RelationshipType string        `gorm:"column:relationship_type;type:varchar(32);uniqueIndex:uq_relationships_key"`
	Confidence       float64       `gorm:"column:confidence"`
	Source           string        `gorm:"column:source;type:varchar(255);uniqueIndex:uq_relationships_key"`
	Metadata         store.JSONMap `gorm:"column:metadata"`
	CreatedAt        time.Time     `gorm:"column:created_at"`
}

func (relationshipRow) TableName() string { return "graph_relationships" }

type evidenceRow struct {
	EntityID         string  `gorm:"column:entity_id;type:uuid;primaryKey"`
	ChunkID          string  `gorm:"column:chunk_id;type:uuid;primaryKey;index:idx_evidence_chunk"`
	Confidence       float64 `gorm:"column:confidence"`
	ExtractionMethod string  `gorm:"column:extraction_method;type:varchar(64)"`
}

func (evidenceRow) TableName() string { return "graph_evidence" }

type graphStore struct {
	db     *gorm.DB
	mirror Mirror
}

// New creates a graph store. The mirror may be nil.
func New(db *gorm.DB, mirror Mirror) Store {
	return &graphStore{db: db, mirror: mirror}
}

// AutoMigrate creates or updates the graph tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&entityRow{}, &relationshipRow{}, &evidenceRow{})
}

func (r entityRow) toModel() model.Entity {
	id, _ := uuid.Parse(r.EntityID)
	return model.Entity{
		EntityID:        id,
		EntityType:      model.EntityType(r.EntityType),
		CanonicalName:   r.CanonicalName,
		NormalizedName:  r.NormalizedName,
		Language:        r.Language,
		ServiceName:     r.ServiceName,
		Metadata:        map[string]any(r.Metadata),
		FirstSeenAt:     r.FirstSeenAt,
		LastSeenAt:      r.LastSeenAt,
		OccurrenceCount: r.OccurrenceCount,
	}
}

func (r relationshipRow) toModel() model.Relationship {
	edgeID, _ := uuid.Parse(r.EdgeID)
	fromID, _ := uuid.Parse(r.FromEntityID)
	toID, _ := uuid.Parse(r.ToEntityID)
	return model.Relationship{
		EdgeID:           edgeID,
		FromEntityID:     fromID,
		ToEntityID:       toID,
		RelationshipType: model.RelationshipType(r.RelationshipType),
		Confidence:       r.Confidence,
		Source:           r.Source,
		Metadata:         map[string]any(r.Metadata),
		CreatedAt:        r.CreatedAt,
	}
}

func (s *graphStore) UpsertEntity(ctx context.Context, entity *model.Entity) (uuid.UUID, error) {
	if entity.EntityID == uuid.Nil {
		entity.EntityID = uuid.New()
	}
	now := time.Now().UTC()

	row := entityRow{
		EntityID:        entity.EntityID.String(),
		EntityType:      string(entity.EntityType),
		CanonicalName:   entity.CanonicalName,
		NormalizedName:  entity.NormalizedName,
		ServiceName:     entity.ServiceName,
		Language:        entity.Language,
		Metadata:        store.JSONMap(entity.Metadata),
		FirstSeenAt:     now,
		LastSeenAt:      now,
		OccurrenceCount: 1,
	}

	var canonicalID string
	err := s.db.WithContext(ctx).Raw(`
		INSERT INTO graph_entities
			(entity_id, entity_type, canonical_name, normalized_name, service_name, language, metadata, first_seen_at, last_seen_at, occurrence_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, normalized_name, service_name, language)
		DO UPDATE SET
			occurrence_count = graph_entities.occurrence_count + 1,
			last_seen_at = EXCLUDED.last_seen_at
		RETURNING entity_id`,
		row.EntityID, row.EntityType, row.CanonicalName, row.NormalizedName,
		row.ServiceName, row.Language, row.Metadata, row.FirstSeenAt,
		row.LastSeenAt, row.OccurrenceCount,
	).Scan(&canonicalID).Error
	if err != nil {
		return uuid.Nil, errors.ErrGraphPersistFailed.WithCause(err)
	}

	id, err := uuid.Parse(canonicalID)
	if err != nil {
		return uuid.Nil, errors.ErrGraphPersistFailed.WithCause(err)
	}
	entity.EntityID = id

	s.mirrorEntity(ctx, entity)
	return id, nil
}

func (s *graphStore) AddEvidence(ctx context.Context, evidence model.Evidence) error {
	row := evidenceRow{
		EntityID:         evidence.EntityID.String(),
		ChunkID:          evidence.ChunkID.String(),
		Confidence:       evidence.Confidence,
		ExtractionMethod: evidence.ExtractionMethod,
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return errors.ErrGraphPersistFailed.WithCause(err)
	}
	return nil
}

func (s *graphStore) UpsertRelationship(ctx context.Context, rel *model.Relationship) error {
	if rel.EdgeID == uuid.Nil {
		rel.EdgeID = uuid.New()
	}

	row := relationshipRow{
		EdgeID:           rel.EdgeID.String(),
		FromEntityID:     rel.FromEntityID.String(),
		ToEntityID:       rel.ToEntityID.String(),
		RelationshipType: string(rel.RelationshipType),
		Confidence:       rel.Confidence,
		Source:           rel.Source,
		Metadata:         store.JSONMap(rel.Metadata),
		CreatedAt:        time.Now().UTC(),
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "from_entity_id"}, {Name: "to_entity_id"},
				{Name: "relationship_type"}, {Name: "source"},
			},
			DoNothing: true,
		}).
		Create(&row).Error
	if err != nil {
		return errors.ErrGraphPersistFailed.WithCause(err)
	}

	s.mirrorRelationship(ctx, rel)
	return nil
}

func (s *graphStore) FindEntitiesByName(ctx context.Context, normalizedName string, limit int) ([]model.Entity, error) {
	if limit <= 0 {
		limit = 10
	}

	var rows []entityRow
	err := s.db.WithContext(ctx).
		Where("normalized_name = ?", normalizedName).
		Order("occurrence_count DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, errors.ErrGraphStore.WithCause(err)
	}

	entities := make([]model.Entity, len(rows))
	for i, r := range rows {
		entities[i] = r.toModel()
	}
	return entities, nil
}

func (s *graphStore) GetEntities(ctx context.Context, ids []uuid.UUID) ([]model.Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	var rows []entityRow
	if err := s.db.WithContext(ctx).Where("entity_id IN ?", strIDs).Find(&rows).Error; err != nil {
		return nil, errors.ErrGraphStore.WithCause(err)
	}

	entities := make([]model.Entity, len(rows))
	for i, r := range rows {
		entities[i] = r.toModel()
	}
	return entities, nil
}

func (s *graphStore) DeleteByChunks(ctx context.Context, chunkIDs []uuid.UUID) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	strIDs := make([]string, len(chunkIDs))
	for i, id := range chunkIDs {
		strIDs[i] = id.String()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chunk_id IN ?", strIDs).Delete(&evidenceRow{}).Error; err != nil {
			return err
		}

		// Entities with no surviving evidence are orphans; remove them
		// together with any edges touching them.
		orphanSubquery := tx.Model(&entityRow{}).
			Select("entity_id").
			Where("entity_id NOT IN (?)", tx.Model(&evidenceRow{}).Select("DISTINCT entity_id"))

		var orphanIDs []string
		if err := orphanSubquery.Find(&orphanIDs).Error; err != nil {
			return err
		}
		if len(orphanIDs) == 0 {
			return nil
		}

		if err := tx.Where("from_entity_id IN ? OR to_entity_id IN ?", orphanIDs, orphanIDs).
			Delete(&relationshipRow{}).Error; err != nil {
			return err
		}
		return tx.Where("entity_id IN ?", orphanIDs).Delete(&entityRow{}).Error
	})
	if err != nil {
		return errors.ErrGraphPersistFailed.WithCause(err)
	}

	s.mirrorDeleteOrphans(ctx)
	return nil
}

func (s *graphStore) Stats(ctx context.Context) (int64, int64, error) {
	var entities, relationships int64
	if err := s.db.WithContext(ctx).Model(&entityRow{}).Count(&entities).Error; err != nil {
		return 0, 0, errors.ErrGraphStore.WithCause(err)
	}
	if err := s.db.WithContext(ctx).Model(&relationshipRow{}).Count(&relationships).Error; err != nil {
		return 0, 0, errors.ErrGraphStore.WithCause(err)
	}
	return entities, relationships, nil
}
