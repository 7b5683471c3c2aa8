package model

import (
	"time"

	"github.com/google/uuid"
)

// EntityType classifies a graph entity.
type EntityType string

const (
	EntityTypeFunction     EntityType = "function"
	EntityTypeClass        EntityType = "class"
	EntityTypeModule       EntityType = "module"
	EntityTypeAPIEndpoint  EntityType = "api_endpoint"
	EntityTypeIssue        EntityType = "issue"
	EntityTypePullRequest  EntityType = "pull_request"
	EntityTypePerson       EntityType = "person"
	EntityTypeOrganization EntityType = "organization"
	EntityTypeConcept      EntityType = "concept"
)

// RelationshipType classifies a typed edge between entities.
type RelationshipType string

const (
	RelImports    RelationshipType = "imports"
	RelCalls      RelationshipType = "calls"
	RelContains   RelationshipType = "contains"
	RelImplements RelationshipType = "implements"
	RelReferences RelationshipType = "references"
	RelMentions   RelationshipType = "mentions"
)

// Entity is a node in the knowledge graph. Entities are upserted on the
// uniqueness key (entity_type, normalized_name, service_name, language) and
// accumulate evidence; an entity with zero surviving evidence rows is
// garbage-collectable.
type Entity struct {
	EntityID        uuid.UUID      `json:"entity_id"`
	EntityType      EntityType     `json:"entity_type"`
	CanonicalName   string         `json:"canonical_name"`
	NormalizedName  string         `json:"normalized_name"`
	Language        string         `json:"language,omitempty"`
	ServiceName     string         `json:"service_name,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	FirstSeenAt     time.Time      `json:"first_seen_at"`
	LastSeenAt      time.Time      `json:"last_seen_at"`
	OccurrenceCount int            `json:"occurrence_count"`
}

// Relationship is a typed, confidence-weighted edge. Inserts are idempotent
// on (from, to, type, source).
type Relationship struct {
	EdgeID           uuid.UUID        `json:"edge_id"`
	FromEntityID     uuid.UUID        `json:"from_entity_id"`
	ToEntityID       uuid.UUID        `json:"to_entity_id"`
	RelationshipType RelationshipType `json:"relationship_type"`
	Confidence       float64          `json:"confidence"`
	Source           string           `json:"source"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Evidence links an entity to the chunk that attested to it.
type Evidence struct {
	EntityID         uuid.UUID `json:"entity_id"`
	ChunkID          uuid.UUID `json:"chunk_id"`
	Confidence       float64   `json:"confidence"`
	ExtractionMethod string    `json:"extraction_method"`
}

// GraphPath is an ordered walk between two entities, returned by path
// queries on the graph store.
type GraphPath struct {
	EntityIDs []uuid.UUID `json:"entity_ids"`
	Length    int         `json:"length"`
}
