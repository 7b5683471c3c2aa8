package model

import (
	"time"

	"github.com/google/uuid"
)

// Embedding is one dense vector for one chunk under one routing profile.
// A chunk may carry several embeddings, one per active profile.
type Embedding struct {
	ChunkID    uuid.UUID      `json:"chunk_id"`
	Profile    string         `json:"profile"`
	Vector     []float32      `json:"vector"`
	Dimension  int            `json:"dimension"`
	ModelTag   string         `json:"model_tag"`
	Normalized bool           `json:"normalized"`
	CreatedAt  time.Time      `json:"created_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// PointID is the vector-store point id for this embedding:
// "{chunk_id}:{profile}".
func (e *Embedding) PointID() string {
	return e.ChunkID.String() + ":" + e.Profile
}
