package model

import (
	"fmt"

	"github.com/google/uuid"
)

// BlockType classifies what a chunk contains.
type BlockType string

const (
	BlockTypeCode     BlockType = "code"
	BlockTypeFunction BlockType = "function"
	BlockTypeClass    BlockType = "class"
	BlockTypeText     BlockType = "text"
	BlockTypeHeading  BlockType = "heading"
	BlockTypeComment  BlockType = "comment"
)

// Chunk is a retrieval unit carved from exactly one SourceItem.
//
// The chunk id is a pure function of the source item id and the chunk index,
// so re-chunking a byte-identical item reproduces identical ids. Byte offsets
// are half-open [StartOffset, EndOffset) into the source payload and may
// overlap across adjacent chunks up to the configured overlap budget.
type Chunk struct {
	ChunkID      uuid.UUID      `json:"chunk_id"`
	SourceItemID string         `json:"source_item_id"`
	ChunkIndex   int            `json:"chunk_index"`
	Content      string         `json:"content"`
	StartOffset  int            `json:"start_offset"`
	EndOffset    int            `json:"end_offset"`
	BlockType    BlockType      `json:"block_type"`
	Language     string         `json:"language,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// ChunkIDFor derives the deterministic chunk id for a source item and index:
// UUIDv5 over the OID namespace of "{source_item_id}-{chunk_index}".
func ChunkIDFor(sourceItemID string, index int) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s-%d", sourceItemID, index)))
}

// ChunkRef identifies a chunk without carrying its text. The graph extractor
// receives refs and hydrates text from the durable store itself, keeping the
// store the single source of truth.
type ChunkRef struct {
	ChunkID   uuid.UUID      `json:"chunk_id" binding:"required"`
	BlockType BlockType      `json:"block_type,omitempty"`
	Language  string         `json:"language,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ChunkText is the durable text of a chunk as read back from the store.
type ChunkText struct {
	ChunkID   uuid.UUID      `json:"chunk_id"`
	Content   string         `json:"content"`
	BlockType BlockType      `json:"block_type,omitempty"`
	Language  string         `json:"language,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
