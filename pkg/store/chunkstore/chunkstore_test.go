package chunkstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/cortex-x/internal/pkg/model"
)

func TestRowRoundTrip(t *testing.T) {
	chunk := model.Chunk{
		ChunkID:      model.ChunkIDFor("item-9", 3),
		SourceItemID: "item-9",
		ChunkIndex:   3,
		Content:      "func main() {}",
		StartOffset:  120,
		EndOffset:    134,
		BlockType:    model.BlockTypeFunction,
		Language:     "go",
		Metadata:     map[string]any{"file_path": "cmd/main.go"},
	}

	row := toRow(chunk)
	assert.Equal(t, chunk.ChunkID.String(), row.ChunkID)
	assert.Equal(t, "function", row.BlockType)

	text := row.toText()
	require.Equal(t, chunk.ChunkID, text.ChunkID)
	assert.Equal(t, chunk.Content, text.Content)
	assert.Equal(t, chunk.Language, text.Language)
	assert.Equal(t, "cmd/main.go", text.Metadata["file_path"])
}

func TestRowTableName(t *testing.T) {
	assert.Equal(t, "chunks", chunkRow{}.TableName())
}
