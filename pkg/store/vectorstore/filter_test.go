package vectorstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/cortex-x/internal/pkg/model"
)

func TestFilterExpr(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   string
	}{
		{
			name:   "empty",
			filter: NewFilter(),
			want:   "",
		},
		{
			name:   "single equality",
			filter: NewFilter().Eq("tenant_id", "acme"),
			want:   `tenant_id == "acme"`,
		},
		{
			name:   "fields sorted deterministically",
			filter: NewFilter().Eq("profile", "code").Eq("tenant_id", "acme"),
			want:   `profile == "code" and tenant_id == "acme"`,
		},
		{
			name:   "in clause",
			filter: NewFilter().In("source_type", []string{"text/markdown", "chat/transcript"}),
			want:   `source_type in ["text/markdown", "chat/transcript"]`,
		},
		{
			name:   "empty in list is dropped",
			filter: NewFilter().Eq("tenant_id", "acme").In("source_type", nil),
			want:   `tenant_id == "acme"`,
		},
		{
			name:   "time range",
			filter: NewFilter().TimeRange(100, 200),
			want:   "timestamp >= 100 and timestamp <= 200",
		},
		{
			name:   "quotes escaped",
			filter: NewFilter().Eq("tenant_id", `a"b`),
			want:   `tenant_id == "a\"b"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Expr())
		})
	}
}

func TestPointFromEmbedding(t *testing.T) {
	chunkID := model.ChunkIDFor("item-1", 0)
	emb := &model.Embedding{
		ChunkID:   chunkID,
		Profile:   model.ProfileCode,
		Vector:    []float32{0.1, 0.2},
		Dimension: 2,
		CreatedAt: time.Unix(1700000000, 0),
	}
	item := &model.SourceItem{
		ID:          "item-1",
		TenantID:    "acme",
		ContentType: model.ContentTypeCode("go"),
		Metadata:    map[string]any{"timestamp": float64(1690000000)},
	}

	p := PointFromEmbedding(emb, item)
	assert.Equal(t, chunkID.String()+":code", p.ID)
	assert.Equal(t, "item-1", p.SourceItemID)
	assert.Equal(t, "acme", p.TenantID)
	assert.Equal(t, "text/code:go", p.SourceType)
	assert.Equal(t, int64(1690000000), p.Timestamp)
}

func TestPointFromEmbeddingFallsBackToCreationTime(t *testing.T) {
	emb := &model.Embedding{
		ChunkID:   model.ChunkIDFor("item-2", 0),
		Profile:   model.ProfileProse,
		CreatedAt: time.Unix(1700000000, 0),
	}
	item := &model.SourceItem{ID: "item-2", ContentType: model.ContentTypePlain}

	p := PointFromEmbedding(emb, item)
	assert.Equal(t, int64(1700000000), p.Timestamp)
}
