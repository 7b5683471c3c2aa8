package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkIDForDeterministic(t *testing.T) {
	a := ChunkIDFor("item-1", 0)
	b := ChunkIDFor("item-1", 0)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, ChunkIDFor("item-1", 1))
	assert.NotEqual(t, a, ChunkIDFor("item-2", 0))
}

func TestContentTypeCode(t *testing.T) {
	ct := ContentTypeCode("Rust")
	assert.Equal(t, ContentType("text/code:rust"), ct)
	assert.True(t, ct.IsCode())
	assert.Equal(t, "rust", ct.Language())
	assert.True(t, ct.Valid())

	assert.False(t, ContentTypePlain.IsCode())
	assert.Empty(t, ContentTypePlain.Language())
	assert.False(t, ContentType("image/png").Valid())
	assert.False(t, ContentType("text/code:").Valid())
}

func TestSourceItemProfile(t *testing.T) {
	tests := []struct {
		name string
		item SourceItem
		want string
	}{
		{"code", SourceItem{ContentType: ContentTypeCode("go")}, ProfileCode},
		{"chat", SourceItem{ContentType: ContentTypeChat}, ProfileChat},
		{"pdf", SourceItem{ContentType: ContentTypePDFText}, ProfilePDF},
		{"plain", SourceItem{ContentType: ContentTypePlain}, ProfileProse},
		{"markdown", SourceItem{ContentType: ContentTypeMarkdown}, ProfileProse},
		{
			"metadata override",
			SourceItem{ContentType: ContentTypePlain, Metadata: map[string]any{"profile": "chat"}},
			ProfileChat,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.Profile())
		})
	}
}

func TestEmbeddingPointID(t *testing.T) {
	e := Embedding{ChunkID: ChunkIDFor("item-1", 0), Profile: ProfileCode}
	assert.Equal(t, e.ChunkID.String()+":code", e.PointID())
}
