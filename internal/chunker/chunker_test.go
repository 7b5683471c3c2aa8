package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/cortex-x/internal/pkg/model"
	"github.com/kart-io/cortex-x/pkg/errors"
	chunkeropts "github.com/kart-io/cortex-x/pkg/options/chunker"
)

func tinyOptions() *chunkeropts.Options {
	o := chunkeropts.NewOptions()
	o.MaxChunk = 8
	o.Overlap = 2
	o.MinChunkChars = 0
	return o
}

func TestChunkSlidingWindow(t *testing.T) {
	item := &model.SourceItem{
		ID:          "11111111-1111-1111-1111-111111111111",
		ContentType: model.ContentTypePlain,
		Content:     "abc. def. ghi.",
	}

	chunks, err := New(tinyOptions()).Chunk(item)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "abc. def", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, 8, chunks[0].EndOffset)

	assert.Equal(t, 6, chunks[1].StartOffset)
	assert.Equal(t, len(item.Content), chunks[1].EndOffset)
	assert.Equal(t, item.Content[chunks[1].StartOffset:chunks[1].EndOffset], chunks[1].Content)

	assert.Equal(t, model.ChunkIDFor(item.ID, 0), chunks[0].ChunkID)
	assert.Equal(t, model.ChunkIDFor(item.ID, 1), chunks[1].ChunkID)
}

func TestChunkDeterministic(t *testing.T) {
	item := &model.SourceItem{
		ID:          "det-item",
		ContentType: model.ContentTypePlain,
		Content:     strings.Repeat("The quick brown fox jumps over the lazy dog. ", 120),
	}

	c := New(nil)
	first, err := c.Chunk(item)
	require.NoError(t, err)
	second, err := c.Chunk(item)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.NotEmpty(t, first)

	for i, ch := range first {
		assert.Equal(t, i, ch.ChunkIndex)
		assert.Equal(t, item.Content[ch.StartOffset:ch.EndOffset], ch.Content)
	}
}

func TestChunkOverlapBudget(t *testing.T) {
	item := &model.SourceItem{
		ID:          "overlap-item",
		ContentType: model.ContentTypePlain,
		Content:     strings.Repeat("alpha beta gamma delta epsilon. ", 200),
	}

	chunks, err := New(nil).Chunk(item)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	opts := chunkeropts.NewOptions()
	for i := 1; i < len(chunks); i++ {
		overlap := chunks[i-1].EndOffset - chunks[i].StartOffset
		assert.GreaterOrEqual(t, overlap, 0)
		assert.LessOrEqual(t, overlap, opts.Overlap)
	}
}

func TestChunkMergesShortPieces(t *testing.T) {
	opts := chunkeropts.NewOptions()
	opts.MaxChunk = 40
	opts.Overlap = 0
	opts.MinChunkChars = 16

	item := &model.SourceItem{
		ID:          "merge-item",
		ContentType: model.ContentTypePlain,
		Content:     "short bit. " + strings.Repeat("a longer run of text follows here. ", 4),
	}

	chunks, err := New(opts).Chunk(item)
	require.NoError(t, err)
	for _, ch := range chunks {
		n := 0
		for _, r := range ch.Content {
			if r != ' ' && r != '\n' && r != '\t' {
				n++
			}
		}
		assert.GreaterOrEqual(t, n, opts.MinChunkChars)
	}
}

func TestChunkUnsupportedContentType(t *testing.T) {
	_, err := New(nil).Chunk(&model.SourceItem{ID: "x", ContentType: "image/png", Content: "…"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrUnsupportedContentType.Code))
}

func TestChunkInvalidUTF8FallsBack(t *testing.T) {
	item := &model.SourceItem{
		ID:          "bad-bytes",
		ContentType: model.ContentTypeMarkdown,
		Content:     "# Title\n\nvalid text here" + string([]byte{0xff, 0xfe}),
	}

	opts := chunkeropts.NewOptions()
	opts.MinChunkChars = 0
	chunks, err := New(opts).Chunk(item)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.Equal(t, true, ch.Metadata["decode_loss"])
		assert.NotContains(t, ch.Content, "\xff")
	}
}

func TestMarkdownHeadingSections(t *testing.T) {
	content := "# Guide\n\nintro paragraph with enough words to stand alone as a chunk.\n\n## Setup\n\ninstall the binary and configure credentials before first run.\n"
	item := &model.SourceItem{ID: "md-item", ContentType: model.ContentTypeMarkdown, Content: content}

	opts := chunkeropts.NewOptions()
	opts.MinChunkChars = 8
	chunks, err := New(opts).Chunk(item)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, model.BlockTypeHeading, chunks[0].BlockType)
	assert.Equal(t, "Guide", chunks[0].Metadata["heading_path"])
	assert.Equal(t, "Guide > Setup", chunks[1].Metadata["heading_path"])
	for _, ch := range chunks {
		assert.Equal(t, content[ch.StartOffset:ch.EndOffset], ch.Content)
	}
}

func TestMarkdownWithoutHeadingsIsProse(t *testing.T) {
	item := &model.SourceItem{
		ID:          "md-plain",
		ContentType: model.ContentTypeMarkdown,
		Content:     "just ordinary text with no headings at all, long enough to keep.",
	}

	opts := chunkeropts.NewOptions()
	opts.MinChunkChars = 0
	chunks, err := New(opts).Chunk(item)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, model.BlockTypeText, chunks[0].BlockType)
	assert.Nil(t, chunks[0].Metadata)
}

func TestCodeConstructChunks(t *testing.T) {
	content := `package demo

func Add(a, b int) int {
	return a + b
}

type Counter struct {
	n int
}

func (c *Counter) Inc() {
	c.n++
}
`
	item := &model.SourceItem{ID: "go-item", ContentType: model.ContentTypeCode("go"), Content: content}

	opts := chunkeropts.NewOptions()
	opts.MinChunkChars = 0
	chunks, err := New(opts).Chunk(item)
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	assert.Equal(t, model.BlockTypeCode, chunks[0].BlockType)
	assert.Contains(t, chunks[1].Content, "func Add")
	assert.Equal(t, model.BlockTypeFunction, chunks[1].BlockType)
	assert.Equal(t, model.BlockTypeClass, chunks[2].BlockType)
	assert.Contains(t, chunks[3].Content, "func (c *Counter) Inc")

	for _, ch := range chunks {
		assert.Equal(t, "go", ch.Language)
		assert.Equal(t, content[ch.StartOffset:ch.EndOffset], ch.Content)
	}
}

func TestCodeOversizedConstructSplits(t *testing.T) {
	var b strings.Builder
	b.WriteString("func Big() {\n")
	for i := 0; i < 200; i++ {
		b.WriteString("\tdoSomethingFairlyVerbose(i, \"argument text to pad the line out\")\n")
	}
	b.WriteString("}\n")

	opts := chunkeropts.NewOptions()
	opts.MinChunkChars = 0
	item := &model.SourceItem{ID: "big-fn", ContentType: model.ContentTypeCode("go"), Content: b.String()}

	chunks, err := New(opts).Chunk(item)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Content), opts.CodeMaxTokens*4+len("func Big() {")+1)
		assert.Equal(t, true, ch.Metadata["split_construct"])
		if i > 0 {
			assert.True(t, strings.HasPrefix(ch.Content, "func Big() {\n"))
			assert.Equal(t, true, ch.Metadata["header_prefix"])
		}
	}
}

func TestCodeUnknownLanguageFallsBack(t *testing.T) {
	item := &model.SourceItem{
		ID:          "cob-item",
		ContentType: model.ContentTypeCode("cobol"),
		Content:     strings.Repeat("MOVE A TO B; ", 300),
	}

	opts := chunkeropts.NewOptions()
	opts.MinChunkChars = 0
	chunks, err := New(opts).Chunk(item)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.Equal(t, model.BlockTypeCode, ch.BlockType)
		assert.LessOrEqual(t, ch.EndOffset-ch.StartOffset, opts.CodeFallbackMaxChunk)
	}
}

func TestChatCoalescesSameSpeaker(t *testing.T) {
	content := "alice: did the deploy finish?\nalice: asking because the dashboard looks stale\nbob: yes, finished ten minutes ago\nalice: thanks\n"
	item := &model.SourceItem{ID: "chat-item", ContentType: model.ContentTypeChat, Content: content}

	opts := chunkeropts.NewOptions()
	opts.MinChunkChars = 0
	chunks, err := New(opts).Chunk(item)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "alice", chunks[0].Metadata["speaker"])
	assert.Contains(t, chunks[0].Content, "dashboard looks stale")
	assert.Equal(t, "bob", chunks[1].Metadata["speaker"])
	assert.Equal(t, "alice", chunks[2].Metadata["speaker"])
	for _, ch := range chunks {
		assert.Equal(t, content[ch.StartOffset:ch.EndOffset], ch.Content)
	}
}

func TestHTMLStripsMarkup(t *testing.T) {
	item := &model.SourceItem{
		ID:          "html-item",
		ContentType: model.ContentTypeHTML,
		Content:     "<html><head><style>p{color:red}</style></head><body><p>Hello &amp; welcome to the runbook.</p><p>Second paragraph here.</p></body></html>",
	}

	opts := chunkeropts.NewOptions()
	opts.MinChunkChars = 0
	chunks, err := New(opts).Chunk(item)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	joined := ""
	for _, ch := range chunks {
		assert.Equal(t, true, ch.Metadata["extracted_text"])
		joined += ch.Content
	}
	assert.Contains(t, joined, "Hello & welcome")
	assert.NotContains(t, joined, "<p>")
	assert.NotContains(t, joined, "color:red")
}

func TestChunkProfileDerivation(t *testing.T) {
	assert.Equal(t, model.ProfileCode, (&model.SourceItem{ContentType: model.ContentTypeCode("rust")}).Profile())
	assert.Equal(t, model.ProfileProse, (&model.SourceItem{ContentType: model.ContentTypeMarkdown}).Profile())
	assert.Equal(t, model.ProfileChat, (&model.SourceItem{ContentType: model.ContentTypeChat}).Profile())
	assert.Equal(t, model.ProfilePDF, (&model.SourceItem{ContentType: model.ContentTypePDFText}).Profile())
}
