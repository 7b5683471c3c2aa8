// Package chunker splits source items into retrieval units. Chunking is a
// pure function of the payload and the configured budgets: no clock, no
// randomness, so re-ingesting a byte-identical item reproduces identical
// chunk ids and offsets.
package chunker

import (
	"unicode/utf8"

	"github.com/kart-io/logger"

	"github.com/kart-io/cortex-x/internal/pkg/model"
	"github.com/kart-io/cortex-x/pkg/errors"
	chunkeropts "github.com/kart-io/cortex-x/pkg/options/chunker"
)

// Chunker turns a SourceItem into an ordered slice of chunks.
type Chunker struct {
	opts *chunkeropts.Options
}

// New creates a Chunker with the given budgets. A nil opts uses defaults.
func New(opts *chunkeropts.Options) *Chunker {
	if opts == nil {
		opts = chunkeropts.NewOptions()
	}
	return &Chunker{opts: opts}
}

// Chunk splits the item by its content type. Chunk ids derive from the
// source item id and chunk index, offsets are half-open byte ranges into
// the payload the strategy operated on.
func (c *Chunker) Chunk(item *model.SourceItem) ([]model.Chunk, error) {
	if item == nil || !item.ContentType.Valid() {
		ct := model.ContentType("")
		if item != nil {
			ct = item.ContentType
		}
		return nil, errors.ErrUnsupportedContentType.WithMessagef("content type %q", ct)
	}

	content := item.Content
	var decodeLoss bool
	if !utf8.ValidString(content) {
		// Keep the longest valid prefix and fall back to prose so the
		// item still yields retrievable text.
		content = validPrefix(content)
		decodeLoss = true
		logger.Warnw("source item payload is not valid UTF-8, chunking valid prefix",
			"source_item_id", item.ID,
			"kept_bytes", len(content),
			"dropped_bytes", len(item.Content)-len(content))
	}

	var pieces []piece
	switch {
	case decodeLoss:
		pieces = c.proseChunks(content, model.BlockTypeText)
	case item.ContentType.IsCode():
		pieces = c.codeChunks(content, item.ContentType.Language())
	case item.ContentType == model.ContentTypeMarkdown:
		pieces = c.markdownChunks(content)
	case item.ContentType == model.ContentTypeHTML:
		pieces = c.htmlChunks(content)
	case item.ContentType == model.ContentTypeChat:
		pieces = c.chatChunks(content)
	default:
		pieces = c.proseChunks(content, model.BlockTypeText)
	}

	pieces = c.mergeShort(pieces)

	chunks := make([]model.Chunk, 0, len(pieces))
	for i, p := range pieces {
		ch := model.Chunk{
			ChunkID:      model.ChunkIDFor(item.ID, i),
			SourceItemID: item.ID,
			ChunkIndex:   i,
			Content:      p.content,
			StartOffset:  p.start,
			EndOffset:    p.end,
			BlockType:    p.blockType,
			Language:     item.ContentType.Language(),
			Metadata:     p.metadata,
		}
		if decodeLoss {
			if ch.Metadata == nil {
				ch.Metadata = map[string]any{}
			}
			ch.Metadata["decode_loss"] = true
		}
		chunks = append(chunks, ch)
	}
	return chunks, nil
}

// piece is a chunk before id assignment. content normally equals the
// payload slice [start:end); code sub-chunks prefixed with their construct
// header are the exception and mark themselves in metadata.
type piece struct {
	content   string
	start     int
	end       int
	blockType model.BlockType
	metadata  map[string]any
}

// mergeShort folds pieces with fewer than MinChunkChars non-whitespace
// characters into their successor; a short trailing piece folds into its
// predecessor instead.
func (c *Chunker) mergeShort(pieces []piece) []piece {
	min := c.opts.MinChunkChars
	if min <= 0 || len(pieces) <= 1 {
		return pieces
	}

	out := make([]piece, 0, len(pieces))
	for i := 0; i < len(pieces); i++ {
		p := pieces[i]
		for nonSpaceCount(p.content) < min && i+1 < len(pieces) {
			i++
			p = joinPieces(p, pieces[i])
		}
		out = append(out, p)
	}
	if len(out) > 1 {
		last := out[len(out)-1]
		if nonSpaceCount(last.content) < min {
			out[len(out)-2] = joinPieces(out[len(out)-2], last)
			out = out[:len(out)-1]
		}
	}
	return out
}

func joinPieces(a, b piece) piece {
	merged := piece{start: a.start, end: b.end, blockType: a.blockType, metadata: a.metadata}
	switch {
	case b.start >= a.start && b.start < a.end && a.end-b.start <= len(b.content):
		// Overlapping raw slices: drop the duplicated overlap so the
		// merged content still equals the payload range [start, end).
		merged.content = a.content + b.content[a.end-b.start:]
	case b.start == a.end:
		merged.content = a.content + b.content
	default:
		merged.content = a.content + "\n" + b.content
	}
	return merged
}

func nonSpaceCount(s string) int {
	n := 0
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			n++
		}
	}
	return n
}

func validPrefix(s string) string {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size <= 1 {
			return s[:i]
		}
		i += size
	}
	return s
}
