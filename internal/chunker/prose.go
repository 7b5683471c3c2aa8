package chunker

import (
	"strings"

	"github.com/kart-io/cortex-x/internal/pkg/model"
)

// breakFunc picks a break point in text within (lo, hi]; it returns hi when
// no preferred boundary exists in that range.
type breakFunc func(text string, lo, hi int) int

// proseChunks slides a MaxChunk window over text with Overlap, preferring
// paragraph, then sentence, then whitespace boundaries inside the final 20%
// of each window.
func (c *Chunker) proseChunks(text string, bt model.BlockType) []piece {
	return c.windowChunks(text, 0, c.opts.MaxChunk, c.opts.Overlap, bt, nil, proseBreak)
}

// windowChunks is the shared sliding-window core. base shifts offsets so
// strategies chunking a sub-region report positions in the full payload.
func (c *Chunker) windowChunks(text string, base, maxChunk, overlap int, bt model.BlockType, meta map[string]any, brk breakFunc) []piece {
	if text == "" {
		return nil
	}

	var pieces []piece
	start := 0
	for start < len(text) {
		end := start + maxChunk
		if end >= len(text) {
			end = len(text)
		} else {
			end = brk(text, start+maxChunk*4/5, end)
			end = alignRune(text, end)
		}
		pieces = append(pieces, piece{
			content:   text[start:end],
			start:     base + start,
			end:       base + end,
			blockType: bt,
			metadata:  cloneMeta(meta),
		})
		if end == len(text) {
			break
		}
		next := end - overlap
		next = alignRune(text, next)
		if next <= start {
			next = end
		}
		start = next
	}
	return pieces
}

// proseBreak prefers a paragraph boundary, then the end of a sentence, then
// any whitespace, scanning backwards from hi into the zone above lo.
func proseBreak(text string, lo, hi int) int {
	zone := text[lo:hi]

	if i := strings.LastIndex(zone, "\n\n"); i >= 0 {
		return lo + i + 1
	}
	for i := len(zone) - 1; i > 0; i-- {
		ch := zone[i-1]
		if (ch == '.' || ch == '!' || ch == '?') && isSpaceByte(zone[i]) {
			return lo + i
		}
	}
	for i := len(zone) - 1; i >= 0; i-- {
		if isSpaceByte(zone[i]) {
			return lo + i
		}
	}
	return hi
}

// codeFallbackBreak breaks at statement terminators or blank lines, for code
// in a language without a construct grammar.
func codeFallbackBreak(text string, lo, hi int) int {
	zone := text[lo:hi]

	for i := len(zone) - 1; i >= 0; i-- {
		if zone[i] == ';' || zone[i] == '}' {
			return lo + i + 1
		}
	}
	if i := strings.LastIndex(zone, "\n\n"); i >= 0 {
		return lo + i + 1
	}
	return proseBreak(text, lo, hi)
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// alignRune moves i back to the nearest rune start so windows never split a
// multi-byte character.
func alignRune(text string, i int) int {
	for i > 0 && i < len(text) && text[i]&0xC0 == 0x80 {
		i--
	}
	return i
}

func cloneMeta(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
