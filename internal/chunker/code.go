package chunker

import (
	"regexp"
	"strings"

	"github.com/kart-io/cortex-x/internal/pkg/model"
)

// constructPatterns matches top-level construct declarations per language.
// Matches must be anchored at a line start with no leading indentation so
// nested declarations stay inside their parent's chunk.
var constructPatterns = map[string]*regexp.Regexp{
	"go":         regexp.MustCompile(`(?m)^(func\s+(\(\s*\w+\s+\*?[\w.]+\s*\)\s*)?\w+|type\s+\w+\s+(struct|interface))`),
	"python":     regexp.MustCompile(`(?m)^(def\s+\w+|class\s+\w+|async\s+def\s+\w+)`),
	"rust":       regexp.MustCompile(`(?m)^(pub(\(\w+\))?\s+)?(fn|struct|enum|trait|impl|mod)\s+[\w<]`),
	"java":       regexp.MustCompile(`(?m)^(public|private|protected|abstract|final|\s)*\s*(class|interface|enum|record)\s+\w+`),
	"javascript": regexp.MustCompile(`(?m)^(export\s+)?(default\s+)?(async\s+)?(function\s+\w+|class\s+\w+|const\s+\w+\s*=\s*(async\s*)?\()`),
	"typescript": regexp.MustCompile(`(?m)^(export\s+)?(default\s+)?(abstract\s+)?(async\s+)?(function\s+\w+|class\s+\w+|interface\s+\w+|enum\s+\w+|type\s+\w+\s*=|const\s+\w+\s*=\s*(async\s*)?\()`),
}

var classLikeRe = regexp.MustCompile(`^\s*(export\s+)?(public|private|protected|abstract|final|default\s+)*\s*(class|interface|enum|trait|impl|record|type\s+\w+\s+(struct|interface))`)

// codeChunks emits one chunk per top-level construct. Constructs over the
// token budget split into statement groups with token overlap, each
// sub-chunk carrying the construct header as a prefix. Languages without a
// grammar fall back to wide prose windows breaking on statement ends.
func (c *Chunker) codeChunks(text, language string) []piece {
	re, ok := constructPatterns[language]
	if !ok {
		return c.windowChunks(text, 0, c.opts.CodeFallbackMaxChunk, c.opts.Overlap, model.BlockTypeCode, nil, codeFallbackBreak)
	}

	starts := re.FindAllStringIndex(text, -1)
	if len(starts) == 0 {
		return c.windowChunks(text, 0, c.opts.CodeFallbackMaxChunk, c.opts.Overlap, model.BlockTypeCode, nil, codeFallbackBreak)
	}

	var pieces []piece
	if starts[0][0] > 0 {
		if head := text[:starts[0][0]]; strings.TrimSpace(head) != "" {
			pieces = append(pieces, piece{content: head, start: 0, end: starts[0][0], blockType: model.BlockTypeCode})
		}
	}
	for i, m := range starts {
		begin := m[0]
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		pieces = append(pieces, c.constructPieces(text, begin, end)...)
	}
	return pieces
}

// constructPieces turns one construct region into one or more pieces,
// splitting by line groups when the region exceeds the token budget.
func (c *Chunker) constructPieces(text string, begin, end int) []piece {
	region := text[begin:end]
	bt := model.BlockTypeFunction
	if classLikeRe.MatchString(region) {
		bt = model.BlockTypeClass
	}

	if estimateTokens(region) <= c.opts.CodeMaxTokens {
		return []piece{{content: region, start: begin, end: end, blockType: bt}}
	}

	header := region
	if i := strings.IndexByte(region, '\n'); i >= 0 {
		header = region[:i]
	}

	maxChars := c.opts.CodeMaxTokens * 4
	overlapChars := c.opts.CodeOverlapTokens * 4
	var pieces []piece
	for _, sub := range c.splitByLines(region, maxChars, overlapChars) {
		content := sub.content
		meta := map[string]any{"split_construct": true}
		if sub.start > 0 {
			content = header + "\n" + content
			meta["header_prefix"] = true
		}
		pieces = append(pieces, piece{
			content:   content,
			start:     begin + sub.start,
			end:       begin + sub.end,
			blockType: bt,
			metadata:  meta,
		})
	}
	return pieces
}

type subSpan struct {
	content string
	start   int
	end     int
}

// splitByLines groups whole lines up to maxChars, re-including trailing
// lines worth up to overlapChars at each boundary.
func (c *Chunker) splitByLines(region string, maxChars, overlapChars int) []subSpan {
	var spans []subSpan
	start := 0
	for start < len(region) {
		end := start + maxChars
		if end >= len(region) {
			spans = append(spans, subSpan{content: region[start:], start: start, end: len(region)})
			break
		}
		if i := strings.LastIndexByte(region[start:end], '\n'); i > 0 {
			end = start + i + 1
		}
		spans = append(spans, subSpan{content: region[start:end], start: start, end: end})

		next := end - overlapChars
		if i := strings.IndexByte(region[next:], '\n'); i >= 0 && next+i+1 < end {
			next = next + i + 1
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return spans
}

// estimateTokens approximates tokenizer output at four characters per token.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}
