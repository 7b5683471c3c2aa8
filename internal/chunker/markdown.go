package chunker

import (
	"strings"

	"github.com/kart-io/cortex-x/internal/pkg/model"
)

// markdownChunks sections the document at ATX headings, keeps a heading
// stack so every section records its full heading path, and prose-chunks
// each section body. Documents without headings degrade to plain prose.
func (c *Chunker) markdownChunks(text string) []piece {
	sections := splitSections(text)
	if len(sections) == 1 && sections[0].level == 0 {
		return c.proseChunks(text, model.BlockTypeText)
	}

	var pieces []piece
	var stack []headingFrame
	for _, sec := range sections {
		if sec.level > 0 {
			for len(stack) > 0 && stack[len(stack)-1].level >= sec.level {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, headingFrame{level: sec.level, title: sec.title})
		}

		meta := map[string]any{}
		if path := headingPath(stack); path != "" {
			meta["heading_path"] = path
		}
		bt := model.BlockTypeText
		if sec.level > 0 {
			bt = model.BlockTypeHeading
		}
		pieces = append(pieces, c.windowChunks(sec.body, sec.start, c.opts.MaxChunk, c.opts.Overlap, bt, meta, proseBreak)...)
	}
	return pieces
}

type headingFrame struct {
	level int
	title string
}

func headingPath(stack []headingFrame) string {
	titles := make([]string, 0, len(stack))
	for _, f := range stack {
		titles = append(titles, f.title)
	}
	return strings.Join(titles, " > ")
}

// section is a contiguous byte range starting at a heading line (or at the
// top of the document before the first heading, level 0).
type section struct {
	level int
	title string
	body  string
	start int
}

func splitSections(text string) []section {
	var sections []section
	cur := section{start: 0}
	offset := 0

	flush := func(end int) {
		cur.body = text[cur.start:end]
		if strings.TrimSpace(cur.body) != "" || cur.level > 0 {
			sections = append(sections, cur)
		}
	}

	for offset < len(text) {
		lineEnd := strings.IndexByte(text[offset:], '\n')
		if lineEnd < 0 {
			lineEnd = len(text)
		} else {
			lineEnd = offset + lineEnd + 1
		}
		line := text[offset:lineEnd]

		if level, title, ok := parseHeading(line); ok {
			if offset > cur.start || cur.level > 0 {
				flush(offset)
			}
			cur = section{level: level, title: title, start: offset}
		}
		offset = lineEnd
	}
	flush(len(text))

	if len(sections) == 0 {
		return []section{{body: text}}
	}
	return sections
}

func parseHeading(line string) (level int, title string, ok bool) {
	i := 0
	for i < len(line) && line[i] == '#' {
		i++
	}
	if i == 0 || i > 6 || i >= len(line) || line[i] != ' ' {
		return 0, "", false
	}
	return i, strings.TrimSpace(line[i:]), true
}
