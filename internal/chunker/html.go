package chunker

import (
	"regexp"
	"strings"

	"github.com/kart-io/cortex-x/internal/pkg/model"
)

var (
	htmlScriptRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	htmlTagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	htmlBlankRe  = regexp.MustCompile(`\n{3,}`)
	htmlSpaceRe  = regexp.MustCompile(`[ \t]{2,}`)
)

// htmlChunks strips markup and prose-chunks the extracted text. Offsets
// refer to the extracted text, not the raw markup; chunks carry an
// extracted_text marker so readers know reconstruction targets the
// stripped form.
func (c *Chunker) htmlChunks(text string) []piece {
	stripped := stripHTML(text)
	if strings.TrimSpace(stripped) == "" {
		return nil
	}

	meta := map[string]any{"extracted_text": true}
	return c.windowChunks(stripped, 0, c.opts.MaxChunk, c.opts.Overlap, model.BlockTypeText, meta, proseBreak)
}

func stripHTML(text string) string {
	s := htmlScriptRe.ReplaceAllString(text, "\n")
	// Block-level closers become newlines so paragraph break preference
	// still has boundaries to find.
	for _, tag := range []string{"</p>", "</div>", "</li>", "</h1>", "</h2>", "</h3>", "</h4>", "</tr>", "<br>", "<br/>", "<br />"} {
		s = strings.ReplaceAll(s, tag, tag+"\n")
	}
	s = htmlTagRe.ReplaceAllString(s, "")
	s = htmlUnescape(s)
	s = htmlSpaceRe.ReplaceAllString(s, " ")
	s = htmlBlankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

var htmlEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

func htmlUnescape(s string) string {
	return htmlEntities.Replace(s)
}
