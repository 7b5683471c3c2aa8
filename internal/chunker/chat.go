package chunker

import (
	"regexp"
	"strings"

	"github.com/kart-io/cortex-x/internal/pkg/model"
)

// speakerLineRe matches the start of a transcript turn: "alice: hi" or
// "[2024-01-02 10:00] bob: hello".
var speakerLineRe = regexp.MustCompile(`^(\[[^\]]+\]\s*)?([\w.@-]+(\s[\w.@-]+)?):\s`)

// chatChunks emits one chunk per message. Contiguous turns from the same
// speaker coalesce while the combined text stays under MaxChunk. Transcripts
// with no recognizable speaker lines degrade to prose.
func (c *Chunker) chatChunks(text string) []piece {
	msgs := splitMessages(text)
	if len(msgs) == 0 {
		return c.proseChunks(text, model.BlockTypeText)
	}

	var pieces []piece
	cur := msgs[0]
	for _, m := range msgs[1:] {
		if m.speaker == cur.speaker && (m.end-cur.start) <= c.opts.MaxChunk {
			cur.end = m.end
			continue
		}
		pieces = append(pieces, c.messagePiece(text, cur))
		cur = m
	}
	pieces = append(pieces, c.messagePiece(text, cur))
	return pieces
}

func (c *Chunker) messagePiece(text string, m message) piece {
	return piece{
		content:   text[m.start:m.end],
		start:     m.start,
		end:       m.end,
		blockType: model.BlockTypeText,
		metadata:  map[string]any{"speaker": m.speaker},
	}
}

type message struct {
	speaker string
	start   int
	end     int
}

// splitMessages walks the transcript line by line; a speaker line opens a
// new message and continuation lines extend the current one.
func splitMessages(text string) []message {
	var msgs []message
	offset := 0
	for offset < len(text) {
		lineEnd := strings.IndexByte(text[offset:], '\n')
		if lineEnd < 0 {
			lineEnd = len(text)
		} else {
			lineEnd = offset + lineEnd + 1
		}
		line := text[offset:lineEnd]

		if m := speakerLineRe.FindStringSubmatch(line); m != nil {
			msgs = append(msgs, message{speaker: m[2], start: offset, end: lineEnd})
		} else if len(msgs) > 0 {
			msgs[len(msgs)-1].end = lineEnd
		}
		offset = lineEnd
	}
	return msgs
}
