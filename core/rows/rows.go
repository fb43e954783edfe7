// Package rows derives the flat display read-model from a plan and its
// text buffer. The projection is recomputed from scratch after any plan
// mutation; it has no state of its own and is never written back.
package rows

import (
	"fmt"

	"github.com/FocuswithJustin/Lectern/core/plan"
	"github.com/FocuswithJustin/Lectern/core/text"
)

// ChunkLevel is the LineIndex sentinel for rows projected from a chunk
// without explicit lines.
const ChunkLevel = -1

// defaultSnippetRunes bounds snippet length when Options leaves it unset.
const defaultSnippetRunes = 80

// Row is one display row, projected from a line (or from a whole chunk in
// its implicit form).
type Row struct {
	// Key is the stable addressing key: the chunk key, plus the line index
	// for line-level rows.
	Key string `json:"key"`

	// ChunkID is the chunk's stable id, or the derived "{start}_{end}"
	// fallback for un-identified chunks.
	ChunkID string `json:"chunk_id"`

	// ChunkIndex is the chunk's position in the plan.
	ChunkIndex int `json:"chunk_index"`

	// LineIndex is the line's position within its chunk, or ChunkLevel for
	// a chunk-level row.
	LineIndex int `json:"line_index"`

	// Start and End are absolute rune offsets (inclusive).
	Start int `json:"start"`
	End   int `json:"end"`

	// Length is the row's extent in runes.
	Length int `json:"length"`

	// Voice is the narration voice, if assigned.
	Voice string `json:"voice,omitempty"`

	// Snippet is a bounded-length excerpt of the row's text.
	Snippet string `json:"snippet"`
}

// Options filters and shapes the projection.
type Options struct {
	// SnippetRunes bounds the snippet length; 0 means the default (80).
	SnippetRunes int

	// Voice restricts the projection to rows with this exact voice.
	Voice string

	// UnvoicedOnly restricts the projection to rows with no voice
	// assigned. Ignored when Voice is set.
	UnvoicedOnly bool
}

// Project derives the display rows for the plan: one row per explicit
// line, or one chunk-level row for a chunk in its implicit form.
func Project(p plan.Plan, buf *text.Buffer, opts Options) []Row {
	limit := opts.SnippetRunes
	if limit <= 0 {
		limit = defaultSnippetRunes
	}

	var out []Row
	for i, c := range p.Chunks {
		key := c.Key()
		if !c.HasLines() {
			r := Row{
				Key:        key,
				ChunkID:    key,
				ChunkIndex: i,
				LineIndex:  ChunkLevel,
				Start:      c.Start,
				End:        c.End,
				Length:     c.Len(),
				Voice:      c.Voice,
				Snippet:    snippet(buf, c.Start, c.End, limit),
			}
			if keep(r, opts) {
				out = append(out, r)
			}
			continue
		}
		for j, l := range c.Lines {
			r := Row{
				Key:        fmt.Sprintf("%s:%d", key, j),
				ChunkID:    key,
				ChunkIndex: i,
				LineIndex:  j,
				Start:      l.Start,
				End:        l.End,
				Length:     l.Len(),
				Voice:      l.Voice,
				Snippet:    snippet(buf, l.Start, l.End, limit),
			}
			if keep(r, opts) {
				out = append(out, r)
			}
		}
	}
	return out
}

func keep(r Row, opts Options) bool {
	if opts.Voice != "" {
		return r.Voice == opts.Voice
	}
	if opts.UnvoicedOnly {
		return r.Voice == ""
	}
	return true
}

// snippet returns at most limit runes of the span, with a trailing ellipsis
// when truncated.
func snippet(buf *text.Buffer, start, end, limit int) string {
	if end-start+1 <= limit {
		return buf.Span(start, end)
	}
	return buf.Span(start, start+limit-1) + "…"
}
