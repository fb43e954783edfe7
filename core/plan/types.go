package plan

// types.go - Consolidated plan schema type definitions
// All offsets are zero-based rune indices into the normalized chapter text
// (core/text). Ranges are inclusive on both ends.

import "fmt"

// Line is the smallest addressable narration unit: a sub-range of a chunk
// with an optional narration voice.
type Line struct {
	// Start is the first rune of the line.
	Start int `json:"start"`

	// End is the last rune of the line (inclusive).
	End int `json:"end"`

	// Voice is the opaque narration voice identifier, if assigned.
	// Lectern never validates voice names; the roster is an external concern.
	Voice string `json:"voice,omitempty"`
}

// Len returns the line length in runes.
func (l Line) Len() int {
	return l.End - l.Start + 1
}

// Chunk is a top-level contiguous range of chapter text, the unit provider
// caps act on. A chunk with no Lines is implicitly a single line spanning
// [Start, End] carrying Voice; EnsureLines materializes the explicit form.
type Chunk struct {
	// ID is the persisted stable identifier, if one has been assigned.
	// Only the ID standardizer assigns ids; they are never invented here.
	ID string `json:"id,omitempty"`

	// Start is the first rune of the chunk.
	Start int `json:"start"`

	// End is the last rune of the chunk (inclusive).
	End int `json:"end"`

	// Voice is the chunk-level narration voice. Only meaningful while the
	// chunk is in its implicit (no Lines) form; materialization moves it
	// into the single materialized line.
	Voice string `json:"voice,omitempty"`

	// Lines is the ordered explicit line list, or nil for the implicit form.
	// An empty non-nil list is meaningful (all lines deleted), so the field
	// must not collapse to nil through serialization.
	Lines []Line `json:"lines"`
}

// Len returns the chunk length in runes.
func (c Chunk) Len() int {
	return c.End - c.Start + 1
}

// HasLines reports whether the chunk carries an explicit line list.
func (c Chunk) HasLines() bool {
	return c.Lines != nil
}

// LineCount returns the number of addressable lines: the explicit count,
// or 1 for the implicit single-line form.
func (c Chunk) LineCount() int {
	if c.Lines == nil {
		return 1
	}
	return len(c.Lines)
}

// Key returns the chunk's stable id, or the derived fallback display key
// "{start}_{end}" for un-identified chunks. The fallback is an addressing
// convenience only and is never written back into the plan.
func (c Chunk) Key() string {
	if c.ID != "" {
		return c.ID
	}
	return fmt.Sprintf("%d_%d", c.Start, c.End)
}

// Plan is the chunk list for one chapter. It is constructed once from
// persisted data or from NewPlan, then transformed through the mutators for
// the duration of an editing session. Mutators are copy-on-write: they never
// modify slices shared with the pre-mutation value, so callers may retain
// any prior Plan for undo.
type Plan struct {
	// ChapterID is the persisted chapter identifier (e.g., "ch03").
	ChapterID string `json:"chapter_id,omitempty"`

	// ChapterTitle is the human-readable chapter title.
	ChapterTitle string `json:"chapter_title,omitempty"`

	// Chunks is the ordered, contiguous chunk list covering the whole text.
	Chunks []Chunk `json:"chunks"`
}

// NewPlan returns the default plan for a chapter of textLen runes: a single
// anonymous chunk covering the full range. A zero textLen yields an empty
// chunk list.
func NewPlan(chapterID, title string, textLen int) Plan {
	p := Plan{ChapterID: chapterID, ChapterTitle: title}
	if textLen > 0 {
		p.Chunks = []Chunk{{Start: 0, End: textLen - 1}}
	}
	return p
}

// cloneChunks returns a fresh chunk slice sharing no backing array with p.
// Line slices of untouched chunks are shared; that is safe because no
// mutator ever writes through an existing line slice.
func (p Plan) cloneChunks(extra int) []Chunk {
	out := make([]Chunk, len(p.Chunks), len(p.Chunks)+extra)
	copy(out, p.Chunks)
	return out
}
