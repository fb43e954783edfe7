package plan

// mutators.go - Invariant-preserving plan transformations.
//
// Every mutator is permissive: interactive callers probe freely with
// arbitrary caret positions and indices, so a violated precondition is a
// silent no-op returning the input unchanged, not an error. Every mutator is
// copy-on-write: the returned Plan shares no mutated structure with the
// input.

// materializedLines returns the chunk's explicit lines, or the single
// implicit line derived from its own bounds and voice.
func materializedLines(c Chunk) []Line {
	if c.Lines != nil {
		return c.Lines
	}
	return []Line{{Start: c.Start, End: c.End, Voice: c.Voice}}
}

// EnsureLines materializes the implicit single-line form of chunk i into an
// explicit one-line list and clears the chunk-level voice. Idempotent: a
// chunk that already has lines is returned unchanged.
func (p Plan) EnsureLines(i int) Plan {
	if i < 0 || i >= len(p.Chunks) {
		return p
	}
	c := p.Chunks[i]
	if c.Lines != nil {
		return p
	}
	out := p
	out.Chunks = p.cloneChunks(0)
	out.Chunks[i].Lines = materializedLines(c)
	out.Chunks[i].Voice = ""
	return out
}

// SplitChunk divides chunk i at rune offset at, yielding a LEFT chunk
// [start, at-1] that alone keeps the original id and a RIGHT chunk
// [at, end] with its id cleared. Lines are partitioned; a line straddling
// the cut is divided in two, both halves inheriting its voice. The split is
// a no-op unless start < at <= end.
func (p Plan) SplitChunk(i, at int) Plan {
	if i < 0 || i >= len(p.Chunks) {
		return p
	}
	c := p.Chunks[i]
	if at <= c.Start || at > c.End {
		return p
	}

	lines := materializedLines(c)
	var leftLines, rightLines []Line
	for _, l := range lines {
		switch {
		case l.End < at:
			leftLines = append(leftLines, l)
		case l.Start >= at:
			rightLines = append(rightLines, l)
		default:
			leftLines = append(leftLines, Line{Start: l.Start, End: at - 1, Voice: l.Voice})
			rightLines = append(rightLines, Line{Start: at, End: l.End, Voice: l.Voice})
		}
	}

	// A side whose partition came up empty must stay in the explicit state:
	// nil would read as the implicit full-coverage form and ranges discarded
	// by DeleteLine would become narratable again. Never reached for an
	// implicit source chunk, whose single materialized line straddles every
	// valid cut.
	if leftLines == nil {
		leftLines = []Line{}
	}
	if rightLines == nil {
		rightLines = []Line{}
	}

	left := Chunk{ID: c.ID, Start: c.Start, End: at - 1, Lines: leftLines}
	right := Chunk{Start: at, End: c.End, Lines: rightLines}

	out := p
	out.Chunks = make([]Chunk, 0, len(p.Chunks)+1)
	out.Chunks = append(out.Chunks, p.Chunks[:i]...)
	out.Chunks = append(out.Chunks, left, right)
	out.Chunks = append(out.Chunks, p.Chunks[i+1:]...)
	return out
}

// MergeLines joins the adjacent lines a and b of chunk i into one line
// spanning both ranges. The lower-indexed line's voice wins when set,
// otherwise the other's. No-op unless the chunk has explicit lines, both
// indices are valid, and |a-b| == 1.
func (p Plan) MergeLines(i, a, b int) Plan {
	if i < 0 || i >= len(p.Chunks) {
		return p
	}
	c := p.Chunks[i]
	if c.Lines == nil {
		return p
	}
	if a > b {
		a, b = b, a
	}
	if a < 0 || b >= len(c.Lines) || b-a != 1 {
		return p
	}

	lo, hi := c.Lines[a], c.Lines[b]
	merged := Line{Start: min(lo.Start, hi.Start), End: max(lo.End, hi.End), Voice: lo.Voice}
	if merged.Voice == "" {
		merged.Voice = hi.Voice
	}

	lines := make([]Line, 0, len(c.Lines)-1)
	lines = append(lines, c.Lines[:a]...)
	lines = append(lines, merged)
	lines = append(lines, c.Lines[b+1:]...)

	out := p
	out.Chunks = p.cloneChunks(0)
	out.Chunks[i].Lines = lines
	return out
}

// DeleteLine removes line j of chunk i outright. This is the only operation
// allowed to break intra-chunk line coverage: the discarded range is simply
// not narrated. Chunk bounds and id are untouched. No-op unless the chunk
// has explicit lines and j is valid.
func (p Plan) DeleteLine(i, j int) Plan {
	if i < 0 || i >= len(p.Chunks) {
		return p
	}
	c := p.Chunks[i]
	if c.Lines == nil || j < 0 || j >= len(c.Lines) {
		return p
	}

	lines := make([]Line, 0, len(c.Lines)-1)
	lines = append(lines, c.Lines[:j]...)
	lines = append(lines, c.Lines[j+1:]...)

	out := p
	out.Chunks = p.cloneChunks(0)
	out.Chunks[i].Lines = lines
	return out
}

// SetLineVoice assigns voice to line j of chunk i, materializing the
// implicit form first. An empty voice clears the assignment. No-op on an
// invalid index.
func (p Plan) SetLineVoice(i, j int, voice string) Plan {
	if i < 0 || i >= len(p.Chunks) {
		return p
	}
	p2 := p.EnsureLines(i)
	c := p2.Chunks[i]
	if j < 0 || j >= len(c.Lines) {
		return p
	}

	lines := make([]Line, len(c.Lines))
	copy(lines, c.Lines)
	lines[j].Voice = voice

	out := p2
	out.Chunks = p2.cloneChunks(0)
	out.Chunks[i].Lines = lines
	return out
}
