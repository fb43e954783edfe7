// Package normalize converges chunks to cap compliance by repeatedly
// splitting them at line boundaries. It is built entirely on the plan
// mutators and cap estimators; a chunk that cannot be brought within caps
// is reported, never looped on.
package normalize

import (
	"github.com/FocuswithJustin/Lectern/core/caps"
	"github.com/FocuswithJustin/Lectern/core/errors"
	"github.com/FocuswithJustin/Lectern/core/plan"
	"github.com/FocuswithJustin/Lectern/core/text"
)

// Reason identifies which cap an offending chunk violates.
type Reason string

// Reason constants.
const (
	ReasonKB      Reason = "kb"
	ReasonMinutes Reason = "minutes"
	ReasonLines   Reason = "lines"
)

// Report describes one chunk that could not be brought within caps.
type Report struct {
	// ChunkID is the offending chunk's stable id, or its fallback key.
	ChunkID string `json:"offending_chunk_id"`

	// ChunkIndex is the chunk's position at the time the offense was
	// recorded. Indices shift as earlier chunks split, so the id is the
	// durable handle.
	ChunkIndex int `json:"chunk_index"`

	// Reason is the violated cap.
	Reason Reason `json:"reason"`
}

// Err converts the report into a CapsError for callers that want an error
// value instead of a report row.
func (r Report) Err() error {
	return errors.NewCaps(r.ChunkID, string(r.Reason))
}

// violation returns the violated cap for chunk c, checking payload first.
// Only meaningful when caps.Within is already known to be false.
func violation(buf *text.Buffer, c plan.Chunk, cfg caps.Caps) Reason {
	if caps.PayloadKB(buf, c.Start, c.End, cfg) > cfg.MaxKB {
		return ReasonKB
	}
	return ReasonMinutes
}

// FitChunkToCaps performs one splitting step on chunk i: if the chunk
// violates caps, it is split at the last line boundary that still fits, or
// bisected at a midpoint when no line boundary helps. The returned bool
// reports whether the plan changed; false with a violating chunk means no
// further progress is possible.
//
// The LEFT result of a boundary split is within caps by construction and
// keeps the chunk's id; the RIGHT result is the caller's to re-examine.
func FitChunkToCaps(p plan.Plan, i int, buf *text.Buffer, cfg caps.Caps) (plan.Plan, bool) {
	if i < 0 || i >= len(p.Chunks) {
		return p, false
	}
	c := p.Chunks[i]
	if caps.Within(buf, c.Start, c.End, cfg) {
		return p, false
	}

	p = p.EnsureLines(i)
	lines := p.Chunks[i].Lines

	// Maximal prefix of lines whose cumulative span still fits.
	k := 0
	for k < len(lines) && caps.Within(buf, c.Start, lines[k].End, cfg) {
		k++
	}

	var at int
	switch {
	case k == len(lines):
		// All lines fit but the whole chunk failed at entry; the only
		// explanation is uncovered range after deletions (including a chunk
		// whose lines were all deleted). Bisect the chunk itself to
		// guarantee progress.
		at = c.Start + (c.End-c.Start+1)/2
	case k == 0:
		// Even the first line alone violates caps: no finer structure
		// exists below a line, so bisect that line's own range.
		at = lines[0].Start + (lines[0].End-lines[0].Start+1)/2
	default:
		at = lines[k].Start
	}

	p2 := p.SplitChunk(i, at)
	if len(p2.Chunks) == len(p.Chunks) {
		return p, false // split refused: nothing left to divide
	}
	return p2, true
}

// NormalizeChunk repeatedly applies FitChunkToCaps to the same index until
// the chunk occupying it satisfies caps. Each split strictly shortens that
// chunk, so the loop is bounded by the chunk's rune length; if a step makes
// no progress while caps are still violated the chunk is reported and the
// loop stops.
func NormalizeChunk(p plan.Plan, i int, buf *text.Buffer, cfg caps.Caps) (plan.Plan, []Report) {
	var reports []Report
	for i >= 0 && i < len(p.Chunks) {
		c := p.Chunks[i]
		if caps.Within(buf, c.Start, c.End, cfg) {
			break
		}
		p2, changed := FitChunkToCaps(p, i, buf, cfg)
		if !changed {
			reports = append(reports, Report{
				ChunkID:    c.Key(),
				ChunkIndex: i,
				Reason:     violation(buf, c, cfg),
			})
			break
		}
		p = p2
	}
	return p, reports
}

// NormalizeAll scans the whole plan with an index cursor: a satisfying
// chunk advances the cursor; a violating chunk is split and the same index
// re-checked, since the split inserts the RIGHT piece after it. Chunks that
// cannot be satisfied are reported and skipped; the scan never aborts.
func NormalizeAll(p plan.Plan, buf *text.Buffer, cfg caps.Caps) (plan.Plan, []Report) {
	var reports []Report
	i := 0
	for i < len(p.Chunks) {
		c := p.Chunks[i]
		if caps.Within(buf, c.Start, c.End, cfg) {
			i++
			continue
		}
		p2, changed := FitChunkToCaps(p, i, buf, cfg)
		if !changed {
			reports = append(reports, Report{
				ChunkID:    c.Key(),
				ChunkIndex: i,
				Reason:     violation(buf, c, cfg),
			})
			i++ // leave the offender in place, continue with the rest
			continue
		}
		p = p2
	}
	return p, reports
}

// FitChunkToLineCap performs one structural split on chunk i when its line
// count exceeds maxLines, cutting immediately after the maxLines-th line.
// Independent of the KB/duration caps. A maxLines of zero or less disables
// the cap.
func FitChunkToLineCap(p plan.Plan, i, maxLines int) (plan.Plan, bool) {
	if maxLines <= 0 || i < 0 || i >= len(p.Chunks) {
		return p, false
	}
	c := p.Chunks[i]
	if c.Lines == nil || len(c.Lines) <= maxLines {
		return p, false
	}
	p2 := p.SplitChunk(i, c.Lines[maxLines].Start)
	if len(p2.Chunks) == len(p.Chunks) {
		return p, false
	}
	return p2, true
}

// NormalizeLineCaps applies the line-count cap across the whole plan with
// the same re-check-current-index pattern as NormalizeAll.
func NormalizeLineCaps(p plan.Plan, maxLines int) (plan.Plan, []Report) {
	var reports []Report
	if maxLines <= 0 {
		return p, reports
	}
	i := 0
	for i < len(p.Chunks) {
		c := p.Chunks[i]
		if c.Lines == nil || len(c.Lines) <= maxLines {
			i++
			continue
		}
		p2, changed := FitChunkToLineCap(p, i, maxLines)
		if !changed {
			reports = append(reports, Report{ChunkID: c.Key(), ChunkIndex: i, Reason: ReasonLines})
			i++
			continue
		}
		p = p2
	}
	return p, reports
}

// Run applies the full normalization for one chapter: cap convergence over
// every chunk, then the structural line cap when configured.
func Run(p plan.Plan, buf *text.Buffer, cfg caps.Caps) (plan.Plan, []Report) {
	p, reports := NormalizeAll(p, buf, cfg)
	if cfg.MaxLines > 0 {
		var lineReports []Report
		p, lineReports = NormalizeLineCaps(p, cfg.MaxLines)
		reports = append(reports, lineReports...)
	}
	return p, reports
}
