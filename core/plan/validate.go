package plan

// validate.go - Fail-fast structural validation for persisted plans.
//
// Malformed plans (offsets outside the text, non-contiguous chunks) are a
// precondition violation and must be rejected before use; the model never
// attempts silent repair mid-edit.

import (
	"fmt"

	"github.com/FocuswithJustin/Lectern/core/errors"
)

// Validate checks the plan's structural invariants against a chapter of
// textLen runes and returns all violations found. An empty result means the
// plan is safe to edit.
func Validate(p Plan, textLen int) []error {
	var errs []error

	add := func(path, msg string) {
		errs = append(errs, errors.NewValidation(path, msg))
	}

	if textLen == 0 {
		if len(p.Chunks) != 0 {
			add("plan.chunks", "chunks present for empty text")
		}
		return errs
	}
	if len(p.Chunks) == 0 {
		add("plan.chunks", "no chunks for non-empty text")
		return errs
	}

	if first := p.Chunks[0].Start; first != 0 {
		add("plan.chunks[0]", fmt.Sprintf("first chunk starts at %d, want 0", first))
	}
	if last := p.Chunks[len(p.Chunks)-1].End; last != textLen-1 {
		add(fmt.Sprintf("plan.chunks[%d]", len(p.Chunks)-1),
			fmt.Sprintf("last chunk ends at %d, want %d", last, textLen-1))
	}

	for i, c := range p.Chunks {
		path := fmt.Sprintf("plan.chunks[%d]", i)
		if c.Start > c.End {
			add(path, fmt.Sprintf("start %d exceeds end %d", c.Start, c.End))
			continue
		}
		if c.Start < 0 || c.End > textLen-1 {
			add(path, fmt.Sprintf("range [%d, %d] outside text [0, %d]", c.Start, c.End, textLen-1))
		}
		if i > 0 {
			if prev := p.Chunks[i-1].End; c.Start != prev+1 {
				add(path, fmt.Sprintf("starts at %d, not contiguous with previous end %d", c.Start, prev))
			}
		}
		errs = append(errs, validateLines(c, path)...)
	}
	return errs
}

// validateLines checks ordering and containment of a chunk's explicit lines.
// Lines need not cover the full chunk range (deletion leaves gaps), but they
// must be ordered, non-overlapping, and inside the chunk bounds.
func validateLines(c Chunk, path string) []error {
	var errs []error
	for j, l := range c.Lines {
		lpath := fmt.Sprintf("%s.lines[%d]", path, j)
		if l.Start > l.End {
			errs = append(errs, errors.NewValidation(lpath,
				fmt.Sprintf("start %d exceeds end %d", l.Start, l.End)))
			continue
		}
		if l.Start < c.Start || l.End > c.End {
			errs = append(errs, errors.NewValidation(lpath,
				fmt.Sprintf("line [%d, %d] outside chunk [%d, %d]", l.Start, l.End, c.Start, c.End)))
		}
		if j > 0 && l.Start <= c.Lines[j-1].End {
			errs = append(errs, errors.NewValidation(lpath,
				fmt.Sprintf("overlaps previous line ending at %d", c.Lines[j-1].End)))
		}
	}
	return errs
}

// Check is the fail-fast form of Validate: it returns the first violation
// wrapped for load-time rejection, or nil.
func Check(p Plan, textLen int) error {
	errs := Validate(p, textLen)
	if len(errs) == 0 {
		return nil
	}
	return errors.Wrapf(errs[0], "invalid plan (%d violations)", len(errs))
}

// Coverage returns the total rune count covered by chunks. For any valid
// plan this equals the text length regardless of how many splits and merges
// have been applied.
func Coverage(p Plan) int {
	total := 0
	for _, c := range p.Chunks {
		total += c.Len()
	}
	return total
}
