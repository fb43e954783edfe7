// Package ids produces stable, human-readable sequential chunk
// identifiers. Standardization is the only place ids are ever assigned;
// the rest of the model either preserves ids from input or clears them.
package ids

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/FocuswithJustin/Lectern/core/plan"
)

// defaultPrefix is used when neither the chapter nor any existing chunk id
// suggests one.
const defaultPrefix = "ch"

// minWidth is the minimum zero-padding width for the sequence number.
const minWidth = 3

// prefixPattern extracts the prefix from an existing "{prefix}_{digits}" id.
var prefixPattern = regexp.MustCompile(`^(.+)_\d+$`)

// Proposal is one entry of a proposed bulk rename.
type Proposal struct {
	// Index is the chunk's position in the plan.
	Index int `json:"index"`

	// OldID is the chunk's current id ("" if unassigned).
	OldID string `json:"old_id"`

	// NewID is the proposed sequential id.
	NewID string `json:"new_id"`
}

// Prefix returns the id prefix for a plan: the chapter id when present,
// else the prefix of the first chunk id shaped like "{prefix}_{digits}",
// else "ch".
func Prefix(p plan.Plan) string {
	if p.ChapterID != "" {
		return p.ChapterID
	}
	for _, c := range p.Chunks {
		if c.ID == "" {
			continue
		}
		if m := prefixPattern.FindStringSubmatch(c.ID); m != nil {
			return m[1]
		}
		break
	}
	return defaultPrefix
}

// Width returns the zero-padding width for a plan of n chunks:
// max(3, digit count of n).
func Width(n int) int {
	w := len(strconv.Itoa(n))
	if w < minWidth {
		return minWidth
	}
	return w
}

// ProposeSequentialIDs computes the full rename mapping for the plan:
// chunk i receives "{prefix}_{i+1}" zero-padded to the width. The plan is
// not modified; entries are returned for every chunk, changed or not.
func ProposeSequentialIDs(p plan.Plan) []Proposal {
	prefix := Prefix(p)
	width := Width(len(p.Chunks))
	props := make([]Proposal, len(p.Chunks))
	for i, c := range p.Chunks {
		props[i] = Proposal{
			Index: i,
			OldID: c.ID,
			NewID: fmt.Sprintf("%s_%0*d", prefix, width, i+1),
		}
	}
	return props
}

// ApplySequentialIDs writes the proposed ids into a copy of the plan.
// Only the id field of each addressed chunk changes; proposals with an
// out-of-range index are ignored. Running propose+apply twice yields
// identical ids the second time.
func ApplySequentialIDs(p plan.Plan, props []Proposal) plan.Plan {
	out := p
	out.Chunks = make([]plan.Chunk, len(p.Chunks))
	copy(out.Chunks, p.Chunks)
	for _, pr := range props {
		if pr.Index < 0 || pr.Index >= len(out.Chunks) {
			continue
		}
		out.Chunks[pr.Index].ID = pr.NewID
	}
	return out
}

// Standardize is the propose+apply convenience for callers that do not
// need to review the mapping.
func Standardize(p plan.Plan) plan.Plan {
	return ApplySequentialIDs(p, ProposeSequentialIDs(p))
}
