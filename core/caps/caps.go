// Package caps computes payload-size and spoken-duration estimates for
// spans of chapter text against a synthesis provider's limits. All
// functions are pure; the caps configuration is externally supplied and
// fully recognized, with no hidden defaults beyond the documented
// words-per-minute floor.
package caps

import (
	"regexp"

	"github.com/FocuswithJustin/Lectern/core/text"
)

// WPMFloor is the lower bound applied to WordsPerMinute so a pathological
// config cannot blow up the duration estimate.
const WPMFloor = 80

// wordPattern matches one spoken word: letters (any script, including
// combining marks for accented forms) optionally joined by internal
// apostrophes or hyphens ("don't", "l’aube", "well-known").
var wordPattern = regexp.MustCompile(`[\p{L}\p{M}]+(?:['’-][\p{L}\p{M}]+)*`)

// Caps is the set of provider limits a chunk must satisfy.
type Caps struct {
	// MaxKB is the maximum request payload in kibibytes.
	MaxKB int `json:"max_kb"`

	// HardCapMinutes is the maximum spoken duration per request.
	HardCapMinutes float64 `json:"hard_cap_minutes"`

	// WordsPerMinute is the narration pace used for duration estimates.
	WordsPerMinute float64 `json:"words_per_minute"`

	// OverheadFactor inflates the raw byte count for request envelope
	// overhead (SSML wrapping, JSON escaping). 0.15 means +15%.
	OverheadFactor float64 `json:"overhead_factor"`

	// MaxLines bounds the number of lines per chunk. Zero disables the
	// line-count cap.
	MaxLines int `json:"max_lines,omitempty"`
}

// DefaultCaps returns limits matching a typical synthesis provider.
func DefaultCaps() Caps {
	return Caps{
		MaxKB:          4,
		HardCapMinutes: 10,
		WordsPerMinute: 165,
		OverheadFactor: 0.15,
		MaxLines:       0,
	}
}

// PayloadKB estimates the request payload for the inclusive span
// [start, end] in KiB: the UTF-8 byte length inflated by OverheadFactor,
// rounded up to whole KiB.
func PayloadKB(buf *text.Buffer, start, end int, c Caps) int {
	bytes := float64(buf.SpanBytes(start, end)) * (1 + c.OverheadFactor)
	kb := int(bytes) / 1024
	if int(bytes)%1024 != 0 {
		kb++
	}
	return kb
}

// DurationMinutes estimates the spoken duration of the inclusive span
// [start, end]: word count divided by the (floored) words-per-minute pace.
func DurationMinutes(buf *text.Buffer, start, end int, c Caps) float64 {
	wpm := c.WordsPerMinute
	if wpm < WPMFloor {
		wpm = WPMFloor
	}
	return float64(WordCount(buf.Span(start, end))) / wpm
}

// WordCount returns the number of spoken-word tokens in s.
func WordCount(s string) int {
	return len(wordPattern.FindAllStringIndex(s, -1))
}

// Within reports whether the inclusive span [start, end] satisfies both the
// payload and duration caps. The line-count cap is structural and checked
// separately by the normalizer.
func Within(buf *text.Buffer, start, end int, c Caps) bool {
	return PayloadKB(buf, start, end, c) <= c.MaxKB &&
		DurationMinutes(buf, start, end, c) <= c.HardCapMinutes
}
