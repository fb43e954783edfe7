// Package text provides the canonical text buffer all plan offsets are
// computed against. Raw chapter text is normalized exactly once (BOM strip,
// line-ending canonicalization); every offset elsewhere in Lectern is a
// zero-based rune index into the normalized form and is meaningless against
// the raw source.
package text

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// bom is the Unicode byte-order mark. Only a leading BOM is stripped;
// interior BOMs are content.
const bom = '\uFEFF'

// Buffer is an immutable normalized rune sequence for one chapter.
type Buffer struct {
	runes       []rune
	fingerprint string
}

// Normalize converts raw loaded text into the canonical form:
// a single leading BOM is removed, CRLF and lone CR become LF.
func Normalize(raw string) *Buffer {
	runes := make([]rune, 0, len(raw))
	first := true
	pendingCR := false
	for _, r := range raw {
		if first {
			first = false
			if r == bom {
				continue
			}
		}
		if pendingCR {
			pendingCR = false
			runes = append(runes, '\n')
			if r == '\n' {
				continue // CRLF collapses to one LF
			}
		}
		if r == '\r' {
			pendingCR = true
			continue
		}
		runes = append(runes, r)
	}
	if pendingCR {
		runes = append(runes, '\n')
	}

	b := &Buffer{runes: runes}
	sum := blake3.Sum256([]byte(string(runes)))
	b.fingerprint = hex.EncodeToString(sum[:])
	return b
}

// Len returns the length of the buffer in runes.
func (b *Buffer) Len() int {
	return len(b.runes)
}

// String returns the full normalized text.
func (b *Buffer) String() string {
	return string(b.runes)
}

// Fingerprint returns the BLAKE3-256 hex digest of the normalized text.
// Persisted plans record it so a plan computed against since-edited text is
// rejected at load rather than applied to the wrong coordinates.
func (b *Buffer) Fingerprint() string {
	return b.fingerprint
}

// Span returns the text of the inclusive rune range [start, end].
// Out-of-range bounds are clamped; an inverted range yields "".
func (b *Buffer) Span(start, end int) string {
	start, end, ok := b.clamp(start, end)
	if !ok {
		return ""
	}
	return string(b.runes[start : end+1])
}

// SpanBytes returns the UTF-8 byte length of the inclusive rune range
// [start, end] without allocating the span text.
func (b *Buffer) SpanBytes(start, end int) int {
	start, end, ok := b.clamp(start, end)
	if !ok {
		return 0
	}
	n := 0
	for _, r := range b.runes[start : end+1] {
		n += utf8Len(r)
	}
	return n
}

func (b *Buffer) clamp(start, end int) (int, int, bool) {
	if len(b.runes) == 0 {
		return 0, 0, false
	}
	if start < 0 {
		start = 0
	}
	if end > len(b.runes)-1 {
		end = len(b.runes) - 1
	}
	if start > end {
		return 0, 0, false
	}
	return start, end, true
}

func utf8Len(r rune) int {
	switch {
	case r < 0x80:
		return 1
	case r < 0x800:
		return 2
	case r < 0x10000:
		return 3
	default:
		return 4
	}
}
