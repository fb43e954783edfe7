package caps

import (
	"strings"
	"testing"

	"github.com/FocuswithJustin/Lectern/core/text"
)

func TestPayloadKBRoundsUp(t *testing.T) {
	c := Caps{OverheadFactor: 0}
	buf := text.Normalize(strings.Repeat("a", 1024))
	if got := PayloadKB(buf, 0, 1023, c); got != 1 {
		t.Errorf("PayloadKB(1024 bytes) = %d, want 1", got)
	}
	if got := PayloadKB(buf, 0, 1022, c); got != 1 {
		t.Errorf("PayloadKB(1023 bytes) = %d, want 1 (round up)", got)
	}
	buf2 := text.Normalize(strings.Repeat("a", 1025))
	if got := PayloadKB(buf2, 0, 1024, c); got != 2 {
		t.Errorf("PayloadKB(1025 bytes) = %d, want 2", got)
	}
}

func TestPayloadKBOverheadFactor(t *testing.T) {
	// 1000 bytes * 1.15 = 1150 -> 2 KiB; without overhead it would be 1.
	buf := text.Normalize(strings.Repeat("a", 1000))
	if got := PayloadKB(buf, 0, 999, Caps{OverheadFactor: 0.15}); got != 2 {
		t.Errorf("PayloadKB with overhead = %d, want 2", got)
	}
	if got := PayloadKB(buf, 0, 999, Caps{}); got != 1 {
		t.Errorf("PayloadKB without overhead = %d, want 1", got)
	}
}

func TestPayloadKBMultibyteText(t *testing.T) {
	// 512 two-byte runes = 1024 bytes exactly.
	buf := text.Normalize(strings.Repeat("é", 512))
	if got := PayloadKB(buf, 0, 511, Caps{}); got != 1 {
		t.Errorf("PayloadKB(512 é runes) = %d, want 1", got)
	}
}

func TestWordCount(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int
	}{
		{"plain", "the quick brown fox", 4},
		{"apostrophe", "don't stop", 2},
		{"typographic_apostrophe", "l’aube naît", 2},
		{"hyphenated", "a well-known narrator", 3},
		{"accented", "mañana será détour", 3},
		{"punctuation_only", "... !! --", 0},
		{"empty", "", 0},
		{"digits_not_words", "call 911 now", 2},
		{"newlines", "one\ntwo\n\nthree", 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WordCount(tc.in); got != tc.want {
				t.Errorf("WordCount(%q) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestDurationMinutes(t *testing.T) {
	buf := text.Normalize(strings.Repeat("word ", 330)) // 330 words
	c := Caps{WordsPerMinute: 165}
	if got := DurationMinutes(buf, 0, buf.Len()-1, c); got != 2 {
		t.Errorf("DurationMinutes = %v, want 2", got)
	}
}

func TestDurationMinutesWPMFloor(t *testing.T) {
	buf := text.Normalize(strings.Repeat("word ", 80))
	// Pathological paces fall back to the floor instead of exploding.
	for _, wpm := range []float64{0, -10, 5} {
		c := Caps{WordsPerMinute: wpm}
		if got := DurationMinutes(buf, 0, buf.Len()-1, c); got != 1 {
			t.Errorf("DurationMinutes with wpm=%v = %v, want 1 (floored at %d)", wpm, got, WPMFloor)
		}
	}
}

func TestWithin(t *testing.T) {
	buf := text.Normalize(strings.Repeat("word ", 200)) // 1000 bytes, 200 words
	c := Caps{MaxKB: 1, HardCapMinutes: 2, WordsPerMinute: 165}
	if !Within(buf, 0, buf.Len()-1, c) {
		t.Error("span should satisfy both caps")
	}
	tight := c
	tight.HardCapMinutes = 1
	if Within(buf, 0, buf.Len()-1, tight) {
		t.Error("span should violate the duration cap")
	}
	small := c
	small.MaxKB = 0
	if Within(buf, 0, buf.Len()-1, small) {
		t.Error("span should violate the payload cap")
	}
}

func TestDefaultCaps(t *testing.T) {
	c := DefaultCaps()
	if c.MaxKB <= 0 || c.HardCapMinutes <= 0 || c.WordsPerMinute < WPMFloor {
		t.Errorf("DefaultCaps returned degenerate limits: %+v", c)
	}
}
