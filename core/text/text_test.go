package text

import (
	"strings"
	"testing"
)

func TestNormalizeMixedLineEndings(t *testing.T) {
	b := Normalize("\uFEFFa\r\nb\rc\uFEFFd")
	want := "a\nb\nc\uFEFFd"
	if b.String() != want {
		t.Errorf("Normalize = %q, want %q", b.String(), want)
	}
}

func TestNormalizeKeepsInteriorBOM(t *testing.T) {
	b := Normalize("a\uFEFFb")
	if b.String() != "a\uFEFFb" {
		t.Errorf("interior BOM must be preserved, got %q", b.String())
	}
}

func TestNormalizeTrailingCR(t *testing.T) {
	b := Normalize("line\r")
	if b.String() != "line\n" {
		t.Errorf("trailing CR should become LF, got %q", b.String())
	}
}

func TestNormalizeLFOnlyUnchanged(t *testing.T) {
	in := "one\ntwo\nthree"
	if got := Normalize(in).String(); got != in {
		t.Errorf("LF-only input should be unchanged, got %q", got)
	}
}

func TestNormalizeCRLFRuns(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"crlf_crlf", "a\r\n\r\nb", "a\n\nb"},
		{"cr_cr", "a\r\rb", "a\n\nb"},
		{"cr_crlf", "a\r\r\nb", "a\n\nb"},
		{"empty", "", ""},
		{"bom_only", "\uFEFF", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in).String(); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestLenCountsRunes(t *testing.T) {
	b := Normalize("héllo")
	if b.Len() != 5 {
		t.Errorf("Len = %d, want 5 (rune count, not bytes)", b.Len())
	}
}

func TestSpanInclusive(t *testing.T) {
	b := Normalize("hello world")
	if got := b.Span(0, 4); got != "hello" {
		t.Errorf("Span(0,4) = %q, want %q", got, "hello")
	}
	if got := b.Span(6, 10); got != "world" {
		t.Errorf("Span(6,10) = %q, want %q", got, "world")
	}
}

func TestSpanClamping(t *testing.T) {
	b := Normalize("abc")
	if got := b.Span(-5, 99); got != "abc" {
		t.Errorf("clamped span = %q, want %q", got, "abc")
	}
	if got := b.Span(2, 1); got != "" {
		t.Errorf("inverted span = %q, want empty", got)
	}
}

func TestSpanBytesMultibyte(t *testing.T) {
	b := Normalize("aéγ🎧")
	// a=1, é=2, γ=2, 🎧=4
	if got := b.SpanBytes(0, 3); got != 9 {
		t.Errorf("SpanBytes = %d, want 9", got)
	}
	if got := b.SpanBytes(1, 1); got != 2 {
		t.Errorf("SpanBytes(é) = %d, want 2", got)
	}
}

func TestSpanBytesMatchesEncoding(t *testing.T) {
	b := Normalize("mañana: détour")
	if got, want := b.SpanBytes(0, b.Len()-1), len(b.String()); got != want {
		t.Errorf("SpanBytes over full range = %d, want len of UTF-8 form %d", got, want)
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Normalize("a\r\nb")
	b := Normalize("a\nb")
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprint must be computed on the normalized form")
	}
	if len(a.Fingerprint()) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a.Fingerprint()))
	}
	if a.Fingerprint() == Normalize("a\nc").Fingerprint() {
		t.Error("different texts must have different fingerprints")
	}
}

func TestNormalizeLargeInput(t *testing.T) {
	in := strings.Repeat("paragraph\r\n", 10000)
	b := Normalize(in)
	if b.Len() != 10*10000 {
		t.Errorf("Len = %d, want %d", b.Len(), 10*10000)
	}
	if strings.Contains(b.String(), "\r") {
		t.Error("normalized text must not contain CR")
	}
}
