package normalize

import (
	"reflect"
	"strings"
	"testing"

	"github.com/FocuswithJustin/Lectern/core/caps"
	"github.com/FocuswithJustin/Lectern/core/plan"
	"github.com/FocuswithJustin/Lectern/core/text"
)

// words returns n space-separated single-letter words ("a a a ...").
func words(n int) string {
	return strings.TrimSpace(strings.Repeat("a ", n))
}

func TestFitChunkToCapsSplitsAfterLastFittingLine(t *testing.T) {
	// Three lines; the first alone fits the payload cap, the first two
	// together do not. The split must land exactly at the second line's
	// start, the LEFT piece keeping the id.
	buf := text.Normalize(strings.Repeat("a", 1500))
	cfg := caps.Caps{MaxKB: 1, HardCapMinutes: 10, WordsPerMinute: 165, OverheadFactor: 0}
	p := plan.Plan{Chunks: []plan.Chunk{{
		ID: "ch01_001", Start: 0, End: 1499,
		Lines: []plan.Line{
			{Start: 0, End: 899},     // 900 B alone: fits
			{Start: 900, End: 1299},  // cumulative 1300 B: violates
			{Start: 1300, End: 1499},
		},
	}}}

	got, changed := FitChunkToCaps(p, 0, buf, cfg)
	if !changed {
		t.Fatal("FitChunkToCaps should have split")
	}
	if len(got.Chunks) != 2 {
		t.Fatalf("chunk count = %d, want 2", len(got.Chunks))
	}
	left, right := got.Chunks[0], got.Chunks[1]
	if left.End != 899 || right.Start != 900 {
		t.Errorf("split at %d, want 900", right.Start)
	}
	if left.ID != "ch01_001" || right.ID != "" {
		t.Errorf("id retention wrong: left %q right %q", left.ID, right.ID)
	}
	if !caps.Within(buf, left.Start, left.End, cfg) {
		t.Error("LEFT result must be within caps by construction")
	}
}

func TestFitChunkToCapsOverheadPushesSplitEarlier(t *testing.T) {
	// 920 B raw fits 1 KiB, but *1.15 = 1058 B does not: with overhead the
	// first line no longer fits on its own cumulative prefix of two.
	buf := text.Normalize(strings.Repeat("a", 1200))
	p := plan.Plan{Chunks: []plan.Chunk{{
		Start: 0, End: 1199,
		Lines: []plan.Line{{Start: 0, End: 599}, {Start: 600, End: 919}, {Start: 920, End: 1199}},
	}}}

	noOverhead := caps.Caps{MaxKB: 1, HardCapMinutes: 10, WordsPerMinute: 165}
	got, _ := FitChunkToCaps(p, 0, buf, noOverhead)
	if got.Chunks[1].Start != 920 {
		t.Errorf("without overhead split at %d, want 920", got.Chunks[1].Start)
	}

	withOverhead := noOverhead
	withOverhead.OverheadFactor = 0.15
	got, _ = FitChunkToCaps(p, 0, buf, withOverhead)
	if got.Chunks[1].Start != 600 {
		t.Errorf("with overhead split at %d, want 600", got.Chunks[1].Start)
	}
}

func TestFitChunkToCapsCompliantNoChange(t *testing.T) {
	buf := text.Normalize(words(50))
	p := plan.NewPlan("", "", buf.Len())
	cfg := caps.DefaultCaps()

	got, changed := FitChunkToCaps(p, 0, buf, cfg)
	if changed {
		t.Error("compliant chunk must not be split")
	}
	if !reflect.DeepEqual(got, p) {
		t.Error("compliant chunk must be returned unchanged")
	}
}

func TestFitChunkToCapsBisectsOversizedSingleLine(t *testing.T) {
	// One line, no boundaries to cut at: fall back to the midpoint.
	buf := text.Normalize(strings.Repeat("a", 3000))
	cfg := caps.Caps{MaxKB: 1, HardCapMinutes: 10, WordsPerMinute: 165}
	p := plan.NewPlan("", "", 3000)

	got, changed := FitChunkToCaps(p, 0, buf, cfg)
	if !changed {
		t.Fatal("oversized single-line chunk should bisect")
	}
	if got.Chunks[1].Start != 1500 {
		t.Errorf("bisection at %d, want midpoint 1500", got.Chunks[1].Start)
	}
}

func TestNormalizeChunkConverges(t *testing.T) {
	buf := text.Normalize(strings.Repeat("a", 10000))
	cfg := caps.Caps{MaxKB: 1, HardCapMinutes: 10, WordsPerMinute: 165}
	p := plan.Plan{Chunks: []plan.Chunk{{ID: "ch01_001", Start: 0, End: 9999}}}

	got, reports := NormalizeChunk(p, 0, buf, cfg)
	if len(reports) != 0 {
		t.Fatalf("unexpected offender reports: %+v", reports)
	}
	// Only the original index is guaranteed compliant; the split remainders
	// follow it and are the caller's to continue with.
	c := got.Chunks[0]
	if !caps.Within(buf, c.Start, c.End, cfg) {
		t.Error("chunk at the normalized index must satisfy caps")
	}
	if c.ID != "ch01_001" {
		t.Errorf("id = %q, want retained on the leftmost piece", c.ID)
	}
	if errs := plan.Validate(got, 10000); len(errs) != 0 {
		t.Errorf("normalized plan invalid: %v", errs)
	}
}

func TestNormalizeChunkIdempotent(t *testing.T) {
	buf := text.Normalize(words(100))
	p := plan.NewPlan("", "", buf.Len())
	cfg := caps.DefaultCaps()

	once, _ := NormalizeChunk(p, 0, buf, cfg)
	twice, reports := NormalizeChunk(once, 0, buf, cfg)
	if len(reports) != 0 {
		t.Fatalf("unexpected reports on re-run: %+v", reports)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Error("NormalizeChunk must be idempotent on a compliant plan")
	}
}

func TestNormalizeAllWholePlan(t *testing.T) {
	buf := text.Normalize(strings.Repeat("a", 5000))
	cfg := caps.Caps{MaxKB: 1, HardCapMinutes: 10, WordsPerMinute: 165}
	p := plan.Plan{Chunks: []plan.Chunk{
		{ID: "c1", Start: 0, End: 2999},
		{ID: "c2", Start: 3000, End: 4999},
	}}

	got, reports := NormalizeAll(p, buf, cfg)
	if len(reports) != 0 {
		t.Fatalf("unexpected reports: %+v", reports)
	}
	for i, c := range got.Chunks {
		if !caps.Within(buf, c.Start, c.End, cfg) {
			t.Errorf("chunk[%d] [%d, %d] still violates caps", i, c.Start, c.End)
		}
	}
	if errs := plan.Validate(got, 5000); len(errs) != 0 {
		t.Errorf("normalized plan invalid: %v", errs)
	}
	if len(got.Chunks) <= 2 {
		t.Errorf("chunk count = %d, expected splits to occur", len(got.Chunks))
	}
}

func TestNormalizeAllReportsUnsatisfiableAndContinues(t *testing.T) {
	// Two runes, each a word on its own, duration cap below a single
	// word's estimate: every piece is stuck at length 1.
	buf := text.Normalize("a b")
	cfg := caps.Caps{MaxKB: 100, HardCapMinutes: 0.001, WordsPerMinute: 165}
	p := plan.NewPlan("", "", buf.Len())

	got, reports := NormalizeAll(p, buf, cfg)
	if len(reports) == 0 {
		t.Fatal("expected CannotSatisfyCaps reports")
	}
	for _, r := range reports {
		if r.Reason != ReasonMinutes {
			t.Errorf("reason = %q, want %q", r.Reason, ReasonMinutes)
		}
		if r.ChunkID == "" {
			t.Error("report must carry the chunk's addressing key")
		}
	}
	// The scan must have processed the whole plan, not aborted at the
	// first offender.
	if errs := plan.Validate(got, buf.Len()); len(errs) != 0 {
		t.Errorf("plan invalid after partial normalization: %v", errs)
	}
	if last := got.Chunks[len(got.Chunks)-1]; last.End != buf.Len()-1 {
		t.Error("normalization must cover the full plan even with offenders")
	}
}

func TestReportErr(t *testing.T) {
	r := Report{ChunkID: "ch01_003", Reason: ReasonKB}
	err := r.Err()
	if err == nil || !strings.Contains(err.Error(), "ch01_003") {
		t.Errorf("Err() = %v, want CapsError naming the chunk", err)
	}
}

func TestFitChunkToLineCap(t *testing.T) {
	p := plan.Plan{Chunks: []plan.Chunk{{
		ID: "c1", Start: 0, End: 49,
		Lines: []plan.Line{
			{Start: 0, End: 9}, {Start: 10, End: 19}, {Start: 20, End: 29},
			{Start: 30, End: 39}, {Start: 40, End: 49},
		},
	}}}

	got, changed := FitChunkToLineCap(p, 0, 2)
	if !changed {
		t.Fatal("chunk over the line cap should split")
	}
	if len(got.Chunks[0].Lines) != 2 {
		t.Errorf("left line count = %d, want 2", len(got.Chunks[0].Lines))
	}
	if got.Chunks[1].Start != 20 {
		t.Errorf("split at %d, want boundary after the 2nd line (20)", got.Chunks[1].Start)
	}
	if got.Chunks[0].ID != "c1" || got.Chunks[1].ID != "" {
		t.Error("line-cap split follows the same id retention rule")
	}
}

func TestFitChunkToLineCapNoOpCases(t *testing.T) {
	p := plan.Plan{Chunks: []plan.Chunk{{
		Start: 0, End: 29,
		Lines: []plan.Line{{Start: 0, End: 14}, {Start: 15, End: 29}},
	}}}
	if _, changed := FitChunkToLineCap(p, 0, 2); changed {
		t.Error("chunk at the cap must not split")
	}
	if _, changed := FitChunkToLineCap(p, 0, 0); changed {
		t.Error("maxLines <= 0 disables the cap")
	}
	implicit := plan.NewPlan("", "", 30)
	if _, changed := FitChunkToLineCap(implicit, 0, 1); changed {
		t.Error("implicit chunk has one addressable line, never over the cap")
	}
}

func TestNormalizeLineCapsBulk(t *testing.T) {
	p := plan.Plan{Chunks: []plan.Chunk{{
		Start: 0, End: 69,
		Lines: []plan.Line{
			{Start: 0, End: 9}, {Start: 10, End: 19}, {Start: 20, End: 29},
			{Start: 30, End: 39}, {Start: 40, End: 49}, {Start: 50, End: 59},
			{Start: 60, End: 69},
		},
	}}}

	got, reports := NormalizeLineCaps(p, 3)
	if len(reports) != 0 {
		t.Fatalf("unexpected reports: %+v", reports)
	}
	if len(got.Chunks) != 3 {
		t.Fatalf("chunk count = %d, want 3 (lines 3+3+1)", len(got.Chunks))
	}
	for i, want := range []int{3, 3, 1} {
		if len(got.Chunks[i].Lines) != want {
			t.Errorf("chunk[%d] line count = %d, want %d", i, len(got.Chunks[i].Lines), want)
		}
	}
	if errs := plan.Validate(got, 70); len(errs) != 0 {
		t.Errorf("plan invalid after line-cap normalization: %v", errs)
	}
}

func TestRunAppliesBothPasses(t *testing.T) {
	buf := text.Normalize(strings.Repeat("a", 4000))
	cfg := caps.Caps{MaxKB: 1, HardCapMinutes: 10, WordsPerMinute: 165, MaxLines: 1}
	p := plan.NewPlan("ch01", "", 4000)

	got, reports := Run(p, buf, cfg)
	if len(reports) != 0 {
		t.Fatalf("unexpected reports: %+v", reports)
	}
	for i, c := range got.Chunks {
		if !caps.Within(buf, c.Start, c.End, cfg) {
			t.Errorf("chunk[%d] violates caps after Run", i)
		}
		if c.LineCount() > 1 {
			t.Errorf("chunk[%d] has %d lines, cap is 1", i, c.LineCount())
		}
	}
	if errs := plan.Validate(got, 4000); len(errs) != 0 {
		t.Errorf("plan invalid after Run: %v", errs)
	}
}
