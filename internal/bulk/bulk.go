// Package bulk normalizes every chapter of a project. Chapters are
// independent: each worker owns one chapter's plan end to end, so the pool
// shares no mutable state and the per-chapter work stays strictly
// sequential.
package bulk

import (
	"runtime"
	"sync"

	"github.com/FocuswithJustin/Lectern/core/caps"
	"github.com/FocuswithJustin/Lectern/core/normalize"
	"github.com/FocuswithJustin/Lectern/internal/logging"
	"github.com/FocuswithJustin/Lectern/internal/store"
)

// Result is the outcome of normalizing one chapter.
type Result struct {
	ChapterID string             `json:"chapter_id"`
	Title     string             `json:"title"`
	Chunks    int                `json:"chunks"`
	Reports   []normalize.Report `json:"reports,omitempty"`
	Err       error              `json:"-"`
}

// NormalizeProject runs caps normalization over every chapter of the
// project with up to workers goroutines, persisting each normalized plan.
// A workers value of zero or less uses GOMAXPROCS. Results are returned in
// chapter order; a chapter that fails to load is reported in its Result,
// never aborting the rest.
func NormalizeProject(s *store.Store, projectRef string, workers int) ([]Result, error) {
	project, err := s.GetProject(projectRef)
	if err != nil {
		return nil, err
	}
	chapters, err := s.ListChapters(project.ID)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(chapters) {
		workers = len(chapters)
	}

	results := make([]Result, len(chapters))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = normalizeChapter(s, chapters[i], project.Caps)
			}
		}()
	}
	for i := range chapters {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	offenders := 0
	for _, r := range results {
		offenders += len(r.Reports)
	}
	logging.Info("project_normalized", "project", project.Name,
		"chapters", len(chapters), "workers", workers, "offenders", offenders)
	return results, nil
}

func normalizeChapter(s *store.Store, ch *store.Chapter, cfg caps.Caps) Result {
	res := Result{ChapterID: ch.ID, Title: ch.Title}

	p, buf, err := s.LoadPlan(ch.ID)
	if err != nil {
		res.Err = err
		return res
	}
	p, reports := normalize.Run(p, buf, cfg)
	if err := s.SavePlan(ch.ID, p, buf.Fingerprint()); err != nil {
		res.Err = err
		return res
	}
	res.Chunks = len(p.Chunks)
	res.Reports = reports
	logging.NormalizeOutcome(ch.ID, len(p.Chunks), len(reports))
	return res
}
