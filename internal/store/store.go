// Package store persists projects, chapters, and plans in SQLite.
//
// Two drivers are supported: the pure-Go modernc.org/sqlite driver by
// default, and mattn/go-sqlite3 when built with -tags cgo_sqlite. Plans are
// stored as JSON documents keyed by chapter, together with the fingerprint
// of the text they were computed against; a load re-validates both so a
// stale or malformed plan is rejected before any edit touches it.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/Lectern/core/caps"
	"github.com/FocuswithJustin/Lectern/core/errors"
	"github.com/FocuswithJustin/Lectern/core/plan"
	"github.com/FocuswithJustin/Lectern/core/text"
	"github.com/FocuswithJustin/Lectern/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	caps_json  TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chapters (
	id          TEXT PRIMARY KEY,
	project_id  TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	title       TEXT NOT NULL DEFAULT '',
	position    INTEGER NOT NULL,
	body        TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS plans (
	chapter_id  TEXT PRIMARY KEY REFERENCES chapters(id) ON DELETE CASCADE,
	fingerprint TEXT NOT NULL,
	plan_json   TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chapters_project ON chapters(project_id, position);
`

// Project is a stored narration project.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Caps      caps.Caps `json:"caps"`
	CreatedAt time.Time `json:"created_at"`
}

// Chapter is one stored chapter: the normalized text plus its fingerprint.
type Chapter struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	Position    int       `json:"position"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`

	body string
}

// Buffer returns the chapter text as a text.Buffer. The body is stored
// already normalized, so this is a re-wrap, not a second normalization.
func (c *Chapter) Buffer() *text.Buffer {
	return text.Normalize(c.body)
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (and if necessary creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, errors.NewIO("configure", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.NewIO("migrate", path, err)
	}
	logging.Debug("store_opened", "path", path, "driver", driverType)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateProject inserts a new project with the given caps configuration.
func (s *Store) CreateProject(name string, c caps.Caps) (*Project, error) {
	capsJSON, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "marshal caps")
	}
	p := &Project{
		ID:        uuid.NewString(),
		Name:      name,
		Caps:      c,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.Exec(
		`INSERT INTO projects (id, name, caps_json, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, string(capsJSON), p.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "create project %q", name)
	}
	return p, nil
}

// GetProject looks a project up by id or, failing that, by name.
func (s *Store) GetProject(ref string) (*Project, error) {
	row := s.db.QueryRow(
		`SELECT id, name, caps_json, created_at FROM projects WHERE id = ? OR name = ?`,
		ref, ref,
	)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("project", ref)
	}
	return p, err
}

// ListProjects returns all projects ordered by creation time.
func (s *Store) ListProjects() ([]*Project, error) {
	rowSet, err := s.db.Query(`SELECT id, name, caps_json, created_at FROM projects ORDER BY created_at`)
	if err != nil {
		return nil, errors.Wrap(err, "list projects")
	}
	defer rowSet.Close()
	var out []*Project
	for rowSet.Next() {
		p, err := scanProject(rowSet)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rowSet.Err()
}

// SetProjectCaps replaces a project's caps configuration.
func (s *Store) SetProjectCaps(projectID string, c caps.Caps) error {
	capsJSON, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal caps")
	}
	res, err := s.db.Exec(`UPDATE projects SET caps_json = ? WHERE id = ?`, string(capsJSON), projectID)
	if err != nil {
		return errors.Wrap(err, "update caps")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFound("project", projectID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(r rowScanner) (*Project, error) {
	var p Project
	var capsJSON, created string
	if err := r.Scan(&p.ID, &p.Name, &capsJSON, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(capsJSON), &p.Caps); err != nil {
		return nil, errors.NewParse("JSON", "projects.caps_json", err.Error())
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &p, nil
}

// AddChapter normalizes raw chapter text and stores it at the next
// position, along with a default single-chunk plan.
func (s *Store) AddChapter(projectID, title, raw string) (*Chapter, error) {
	if _, err := s.GetProject(projectID); err != nil {
		return nil, err
	}
	buf := text.Normalize(raw)

	var position int
	err := s.db.QueryRow(
		`SELECT COALESCE(MAX(position), 0) + 1 FROM chapters WHERE project_id = ?`, projectID,
	).Scan(&position)
	if err != nil {
		return nil, errors.Wrap(err, "next chapter position")
	}

	ch := &Chapter{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Title:       title,
		Position:    position,
		Fingerprint: buf.Fingerprint(),
		CreatedAt:   time.Now().UTC(),
		body:        buf.String(),
	}
	_, err = s.db.Exec(
		`INSERT INTO chapters (id, project_id, title, position, body, fingerprint, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ch.ID, ch.ProjectID, ch.Title, ch.Position, ch.body, ch.Fingerprint,
		ch.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "add chapter %q", title)
	}

	if err := s.SavePlan(ch.ID, plan.NewPlan(chapterRef(position), title, buf.Len()), buf.Fingerprint()); err != nil {
		return nil, err
	}
	return ch, nil
}

// chapterRef derives the default plan chapter id from a position ("ch03").
func chapterRef(position int) string {
	return fmt.Sprintf("ch%02d", position)
}

// GetChapter loads one chapter with its text body.
func (s *Store) GetChapter(chapterID string) (*Chapter, error) {
	row := s.db.QueryRow(
		`SELECT id, project_id, title, position, body, fingerprint, created_at
		 FROM chapters WHERE id = ?`, chapterID,
	)
	var ch Chapter
	var created string
	err := row.Scan(&ch.ID, &ch.ProjectID, &ch.Title, &ch.Position, &ch.body, &ch.Fingerprint, &created)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("chapter", chapterID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get chapter")
	}
	ch.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &ch, nil
}

// ListChapters returns a project's chapters in position order, without
// their text bodies.
func (s *Store) ListChapters(projectID string) ([]*Chapter, error) {
	rowSet, err := s.db.Query(
		`SELECT id, project_id, title, position, fingerprint, created_at
		 FROM chapters WHERE project_id = ? ORDER BY position`, projectID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list chapters")
	}
	defer rowSet.Close()
	var out []*Chapter
	for rowSet.Next() {
		var ch Chapter
		var created string
		if err := rowSet.Scan(&ch.ID, &ch.ProjectID, &ch.Title, &ch.Position, &ch.Fingerprint, &created); err != nil {
			return nil, err
		}
		ch.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, &ch)
	}
	return out, rowSet.Err()
}

// SavePlan stores the plan for a chapter together with the fingerprint of
// the text it was computed against.
func (s *Store) SavePlan(chapterID string, p plan.Plan, fingerprint string) error {
	planJSON, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "marshal plan")
	}
	_, err = s.db.Exec(
		`INSERT INTO plans (chapter_id, fingerprint, plan_json, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(chapter_id) DO UPDATE SET
		   fingerprint = excluded.fingerprint,
		   plan_json   = excluded.plan_json,
		   updated_at  = excluded.updated_at`,
		chapterID, fingerprint, string(planJSON), time.Now().UTC().Format(time.RFC3339),
	)
	return errors.Wrap(err, "save plan")
}

// LoadPlan loads a chapter's plan and its text buffer, rejecting a plan
// whose fingerprint no longer matches the stored text or whose structure
// fails validation. Both are load-time precondition checks; nothing
// downstream attempts repair.
func (s *Store) LoadPlan(chapterID string) (plan.Plan, *text.Buffer, error) {
	ch, err := s.GetChapter(chapterID)
	if err != nil {
		return plan.Plan{}, nil, err
	}
	buf := ch.Buffer()

	var fingerprint, planJSON string
	row := s.db.QueryRow(`SELECT fingerprint, plan_json FROM plans WHERE chapter_id = ?`, chapterID)
	if err := row.Scan(&fingerprint, &planJSON); err != nil {
		if err == sql.ErrNoRows {
			return plan.Plan{}, nil, errors.NewNotFound("plan", chapterID)
		}
		return plan.Plan{}, nil, errors.Wrap(err, "load plan")
	}

	if fingerprint != buf.Fingerprint() {
		return plan.Plan{}, nil, errors.Wrapf(errors.ErrStaleFingerprint,
			"plan for chapter %s was computed against different text", chapterID)
	}

	var p plan.Plan
	if err := json.Unmarshal([]byte(planJSON), &p); err != nil {
		return plan.Plan{}, nil, errors.NewParse("JSON", "plans.plan_json", err.Error())
	}
	if err := plan.Check(p, buf.Len()); err != nil {
		return plan.Plan{}, nil, err
	}
	return p, buf, nil
}
