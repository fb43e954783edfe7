package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/FocuswithJustin/Lectern/core/caps"
	"github.com/FocuswithJustin/Lectern/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "lectern.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewServer(st), st
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var apiResp APIResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&apiResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !apiResp.Success {
		t.Fatalf("expected success, got error: %+v", apiResp.Error)
	}
	data, ok := apiResp.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected data to be a map, got %T", apiResp.Data)
	}
	return data
}

func seedChapter(t *testing.T, st *store.Store, text string) *store.Chapter {
	t.Helper()
	p, err := st.CreateProject("novel", caps.DefaultCaps())
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	ch, err := st.AddChapter(p.ID, "One", text)
	if err != nil {
		t.Fatalf("add chapter: %v", err)
	}
	return ch
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/v1/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	data := decodeData(t, w)
	if data["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", data["status"])
	}
	if data["version"] != Version {
		t.Errorf("expected version %q, got %v", Version, data["version"])
	}
}

func TestCreateProjectMissingName(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/projects", CreateProjectRequest{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestCreateAndListProjects(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/projects", CreateProjectRequest{Name: "novel"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", w.Code)
	}
	data := decodeData(t, w)
	if data["name"] != "novel" {
		t.Errorf("expected name 'novel', got %v", data["name"])
	}

	w = doJSON(t, srv, http.MethodGet, "/api/v1/projects", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var apiResp APIResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&apiResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if apiResp.Meta == nil || apiResp.Meta.Total != 1 {
		t.Errorf("expected meta total 1, got %+v", apiResp.Meta)
	}
}

func TestRowsUnknownChapter(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/v1/chapters/nope/rows", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestSplitChunkEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	ch := seedChapter(t, st, "alpha beta gamma delta")

	w := doJSON(t, srv, http.MethodPost, "/api/v1/chapters/"+ch.ID+"/split",
		SplitRequest{ChunkIndex: 0, At: 11})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	data := decodeData(t, w)
	if got := data["chunk_count"]; got != float64(2) {
		t.Errorf("expected chunk_count 2, got %v", got)
	}
	if got := data["coverage"]; got != float64(len("alpha beta gamma delta")) {
		t.Errorf("expected full coverage, got %v", got)
	}

	// The split must be visible on a fresh load.
	w = doJSON(t, srv, http.MethodGet, "/api/v1/chapters/"+ch.ID+"/rows", nil)
	var apiResp APIResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&apiResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if apiResp.Meta.Total != 2 {
		t.Errorf("expected 2 rows after split, got %d", apiResp.Meta.Total)
	}
}

func TestSplitChunkInvalidOffsetIsNoOp(t *testing.T) {
	srv, st := newTestServer(t)
	ch := seedChapter(t, st, "alpha beta")

	w := doJSON(t, srv, http.MethodPost, "/api/v1/chapters/"+ch.ID+"/split",
		SplitRequest{ChunkIndex: 0, At: 0})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	data := decodeData(t, w)
	if got := data["chunk_count"]; got != float64(1) {
		t.Errorf("expected chunk_count 1 after rejected split, got %v", got)
	}
}

func TestSetVoiceAndFilterRows(t *testing.T) {
	srv, st := newTestServer(t)
	ch := seedChapter(t, st, "alpha beta gamma")

	w := doJSON(t, srv, http.MethodPost, "/api/v1/chapters/"+ch.ID+"/voice",
		VoiceRequest{ChunkIndex: 0, LineIndex: 0, Voice: "narrator"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/v1/chapters/"+ch.ID+"/rows?voice=narrator", nil)
	var apiResp APIResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&apiResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if apiResp.Meta.Total != 1 {
		t.Errorf("expected 1 narrator row, got %d", apiResp.Meta.Total)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/v1/chapters/"+ch.ID+"/rows?voice=ghost", nil)
	if err := json.NewDecoder(w.Result().Body).Decode(&apiResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if apiResp.Meta.Total != 0 {
		t.Errorf("expected 0 ghost rows, got %d", apiResp.Meta.Total)
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	ch := seedChapter(t, st, "alpha beta gamma")

	w := doJSON(t, srv, http.MethodPost, "/api/v1/chapters/"+ch.ID+"/normalize", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	data := decodeData(t, w)
	if got := data["chunk_count"]; got != float64(1) {
		t.Errorf("expected chunk_count 1 for a tiny chapter, got %v", got)
	}
	if _, ok := data["reports"]; ok {
		t.Error("expected no reports for a chapter within caps")
	}
}

func TestStandardizeIDsEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	ch := seedChapter(t, st, "alpha beta gamma delta")

	// Two splits make three chunks, two of them with empty ids.
	doJSON(t, srv, http.MethodPost, "/api/v1/chapters/"+ch.ID+"/split",
		SplitRequest{ChunkIndex: 0, At: 6})
	doJSON(t, srv, http.MethodPost, "/api/v1/chapters/"+ch.ID+"/split",
		SplitRequest{ChunkIndex: 1, At: 11})

	w := doJSON(t, srv, http.MethodPost, "/api/v1/chapters/"+ch.ID+"/ids", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	data := decodeData(t, w)
	props, ok := data["proposals"].([]any)
	if !ok || len(props) != 3 {
		t.Fatalf("expected 3 proposals, got %v", data["proposals"])
	}
	first, ok := props[0].(map[string]any)
	if !ok {
		t.Fatalf("expected proposal object, got %T", props[0])
	}
	if first["new_id"] == "" {
		t.Error("expected a non-empty proposed id")
	}
}

func TestAddChapterMissingText(t *testing.T) {
	srv, st := newTestServer(t)
	p, err := st.CreateProject("novel", caps.DefaultCaps())
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	w := doJSON(t, srv, http.MethodPost, "/api/v1/projects/"+p.ID+"/chapters",
		AddChapterRequest{Title: "One"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestListChaptersByProjectName(t *testing.T) {
	srv, st := newTestServer(t)
	seedChapter(t, st, "alpha beta")

	w := doJSON(t, srv, http.MethodGet, "/api/v1/projects/novel/chapters", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var apiResp APIResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&apiResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if apiResp.Meta.Total != 1 {
		t.Errorf("expected 1 chapter, got %d", apiResp.Meta.Total)
	}
}
