package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/FocuswithJustin/Lectern/core/caps"
	"github.com/FocuswithJustin/Lectern/core/errors"
	"github.com/FocuswithJustin/Lectern/core/ids"
	"github.com/FocuswithJustin/Lectern/core/normalize"
	"github.com/FocuswithJustin/Lectern/core/plan"
	"github.com/FocuswithJustin/Lectern/core/rows"
	"github.com/FocuswithJustin/Lectern/core/text"
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Projects int    `json:"projects"`
	Clients  int    `json:"clients"`
}

// PlanInfo summarizes a plan after a mutation.
type PlanInfo struct {
	ChapterID  string             `json:"chapter_id"`
	ChunkCount int                `json:"chunk_count"`
	Coverage   int                `json:"coverage"`
	Reports    []normalize.Report `json:"reports,omitempty"`
	Proposals  []ids.Proposal     `json:"proposals,omitempty"`
}

// CreateProjectRequest is the request body for project creation.
type CreateProjectRequest struct {
	Name string     `json:"name"`
	Caps *caps.Caps `json:"caps,omitempty"`
}

// AddChapterRequest is the request body for adding a chapter.
type AddChapterRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// SplitRequest names the chunk and the rune offset of the new boundary.
type SplitRequest struct {
	ChunkIndex int `json:"chunk_index"`
	At         int `json:"at"`
}

// MergeLinesRequest names two adjacent lines within a chunk.
type MergeLinesRequest struct {
	ChunkIndex int `json:"chunk_index"`
	LineA      int `json:"line_a"`
	LineB      int `json:"line_b"`
}

// LineRequest names one line within a chunk.
type LineRequest struct {
	ChunkIndex int `json:"chunk_index"`
	LineIndex  int `json:"line_index"`
}

// VoiceRequest assigns a voice to one line.
type VoiceRequest struct {
	ChunkIndex int    `json:"chunk_index"`
	LineIndex  int    `json:"line_index"`
	Voice      string `json:"voice"`
}

var startTime = time.Now()

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects()
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusOK, HealthInfo{
		Status:   "ok",
		Version:  Version,
		Uptime:   time.Since(startTime).Round(time.Second).String(),
		Projects: len(projects),
		Clients:  s.hub.ClientCount(),
	})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects()
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondList(w, projects, len(projects))
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "MISSING_NAME", "Project name is required")
		return
	}
	c := caps.DefaultCaps()
	if req.Caps != nil {
		c = *req.Caps
	}
	p, err := s.store.CreateProject(req.Name, c)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusCreated, p)
}

func (s *Server) handleListChapters(w http.ResponseWriter, r *http.Request) {
	project, err := s.store.GetProject(r.PathValue("ref"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	chapters, err := s.store.ListChapters(project.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondList(w, chapters, len(chapters))
}

func (s *Server) handleAddChapter(w http.ResponseWriter, r *http.Request) {
	project, err := s.store.GetProject(r.PathValue("ref"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	var req AddChapterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body")
		return
	}
	if req.Text == "" {
		respondError(w, http.StatusBadRequest, "MISSING_TEXT", "Chapter text is required")
		return
	}
	ch, err := s.store.AddChapter(project.ID, req.Title, req.Text)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusCreated, ch)
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	p, buf, err := s.store.LoadPlan(r.PathValue("id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	opts := rows.Options{
		Voice:        r.URL.Query().Get("voice"),
		UnvoicedOnly: r.URL.Query().Get("unvoiced") == "true",
	}
	if v := r.URL.Query().Get("snippet"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "INVALID_SNIPPET", "snippet must be a non-negative integer")
			return
		}
		opts.SnippetRunes = n
	}
	out := rows.Project(p, buf, opts)
	respondList(w, out, len(out))
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	var req SplitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body")
		return
	}
	s.mutate(w, r, "split", func(p plan.Plan, _ *text.Buffer, _ caps.Caps) (plan.Plan, PlanInfo) {
		return p.SplitChunk(req.ChunkIndex, req.At), PlanInfo{}
	})
}

func (s *Server) handleMergeLines(w http.ResponseWriter, r *http.Request) {
	var req MergeLinesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body")
		return
	}
	s.mutate(w, r, "merge_lines", func(p plan.Plan, _ *text.Buffer, _ caps.Caps) (plan.Plan, PlanInfo) {
		return p.MergeLines(req.ChunkIndex, req.LineA, req.LineB), PlanInfo{}
	})
}

func (s *Server) handleDeleteLine(w http.ResponseWriter, r *http.Request) {
	var req LineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body")
		return
	}
	s.mutate(w, r, "delete_line", func(p plan.Plan, _ *text.Buffer, _ caps.Caps) (plan.Plan, PlanInfo) {
		return p.DeleteLine(req.ChunkIndex, req.LineIndex), PlanInfo{}
	})
}

func (s *Server) handleSetVoice(w http.ResponseWriter, r *http.Request) {
	var req VoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body")
		return
	}
	s.mutate(w, r, "set_voice", func(p plan.Plan, _ *text.Buffer, _ caps.Caps) (plan.Plan, PlanInfo) {
		return p.SetLineVoice(req.ChunkIndex, req.LineIndex, req.Voice), PlanInfo{}
	})
}

func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, "normalize", func(p plan.Plan, buf *text.Buffer, c caps.Caps) (plan.Plan, PlanInfo) {
		out, reports := normalize.Run(p, buf, c)
		return out, PlanInfo{Reports: reports}
	})
}

func (s *Server) handleStandardizeIDs(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, "standardize_ids", func(p plan.Plan, _ *text.Buffer, _ caps.Caps) (plan.Plan, PlanInfo) {
		props := ids.ProposeSequentialIDs(p)
		return ids.ApplySequentialIDs(p, props), PlanInfo{Proposals: props}
	})
}

// mutate runs the load, apply, save, broadcast cycle shared by every plan
// mutation endpoint. The apply function may pre-fill report or proposal
// fields of the returned PlanInfo.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, op string, apply func(plan.Plan, *text.Buffer, caps.Caps) (plan.Plan, PlanInfo)) {
	chapterID := r.PathValue("id")
	p, buf, err := s.store.LoadPlan(chapterID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	ch, err := s.store.GetChapter(chapterID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	project, err := s.store.GetProject(ch.ProjectID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	out, info := apply(p, buf, project.Caps)
	if err := s.store.SavePlan(chapterID, out, buf.Fingerprint()); err != nil {
		respondStoreError(w, err)
		return
	}
	s.hub.BroadcastPlanEvent(chapterID, op, len(out.Chunks))

	info.ChapterID = chapterID
	info.ChunkCount = len(out.Chunks)
	info.Coverage = plan.Coverage(out)
	respond(w, http.StatusOK, info)
}

func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, errors.ErrStaleFingerprint):
		respondError(w, http.StatusConflict, "STALE_PLAN", err.Error())
	case errors.Is(err, errors.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, errors.ErrAlreadyExists):
		respondError(w, http.StatusConflict, "ALREADY_EXISTS", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func respond(w http.ResponseWriter, status int, data any) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func respondList(w http.ResponseWriter, data any, total int) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Total:     total,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
