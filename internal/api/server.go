// Package api provides the Lectern REST API server.
//
// The server exposes the editing operations of a segmentation plan over
// HTTP and pushes a plan_changed event to WebSocket clients after every
// successful mutation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/FocuswithJustin/Lectern/internal/logging"
	"github.com/FocuswithJustin/Lectern/internal/store"
)

// Version is the API server version reported by the health endpoint.
const Version = "0.1.0"

// Config holds the API server configuration.
type Config struct {
	Host string
	Port int
}

// Server serves the plan editing API backed by a store.
type Server struct {
	store *store.Store
	hub   *Hub
}

// NewServer creates a server over the given store. The hub is created but
// not started; Start runs it.
func NewServer(s *store.Store) *Server {
	return &Server{store: s, hub: NewHub()}
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start runs the hub and blocks serving HTTP on cfg.Host:cfg.Port until ctx
// is cancelled, then shuts the server down gracefully.
func (s *Server) Start(ctx context.Context, cfg Config) error {
	go s.hub.Run(ctx)

	logging.ServerStartup("rest_api", "http", cfg.Port,
		"websocket_protocol", "ws")

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.Handler(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Handler builds the route mux wrapped in the logging middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/v1/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/v1/projects/{ref}/chapters", s.handleListChapters)
	mux.HandleFunc("POST /api/v1/projects/{ref}/chapters", s.handleAddChapter)
	mux.HandleFunc("GET /api/v1/chapters/{id}/rows", s.handleRows)
	mux.HandleFunc("POST /api/v1/chapters/{id}/split", s.handleSplit)
	mux.HandleFunc("POST /api/v1/chapters/{id}/merge-lines", s.handleMergeLines)
	mux.HandleFunc("POST /api/v1/chapters/{id}/delete-line", s.handleDeleteLine)
	mux.HandleFunc("POST /api/v1/chapters/{id}/voice", s.handleSetVoice)
	mux.HandleFunc("POST /api/v1/chapters/{id}/normalize", s.handleNormalize)
	mux.HandleFunc("POST /api/v1/chapters/{id}/ids", s.handleStandardizeIDs)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return logging.RequestIDMiddleware(logging.RequestLoggingMiddleware(mux))
}
