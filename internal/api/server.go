// Package api exposes classification, record dispatch and health over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/faultline/internal/classify"
	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/infra/storage"
)

// Status is the overall health state.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusCritical Status = "critical"
)

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

// RecordDispatcher is the record-creation hook.
type RecordDispatcher interface {
	OnRecordCreate(ctx context.Context, rec domain.Record) (*domain.Job, error)
}

// Deps are the collaborators behind the routes. Queue and Dispatcher may
// be nil; their routes then answer 503.
type Deps struct {
	Registry   *classify.Registry
	Dispatcher RecordDispatcher
	Queue      storage.JobQueue
	Checks     map[string]Check
	Log        *slog.Logger
}

// Server provides the HTTP endpoints.
type Server struct {
	deps       Deps
	classifier *classify.Classifier
	server     *http.Server
}

// NewServer creates a new API server.
func NewServer(deps Deps, port int) *Server {
	if deps.Registry == nil {
		deps.Registry = classify.NewRegistry()
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}

	mux := http.NewServeMux()
	s := &Server{
		deps:       deps,
		classifier: classify.New("api", nil),
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/services", s.handleServices)
	mux.HandleFunc("POST /v1/classify", s.handleClassify)
	mux.HandleFunc("POST /v1/records", s.handleRecord)
	mux.HandleFunc("GET /v1/jobs/stats", s.handleJobStats)

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the serialized form of ne. The status is the
// upstream one when it is an error status, otherwise the category's.
func writeError(w http.ResponseWriter, ne *classify.NormalizedError) {
	status := ne.StatusCode()
	if status < 400 || status > 599 {
		status = classify.StatusForCategory(ne.Category())
	}
	writeJSON(w, status, map[string]any{"error": ne})
}
