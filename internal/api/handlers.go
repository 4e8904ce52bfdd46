package api

import (
	"encoding/json"
	"net/http"

	"github.com/vietddude/faultline/internal/classify"
	"github.com/vietddude/faultline/internal/core/domain"
)

const maxRequestBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := StatusHealthy
	checks := make(map[string]string, len(s.deps.Checks))

	for name, check := range s.deps.Checks {
		if err := check(r.Context()); err != nil {
			status = StatusCritical
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if status == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}

type serviceView struct {
	Name      string             `json:"name"`
	Overrides classify.Overrides `json:"overrides"`
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	names := s.deps.Registry.Services()
	out := make([]serviceView, 0, len(names))
	for _, name := range names {
		overrides := s.deps.Registry.For(name).Overrides()
		if overrides == nil {
			overrides = classify.Overrides{}
		}
		out = append(out, serviceView{Name: name, Overrides: overrides})
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": out})
}

type classifyRequest struct {
	Service string          `json:"service"`
	Error   json.RawMessage `json:"error"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !s.decode(w, r, &req) {
		return
	}

	var raw any
	if len(req.Error) > 0 {
		raw = req.Error
	}
	ne := s.deps.Registry.For(req.Service).Classify(raw)
	writeJSON(w, http.StatusOK, ne)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	if s.deps.Dispatcher == nil {
		writeError(w, s.unavailable("record hook is disabled"))
		return
	}

	var rec domain.Record
	if !s.decode(w, r, &rec) {
		return
	}

	job, err := s.deps.Dispatcher.OnRecordCreate(r.Context(), rec)
	if err != nil {
		writeError(w, s.classifier.Classify(err))
		return
	}
	if job == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleJobStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Queue == nil {
		writeError(w, s.unavailable("job queue is disabled"))
		return
	}
	stats, err := s.deps.Queue.Stats(r.Context())
	if err != nil {
		ne := s.classifier.Classify(err)
		s.deps.Log.Error("Failed to read queue stats", "error", ne)
		writeError(w, ne)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(v); err != nil {
		writeError(w, s.classifier.Classify(map[string]any{
			"code":       "invalid_body",
			"statusCode": http.StatusBadRequest,
			"message":    err.Error(),
		}))
		return false
	}
	return true
}

func (s *Server) unavailable(msg string) *classify.NormalizedError {
	return s.classifier.Classify(map[string]any{
		"code":       "unavailable",
		"statusCode": http.StatusServiceUnavailable,
		"message":    msg,
	})
}
