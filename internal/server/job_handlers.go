package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"gazette/internal/core"
)

// submitJobRequest is the body of POST /scrape/{source_kind}.
type submitJobRequest struct {
	MaxItems            int            `json:"max_items"`
	Filter              map[string]any `json:"filter,omitempty"`
	EnableLLM           bool           `json:"enable_llm"`
	EnableDeduplication bool           `json:"enable_deduplication"`
}

// submitJobResponse is the body of a successful POST /scrape/{source_kind}.
type submitJobResponse struct {
	JobID      string          `json:"job_id"`
	State      core.JobState   `json:"state"`
	CreatedAt  time.Time       `json:"created_at"`
	SourceKind core.SourceKind `json:"source_kind"`
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	kind := core.SourceKind(chi.URLParam(r, "source_kind"))
	if !kind.Valid() {
		s.respondError(w, newValidationError("unknown source_kind: "+string(kind)))
		return
	}

	var req submitJobRequest
	if r.Body != nil {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			s.respondError(w, newValidationError("malformed request body: "+err.Error()))
			return
		}
	}
	if req.MaxItems < 1 {
		s.respondError(w, newValidationError("max_items must be >= 1"))
		return
	}

	job, err := s.runner.Submit(kind, core.JobParams{
		MaxItems:            req.MaxItems,
		Filter:              req.Filter,
		EnableLLM:           req.EnableLLM,
		EnableDeduplication: req.EnableDeduplication,
	})
	if err != nil {
		s.respondError(w, newValidationError(err.Error()))
		return
	}

	s.respondJSON(w, http.StatusAccepted, submitJobResponse{
		JobID:      job.JobID,
		State:      job.State,
		CreatedAt:  job.CreatedAt,
		SourceKind: job.SourceKind,
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, ok := s.runner.Status(jobID)
	if !ok {
		s.respondError(w, newNotFoundError("no such job: "+jobID))
		return
	}
	s.respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"jobs": s.runner.List(limit)})
}

func (s *Server) handleCleanupJobs(w http.ResponseWriter, r *http.Request) {
	dropped := s.runner.Cleanup()
	s.respondJSON(w, http.StatusOK, map[string]int{"dropped": dropped})
}
