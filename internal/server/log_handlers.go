package server

import (
	"net/http"
	"strconv"

	"gazette/internal/core"
)

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID := q.Get("session_id")

	limit := 200
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.logs.ListBySession(r.Context(), sessionID, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}

	if level := core.LogLevel(q.Get("level")); level != "" {
		filtered := entries[:0]
		for _, entry := range entries {
			if entry.Level == level {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}

	s.respondJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

func (s *Server) handleDeleteLogs(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	dropped, err := s.logs.DeleteBySession(r.Context(), sessionID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"dropped": dropped})
}
