package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"gazette/internal/core"
	"gazette/internal/recordstore"
)

// sourceKindFromPath maps the {source} path segment used by GET
// /{source}/records to a core.SourceKind. The segment is plural and
// hyphenated ("forum-posts") while SourceKind values are singular and
// underscored ("forum_post"); this is the one place that reconciles them.
func sourceKindFromPath(segment string) (core.SourceKind, bool) {
	switch strings.ToLower(segment) {
	case "forum-posts", "forum_post", "forum_posts":
		return core.SourceForumPost, true
	case "tech-articles", "tech_article", "tech_articles":
		return core.SourceTechArticle, true
	case "chat-messages", "chat_message", "chat_messages":
		return core.SourceChatMessage, true
	case "blog-articles", "blog_article", "blog_articles":
		return core.SourceBlogArticle, true
	default:
		return "", false
	}
}

func listOptionsFromQuery(r *http.Request) recordstore.ListOptions {
	opts := recordstore.ListOptions{Limit: 50, Offset: 0}
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			opts.Offset = n
		}
	}
	return opts
}

// recordsResponse wraps each of the three record kinds the record store
// holds for a source_kind; exactly one is populated per request, selected
// by the optional "kind" query param (raw|processed|short_form, default raw).
type recordsResponse struct {
	SourceKind core.SourceKind      `json:"source_kind"`
	Raw        []core.RawItem       `json:"raw,omitempty"`
	Processed  []core.ProcessedItem `json:"processed,omitempty"`
	ShortForm  []core.ShortFormItem `json:"short_form,omitempty"`
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	kind, ok := sourceKindFromPath(chi.URLParam(r, "source"))
	if !ok {
		s.respondError(w, newValidationError("unknown source: "+chi.URLParam(r, "source")))
		return
	}

	opts := listOptionsFromQuery(r)
	resp := recordsResponse{SourceKind: kind}

	switch r.URL.Query().Get("kind") {
	case "processed":
		items, err := s.store.ProcessedItems().ListBySource(r.Context(), kind, opts)
		if err != nil {
			s.respondError(w, err)
			return
		}
		resp.Processed = items
	case "short_form":
		items, err := s.store.ShortFormItems().ListBySource(r.Context(), kind, opts)
		if err != nil {
			s.respondError(w, err)
			return
		}
		resp.ShortForm = items
	default:
		items, err := s.store.RawItems().ListBySource(r.Context(), kind, opts)
		if err != nil {
			s.respondError(w, err)
			return
		}
		resp.Raw = items
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// statisticsResponse is the body of GET /statistics.
type statisticsResponse struct {
	Sources map[core.SourceKind]recordstore.SourceStatistics `json:"sources"`
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Statistics(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, statisticsResponse{Sources: stats})
}
