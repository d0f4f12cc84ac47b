package server

import (
	"net/http"
	"strconv"
	"strings"

	"gazette/internal/core"
	"gazette/internal/recordstore"
)

// comparisonPair is one raw/processed pairing with similarity scores.
type comparisonPair struct {
	SourceID        string  `json:"source_id"`
	RawTitle        string  `json:"raw_title"`
	ProcessedTitle  string  `json:"processed_title,omitempty"`
	TitleSimilarity float64 `json:"title_similarity"`
	BodySimilarity  float64 `json:"body_similarity"`
	HasProcessed    bool    `json:"has_processed"`
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	kind, ok := sourceKindFromPath(q.Get("source"))
	if !ok {
		s.respondError(w, newValidationError("unknown or missing source query param: "+q.Get("source")))
		return
	}

	limit := 20
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	onlyProcessed := q.Get("only_processed") == "true"

	rawItems, err := s.store.RawItems().ListBySource(r.Context(), kind, recordstore.ListOptions{Limit: limit * 2})
	if err != nil {
		s.respondError(w, err)
		return
	}

	pairs := make([]comparisonPair, 0, limit)
	for _, raw := range rawItems {
		if len(pairs) >= limit {
			break
		}

		processed, err := s.store.ProcessedItems().GetBySourceID(r.Context(), raw.SourceID)
		if err != nil {
			if onlyProcessed {
				continue
			}
			pairs = append(pairs, comparisonPair{SourceID: raw.SourceID, RawTitle: raw.Title})
			continue
		}

		pairs = append(pairs, comparisonPair{
			SourceID:        raw.SourceID,
			RawTitle:        raw.Title,
			ProcessedTitle:  processed.EditorialTitle,
			TitleSimilarity: jaccardWordSimilarity(raw.Title, processed.EditorialTitle),
			BodySimilarity:  jaccardWordSimilarity(raw.Body, processed.EditorialBody),
			HasProcessed:    true,
		})
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"source_kind": core.SourceKind(kind),
		"pairs":       pairs,
	})
}

// jaccardWordSimilarity computes |A ∩ B| / |A ∪ B| over the lowercased
// whitespace-separated word sets of a and b. Two empty strings are
// defined as perfectly similar; one empty and one non-empty as 0.
func jaccardWordSimilarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}

	intersection := 0
	union := make(map[string]struct{}, len(setA)+len(setB))
	for w := range setA {
		union[w] = struct{}{}
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	for w := range setB {
		union[w] = struct{}{}
	}
	if len(union) == 0 {
		return 0
	}
	return float64(intersection) / float64(len(union))
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
