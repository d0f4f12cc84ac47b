// Package dedup implements the dedup service (C5): wraps an embedding
// client (C1) and a vector index (C3) to answer "is this text a
// near-duplicate?" and to remember text for future checks.
package dedup

import (
	"context"

	"github.com/google/uuid"

	"gazette/internal/llmclient"
	"gazette/internal/logger"
	"gazette/internal/vectorindex"
)

// uuidNamespace seeds the v5 derivation so the same source_id always maps
// to the same point id, making remember idempotent across retries.
var uuidNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8") // uuid.NamespaceDNS

// Service is the dedup service. Collections are named per source kind via
// vectorindex.CollectionName; the similarity metric is always cosine.
type Service struct {
	embedder  llmclient.Embedder
	index     vectorindex.Index
	threshold float32
}

// New constructs a Service. threshold is τ, the service-wide score floor
// above which a hit counts as a duplicate.
func New(embedder llmclient.Embedder, index vectorindex.Index, threshold float32) *Service {
	return &Service{embedder: embedder, index: index, threshold: threshold}
}

// DerivePointID computes the deterministic UUID v5 a given source_id maps
// to within a source kind's collection.
func DerivePointID(sourceKind, sourceID string) string {
	return uuid.NewSHA1(uuidNamespace, []byte(sourceKind+"/"+sourceID)).String()
}

// CheckDuplicate embeds text and searches the source kind's collection. A
// failure at either step is non-fatal: it is logged and reported as "not a
// duplicate" so ingestion is never blocked on embedding or index
// unavailability.
func (s *Service) CheckDuplicate(ctx context.Context, text, sourceKind string) (isDup bool, dupID string, score float32) {
	collection := vectorindex.CollectionName(sourceKind)

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		logger.Warn("dedup: embedding failed, treating as not-duplicate", "source_kind", sourceKind, "error", err.Error())
		return false, "", 0
	}

	hits, err := s.index.Search(ctx, collection, vector, 1, s.threshold)
	if err != nil {
		logger.Warn("dedup: search failed, treating as not-duplicate", "source_kind", sourceKind, "error", err.Error())
		return false, "", 0
	}
	if len(hits) == 0 {
		return false, "", 0
	}

	hit := hits[0]
	sourceID, _ := hit.Payload["source_id"].(string)
	return true, sourceID, hit.Score
}

// Remember embeds text and upserts a point keyed by the deterministic UUID
// derived from sourceID. Returns the point id, or "" on failure (non-fatal:
// caller proceeds with ingestion regardless).
func (s *Service) Remember(ctx context.Context, text, sourceID string, metadata map[string]any, sourceKind string) string {
	collection := vectorindex.CollectionName(sourceKind)

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		logger.Warn("dedup: embedding failed, not remembering", "source_kind", sourceKind, "error", err.Error())
		return ""
	}

	if err := s.index.EnsureCollection(ctx, collection, s.embedder.Dimension()); err != nil {
		logger.Warn("dedup: ensure collection failed", "collection", collection, "error", err.Error())
		return ""
	}

	pointID := DerivePointID(sourceKind, sourceID)

	payload := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		payload[k] = v
	}
	payload["source_id"] = sourceID

	if err := s.index.Upsert(ctx, collection, vectorindex.Point{ID: pointID, Vector: vector, Payload: payload}); err != nil {
		logger.Warn("dedup: upsert failed, not remembering", "collection", collection, "error", err.Error())
		return ""
	}

	return pointID
}
