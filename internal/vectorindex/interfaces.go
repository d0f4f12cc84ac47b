// Package vectorindex implements the vector index contract (C3): named
// collections of (UUID, vector, payload) supporting cosine nearest-neighbor
// search. The sole implementation talks to Qdrant over gRPC.
package vectorindex

import "context"

// Point is one entry in a collection: a deterministic id, its embedding,
// and caller-supplied metadata carried as the payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// SearchHit is one nearest-neighbor result.
type SearchHit struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// CollectionInfo reports a collection's size and configured dimension.
type CollectionInfo struct {
	PointCount uint64
	Dimension  uint64
}

// Index is the vector index contract (C3). Collection names are computed
// by callers from source_kind; the index itself is collection-name-agnostic.
type Index interface {
	// EnsureCollection idempotently creates collection if absent, configured
	// for cosine distance at the given dimension.
	EnsureCollection(ctx context.Context, collection string, dim int) error

	Upsert(ctx context.Context, collection string, point Point) error

	// Search returns hits scoring at or above scoreThreshold, most similar first.
	Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32) ([]SearchHit, error)

	Delete(ctx context.Context, collection, id string) error

	CollectionInfo(ctx context.Context, collection string) (CollectionInfo, error)

	// HealthCheck reports reachability without mutating state.
	HealthCheck(ctx context.Context) error

	Close() error
}
