// Package recordstore provides the durable transactional store (C4): a
// repository per entity type, backed by a relational schema versioned by
// migration files applied at startup.
package recordstore

import (
	"context"
	"errors"

	"gazette/internal/core"
)

// ErrConflict is returned by Save when a unique constraint already holds the
// item's key (source_id, for processed and short-form items) and no row was
// written. Callers must treat this as a duplicate, not a successful save.
var ErrConflict = errors.New("recordstore: conflict")

// ListOptions provides common pagination for list_by_source operations.
type ListOptions struct {
	Limit  int
	Offset int
}

// RawItemRepository persists RawItem records.
type RawItemRepository interface {
	ExistsBySourceID(ctx context.Context, sourceKind core.SourceKind, sourceID string) (bool, error)
	Save(ctx context.Context, item *core.RawItem) error
	GetByID(ctx context.Context, id string) (*core.RawItem, error)
	GetBySourceID(ctx context.Context, sourceKind core.SourceKind, sourceID string) (*core.RawItem, error)
	ListBySource(ctx context.Context, sourceKind core.SourceKind, opts ListOptions) ([]core.RawItem, error)
	Count(ctx context.Context, sourceKind core.SourceKind) (int64, error)
	Delete(ctx context.Context, id string) error

	// AttachVectorID records the embedding identity for an already-persisted
	// raw item, within whatever transaction this repository is scoped to.
	AttachVectorID(ctx context.Context, id, vectorID string) error
}

// ProcessedItemRepository persists ProcessedItem records.
type ProcessedItemRepository interface {
	Save(ctx context.Context, item *core.ProcessedItem) error
	GetByID(ctx context.Context, id string) (*core.ProcessedItem, error)
	GetBySourceID(ctx context.Context, sourceID string) (*core.ProcessedItem, error)
	ListBySource(ctx context.Context, sourceKind core.SourceKind, opts ListOptions) ([]core.ProcessedItem, error)
	Count(ctx context.Context, sourceKind core.SourceKind) (int64, error)
	Delete(ctx context.Context, id string) error
}

// ShortFormItemRepository persists ShortFormItem records.
type ShortFormItemRepository interface {
	Save(ctx context.Context, item *core.ShortFormItem) error
	GetByID(ctx context.Context, id string) (*core.ShortFormItem, error)
	GetBySourceID(ctx context.Context, sourceID string) (*core.ShortFormItem, error)
	ListBySource(ctx context.Context, sourceKind core.SourceKind, opts ListOptions) ([]core.ShortFormItem, error)
	Count(ctx context.Context, sourceKind core.SourceKind) (int64, error)
	Delete(ctx context.Context, id string) error
	MarkPublished(ctx context.Context, id string, platformMessageID int64) error
}

// Store aggregates all repositories and the transaction boundary. All write
// operations that touch more than one entity for the same item happen
// inside one Transaction; failure rolls back every write in it.
type Store interface {
	RawItems() RawItemRepository
	ProcessedItems() ProcessedItemRepository
	ShortFormItems() ShortFormItemRepository

	Close() error
	Ping(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)

	// Statistics counts entities and the latest fetched_at per source_kind,
	// for the read API's statistics endpoint.
	Statistics(ctx context.Context) (map[core.SourceKind]SourceStatistics, error)
}

// SourceStatistics is one source_kind's row in the statistics endpoint.
type SourceStatistics struct {
	RawCount           int64
	ProcessedCount      int64
	ShortFormCount      int64
	LatestFetchedAt    *string
}

// Transaction scopes a set of repository calls to one database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	RawItems() RawItemRepository
	ProcessedItems() ProcessedItemRepository
	ShortFormItems() ShortFormItemRepository
}
