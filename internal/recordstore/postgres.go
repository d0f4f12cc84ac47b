package recordstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"gazette/internal/core"
)

// querier is the subset of pgxpool.Pool and pgx.Tx that the repositories
// need; a repository picks whichever of its two fields is non-nil.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore implements Store over a pgx connection pool, sized to the
// max concurrent items a job's worker pool may run.
type PostgresStore struct {
	pool           *pgxpool.Pool
	rawItems       RawItemRepository
	processedItems ProcessedItemRepository
	shortFormItems ShortFormItemRepository
}

// NewPostgresStore opens a pool against dsn and runs pending migrations
// before returning.
func NewPostgresStore(ctx context.Context, dsn string, maxConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("recordstore: parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("recordstore: open pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("recordstore: ping: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		pool.Close()
		return nil, fmt.Errorf("recordstore: migrate: %w", err)
	}

	store := &PostgresStore{pool: pool}
	store.rawItems = &postgresRawItemRepo{db: pool}
	store.processedItems = &postgresProcessedItemRepo{db: pool}
	store.shortFormItems = &postgresShortFormItemRepo{db: pool}
	return store, nil
}

func (s *PostgresStore) RawItems() RawItemRepository             { return s.rawItems }
func (s *PostgresStore) ProcessedItems() ProcessedItemRepository { return s.processedItems }
func (s *PostgresStore) ShortFormItems() ShortFormItemRepository { return s.shortFormItems }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) BeginTx(ctx context.Context) (Transaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("recordstore: begin tx: %w", err)
	}
	return &postgresTx{
		tx:             tx,
		rawItems:       &postgresRawItemRepo{tx: tx},
		processedItems: &postgresProcessedItemRepo{tx: tx},
		shortFormItems: &postgresShortFormItemRepo{tx: tx},
	}, nil
}

func (s *PostgresStore) Statistics(ctx context.Context) (map[core.SourceKind]SourceStatistics, error) {
	out := make(map[core.SourceKind]SourceStatistics)

	rows, err := s.pool.Query(ctx, `
		SELECT source_kind, COUNT(*), MAX(fetched_at)
		FROM raw_items
		GROUP BY source_kind
	`)
	if err != nil {
		return nil, fmt.Errorf("recordstore: raw statistics: %w", err)
	}
	for rows.Next() {
		var kind string
		var count int64
		var latest *time.Time
		if err := rows.Scan(&kind, &count, &latest); err != nil {
			rows.Close()
			return nil, fmt.Errorf("recordstore: scan raw statistics: %w", err)
		}
		stat := out[core.SourceKind(kind)]
		stat.RawCount = count
		if latest != nil {
			s := latest.UTC().Format(time.RFC3339)
			stat.LatestFetchedAt = &s
		}
		out[core.SourceKind(kind)] = stat
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	procRows, err := s.pool.Query(ctx, `
		SELECT r.source_kind, COUNT(*)
		FROM processed_items p
		JOIN raw_items r ON r.source_id = p.source_id
		GROUP BY r.source_kind
	`)
	if err != nil {
		return nil, fmt.Errorf("recordstore: processed statistics: %w", err)
	}
	for procRows.Next() {
		var kind string
		var count int64
		if err := procRows.Scan(&kind, &count); err != nil {
			procRows.Close()
			return nil, err
		}
		stat := out[core.SourceKind(kind)]
		stat.ProcessedCount = count
		out[core.SourceKind(kind)] = stat
	}
	if err := procRows.Err(); err != nil {
		procRows.Close()
		return nil, err
	}
	procRows.Close()

	sfRows, err := s.pool.Query(ctx, `
		SELECT r.source_kind, COUNT(*)
		FROM short_form_items sf
		JOIN raw_items r ON r.source_id = sf.source_id
		GROUP BY r.source_kind
	`)
	if err != nil {
		return nil, fmt.Errorf("recordstore: short-form statistics: %w", err)
	}
	defer sfRows.Close()
	for sfRows.Next() {
		var kind string
		var count int64
		if err := sfRows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		stat := out[core.SourceKind(kind)]
		stat.ShortFormCount = count
		out[core.SourceKind(kind)] = stat
	}
	return out, sfRows.Err()
}

// postgresTx implements Transaction.
type postgresTx struct {
	tx             pgx.Tx
	rawItems       RawItemRepository
	processedItems ProcessedItemRepository
	shortFormItems ShortFormItemRepository
}

func (t *postgresTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *postgresTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func (t *postgresTx) RawItems() RawItemRepository             { return t.rawItems }
func (t *postgresTx) ProcessedItems() ProcessedItemRepository { return t.processedItems }
func (t *postgresTx) ShortFormItems() ShortFormItemRepository { return t.shortFormItems }
