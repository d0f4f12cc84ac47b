package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gazette/internal/core"
)

const defaultListLimit = 100

// postgresRawItemRepo implements RawItemRepository. Exactly one of db/tx is
// set; query() picks whichever.
type postgresRawItemRepo struct {
	db *pgxpool.Pool
	tx pgx.Tx
}

func (r *postgresRawItemRepo) query() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *postgresRawItemRepo) ExistsBySourceID(ctx context.Context, sourceKind core.SourceKind, sourceID string) (bool, error) {
	var exists bool
	err := r.query().QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM raw_items WHERE source_kind = $1 AND source_id = $2)`,
		string(sourceKind), sourceID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("recordstore: exists_by_source_id: %w", err)
	}
	return exists, nil
}

func (r *postgresRawItemRepo) Save(ctx context.Context, item *core.RawItem) error {
	metadataJSON, err := json.Marshal(item.SourceMetadata)
	if err != nil {
		return fmt.Errorf("recordstore: marshal source_metadata: %w", err)
	}

	_, err = r.query().Exec(ctx, `
		INSERT INTO raw_items (
			id, source_kind, source_id, title, body, url, author,
			published_at, fetched_at, source_metadata, vector_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (source_kind, source_id) DO UPDATE SET
			vector_id = EXCLUDED.vector_id
	`,
		item.ID, string(item.SourceKind), item.SourceID, item.Title, item.Body, item.URL,
		nullableString(item.Author), item.PublishedAt, item.FetchedAt, metadataJSON, item.VectorID,
	)
	if err != nil {
		return fmt.Errorf("recordstore: save raw_item: %w", err)
	}
	return nil
}

func (r *postgresRawItemRepo) GetByID(ctx context.Context, id string) (*core.RawItem, error) {
	row := r.query().QueryRow(ctx, rawItemSelect+` WHERE id = $1`, id)
	return scanRawItem(row)
}

func (r *postgresRawItemRepo) GetBySourceID(ctx context.Context, sourceKind core.SourceKind, sourceID string) (*core.RawItem, error) {
	row := r.query().QueryRow(ctx, rawItemSelect+` WHERE source_kind = $1 AND source_id = $2`, string(sourceKind), sourceID)
	return scanRawItem(row)
}

func (r *postgresRawItemRepo) ListBySource(ctx context.Context, sourceKind core.SourceKind, opts ListOptions) ([]core.RawItem, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.query().Query(ctx, rawItemSelect+`
		WHERE source_kind = $1
		ORDER BY fetched_at DESC
		LIMIT $2 OFFSET $3
	`, string(sourceKind), limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("recordstore: list_by_source raw_items: %w", err)
	}
	defer rows.Close()

	var items []core.RawItem
	for rows.Next() {
		item, err := scanRawItemRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (r *postgresRawItemRepo) Count(ctx context.Context, sourceKind core.SourceKind) (int64, error) {
	var count int64
	err := r.query().QueryRow(ctx, `SELECT COUNT(*) FROM raw_items WHERE source_kind = $1`, string(sourceKind)).Scan(&count)
	return count, err
}

func (r *postgresRawItemRepo) Delete(ctx context.Context, id string) error {
	_, err := r.query().Exec(ctx, `DELETE FROM raw_items WHERE id = $1`, id)
	return err
}

func (r *postgresRawItemRepo) AttachVectorID(ctx context.Context, id, vectorID string) error {
	_, err := r.query().Exec(ctx, `UPDATE raw_items SET vector_id = $2 WHERE id = $1`, id, vectorID)
	return err
}

const rawItemSelect = `
	SELECT id, source_kind, source_id, title, body, url, author,
	       published_at, fetched_at, source_metadata, vector_id
	FROM raw_items`

type scannable interface {
	Scan(dest ...any) error
}

func scanRawItem(row pgx.Row) (*core.RawItem, error) {
	return scanRawItemRow(row)
}

func scanRawItemRow(row scannable) (*core.RawItem, error) {
	var item core.RawItem
	var sourceKind string
	var author *string
	var metadataJSON []byte
	var vectorID *string
	var publishedAt *time.Time

	err := row.Scan(
		&item.ID, &sourceKind, &item.SourceID, &item.Title, &item.Body, &item.URL, &author,
		&publishedAt, &item.FetchedAt, &metadataJSON, &vectorID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("recordstore: raw_item not found: %w", err)
		}
		return nil, fmt.Errorf("recordstore: scan raw_item: %w", err)
	}

	item.SourceKind = core.SourceKind(sourceKind)
	if author != nil {
		item.Author = *author
	}
	item.VectorID = vectorID
	item.PublishedAt = publishedAt
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &item.SourceMetadata); err != nil {
			return nil, fmt.Errorf("recordstore: unmarshal source_metadata: %w", err)
		}
	}
	return &item, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// postgresProcessedItemRepo implements ProcessedItemRepository.
type postgresProcessedItemRepo struct {
	db *pgxpool.Pool
	tx pgx.Tx
}

func (r *postgresProcessedItemRepo) query() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *postgresProcessedItemRepo) Save(ctx context.Context, item *core.ProcessedItem) error {
	tag, err := r.query().Exec(ctx, `
		INSERT INTO processed_items (
			id, source_id, is_relevant, relevance_score, relevance_reason,
			editorial_title, editorial_teaser, editorial_body, image_prompt,
			content_type, model_name, processing_ms, processed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (source_id) DO NOTHING
	`,
		item.ID, item.SourceID, item.IsRelevant, item.RelevanceScore, item.RelevanceReason,
		nullableString(item.EditorialTitle), nullableString(item.EditorialTeaser),
		nullableString(item.EditorialBody), nullableString(item.ImagePrompt),
		nullableString(string(item.ContentType)), nullableString(item.ModelName),
		item.ProcessingMS, item.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("recordstore: save processed_item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("recordstore: save processed_item %s: %w", item.SourceID, ErrConflict)
	}
	return nil
}

const processedItemSelect = `
	SELECT id, source_id, is_relevant, relevance_score, relevance_reason,
	       editorial_title, editorial_teaser, editorial_body, image_prompt,
	       content_type, model_name, processing_ms, processed_at
	FROM processed_items`

func scanProcessedItem(row scannable) (*core.ProcessedItem, error) {
	var item core.ProcessedItem
	var title, teaser, body, imagePrompt, contentType, modelName *string

	err := row.Scan(
		&item.ID, &item.SourceID, &item.IsRelevant, &item.RelevanceScore, &item.RelevanceReason,
		&title, &teaser, &body, &imagePrompt, &contentType, &modelName,
		&item.ProcessingMS, &item.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("recordstore: processed_item not found: %w", err)
		}
		return nil, fmt.Errorf("recordstore: scan processed_item: %w", err)
	}
	if title != nil {
		item.EditorialTitle = *title
	}
	if teaser != nil {
		item.EditorialTeaser = *teaser
	}
	if body != nil {
		item.EditorialBody = *body
	}
	if imagePrompt != nil {
		item.ImagePrompt = *imagePrompt
	}
	if contentType != nil {
		item.ContentType = core.ContentType(*contentType)
	}
	if modelName != nil {
		item.ModelName = *modelName
	}
	return &item, nil
}

func (r *postgresProcessedItemRepo) GetByID(ctx context.Context, id string) (*core.ProcessedItem, error) {
	row := r.query().QueryRow(ctx, processedItemSelect+` WHERE id = $1`, id)
	return scanProcessedItem(row)
}

func (r *postgresProcessedItemRepo) GetBySourceID(ctx context.Context, sourceID string) (*core.ProcessedItem, error) {
	row := r.query().QueryRow(ctx, processedItemSelect+` WHERE source_id = $1`, sourceID)
	return scanProcessedItem(row)
}

func (r *postgresProcessedItemRepo) ListBySource(ctx context.Context, sourceKind core.SourceKind, opts ListOptions) ([]core.ProcessedItem, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.query().Query(ctx, processedItemSelect+`
		WHERE source_id IN (SELECT source_id FROM raw_items WHERE source_kind = $1)
		ORDER BY processed_at DESC
		LIMIT $2 OFFSET $3
	`, string(sourceKind), limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("recordstore: list_by_source processed_items: %w", err)
	}
	defer rows.Close()

	var items []core.ProcessedItem
	for rows.Next() {
		item, err := scanProcessedItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (r *postgresProcessedItemRepo) Count(ctx context.Context, sourceKind core.SourceKind) (int64, error) {
	var count int64
	err := r.query().QueryRow(ctx, `
		SELECT COUNT(*) FROM processed_items p
		JOIN raw_items r ON r.source_id = p.source_id
		WHERE r.source_kind = $1
	`, string(sourceKind)).Scan(&count)
	return count, err
}

func (r *postgresProcessedItemRepo) Delete(ctx context.Context, id string) error {
	_, err := r.query().Exec(ctx, `DELETE FROM processed_items WHERE id = $1`, id)
	return err
}

// postgresShortFormItemRepo implements ShortFormItemRepository.
type postgresShortFormItemRepo struct {
	db *pgxpool.Pool
	tx pgx.Tx
}

func (r *postgresShortFormItemRepo) query() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *postgresShortFormItemRepo) Save(ctx context.Context, item *core.ShortFormItem) error {
	hashtagsJSON, err := json.Marshal(item.Hashtags)
	if err != nil {
		return fmt.Errorf("recordstore: marshal hashtags: %w", err)
	}

	tag, err := r.query().Exec(ctx, `
		INSERT INTO short_form_items (
			id, source_id, title, body, hashtags, formatted, char_count,
			created_at, published_at, platform_message_id, is_published
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (source_id) DO NOTHING
	`,
		item.ID, item.SourceID, item.Title, item.Body, hashtagsJSON, item.Formatted, item.CharCount,
		item.CreatedAt, item.PublishedAt, item.PlatformMessageID, item.IsPublished,
	)
	if err != nil {
		return fmt.Errorf("recordstore: save short_form_item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("recordstore: save short_form_item %s: %w", item.SourceID, ErrConflict)
	}
	return nil
}

const shortFormItemSelect = `
	SELECT id, source_id, title, body, hashtags, formatted, char_count,
	       created_at, published_at, platform_message_id, is_published
	FROM short_form_items`

func scanShortFormItem(row scannable) (*core.ShortFormItem, error) {
	var item core.ShortFormItem
	var hashtagsJSON []byte
	var publishedAt *time.Time
	var platformMessageID *int64

	err := row.Scan(
		&item.ID, &item.SourceID, &item.Title, &item.Body, &hashtagsJSON, &item.Formatted, &item.CharCount,
		&item.CreatedAt, &publishedAt, &platformMessageID, &item.IsPublished,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("recordstore: short_form_item not found: %w", err)
		}
		return nil, fmt.Errorf("recordstore: scan short_form_item: %w", err)
	}
	item.PublishedAt = publishedAt
	item.PlatformMessageID = platformMessageID
	if len(hashtagsJSON) > 0 {
		if err := json.Unmarshal(hashtagsJSON, &item.Hashtags); err != nil {
			return nil, fmt.Errorf("recordstore: unmarshal hashtags: %w", err)
		}
	}
	return &item, nil
}

func (r *postgresShortFormItemRepo) GetByID(ctx context.Context, id string) (*core.ShortFormItem, error) {
	row := r.query().QueryRow(ctx, shortFormItemSelect+` WHERE id = $1`, id)
	return scanShortFormItem(row)
}

func (r *postgresShortFormItemRepo) GetBySourceID(ctx context.Context, sourceID string) (*core.ShortFormItem, error) {
	row := r.query().QueryRow(ctx, shortFormItemSelect+` WHERE source_id = $1`, sourceID)
	return scanShortFormItem(row)
}

func (r *postgresShortFormItemRepo) ListBySource(ctx context.Context, sourceKind core.SourceKind, opts ListOptions) ([]core.ShortFormItem, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.query().Query(ctx, shortFormItemSelect+`
		WHERE source_id IN (SELECT source_id FROM raw_items WHERE source_kind = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, string(sourceKind), limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("recordstore: list_by_source short_form_items: %w", err)
	}
	defer rows.Close()

	var items []core.ShortFormItem
	for rows.Next() {
		item, err := scanShortFormItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (r *postgresShortFormItemRepo) Count(ctx context.Context, sourceKind core.SourceKind) (int64, error) {
	var count int64
	err := r.query().QueryRow(ctx, `
		SELECT COUNT(*) FROM short_form_items sf
		JOIN raw_items r ON r.source_id = sf.source_id
		WHERE r.source_kind = $1
	`, string(sourceKind)).Scan(&count)
	return count, err
}

func (r *postgresShortFormItemRepo) Delete(ctx context.Context, id string) error {
	_, err := r.query().Exec(ctx, `DELETE FROM short_form_items WHERE id = $1`, id)
	return err
}

func (r *postgresShortFormItemRepo) MarkPublished(ctx context.Context, id string, platformMessageID int64) error {
	_, err := r.query().Exec(ctx, `
		UPDATE short_form_items
		SET is_published = true, published_at = $2, platform_message_id = $3
		WHERE id = $1
	`, id, time.Now().UTC(), platformMessageID)
	return err
}
