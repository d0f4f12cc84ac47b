// Package pipeline implements the ingestion orchestrator (C8): the
// strictly-ordered, per-item state machine that turns a source driver's
// RawItems into persisted RawItem/ProcessedItem/ShortFormItem records,
// gated by exact- and semantic-duplicate checks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"gazette/internal/core"
	"gazette/internal/dedup"
	"gazette/internal/editorial"
	"gazette/internal/llmclient"
	"gazette/internal/logger"
	"gazette/internal/recordstore"
	"gazette/internal/sources"
)

// Config tunes the orchestrator's gates and concurrency.
type Config struct {
	MinBodyLength          int           // step 5 length gate, title+body combined
	MaxParallelTasks       int           // editorial worker pool size, default 1
	HealthProbeTimeout     time.Duration
	ShortFormMinBodyLength int // step 10: below this, no short-form is rendered
}

// DefaultConfig returns the orchestrator's documented defaults.
func DefaultConfig() Config {
	return Config{
		MinBodyLength:          40,
		MaxParallelTasks:       1,
		HealthProbeTimeout:     5 * time.Second,
		ShortFormMinBodyLength: 120,
	}
}

// Orchestrator runs one job's items through the ten-step pipeline.
type Orchestrator struct {
	store     recordstore.Store
	dedup     *dedup.Service
	editorial *editorial.Service
	embedder  llmclient.Embedder
	generator llmclient.Generator
	config    Config
	log       *slog.Logger
}

// New builds an Orchestrator. embedder/generator are passed separately from
// dedup/editorial so the services-health probe (step 4) can reach the raw
// backends directly rather than through the services that wrap them.
func New(store recordstore.Store, dedupSvc *dedup.Service, editorialSvc *editorial.Service, embedder llmclient.Embedder, generator llmclient.Generator, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:     store,
		dedup:     dedupSvc,
		editorial: editorialSvc,
		embedder:  embedder,
		generator: generator,
		config:    cfg,
		log:       logger.Get(),
	}
}

// ItemResult records one item's terminal outcome for the job's log trail.
type ItemResult struct {
	SourceID     string
	Outcome      core.ItemOutcome
	DuplicateOf  string
	Similarity   float32
	EditorialRan bool
	Err          error
}

// Run drains driver and processes every item per §4.6, returning the
// aggregate counters and one ItemResult per item attempted. Items are
// pulled and taken through steps 1-7 strictly sequentially (the semantic-dup
// gate is a serialization point); steps 8-10 (editorial onward) run on a
// bounded worker pool sized by config.MaxParallelTasks.
func (o *Orchestrator) Run(ctx context.Context, driver sources.Driver, params core.JobParams) (core.JobResult, []ItemResult, error) {
	enrichmentDown := params.EnableLLM && o.bothBackendsDown(ctx)
	if enrichmentDown {
		o.log.Warn("embedding and generation backends both unreachable, saving without enrichment", "source_kind", driver.SourceKind())
	}

	items, fetchErrs := driver.Fetch(ctx, params.Filter, params.MaxItems)

	var result core.JobResult
	var itemResults []ItemResult
	resultsCh := make(chan ItemResult, o.config.poolSize())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.poolSize())

	collectDone := make(chan struct{})
	go func() {
		defer close(collectDone)
		for r := range resultsCh {
			itemResults = append(itemResults, r)
			tallyResult(&result, r)
		}
	}()

itemLoop:
	for item := range items {
		select {
		case <-ctx.Done():
			break itemLoop
		default:
		}

		stage, res := o.runSequentialStages(ctx, item, params, enrichmentDown)
		if stage != stageVectorized {
			resultsCh <- res
			continue
		}

		raw := item
		vectorID := res.vectorID
		g.Go(func() error {
			r := o.runEditorialStages(gctx, raw, vectorID, params)
			resultsCh <- r
			return nil
		})
	}

	_ = g.Wait()
	close(resultsCh)
	<-collectDone

	if err := <-fetchErrs; err != nil {
		return result, itemResults, fmt.Errorf("pipeline: source fetch: %w", err)
	}
	return result, itemResults, nil
}

func (c Config) poolSize() int {
	if c.MaxParallelTasks <= 0 {
		return 1
	}
	return c.MaxParallelTasks
}

func tallyResult(result *core.JobResult, r ItemResult) {
	switch r.Outcome {
	case core.OutcomeSaved:
		result.Saved++
	case core.OutcomeInvalid, core.OutcomeDuplicateID, core.OutcomeTooShort:
		result.Skipped++
	case core.OutcomeDuplicateSemantic:
		result.SemanticDuplicates++
	case core.OutcomeError:
		result.Errors++
	}
	if r.EditorialRan {
		result.EditorialProcessed++
	}
}

// bothBackendsDown probes the embedder and generator with a short timeout
// each; used only to short-circuit enrichment for an entire job when both
// are unreachable (step 4). Individual item failures degrade gracefully on
// their own regardless of this probe's result.
func (o *Orchestrator) bothBackendsDown(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, o.config.HealthProbeTimeout)
	defer cancel()

	_, embedErr := o.embedder.Embed(probeCtx, "healthcheck")
	embedDown := embedErr != nil && llmclient.KindOf(embedErr) == llmclient.KindBackendUnavailable

	_, genErr := o.generator.Generate(probeCtx, "", "healthcheck", llmclient.TextGenerationOptions{MaxOutputTokens: 1})
	genDown := genErr != nil && llmclient.KindOf(genErr) == llmclient.KindBackendUnavailable

	return embedDown && genDown
}

// validateItem implements step 1.
func validateItem(item core.RawItem) error {
	const minTitleLength = 3
	if len(strings.TrimSpace(item.Title)) < minTitleLength {
		return fmt.Errorf("title too short")
	}
	if strings.TrimSpace(item.Body) == "" {
		return fmt.Errorf("empty body")
	}
	u, err := url.ParseRequestURI(item.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("malformed url %q: %w", item.URL, err)
	}
	return nil
}

type stage int

const (
	stageInvalid stage = iota
	stageDuplicateID
	stageTooShort
	stageDuplicateSemantic
	stageSavedNoEnrichment
	stageVectorized
	stageError
)

type stageOutput struct {
	ItemResult
	vectorID string
}

// runSequentialStages executes steps 1-7. It returns stageVectorized only
// when the item should continue into the editorial worker pool; any other
// stage value means the item has already reached a terminal outcome.
func (o *Orchestrator) runSequentialStages(ctx context.Context, item core.RawItem, params core.JobParams, enrichmentDown bool) (stage, stageOutput) {
	if err := validateItem(item); err != nil {
		return stageInvalid, stageOutput{ItemResult: ItemResult{SourceID: item.SourceID, Outcome: core.OutcomeInvalid, Err: err}}
	}

	exists, err := o.store.RawItems().ExistsBySourceID(ctx, item.SourceKind, item.SourceID)
	if err != nil {
		return stageError, stageOutput{ItemResult: ItemResult{SourceID: item.SourceID, Outcome: core.OutcomeError, Err: fmt.Errorf("exists_by_source_id: %w", err)}}
	}
	if exists {
		return stageDuplicateID, stageOutput{ItemResult: ItemResult{SourceID: item.SourceID, Outcome: core.OutcomeDuplicateID}}
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.FetchedAt.IsZero() {
		item.FetchedAt = time.Now().UTC()
	}
	if err := o.store.RawItems().Save(ctx, &item); err != nil {
		return stageError, stageOutput{ItemResult: ItemResult{SourceID: item.SourceID, Outcome: core.OutcomeError, Err: fmt.Errorf("save raw: %w", err)}}
	}

	if enrichmentDown || !params.EnableLLM {
		return stageSavedNoEnrichment, stageOutput{ItemResult: ItemResult{SourceID: item.SourceID, Outcome: core.OutcomeSaved}}
	}

	combined := item.Title + " " + item.Body
	if len(combined) < o.config.MinBodyLength {
		return stageTooShort, stageOutput{ItemResult: ItemResult{SourceID: item.SourceID, Outcome: core.OutcomeTooShort}}
	}

	if params.EnableDeduplication {
		isDup, dupID, score := o.dedup.CheckDuplicate(ctx, combined, string(item.SourceKind))
		if isDup {
			if err := o.store.RawItems().Delete(ctx, item.ID); err != nil {
				o.log.Error("failed to roll back raw item after semantic duplicate", "id", item.ID, "error", err)
			}
			return stageDuplicateSemantic, stageOutput{ItemResult: ItemResult{
				SourceID: item.SourceID, Outcome: core.OutcomeDuplicateSemantic, DuplicateOf: dupID, Similarity: score,
			}}
		}
	}

	vectorID := o.dedup.Remember(ctx, combined, item.SourceID, map[string]any{"source_id": item.SourceID}, string(item.SourceKind))

	return stageVectorized, stageOutput{ItemResult: ItemResult{SourceID: item.SourceID, Outcome: core.OutcomeSaved}, vectorID: vectorID}
}

// runEditorialStages executes steps 8-10 for one item, independently of
// any other item in flight. It opens exactly one transaction, after the
// (potentially slow) editorial call completes, to attach vector_id, persist
// the ProcessedItem, and optionally the ShortFormItem together.
func (o *Orchestrator) runEditorialStages(ctx context.Context, item core.RawItem, vectorID string, params core.JobParams) ItemResult {
	start := time.Now()
	processed := o.editorial.ProcessPost(ctx, item.SourceID, item.Title, item.Body, item.SourceKind)
	processed.ID = uuid.NewString()
	processed.ProcessingMS = time.Since(start).Milliseconds()
	processed.ProcessedAt = time.Now().UTC()

	var shortForm *core.ShortFormItem
	if processed.IsRelevant && len(item.Body) >= o.config.ShortFormMinBodyLength {
		sf, err := o.editorial.RenderShortForm(ctx, item.SourceID, processed.EditorialTitle, processed.EditorialBody)
		if err != nil {
			o.log.Warn("short-form render failed", "source_id", item.SourceID, "error", err)
		} else {
			sf.ID = uuid.NewString()
			sf.CreatedAt = time.Now().UTC()
			shortForm = &sf
		}
	}

	tx, err := o.store.BeginTx(ctx)
	if err != nil {
		return ItemResult{SourceID: item.SourceID, Outcome: core.OutcomeError, Err: fmt.Errorf("begin tx: %w", err)}
	}

	if vectorID != "" {
		if err := tx.RawItems().AttachVectorID(ctx, item.ID, vectorID); err != nil {
			_ = tx.Rollback(ctx)
			return ItemResult{SourceID: item.SourceID, Outcome: core.OutcomeError, Err: fmt.Errorf("attach vector_id: %w", err)}
		}
	}
	if err := tx.ProcessedItems().Save(ctx, &processed); err != nil {
		_ = tx.Rollback(ctx)
		if errors.Is(err, recordstore.ErrConflict) {
			o.log.Warn("processed_item already exists for source_id, dropping race loser", "source_id", item.SourceID)
			return ItemResult{SourceID: item.SourceID, Outcome: core.OutcomeDuplicateID}
		}
		return ItemResult{SourceID: item.SourceID, Outcome: core.OutcomeError, Err: fmt.Errorf("save processed: %w", err)}
	}
	if shortForm != nil {
		if err := tx.ShortFormItems().Save(ctx, shortForm); err != nil {
			_ = tx.Rollback(ctx)
			if errors.Is(err, recordstore.ErrConflict) {
				o.log.Warn("short_form_item already exists for source_id, dropping race loser", "source_id", item.SourceID)
				return ItemResult{SourceID: item.SourceID, Outcome: core.OutcomeDuplicateID}
			}
			return ItemResult{SourceID: item.SourceID, Outcome: core.OutcomeError, Err: fmt.Errorf("save short_form: %w", err)}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return ItemResult{SourceID: item.SourceID, Outcome: core.OutcomeError, Err: fmt.Errorf("commit: %w", err)}
	}

	return ItemResult{SourceID: item.SourceID, Outcome: core.OutcomeSaved, EditorialRan: true}
}
