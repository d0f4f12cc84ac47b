package jobs

import (
	"context"
	"testing"
	"time"

	"gazette/internal/core"
	"gazette/internal/dedup"
	"gazette/internal/editorial"
	"gazette/internal/llmclient"
	"gazette/internal/pipeline"
	"gazette/internal/recordstore"
	"gazette/internal/sources"
	"gazette/internal/vectorindex"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}
func (stubEmbedder) Dimension() int { return 2 }

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, system, user string, opts llmclient.TextGenerationOptions) (string, error) {
	return `{"is_relevant": false, "relevance_score": 0.1, "relevance_reason": "n/a"}`, nil
}

type stubIndex struct{}

func (stubIndex) EnsureCollection(ctx context.Context, collection string, dim int) error { return nil }
func (stubIndex) Upsert(ctx context.Context, collection string, point vectorindex.Point) error {
	return nil
}
func (stubIndex) Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32) ([]vectorindex.SearchHit, error) {
	return nil, nil
}
func (stubIndex) Delete(ctx context.Context, collection, id string) error { return nil }
func (stubIndex) CollectionInfo(ctx context.Context, collection string) (vectorindex.CollectionInfo, error) {
	return vectorindex.CollectionInfo{}, nil
}
func (stubIndex) HealthCheck(ctx context.Context) error { return nil }
func (stubIndex) Close() error                          { return nil }

type stubRawRepo struct{}

func (stubRawRepo) ExistsBySourceID(ctx context.Context, sourceKind core.SourceKind, sourceID string) (bool, error) {
	return false, nil
}
func (stubRawRepo) Save(ctx context.Context, item *core.RawItem) error { return nil }
func (stubRawRepo) GetByID(ctx context.Context, id string) (*core.RawItem, error) {
	return nil, nil
}
func (stubRawRepo) GetBySourceID(ctx context.Context, sourceKind core.SourceKind, sourceID string) (*core.RawItem, error) {
	return nil, nil
}
func (stubRawRepo) ListBySource(ctx context.Context, sourceKind core.SourceKind, opts recordstore.ListOptions) ([]core.RawItem, error) {
	return nil, nil
}
func (stubRawRepo) Count(ctx context.Context, sourceKind core.SourceKind) (int64, error) {
	return 0, nil
}
func (stubRawRepo) Delete(ctx context.Context, id string) error                       { return nil }
func (stubRawRepo) AttachVectorID(ctx context.Context, id, vectorID string) error { return nil }

type stubProcessedRepo struct{}

func (stubProcessedRepo) Save(ctx context.Context, item *core.ProcessedItem) error { return nil }
func (stubProcessedRepo) GetByID(ctx context.Context, id string) (*core.ProcessedItem, error) {
	return nil, nil
}
func (stubProcessedRepo) GetBySourceID(ctx context.Context, sourceID string) (*core.ProcessedItem, error) {
	return nil, nil
}
func (stubProcessedRepo) ListBySource(ctx context.Context, sourceKind core.SourceKind, opts recordstore.ListOptions) ([]core.ProcessedItem, error) {
	return nil, nil
}
func (stubProcessedRepo) Count(ctx context.Context, sourceKind core.SourceKind) (int64, error) {
	return 0, nil
}
func (stubProcessedRepo) Delete(ctx context.Context, id string) error { return nil }

type stubShortFormRepo struct{}

func (stubShortFormRepo) Save(ctx context.Context, item *core.ShortFormItem) error { return nil }
func (stubShortFormRepo) GetByID(ctx context.Context, id string) (*core.ShortFormItem, error) {
	return nil, nil
}
func (stubShortFormRepo) GetBySourceID(ctx context.Context, sourceID string) (*core.ShortFormItem, error) {
	return nil, nil
}
func (stubShortFormRepo) ListBySource(ctx context.Context, sourceKind core.SourceKind, opts recordstore.ListOptions) ([]core.ShortFormItem, error) {
	return nil, nil
}
func (stubShortFormRepo) Count(ctx context.Context, sourceKind core.SourceKind) (int64, error) {
	return 0, nil
}
func (stubShortFormRepo) Delete(ctx context.Context, id string) error { return nil }
func (stubShortFormRepo) MarkPublished(ctx context.Context, id string, platformMessageID int64) error {
	return nil
}

type stubStore struct{}

func (stubStore) RawItems() recordstore.RawItemRepository             { return stubRawRepo{} }
func (stubStore) ProcessedItems() recordstore.ProcessedItemRepository { return stubProcessedRepo{} }
func (stubStore) ShortFormItems() recordstore.ShortFormItemRepository { return stubShortFormRepo{} }
func (stubStore) Close() error                                        { return nil }
func (stubStore) Ping(ctx context.Context) error                      { return nil }
func (stubStore) BeginTx(ctx context.Context) (recordstore.Transaction, error) {
	return stubTx{}, nil
}
func (stubStore) Statistics(ctx context.Context) (map[core.SourceKind]recordstore.SourceStatistics, error) {
	return nil, nil
}

type stubTx struct{}

func (stubTx) Commit(ctx context.Context) error   { return nil }
func (stubTx) Rollback(ctx context.Context) error { return nil }
func (stubTx) RawItems() recordstore.RawItemRepository             { return stubRawRepo{} }
func (stubTx) ProcessedItems() recordstore.ProcessedItemRepository { return stubProcessedRepo{} }
func (stubTx) ShortFormItems() recordstore.ShortFormItemRepository { return stubShortFormRepo{} }

type stubDriver struct {
	items []core.RawItem
}

func (d stubDriver) SourceKind() core.SourceKind { return core.SourceForumPost }
func (d stubDriver) Fetch(ctx context.Context, filter map[string]any, maxItems int) (<-chan core.RawItem, <-chan error) {
	items := make(chan core.RawItem, len(d.items))
	errs := make(chan error, 1)
	for _, it := range d.items {
		items <- it
	}
	close(items)
	close(errs)
	return items, errs
}

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	editorialSvc, err := editorial.New(stubGenerator{})
	if err != nil {
		t.Fatalf("editorial.New: %v", err)
	}
	dedupSvc := dedup.New(stubEmbedder{}, stubIndex{}, 0.95)
	orch := pipeline.New(stubStore{}, dedupSvc, editorialSvc, stubEmbedder{}, stubGenerator{}, pipeline.DefaultConfig())

	factory := func(kind core.SourceKind, filter map[string]any) (sources.Driver, error) {
		return stubDriver{items: []core.RawItem{
			{SourceKind: kind, SourceID: "s1", Title: "A title", Body: "A body long enough to pass the length gate easily", URL: "https://example.com/a"},
		}}, nil
	}

	return New(orch, factory, nil, Config{MaxConcurrentJobs: 2, MaxRetries: 0})
}

func waitForTerminal(t *testing.T, r *Runner, jobID string) core.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := r.Status(jobID)
		if !ok {
			t.Fatalf("job %s vanished", jobID)
		}
		if job.State == core.JobCompleted || job.State == core.JobFailed {
			return job
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state in time", jobID)
	return core.Job{}
}

func TestSubmitRunsJobToCompletion(t *testing.T) {
	r := newTestRunner(t)

	job, err := r.Submit(core.SourceForumPost, core.JobParams{MaxItems: 10, EnableLLM: true})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.State != core.JobPending {
		t.Fatalf("expected pending state immediately after submit, got %v", job.State)
	}

	final := waitForTerminal(t, r, job.JobID)
	if final.State != core.JobCompleted {
		t.Fatalf("expected completed, got %v (error=%q)", final.State, final.Error)
	}
	if final.Result == nil || final.Result.Saved != 1 {
		t.Fatalf("expected one saved item, got %+v", final.Result)
	}
}

func TestCleanupDropsOnlyTerminalJobs(t *testing.T) {
	r := newTestRunner(t)

	job, err := r.Submit(core.SourceForumPost, core.JobParams{MaxItems: 10})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForTerminal(t, r, job.JobID)

	dropped := r.Cleanup()
	if dropped != 1 {
		t.Fatalf("expected 1 dropped job, got %d", dropped)
	}
	if _, ok := r.Status(job.JobID); ok {
		t.Fatalf("expected job to be gone after cleanup")
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	r := newTestRunner(t)

	first, _ := r.Submit(core.SourceForumPost, core.JobParams{MaxItems: 1})
	waitForTerminal(t, r, first.JobID)
	second, _ := r.Submit(core.SourceForumPost, core.JobParams{MaxItems: 1})
	waitForTerminal(t, r, second.JobID)

	list := r.List(0)
	if len(list) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(list))
	}
	if list[0].JobID != second.JobID {
		t.Fatalf("expected newest job first, got %s", list[0].JobID)
	}
}
