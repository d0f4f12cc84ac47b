package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gazette/internal/config"
	"gazette/internal/core"
	"gazette/internal/dedup"
	"gazette/internal/editorial"
	"gazette/internal/jobs"
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

type stubRawRepo struct {
	items []core.RawItem
}

func (r stubRawRepo) ExistsBySourceID(ctx context.Context, sourceKind core.SourceKind, sourceID string) (bool, error) {
	return false, nil
}
func (stubRawRepo) Save(ctx context.Context, item *core.RawItem) error { return nil }
func (stubRawRepo) GetByID(ctx context.Context, id string) (*core.RawItem, error) {
	return nil, nil
}
func (stubRawRepo) GetBySourceID(ctx context.Context, sourceKind core.SourceKind, sourceID string) (*core.RawItem, error) {
	return nil, nil
}
func (r stubRawRepo) ListBySource(ctx context.Context, sourceKind core.SourceKind, opts recordstore.ListOptions) ([]core.RawItem, error) {
	return r.items, nil
}
func (stubRawRepo) Count(ctx context.Context, sourceKind core.SourceKind) (int64, error) {
	return 0, nil
}
func (stubRawRepo) Delete(ctx context.Context, id string) error                 { return nil }
func (stubRawRepo) AttachVectorID(ctx context.Context, id, vectorID string) error { return nil }

type stubProcessedRepo struct {
	bySourceID map[string]core.ProcessedItem
}

func (stubProcessedRepo) Save(ctx context.Context, item *core.ProcessedItem) error { return nil }
func (stubProcessedRepo) GetByID(ctx context.Context, id string) (*core.ProcessedItem, error) {
	return nil, nil
}
func (r stubProcessedRepo) GetBySourceID(ctx context.Context, sourceID string) (*core.ProcessedItem, error) {
	item, ok := r.bySourceID[sourceID]
	if !ok {
		return nil, context.DeadlineExceeded // stands in for "not found"
	}
	return &item, nil
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

type stubStore struct {
	raw       stubRawRepo
	processed stubProcessedRepo
}

func (s stubStore) RawItems() recordstore.RawItemRepository             { return s.raw }
func (s stubStore) ProcessedItems() recordstore.ProcessedItemRepository { return s.processed }
func (stubStore) ShortFormItems() recordstore.ShortFormItemRepository   { return stubShortFormRepo{} }
func (stubStore) Close() error                                          { return nil }
func (stubStore) Ping(ctx context.Context) error                        { return nil }
func (stubStore) BeginTx(ctx context.Context) (recordstore.Transaction, error) {
	return stubTx{}, nil
}
func (stubStore) Statistics(ctx context.Context) (map[core.SourceKind]recordstore.SourceStatistics, error) {
	return map[core.SourceKind]recordstore.SourceStatistics{
		core.SourceForumPost: {RawCount: 2, ProcessedCount: 1},
	}, nil
}

type stubTx struct{}

func (stubTx) Commit(ctx context.Context) error                       { return nil }
func (stubTx) Rollback(ctx context.Context) error                     { return nil }
func (stubTx) RawItems() recordstore.RawItemRepository                 { return stubRawRepo{} }
func (stubTx) ProcessedItems() recordstore.ProcessedItemRepository     { return stubProcessedRepo{} }
func (stubTx) ShortFormItems() recordstore.ShortFormItemRepository     { return stubShortFormRepo{} }

type stubDriver struct{ items []core.RawItem }

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

type stubLogStore struct {
	entries []core.LogEntry
}

func (s *stubLogStore) Append(ctx context.Context, entry core.LogEntry) error {
	s.entries = append(s.entries, entry)
	return nil
}
func (s *stubLogStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]core.LogEntry, error) {
	var out []core.LogEntry
	for _, e := range s.entries {
		if sessionID == "" || e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}
func (s *stubLogStore) DeleteBySession(ctx context.Context, sessionID string) (int, error) {
	kept := s.entries[:0]
	dropped := 0
	for _, e := range s.entries {
		if sessionID == "" || e.SessionID == sessionID {
			dropped++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return dropped, nil
}
func (s *stubLogStore) Close() error { return nil }

func newTestServer(t *testing.T) (*Server, *stubStore) {
	t.Helper()

	store := &stubStore{
		raw: stubRawRepo{items: []core.RawItem{
			{SourceKind: core.SourceForumPost, SourceID: "s1", Title: "hello world", Body: "a raw body here"},
		}},
		processed: stubProcessedRepo{bySourceID: map[string]core.ProcessedItem{
			"s1": {SourceID: "s1", EditorialTitle: "hello there world", EditorialBody: "a body here indeed"},
		}},
	}

	editorialSvc, err := editorial.New(stubGenerator{})
	if err != nil {
		t.Fatalf("editorial.New: %v", err)
	}
	dedupSvc := dedup.New(stubEmbedder{}, stubIndex{}, 0.95)
	orch := pipeline.New(store, dedupSvc, editorialSvc, stubEmbedder{}, stubGenerator{}, pipeline.DefaultConfig())

	factory := func(kind core.SourceKind, filter map[string]any) (sources.Driver, error) {
		return stubDriver{items: []core.RawItem{
			{SourceKind: kind, SourceID: "s2", Title: "fresh item", Body: "a fresh body long enough to pass the gate", URL: "https://example.com/a"},
		}}, nil
	}
	runner := jobs.New(orch, factory, nil, jobs.Config{MaxConcurrentJobs: 2, MaxRetries: 0})

	s := New(store, runner, &stubLogStore{}, config.Server{Host: "127.0.0.1", Port: 0})
	return s, store
}

func decodeJSON(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decode JSON: %v (body=%s)", err, body)
	}
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("expected ok status in body, got %s", rec.Body.String())
	}
}

func TestHandleSubmitJobAndStatus(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/scrape/forum_post", strings.NewReader(`{"max_items": 5}`))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var submitted submitJobResponse
	decodeJSON(t, rec.Body.Bytes(), &submitted)
	if submitted.JobID == "" {
		t.Fatalf("expected a job_id")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		statusReq := httptest.NewRequest(http.MethodGet, "/scrape/status/"+submitted.JobID, nil)
		statusRec := httptest.NewRecorder()
		s.Router().ServeHTTP(statusRec, statusReq)

		var job core.Job
		decodeJSON(t, statusRec.Body.Bytes(), &job)
		if job.State == core.JobCompleted || job.State == core.JobFailed {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("job did not reach a terminal state in time")
}

func TestHandleSubmitJobRejectsUnknownSource(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/scrape/not_a_source", strings.NewReader(`{"max_items": 1}`))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleJobStatusNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/scrape/status/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleListRecords(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/forum-posts/records", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "hello world") {
		t.Fatalf("expected raw item in body, got %s", rec.Body.String())
	}
}

func TestHandleComparison(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/comparison?source=forum-posts", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "title_similarity") {
		t.Fatalf("expected similarity field in body, got %s", rec.Body.String())
	}
}

func TestHandleStatistics(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/statistics", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleLogsAppendAndDelete(t *testing.T) {
	s, _ := newTestServer(t)
	_ = s.logs.Append(context.Background(), core.LogEntry{SessionID: "job-1", Level: core.LogInfo, Message: "hi"})

	listReq := httptest.NewRequest(http.MethodGet, "/logs?session_id=job-1", nil)
	listRec := httptest.NewRecorder()
	s.Router().ServeHTTP(listRec, listReq)
	if !strings.Contains(listRec.Body.String(), "\"hi\"") {
		t.Fatalf("expected log entry in body, got %s", listRec.Body.String())
	}

	delReq := httptest.NewRequest(http.MethodDelete, "/logs?session_id=job-1", nil)
	delRec := httptest.NewRecorder()
	s.Router().ServeHTTP(delRec, delReq)
	if !strings.Contains(delRec.Body.String(), `"dropped":1`) {
		t.Fatalf("expected one dropped entry, got %s", delRec.Body.String())
	}
}
