package vectorindex

import (
	"context"
	"os"
	"testing"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
)

func TestCollectionName(t *testing.T) {
	if got := CollectionName("forum_post"); got != "gazette_forum_post" {
		t.Errorf("unexpected collection name: %q", got)
	}
}

func TestToQdrantValueAndBackRoundTrip(t *testing.T) {
	payload := map[string]any{"source_id": "abc", "score": 0.5, "count": int64(3), "flag": true}
	pbPayload := make(map[string]*pb.Value, len(payload))
	for k, v := range payload {
		pbPayload[k] = toQdrantValue(v)
	}

	got := fromQdrantPayload(pbPayload)
	for k, want := range payload {
		if got[k] != want {
			t.Errorf("round trip for %s: got %v, want %v", k, got[k], want)
		}
	}
}

// TestQdrantIntegration exercises a live Qdrant instance when QDRANT_ADDR is
// set; otherwise it is skipped.
func TestQdrantIntegration(t *testing.T) {
	addr := os.Getenv("QDRANT_ADDR")
	if addr == "" {
		t.Skip("QDRANT_ADDR not set, skipping integration test")
	}

	idx, err := NewQdrantIndex(addr)
	if err != nil {
		t.Fatalf("NewQdrantIndex failed: %v", err)
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	collection := "gazette_test_" + time.Now().UTC().Format("20060102150405")
	if err := idx.EnsureCollection(ctx, collection, 4); err != nil {
		t.Fatalf("EnsureCollection failed: %v", err)
	}
	if err := idx.EnsureCollection(ctx, collection, 4); err != nil {
		t.Fatalf("EnsureCollection should be idempotent, got: %v", err)
	}

	if err := idx.Upsert(ctx, collection, Point{
		ID:      "11111111-1111-1111-1111-111111111111",
		Vector:  []float32{0.1, 0.2, 0.3, 0.4},
		Payload: map[string]any{"source_id": "src-1"},
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	hits, err := idx.Search(ctx, collection, []float32{0.1, 0.2, 0.3, 0.4}, 5, 0.5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) == 0 {
		t.Error("expected at least one search hit")
	}

	if err := idx.Delete(ctx, collection, "11111111-1111-1111-1111-111111111111"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if err := idx.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}
