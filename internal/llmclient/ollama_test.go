package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*OllamaClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewOllamaClient(srv.URL, "gen-model", "embed-model", 768, 4096, 3, 5*time.Second)
	return c, srv
}

func TestEmbedSuccess(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(embeddingResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	})

	vec, err := c.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("expected 3 dims, got %d", len(vec))
	}
}

func TestEmbedMalformedResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingResponse{})
	})

	if _, err := c.Embed(context.Background(), "hello"); KindOf(err) != KindMalformedResponse {
		t.Errorf("expected KindMalformedResponse, got %v", KindOf(err))
	}
}

func TestGenerateSinglePromptMode(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("expected /api/generate for empty system, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(promptResponse{Response: "ok"})
	})

	out, err := c.Generate(context.Background(), "", "say hi", TextGenerationOptions{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out != "ok" {
		t.Errorf("expected ok, got %q", out)
	}
}

func TestGenerateChatMode(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("expected /api/chat for non-empty system, got %s", r.URL.Path)
		}
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("expected system+user messages, got %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(chatResponse{Message: struct {
			Content string `json:"content"`
		}{Content: "chat reply"}})
	})

	out, err := c.Generate(context.Background(), "be terse", "say hi", TextGenerationOptions{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out != "chat reply" {
		t.Errorf("expected chat reply, got %q", out)
	}
}

func TestGenerateRetriesOn429ThenSucceeds(t *testing.T) {
	var attempts int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(promptResponse{Response: "recovered"})
	})

	out, err := c.Generate(context.Background(), "", "hi", TextGenerationOptions{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out != "recovered" {
		t.Errorf("expected recovered, got %q", out)
	}
	if attempts < 2 {
		t.Errorf("expected at least 2 attempts, got %d", attempts)
	}
}

func TestGenerateDoesNotRetryOnOther4xx(t *testing.T) {
	var attempts int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.Generate(context.Background(), "", "hi", TextGenerationOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt for non-retryable 4xx, got %d", attempts)
	}
	if KindOf(err) != KindBackendRejected {
		t.Errorf("expected KindBackendRejected, got %v", KindOf(err))
	}
}

func TestTruncateForContextPrefersTrimmingUser(t *testing.T) {
	system := "system prompt"
	user := "word1 word2 word3 word4 word5 word6 word7 word8"
	gotSystem, gotUser := truncateForContext(system, user, 10, 2)
	if gotSystem != system {
		t.Errorf("expected system untouched while user can still absorb the cut, got %q", gotSystem)
	}
	if len(gotUser) >= len(user) {
		t.Errorf("expected user to be truncated, got %q", gotUser)
	}
}

func TestTrimToWordBoundary(t *testing.T) {
	got := trimToWordBoundary("hello world friend", 13)
	if got != "hello world" {
		t.Errorf("expected trim at word boundary, got %q", got)
	}
}
