package llmclient

import (
	"context"
	"os"
	"testing"
)

func TestNewGeminiClientRequiresAPIKey(t *testing.T) {
	for _, k := range []string{"GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY", "GOOGLE_AI_API_KEY"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	_, err := NewGeminiClient(context.Background(), "", "", 0)
	if err == nil {
		t.Fatal("expected error when no API key is available")
	}
	if KindOf(err) != KindBackendRejected {
		t.Errorf("expected KindBackendRejected, got %v", KindOf(err))
	}
}

func TestNewGeminiClientDefaultsDimension(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	c, err := NewGeminiClient(context.Background(), "", "", 0)
	if err != nil {
		t.Fatalf("NewGeminiClient failed: %v", err)
	}
	if c.Dimension() != 768 {
		t.Errorf("expected default dimension 768, got %d", c.Dimension())
	}
}
