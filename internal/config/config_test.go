package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	Reset()
	t.Setenv("LLM_BACKEND", "ollama")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Dedup.Threshold != 0.95 {
		t.Errorf("expected default dedup threshold 0.95, got %f", cfg.Dedup.Threshold)
	}
	if cfg.Qdrant.VectorDimensions != 768 {
		t.Errorf("expected default vector dimensions 768, got %d", cfg.Qdrant.VectorDimensions)
	}
	if cfg.Pipeline.MaxParallelTasks != 1 {
		t.Errorf("expected default max_parallel_tasks 1, got %d", cfg.Pipeline.MaxParallelTasks)
	}
}

func TestLoadIsSingleton(t *testing.T) {
	Reset()
	first, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if first != second {
		t.Errorf("expected Load to return the same instance on repeated calls")
	}
}

func TestValidateRejectsGeminiWithoutKey(t *testing.T) {
	cfg := &Config{LLM: LLM{Backend: "gemini"}, Dedup: Dedup{Threshold: 0.9}, Pipeline: Pipeline{MaxParallelTasks: 1}}
	if err := validate(cfg); err == nil {
		t.Errorf("expected validation error for gemini backend without api key")
	}
}

func TestSourcesDescriptorLookup(t *testing.T) {
	s := Sources{ForumPost: SourceDescriptor{Hubs: []string{"golang"}}}
	if got := s.Descriptor("forum_post"); len(got.Hubs) != 1 || got.Hubs[0] != "golang" {
		t.Errorf("expected forum_post descriptor with hub golang, got %+v", got)
	}
	if got := s.Descriptor("unknown_kind"); len(got.Hubs) != 0 {
		t.Errorf("expected empty descriptor for unknown kind, got %+v", got)
	}
}
