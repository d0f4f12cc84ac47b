package core

import (
	"testing"
	"time"
)

func TestSourceKindValid(t *testing.T) {
	valid := []SourceKind{SourceForumPost, SourceTechArticle, SourceChatMessage, SourceBlogArticle}
	for _, k := range valid {
		if !k.Valid() {
			t.Errorf("expected %q to be valid", k)
		}
	}
	if SourceKind("podcast_episode").Valid() {
		t.Errorf("expected unknown source kind to be invalid")
	}
}

func TestRawItemFields(t *testing.T) {
	now := time.Now()
	item := RawItem{
		ID:         "raw-1",
		SourceKind: SourceForumPost,
		SourceID:   "abc123",
		Title:      "New LLM paper",
		Body:       "Authors show a new result",
		FetchedAt:  now,
	}
	if item.SourceKind != SourceForumPost {
		t.Errorf("expected SourceKind forum_post, got %s", item.SourceKind)
	}
	if item.VectorID != nil {
		t.Errorf("expected VectorID to be nil before vectorization")
	}
}

func TestShortFormItemInvariant(t *testing.T) {
	sf := ShortFormItem{
		Formatted: "**hello** world",
		CharCount: len("**hello** world"),
	}
	if sf.CharCount != len(sf.Formatted) {
		t.Errorf("char_count must equal len(formatted): got %d, want %d", sf.CharCount, len(sf.Formatted))
	}
	if sf.IsPublished && (sf.PublishedAt == nil || sf.PlatformMessageID == nil) {
		t.Errorf("is_published must imply published_at and platform_message_id are set")
	}
}

func TestJobStateTransitions(t *testing.T) {
	j := Job{State: JobPending}
	j.State = JobRunning
	if j.State != JobRunning {
		t.Errorf("expected job state running, got %s", j.State)
	}
	j.State = JobCompleted
	j.Result = &JobResult{Saved: 1}
	if j.Result.Saved != 1 {
		t.Errorf("expected result.saved=1, got %d", j.Result.Saved)
	}
}
