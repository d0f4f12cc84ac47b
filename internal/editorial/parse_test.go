package editorial

import (
	"fmt"
	"strings"
	"testing"
)

func TestExtractJSONObjectStripsFence(t *testing.T) {
	raw := "```json\n{\"is_news\": true}\n```"
	obj, err := extractJSONObject(raw)
	if err != nil {
		t.Fatalf("extractJSONObject failed: %v", err)
	}
	if obj["is_news"] != true {
		t.Errorf("expected is_news true, got %v", obj["is_news"])
	}
}

func TestExtractJSONObjectLenientRetry(t *testing.T) {
	raw := "noise before {'is_news': true, 'relevance_reason': 'test'}\nmore noise"
	obj, err := extractJSONObject(raw)
	if err != nil {
		t.Fatalf("extractJSONObject failed: %v", err)
	}
	if obj["relevance_reason"] != "test" {
		t.Errorf("expected relevance_reason test, got %v", obj["relevance_reason"])
	}
}

func TestExtractJSONObjectNoJSON(t *testing.T) {
	if _, err := extractJSONObject("no json here"); err == nil {
		t.Fatal("expected error for missing JSON")
	}
}

func TestParseEditorialResponseFullyPopulated(t *testing.T) {
	raw := `{"is_news": true, "relevance_score": 0.9, "relevance_reason": "breaking", "title": "T", "teaser": "short", "rewritten_post": "body", "content_type": "News"}`
	res, err := parseEditorialResponse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !res.isNews || res.relevanceScore != 0.9 || res.title != "T" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestParseEditorialResponseAutoRepairsMissingRelevanceScore(t *testing.T) {
	raw := `{"is_news": true, "relevance_reason": "ok"}`
	res, err := parseEditorialResponse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if res.relevanceScore != 0.7 {
		t.Errorf("expected auto-repaired score 0.7, got %f", res.relevanceScore)
	}
}

func TestParseEditorialResponseAutoRepairsMissingIsNews(t *testing.T) {
	raw := `{"relevance_score": 0.9, "relevance_reason": "ok"}`
	res, err := parseEditorialResponse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !res.isNews {
		t.Errorf("expected is_news derived true from score > 0.6, got false")
	}
}

func TestParseEditorialResponseTreatsPlaceholdersAsMissing(t *testing.T) {
	raw := `{"is_news": true, "relevance_score": 0.9, "relevance_reason": "N/A", "title": "T"}`
	res, err := parseEditorialResponse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if res.relevanceReason == "N/A" {
		t.Error("expected placeholder relevance_reason to be treated as missing and repaired")
	}
}

func TestParseEditorialResponseClampsScore(t *testing.T) {
	raw := `{"is_news": true, "relevance_score": 1.5, "relevance_reason": "ok"}`
	res, err := parseEditorialResponse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if res.relevanceScore != 1.0 {
		t.Errorf("expected score clamped to 1.0, got %f", res.relevanceScore)
	}
}

func TestParseShortFormResponseSuccess(t *testing.T) {
	raw := `{"title": "T", "body": "B", "hashtags": ["go", "news", "ai"], "formatted": "B #go #news #ai", "char_count": 999}`
	res, err := parseShortFormResponse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if res.charCount != len("B #go #news #ai") || len(res.hashtags) != 3 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestParseShortFormResponseMissingFieldFails(t *testing.T) {
	raw := `{"title": "T", "body": "B"}`
	if _, err := parseShortFormResponse(raw); err == nil {
		t.Fatal("expected error for missing required fields")
	}
}

func TestParseShortFormResponseCharCountIgnoresModelSelfReport(t *testing.T) {
	raw := `{"title": "T", "body": "B", "hashtags": ["go", "news", "ai"], "formatted": "short", "char_count": 99999}`
	res, err := parseShortFormResponse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if res.charCount != len("short") {
		t.Errorf("expected char_count to ignore the model's self-report and equal len(formatted)=%d, got %d", len("short"), res.charCount)
	}
}

func TestParseShortFormResponseTooFewHashtagsFails(t *testing.T) {
	raw := `{"title": "T", "body": "B", "hashtags": ["go"], "formatted": "B #go", "char_count": 5}`
	if _, err := parseShortFormResponse(raw); err == nil {
		t.Fatal("expected error for fewer than 3 hashtags")
	}
}

func TestParseShortFormResponseTooManyHashtagsFails(t *testing.T) {
	raw := `{"title": "T", "body": "B", "hashtags": ["a", "b", "c", "d", "e", "f"], "formatted": "B", "char_count": 1}`
	if _, err := parseShortFormResponse(raw); err == nil {
		t.Fatal("expected error for more than 5 hashtags")
	}
}

func TestParseShortFormResponseOverLengthFails(t *testing.T) {
	formatted := strings.Repeat("a", shortFormMaxChars+1)
	raw := fmt.Sprintf(`{"title": "T", "body": "B", "hashtags": ["go", "news", "ai"], "formatted": %q, "char_count": 1}`, formatted)
	if _, err := parseShortFormResponse(raw); err == nil {
		t.Fatal("expected error for formatted body over the character limit")
	}
}

func TestCoerceBoolFromTruthyTokens(t *testing.T) {
	cases := map[any]bool{
		true: true, "true": true, "yes": true, "1": true,
		false: false, "false": false, "no": false, float64(0): false, float64(1): true,
	}
	for in, want := range cases {
		if got := coerceBool(in); got != want {
			t.Errorf("coerceBool(%v) = %v, want %v", in, got, want)
		}
	}
}
