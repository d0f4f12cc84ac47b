package editorial

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// placeholderStrings are values models sometimes emit in place of a real
// answer; they are treated as missing rather than as content.
var placeholderStrings = map[string]bool{
	"N/A": true, "None": true, "null": true, "undefined": true, "": true,
}

type editorialResult struct {
	isNews          bool
	relevanceScore  float64
	relevanceReason string
	originalSummary string
	rewrittenPost   string
	title           string
	teaser          string
	imagePrompt     string
	contentType     string
}

// parseEditorialResponse runs the strict-then-lenient JSON extraction and
// validation protocol, auto-repairing missing required fields rather than
// failing outright.
func parseEditorialResponse(raw string) (editorialResult, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return editorialResult{}, err
	}

	clean(obj, "is_news", "relevance_score", "relevance_reason", "original_summary",
		"rewritten_post", "title", "teaser", "image_prompt", "content_type")

	res := editorialResult{
		relevanceReason: stringField(obj, "relevance_reason"),
		originalSummary: stringField(obj, "original_summary"),
		rewrittenPost:   stringField(obj, "rewritten_post"),
		title:           stringField(obj, "title"),
		teaser:          stringField(obj, "teaser"),
		imagePrompt:     stringField(obj, "image_prompt"),
		contentType:     stringField(obj, "content_type"),
	}

	hasIsNews := hasField(obj, "is_news")
	hasScore := hasField(obj, "relevance_score")
	hasReason := hasField(obj, "relevance_reason")

	if hasIsNews {
		res.isNews = coerceBool(obj["is_news"])
	}
	if hasScore {
		res.relevanceScore = clamp01(coerceFloat(obj["relevance_score"]))
	}

	if !hasIsNews || !hasScore || !hasReason {
		if !hasScore {
			if res.isNews {
				res.relevanceScore = 0.7
			} else {
				res.relevanceScore = 0.3
			}
		}
		if !hasIsNews {
			res.isNews = res.relevanceScore > 0.6
		}
		if !hasReason {
			res.relevanceReason = "auto-repaired: model omitted relevance_reason"
		}
	}

	if res.isNews {
		if res.title == "" {
			res.title = "Untitled"
		}
		if res.teaser == "" {
			res.teaser = res.originalSummary
		}
		if res.rewrittenPost == "" {
			res.rewrittenPost = res.originalSummary
		}
	}

	return res, nil
}

const (
	shortFormMaxChars    = 3500
	shortFormMinHashtags = 3
	shortFormMaxHashtags = 5
)

type shortFormResult struct {
	title     string
	body      string
	hashtags  []string
	formatted string
	charCount int
}

// parseShortFormResponse requires every field to be present; unlike the
// editorial parse, there is no auto-repair path here — a short-form render
// either succeeds whole or is reported as failed. char_count is never taken
// from the model: it is always len(formatted), so the two can never drift.
func parseShortFormResponse(raw string) (shortFormResult, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return shortFormResult{}, err
	}
	clean(obj, "title", "body", "formatted")

	for _, key := range []string{"title", "body", "hashtags", "formatted"} {
		if !hasField(obj, key) {
			return shortFormResult{}, fmt.Errorf("missing required field %q", key)
		}
	}

	res := shortFormResult{
		title:     stringField(obj, "title"),
		body:      stringField(obj, "body"),
		formatted: stringField(obj, "formatted"),
	}
	if raw, ok := obj["hashtags"].([]any); ok {
		for _, h := range raw {
			if s, ok := h.(string); ok && s != "" {
				res.hashtags = append(res.hashtags, s)
			}
		}
	}
	if res.title == "" || res.body == "" || res.formatted == "" {
		return shortFormResult{}, fmt.Errorf("required field resolved to empty value")
	}

	res.charCount = len(res.formatted)
	if res.charCount > shortFormMaxChars {
		return shortFormResult{}, fmt.Errorf("formatted body is %d characters, exceeds %d limit", res.charCount, shortFormMaxChars)
	}
	if n := len(res.hashtags); n < shortFormMinHashtags || n > shortFormMaxHashtags {
		return shortFormResult{}, fmt.Errorf("got %d hashtags, want %d-%d", n, shortFormMinHashtags, shortFormMaxHashtags)
	}

	return res, nil
}

// extractJSONObject strips markup-fence wrappers, takes the substring from
// the first '{' to the last '}', and parses it as strict JSON; on failure
// it retries once after replacing single quotes with double quotes and
// collapsing newlines.
func extractJSONObject(raw string) (map[string]any, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	candidate := s[start : end+1]

	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
		return obj, nil
	}

	lenient := strings.ReplaceAll(candidate, "'", "\"")
	lenient = strings.ReplaceAll(lenient, "\n", " ")
	if err := json.Unmarshal([]byte(lenient), &obj); err != nil {
		return nil, fmt.Errorf("invalid JSON after lenient retry: %w", err)
	}
	return obj, nil
}

// clean deletes each of the named keys whose value is a placeholder string,
// so it reads as missing.
func clean(obj map[string]any, keys ...string) {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && placeholderStrings[s] {
			delete(obj, k)
		}
	}
}

func hasField(obj map[string]any, key string) bool {
	_, ok := obj[key]
	return ok
}

func stringField(obj map[string]any, key string) string {
	if s, ok := obj[key].(string); ok {
		return s
	}
	return ""
}

func coerceBool(v any) bool {
	switch tv := v.(type) {
	case bool:
		return tv
	case string:
		switch strings.ToLower(strings.TrimSpace(tv)) {
		case "true", "yes", "1":
			return true
		default:
			return false
		}
	case float64:
		return tv != 0
	default:
		return false
	}
}

func coerceFloat(v any) float64 {
	switch tv := v.(type) {
	case float64:
		return tv
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(tv), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
