// Package editorial implements the editorial service (C6): turns a raw
// title/body into a relevance judgment and, when relevant, a rewritten
// publishable item, and separately renders a size-bounded short-form post.
package editorial

import (
	"context"
	"fmt"
	"time"

	"gazette/internal/core"
	"gazette/internal/llmclient"
)

// techArticleRelevanceFloor is the minimum is_news/relevance_score the
// service enforces for the curated long-form tech-publishing source,
// regardless of what the model returns: curated content is always kept.
const techArticleRelevanceFloor = 0.8

// Service wraps a Generator (C2) with the two prompt documents and the
// parse-and-repair protocol.
type Service struct {
	generator          llmclient.Generator
	editorialSystem    string
	shortFormSystem    string
}

// New loads both prompt documents once at construction.
func New(generator llmclient.Generator) (*Service, error) {
	editorialSystem, err := loadSystemPrompt("editorial.xml")
	if err != nil {
		return nil, err
	}
	shortFormSystem, err := loadSystemPrompt("shortform.xml")
	if err != nil {
		return nil, err
	}

	return &Service{
		generator:       generator,
		editorialSystem: editorialSystem + "\n" + relevantSchema,
		shortFormSystem: shortFormSystem + "\n" + shortFormSchema,
	}, nil
}

// ProcessPost runs the editorial pipeline for one raw item and returns a
// ProcessedItem. A generation failure is not an error from the caller's
// perspective: it is reported as an irrelevant result carrying the failure
// in RelevanceReason, per the orchestrator's non-rollback contract for this
// stage.
func (s *Service) ProcessPost(ctx context.Context, sourceID, title, body string, sourceKind core.SourceKind) core.ProcessedItem {
	start := time.Now()

	userPrompt := fmt.Sprintf("Process the following post:\n\n<<<\nTitle: %s\n\nText:\n%s\n>>>\n\nReturn ONLY JSON, no additional text.", title, body)

	raw, err := s.generator.Generate(ctx, s.editorialSystem, userPrompt, llmclient.TextGenerationOptions{Temperature: 0.7, MaxOutputTokens: 2000})
	if err != nil {
		return failedProcessedItem(sourceID, "generation failed: "+err.Error(), start)
	}

	parsed, err := parseEditorialResponse(raw)
	if err != nil {
		return failedProcessedItem(sourceID, "parse failed: "+err.Error(), start)
	}

	if sourceKind == core.SourceTechArticle {
		if !parsed.isNews || parsed.relevanceScore < techArticleRelevanceFloor {
			parsed.isNews = true
			parsed.relevanceScore = techArticleRelevanceFloor
			if parsed.relevanceReason == "" {
				parsed.relevanceReason = "curated tech-publisher content, floor applied"
			} else {
				parsed.relevanceReason += " (curated tech-publisher content, floor applied)"
			}
		}
	}

	item := core.ProcessedItem{
		SourceID:        sourceID,
		IsRelevant:      parsed.isNews,
		RelevanceScore:  parsed.relevanceScore,
		RelevanceReason: parsed.relevanceReason,
		ProcessingMS:    time.Since(start).Milliseconds(),
		ProcessedAt:     time.Now(),
	}
	if parsed.isNews {
		item.EditorialTitle = parsed.title
		item.EditorialTeaser = parsed.teaser
		item.EditorialBody = parsed.rewrittenPost
		item.ImagePrompt = parsed.imagePrompt
		item.ContentType = mapContentType(parsed.contentType)
	}

	return item
}

func failedProcessedItem(sourceID, reason string, start time.Time) core.ProcessedItem {
	return core.ProcessedItem{
		SourceID:        sourceID,
		IsRelevant:      false,
		RelevanceReason: reason,
		ProcessingMS:    time.Since(start).Milliseconds(),
		ProcessedAt:     time.Now(),
	}
}

// mapContentType reconciles whatever label the model volunteers into one of
// core's known content types, case-insensitively, falling back to news.
func mapContentType(label string) core.ContentType {
	switch normalizeLabel(label) {
	case "research", "analysis":
		return core.ContentResearch
	case "tutorial", "howto", "guide":
		return core.ContentTutorial
	case "humor":
		return core.ContentHumor
	case "meme":
		return core.ContentMeme
	case "discussion", "opinion":
		return core.ContentDiscussion
	default:
		return core.ContentNews
	}
}

func normalizeLabel(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c == ' ' || c == '-' {
			c = '_'
		}
		out = append(out, c)
	}
	return string(out)
}

// RenderShortForm compresses an already-processed item into a short-form
// post. A missing required field is a failed render, not a synthesized
// default: callers must not create a ShortFormItem from it.
func (s *Service) RenderShortForm(ctx context.Context, sourceID, title, body string) (core.ShortFormItem, error) {
	userPrompt := fmt.Sprintf("Compress the following item into a short-form post:\n\n<<<\nTitle: %s\n\nBody:\n%s\n>>>\n\nReturn ONLY JSON, no additional text.", title, body)

	raw, err := s.generator.Generate(ctx, s.shortFormSystem, userPrompt, llmclient.TextGenerationOptions{Temperature: 0.3, MaxOutputTokens: 800})
	if err != nil {
		return core.ShortFormItem{}, fmt.Errorf("editorial: short-form generation failed: %w", err)
	}

	parsed, err := parseShortFormResponse(raw)
	if err != nil {
		return core.ShortFormItem{}, fmt.Errorf("editorial: short-form parse failed: %w", err)
	}

	return core.ShortFormItem{
		SourceID:   sourceID,
		Title:      parsed.title,
		Body:       parsed.body,
		Hashtags:   parsed.hashtags,
		Formatted:  parsed.formatted,
		CharCount:  parsed.charCount,
		CreatedAt:  time.Now(),
	}, nil
}
