// Package sources implements one ingestion driver per source_kind (C7):
// forum_post, tech_article, chat_message, blog_article. Every driver
// normalizes its source's native shape into core.RawItem and paces its own
// outbound requests against a per-source token bucket.
package sources

import (
	"context"
	"fmt"

	"gazette/internal/core"
)

// Driver fetches items for one source_kind, respecting its own rate limit
// and the caller-supplied hub/tag/channel filter. It streams items as they
// are fetched rather than buffering the whole batch, so a job's orchestrator
// can start processing the first item before the last one arrives.
type Driver interface {
	SourceKind() core.SourceKind

	// Fetch streams up to maxItems normalized RawItems on the returned
	// channel and closes it when done (whether because the source ran dry
	// or maxItems was reached). A single terminal error, if any, is sent on
	// the error channel before it closes. filter is source-specific; nil or
	// missing keys mean "use the source descriptor's defaults."
	Fetch(ctx context.Context, filter map[string]any, maxItems int) (<-chan core.RawItem, <-chan error)
}

// FetchError distinguishes retryable fetch failures (timeout, 5xx,
// rate-limited) from fatal ones (bad credentials, other 4xx, malformed
// feed), so the orchestrator and job runner can decide whether to retry or
// fail the job outright.
type FetchError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("sources: %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// classifyHTTPStatus reports whether an HTTP response status warrants a
// retry: 429 (rate-limited) and any 5xx. Everything else, including other
// 4xx client errors, is fatal.
func classifyHTTPStatus(status int) bool {
	return status == 429 || status >= 500
}

// stringsFromFilter reads a []string-shaped value out of filter under key,
// falling back to fallback when the key is absent or the wrong shape.
func stringsFromFilter(filter map[string]any, key string, fallback []string) []string {
	raw, ok := filter[key]
	if !ok {
		return fallback
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
