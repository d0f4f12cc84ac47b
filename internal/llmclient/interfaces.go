// Package llmclient implements the embedding client (C1) and generation
// client (C2) contracts over a pluggable LLM backend. Two concrete backends
// satisfy the same interfaces: an HTTP client for a locally-hosted
// generation server (Ollama-shaped), and a hosted Gemini client.
package llmclient

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an embedding/generation failure for the error taxonomy in
// the orchestrator and the REST layer's status-code mapping.
type Kind string

const (
	KindBackendUnavailable Kind = "backend_unavailable" // connection/timeout
	KindBackendRejected    Kind = "backend_rejected"     // HTTP error status: any 4xx, or 429/5xx once retries run out
	KindMalformedResponse  Kind = "malformed_response"    // payload lacks expected shape
)

// Error is the tagged error variant every backend returns. Context carries
// extra structured detail (model name, status code, etc.) for logging.
type Error struct {
	Kind    Kind
	Op      string
	Context map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llmclient: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("llmclient: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, and KindMalformedResponse otherwise — callers treat an
// unrecognized failure as conservatively as a malformed one.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindMalformedResponse
}

// Embedder is the embedding client contract (C1). Dimension is fixed for
// the lifetime of a deployment; a mismatch against the vector index is a
// fatal startup error, checked once by the caller via Dimension().
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// TextGenerationOptions configures one Generate call.
type TextGenerationOptions struct {
	Temperature     float64
	MaxOutputTokens int
}

// Generator is the generation client contract (C2). An empty System string
// selects the backend's single-prompt mode; a non-empty one selects its
// chat-with-system-role mode.
type Generator interface {
	Generate(ctx context.Context, system, user string, opts TextGenerationOptions) (string, error)
}
