package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// approxCharsPerToken is a rough English-text heuristic used only to budget
// truncation; the backend does the real tokenization.
const approxCharsPerToken = 4

// OllamaClient talks to a locally-hosted generation server that exposes
// /api/generate (single prompt), /api/chat (system + messages), and
// /api/embeddings. It implements both Embedder and Generator.
type OllamaClient struct {
	baseURL          string
	generationModel  string
	embeddingModel   string
	dimension        int
	httpClient       *http.Client
	maxRetries       int
	contextWindow    int
}

// NewOllamaClient constructs a client against baseURL. dimension must match
// the vector index's configured collection dimension for the life of a
// deployment.
func NewOllamaClient(baseURL, generationModel, embeddingModel string, dimension, contextWindow, maxRetries int, timeout time.Duration) *OllamaClient {
	return &OllamaClient{
		baseURL:         strings.TrimRight(baseURL, "/"),
		generationModel: generationModel,
		embeddingModel:  embeddingModel,
		dimension:       dimension,
		contextWindow:   contextWindow,
		maxRetries:      maxRetries,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

func (c *OllamaClient) Dimension() int { return c.dimension }

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed truncates text to an input-token budget, then calls /api/embeddings.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	budget := c.contextWindow * approxCharsPerToken
	if budget > 0 && len(text) > budget {
		text = text[:budget]
	}

	body, err := json.Marshal(embeddingRequest{Model: c.embeddingModel, Prompt: text})
	if err != nil {
		return nil, &Error{Kind: KindMalformedResponse, Op: "Embed", Err: err}
	}

	var resp embeddingResponse
	if err := c.postWithRetry(ctx, "/api/embeddings", body, &resp, 30*time.Second); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, &Error{Kind: KindMalformedResponse, Op: "Embed", Context: map[string]any{"model": c.embeddingModel}}
	}
	return resp.Embedding, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string          `json:"model"`
	Messages []chatMessage   `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  generateOptions `json:"options"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

type promptRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type promptResponse struct {
	Response string `json:"response"`
}

// Generate picks /api/chat when system is non-empty, /api/generate
// otherwise. The user payload (and, as a last resort, the system payload)
// is truncated at a word boundary to keep the whole request within the
// context window once ~25% is reserved for output.
func (c *OllamaClient) Generate(ctx context.Context, system, user string, opts TextGenerationOptions) (string, error) {
	maxOutputTokens := opts.MaxOutputTokens
	if maxOutputTokens <= 0 {
		maxOutputTokens = c.contextWindow / 4
	}
	system, user = truncateForContext(system, user, c.contextWindow, maxOutputTokens)

	genOpts := generateOptions{Temperature: opts.Temperature, NumPredict: maxOutputTokens}

	if system != "" {
		body, err := json.Marshal(chatRequest{
			Model:    c.generationModel,
			Messages: []chatMessage{{Role: "system", Content: system}, {Role: "user", Content: user}},
			Stream:   false,
			Options:  genOpts,
		})
		if err != nil {
			return "", &Error{Kind: KindMalformedResponse, Op: "Generate", Err: err}
		}
		var resp chatResponse
		if err := c.postWithRetry(ctx, "/api/chat", body, &resp, c.httpTimeoutOrDefault()); err != nil {
			return "", err
		}
		return strings.TrimSpace(resp.Message.Content), nil
	}

	body, err := json.Marshal(promptRequest{Model: c.generationModel, Prompt: user, Stream: false, Options: genOpts})
	if err != nil {
		return "", &Error{Kind: KindMalformedResponse, Op: "Generate", Err: err}
	}
	var resp promptResponse
	if err := c.postWithRetry(ctx, "/api/generate", body, &resp, c.httpTimeoutOrDefault()); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Response), nil
}

func (c *OllamaClient) httpTimeoutOrDefault() time.Duration {
	if c.httpClient.Timeout > 0 {
		return c.httpClient.Timeout
	}
	return 300 * time.Second
}

// truncateForContext reserves room for maxOutputTokens, then trims user
// before system, at a word boundary.
func truncateForContext(system, user string, contextWindow, maxOutputTokens int) (string, string) {
	budgetChars := (contextWindow - maxOutputTokens) * approxCharsPerToken
	if budgetChars <= 0 {
		return system, user
	}
	for len(system)+len(user) > budgetChars {
		if len(user) > 0 {
			user = trimToWordBoundary(user, maxInt(0, budgetChars-len(system)))
		} else if len(system) > 0 {
			system = trimToWordBoundary(system, budgetChars)
		} else {
			break
		}
	}
	return system, user
}

func trimToWordBoundary(s string, n int) string {
	if n >= len(s) {
		return s
	}
	if n <= 0 {
		return ""
	}
	cut := s[:n]
	if idx := strings.LastIndexAny(cut, " \n\t"); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// postWithRetry retries transport failures and 429/5xx responses with
// exponential backoff, up to maxRetries retries after the first attempt;
// any other 4xx, and a 200 whose body does not decode, is not retried.
func (c *OllamaClient) postWithRetry(ctx context.Context, path string, body []byte, out any, timeout time.Duration) error {
	url := c.baseURL + path

	op := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(&Error{Kind: KindMalformedResponse, Op: path, Err: err})
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &Error{Kind: KindBackendUnavailable, Op: path, Err: err}
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)

		if resp.StatusCode == http.StatusOK {
			if err := json.Unmarshal(respBody, out); err != nil {
				return backoff.Permanent(&Error{Kind: KindMalformedResponse, Op: path, Err: err})
			}
			return nil
		}

		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		llmErr := &Error{
			Kind: KindBackendRejected,
			Op:   path,
			Context: map[string]any{
				"status": resp.StatusCode,
				"body":   truncateSnippet(string(respBody), 500),
			},
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
		if retryable {
			return llmErr
		}
		return backoff.Permanent(llmErr)
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries))
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

func truncateSnippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
