package llmclient

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"google.golang.org/genai"
)

// geminiEmbeddingCharLimit is a conservative char budget for the embedding
// model's token limit.
const geminiEmbeddingCharLimit = 8000

// GeminiClient is the hosted alternate backend for Embedder and Generator,
// backed by Gemini. Kept alongside the primary HTTP backend because some
// deployments have no locally-hosted model available.
type GeminiClient struct {
	client          *genai.Client
	generationModel string
	embeddingModel  string
	dimension       int32
}

// NewGeminiClient resolves the API key from, in order: GEMINI_API_KEY,
// GOOGLE_GEMINI_API_KEY, GOOGLE_AI_API_KEY, then the gemini.api_key config
// key. An empty generationModel falls back to the gemini.model config key,
// then to a fixed default; an empty embeddingModel falls back straight to a
// fixed default.
func NewGeminiClient(ctx context.Context, generationModel, embeddingModel string, dimension int32) (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		if apiKey = os.Getenv("GOOGLE_GEMINI_API_KEY"); apiKey == "" {
			if apiKey = os.Getenv("GOOGLE_AI_API_KEY"); apiKey == "" {
				apiKey = viper.GetString("gemini.api_key")
			}
		}
	}
	if apiKey == "" {
		return nil, &Error{Kind: KindBackendRejected, Op: "NewGeminiClient", Err: fmt.Errorf("gemini API key is required: set GEMINI_API_KEY or gemini.api_key")}
	}

	if generationModel == "" {
		generationModel = viper.GetString("gemini.model")
		if generationModel == "" {
			generationModel = "gemini-flash-lite-latest"
		}
	}
	if embeddingModel == "" {
		embeddingModel = "gemini-embedding-001"
	}
	if dimension == 0 {
		dimension = 768
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &Error{Kind: KindBackendUnavailable, Op: "NewGeminiClient", Err: err}
	}

	return &GeminiClient{
		client:          gClient,
		generationModel: generationModel,
		embeddingModel:  embeddingModel,
		dimension:       dimension,
	}, nil
}

func (c *GeminiClient) Dimension() int { return int(c.dimension) }

// Embed truncates to a conservative character budget, then requests an
// embedding with Matryoshka output truncated to Dimension().
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(text) > geminiEmbeddingCharLimit {
		text = text[:geminiEmbeddingCharLimit]
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: text}},
		Role:  "user",
	}}
	config := &genai.EmbedContentConfig{OutputDimensionality: &c.dimension}

	resp, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, contents, config)
	if err != nil {
		return nil, &Error{Kind: KindBackendUnavailable, Op: "Embed", Err: err}
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, &Error{Kind: KindMalformedResponse, Op: "Embed", Context: map[string]any{"model": c.embeddingModel}}
	}

	return resp.Embeddings[0].Values, nil
}

// Generate ignores the single-prompt/chat distinction at the transport
// level (genai has no separate chat endpoint) but still honors it
// semantically: a non-empty system string is set as system instruction.
func (c *GeminiClient) Generate(ctx context.Context, system, user string, opts TextGenerationOptions) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: user}},
		Role:  "user",
	}}

	config := &genai.GenerateContentConfig{
		Temperature: float32ptr(float32(opts.Temperature)),
	}
	if opts.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxOutputTokens)
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.generationModel, contents, config)
	if err != nil {
		return "", &Error{Kind: KindBackendUnavailable, Op: "Generate", Err: err}
	}

	text := resp.Text()
	if text == "" {
		return "", &Error{Kind: KindMalformedResponse, Op: "Generate", Context: map[string]any{"model": c.generationModel}}
	}
	return text, nil
}

func float32ptr(f float32) *float32 { return &f }
