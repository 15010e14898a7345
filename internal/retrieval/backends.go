package retrieval

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"github.com/kalambet/intervue/internal/ollama"
)

// BackendConfig selects and configures an embedding backend.
type BackendConfig struct {
	// Provider is one of ollama, openai, gemini or mock.
	Provider      string
	Model         string
	Dimensions    int
	OllamaBaseURL string
	OpenAIAPIKey  string
	GeminiAPIKey  string
}

// NewBackend builds the embedding backend named by cfg.Provider.
func NewBackend(ctx context.Context, cfg BackendConfig) (EmbedBackend, error) {
	switch cfg.Provider {
	case "ollama":
		return &OllamaBackend{client: ollama.New(cfg.OllamaBaseURL), model: cfg.Model}, nil
	case "openai":
		return NewOpenAIBackend(cfg.OpenAIAPIKey, cfg.Model, cfg.Dimensions, "")
	case "gemini":
		return NewGeminiBackend(ctx, cfg.GeminiAPIKey, cfg.Model, cfg.Dimensions)
	case "mock", "":
		return MockBackend{Dimensions: cfg.Dimensions}, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}
}

// OllamaBackend embeds through a local Ollama instance.
type OllamaBackend struct {
	client *ollama.Client
	model  string
}

func NewOllamaBackend(c *ollama.Client, model string) *OllamaBackend {
	return &OllamaBackend{client: c, model: model}
}

func (b *OllamaBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	return b.client.Embed(ctx, b.model, text)
}

// OpenAIBackend embeds through the OpenAI embeddings API.
type OpenAIBackend struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIBackend creates the backend. baseURL may be empty for api.openai.com.
func NewOpenAIBackend(apiKey, model string, dimensions int, baseURL string) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required for openai embeddings")
	}
	if model == "" || model == "nomic-embed-text" {
		model = string(openai.SmallEmbedding3)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIBackend{client: openai.NewClientWithConfig(config), model: model, dimensions: dimensions}, nil
}

func (b *OpenAIBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := b.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(b.model),
		Dimensions: b.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings: empty response")
	}
	return resp.Data[0].Embedding, nil
}

// GeminiBackend embeds through the Gemini API.
type GeminiBackend struct {
	client     *genai.Client
	model      string
	dimensions int32
}

func NewGeminiBackend(ctx context.Context, apiKey, model string, dimensions int) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required for gemini embeddings")
	}
	if model == "" || model == "nomic-embed-text" {
		model = "gemini-embedding-001"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GeminiBackend{client: client, model: model, dimensions: int32(dimensions)}, nil
}

func (b *GeminiBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	cfg := &genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"}
	if b.dimensions > 0 {
		cfg.OutputDimensionality = &b.dimensions
	}
	result, err := b.client.Models.EmbedContent(ctx, b.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("gemini embeddings: empty response")
	}
	return result.Embeddings[0].Values, nil
}

// MockBackend returns zero vectors. Queries with a zero vector match nothing.
type MockBackend struct {
	Dimensions int
}

func (m MockBackend) Embed(context.Context, string) ([]float32, error) {
	return make([]float32, m.Dimensions), nil
}
