package llm

import (
	"context"
	"fmt"
	"time"
)

// NewProvider creates a Provider from configuration, wrapped as
// caller -> timeout -> retry -> logging -> base. The mock provider is
// returned bare with an empty queue, so every call falls back.
func NewProvider(ctx context.Context, cfg Config, recorder CallRecorder) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	model := cfg.ModelOrDefault()
	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.AnthropicAPIKey, model)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAIAPIKey, model, "")
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.GeminiAPIKey, model)
	case "groq":
		base, err = NewGroqProvider(cfg.GroqAPIKey, model)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouterAPIKey, model)
	case "ollama":
		base = NewOllamaProvider(cfg.OllamaBaseURL, model)
	case "mock", "":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	logged := WithLogging(base, recorder)
	retried := WithRetry(logged, cfg.Retry)
	return WithTimeout(retried, cfg.Timeout), nil
}

// TimeoutProvider bounds each Generate call, retries included.
type TimeoutProvider struct {
	inner   Provider
	timeout time.Duration
}

// WithTimeout wraps p with a per-call deadline. A non-positive timeout returns p unchanged.
func WithTimeout(p Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		return p
	}
	return &TimeoutProvider{inner: p, timeout: timeout}
}

func (t *TimeoutProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Generate(ctx, req)
}

func (t *TimeoutProvider) ModelID() string {
	return t.inner.ModelID()
}
