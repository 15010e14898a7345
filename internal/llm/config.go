package llm

import (
	"fmt"
	"time"
)

// Config holds LLM provider configuration.
type Config struct {
	// Provider is one of anthropic, openai, gemini, groq, openrouter, ollama or mock.
	Provider string
	// Model overrides the provider's default model when set.
	Model string

	AnthropicAPIKey  string
	OpenAIAPIKey     string
	GeminiAPIKey     string
	GroqAPIKey       string
	OpenRouterAPIKey string
	OllamaBaseURL    string

	Retry RetryConfig

	// Timeout bounds a single Generate call including retries.
	Timeout time.Duration
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// Default models per provider.
var defaultModels = map[string]string{
	"anthropic":  "claude-haiku",
	"openai":     "gpt-4o-mini",
	"gemini":     "gemini-flash",
	"groq":       "mixtral-8x7b-32768",
	"openrouter": "google/gemini-2.0-flash-exp",
	"ollama":     "llama3.1",
	"mock":       "mock",
}

func DefaultConfig() Config {
	return Config{
		Provider:      "mock",
		OllamaBaseURL: "http://localhost:11434",
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 1 * time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
		Timeout: 60 * time.Second,
	}
}

// ModelOrDefault returns Model, or the provider default when Model is empty.
func (c Config) ModelOrDefault() string {
	if c.Model != "" {
		return c.Model
	}
	return defaultModels[c.Provider]
}

// Validate checks that the selected provider has its required API key set.
func (c Config) Validate() error {
	var key, env string
	switch c.Provider {
	case "anthropic":
		key, env = c.AnthropicAPIKey, "INTERVUE_ANTHROPIC_API_KEY"
	case "openai":
		key, env = c.OpenAIAPIKey, "INTERVUE_OPENAI_API_KEY"
	case "gemini":
		key, env = c.GeminiAPIKey, "INTERVUE_GEMINI_API_KEY"
	case "groq":
		key, env = c.GroqAPIKey, "INTERVUE_GROQ_API_KEY"
	case "openrouter":
		key, env = c.OpenRouterAPIKey, "INTERVUE_OPENROUTER_API_KEY"
	case "ollama":
		if c.OllamaBaseURL == "" {
			return fmt.Errorf("ollama.base_url is required for the ollama provider")
		}
		return nil
	case "mock", "":
		return nil
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	if key == "" {
		return fmt.Errorf("%s is required for the %s provider", env, c.Provider)
	}
	return nil
}
