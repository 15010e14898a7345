package llm

import "fmt"

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultGroqBaseURL       = "https://api.groq.com/openai/v1"
)

// OpenRouterProvider targets OpenRouter's OpenAI-compatible API.
type OpenRouterProvider struct {
	*OpenAIProvider
}

func NewOpenRouterProvider(apiKey, model string) (*OpenRouterProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}
	inner, err := NewOpenAIProvider(apiKey, model, defaultOpenRouterBaseURL)
	if err != nil {
		return nil, err
	}
	return &OpenRouterProvider{OpenAIProvider: inner}, nil
}

// GroqProvider targets Groq's OpenAI-compatible API. Groq does not accept
// strict JSON-schema mode, so replies are validated locally only.
type GroqProvider struct {
	*OpenAIProvider
}

func NewGroqProvider(apiKey, model string) (*GroqProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq API key is required")
	}
	if model == "" {
		model = defaultModels["groq"]
	}
	inner, err := NewOpenAIProvider(apiKey, model, defaultGroqBaseURL)
	if err != nil {
		return nil, err
	}
	inner.strict = false
	return &GroqProvider{OpenAIProvider: inner}, nil
}
