package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"mock", Config{Provider: "mock"}, ""},
		{"empty means mock", Config{}, ""},
		{"anthropic without key", Config{Provider: "anthropic"}, "INTERVUE_ANTHROPIC_API_KEY"},
		{"anthropic with key", Config{Provider: "anthropic", AnthropicAPIKey: "k"}, ""},
		{"groq without key", Config{Provider: "groq"}, "INTERVUE_GROQ_API_KEY"},
		{"ollama without url", Config{Provider: "ollama"}, "ollama.base_url"},
		{"unknown", Config{Provider: "bard"}, "unknown LLM provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestModelOrDefault(t *testing.T) {
	assert.Equal(t, "gpt-4o-mini", Config{Provider: "openai"}.ModelOrDefault())
	assert.Equal(t, "gpt-4o", Config{Provider: "openai", Model: "gpt-4o"}.ModelOrDefault())
}

func TestNewProvider_MockIsBare(t *testing.T) {
	p, err := NewProvider(context.Background(), DefaultConfig(), nil)
	require.NoError(t, err)
	_, ok := p.(*MockProvider)
	assert.True(t, ok, "mock provider should not be wrapped")
}

func TestNewProvider_WrapsChain(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = "openai"
	cfg.OpenAIAPIKey = "sk-test"

	p, err := NewProvider(context.Background(), cfg, nil)
	require.NoError(t, err)

	tp, ok := p.(*TimeoutProvider)
	require.True(t, ok)
	assert.Equal(t, 60*time.Second, tp.timeout)
	rp, ok := tp.inner.(*RetryProvider)
	require.True(t, ok)
	_, ok = rp.inner.(*LoggingProvider)
	assert.True(t, ok)
	assert.Equal(t, "gpt-4o-mini", p.ModelID())
}

func TestNewProvider_MissingKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = "gemini"
	_, err := NewProvider(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "INTERVUE_GEMINI_API_KEY")
}

func TestTimeoutProvider_Deadline(t *testing.T) {
	inner := &deadlineRecorder{}
	p := WithTimeout(inner, time.Minute)
	_, _ = p.Generate(context.Background(), Request{})
	assert.True(t, inner.hadDeadline)

	assert.Same(t, inner, WithTimeout(inner, 0))
}

type deadlineRecorder struct{ hadDeadline bool }

func (d *deadlineRecorder) Generate(ctx context.Context, _ Request) (*Response, error) {
	_, d.hadDeadline = ctx.Deadline()
	return &Response{}, nil
}

func (d *deadlineRecorder) ModelID() string { return "deadline-recorder" }
