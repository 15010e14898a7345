package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "INTERVUE_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "INTERVUE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.cors_origins", typ: kString, env: "INTERVUE_SERVER_CORS_ORIGINS",
		apply:   func(cfg *Config, v any) { cfg.Server.CORSOrigins = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.CORSOrigins },
	},
	{
		key: "storage.data_dir", typ: kString, env: "INTERVUE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "INTERVUE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "llm.provider", typ: kString, env: "INTERVUE_LLM_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "llm.model", typ: kString, env: "INTERVUE_LLM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "llm.temperature", typ: kFloat, env: "INTERVUE_LLM_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.LLM.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.LLM.Temperature },
	},
	{
		key: "llm.max_tokens", typ: kInt, env: "INTERVUE_LLM_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.LLM.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.LLM.MaxTokens },
	},
	{
		key: "llm.timeout", typ: kString, env: "INTERVUE_LLM_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.LLM.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Timeout },
	},
	{
		key: "llm.retry_attempts", typ: kInt, env: "INTERVUE_LLM_RETRY_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.LLM.RetryAttempts = v.(int) },
		extract: func(cfg Config) any { return cfg.LLM.RetryAttempts },
	},
	{
		key: "embed.provider", typ: kString, env: "INTERVUE_EMBED_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Embed.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Embed.Provider },
	},
	{
		key: "embed.model", typ: kString, env: "INTERVUE_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Embed.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Embed.Model },
	},
	{
		key: "embed.dimensions", typ: kInt, env: "INTERVUE_EMBED_DIMENSIONS",
		apply:   func(cfg *Config, v any) { cfg.Embed.Dimensions = v.(int) },
		extract: func(cfg Config) any { return cfg.Embed.Dimensions },
	},
	{
		key: "ollama.base_url", typ: kString, env: "INTERVUE_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "questions.bank_path", typ: kString, env: "INTERVUE_QUESTIONS_BANK_PATH",
		apply:   func(cfg *Config, v any) { cfg.Questions.BankPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Questions.BankPath },
	},
	{
		key: "questions.watch", typ: kBool, env: "INTERVUE_QUESTIONS_WATCH",
		apply:   func(cfg *Config, v any) { cfg.Questions.Watch = v.(bool) },
		extract: func(cfg Config) any { return cfg.Questions.Watch },
	},
	{
		key: "uploads.dir", typ: kString, env: "INTERVUE_UPLOADS_DIR",
		apply:   func(cfg *Config, v any) { cfg.Uploads.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Uploads.Dir },
	},
	{
		key: "uploads.max_size", typ: kInt, env: "INTERVUE_UPLOADS_MAX_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Uploads.MaxSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Uploads.MaxSize },
	},
	{
		key: "evaluation.auto", typ: kBool, env: "INTERVUE_EVALUATION_AUTO",
		apply:   func(cfg *Config, v any) { cfg.Evaluation.Auto = v.(bool) },
		extract: func(cfg Config) any { return cfg.Evaluation.Auto },
	},
	{
		key: "evaluation.pass_score", typ: kFloat, env: "INTERVUE_EVALUATION_PASS_SCORE",
		apply:   func(cfg *Config, v any) { cfg.Evaluation.PassScore = v.(float64) },
		extract: func(cfg Config) any { return cfg.Evaluation.PassScore },
	},
	{
		key: "mcp.stdio", typ: kBool, env: "INTERVUE_MCP_STDIO",
		apply:   func(cfg *Config, v any) { cfg.MCP.Stdio = v.(bool) },
		extract: func(cfg Config) any { return cfg.MCP.Stdio },
	},
	{
		key: "dev.user_email", typ: kString, env: "INTERVUE_DEV_USER_EMAIL",
		apply:   func(cfg *Config, v any) { cfg.Dev.UserEmail = v.(string) },
		extract: func(cfg Config) any { return cfg.Dev.UserEmail },
	},
	{
		key: "llm.anthropic_api_key", typ: kString, env: "INTERVUE_ANTHROPIC_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.AnthropicAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.AnthropicAPIKey },
	},
	{
		key: "llm.openai_api_key", typ: kString, env: "INTERVUE_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.OpenAIAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.OpenAIAPIKey },
	},
	{
		key: "llm.gemini_api_key", typ: kString, env: "INTERVUE_GEMINI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.GeminiAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.GeminiAPIKey },
	},
	{
		key: "llm.groq_api_key", typ: kString, env: "INTERVUE_GROQ_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.GroqAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.GroqAPIKey },
	},
	{
		key: "llm.openrouter_api_key", typ: kString, env: "INTERVUE_OPENROUTER_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.OpenRouterAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.OpenRouterAPIKey },
	},
	{
		key: "api.token", typ: kString, env: "INTERVUE_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
}

// parse converts a raw string into the Go type apply expects.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	default:
		return raw, nil
	}
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// applyBackend copies persisted settings into cfg. Secrets are never read
// from the backend; a malformed value is an error.
func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		raw, ok, err := b.Get(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			return fmt.Errorf("config %s=%q: %w", s.key, raw, err)
		}
		s.apply(cfg, v)
	}
	return nil
}

// applyEnvOverrides applies INTERVUE_* variables. Unparseable values are
// reported and skipped so a typo in the shell does not stop the server.
func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if s.env == "" || raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] ignoring %s=%q: %v\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
