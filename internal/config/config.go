package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Log        LogConfig
	LLM        LLMConfig
	Embed      EmbedConfig
	Ollama     OllamaConfig
	Questions  QuestionsConfig
	Uploads    UploadsConfig
	Evaluation EvaluationConfig
	MCP        MCPConfig
	Dev        DevConfig
	API        APIConfig
}

type ServerConfig struct {
	Host string
	Port int
	// CORSOrigins is a comma-separated allow list; "*" allows any origin.
	CORSOrigins string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type LLMConfig struct {
	Provider      string
	Model         string
	Temperature   float64
	MaxTokens     int
	Timeout       string
	RetryAttempts int

	AnthropicAPIKey  string
	OpenAIAPIKey     string
	GeminiAPIKey     string
	GroqAPIKey       string
	OpenRouterAPIKey string
}

// TimeoutDuration parses Timeout, falling back to 60s.
func (c LLMConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

type EmbedConfig struct {
	Provider   string
	Model      string
	Dimensions int
}

type OllamaConfig struct {
	BaseURL string
}

type QuestionsConfig struct {
	BankPath string
	Watch    bool
}

type UploadsConfig struct {
	Dir     string
	MaxSize int
}

type EvaluationConfig struct {
	Auto      bool
	PassScore float64
}

type MCPConfig struct {
	Stdio bool
}

type DevConfig struct {
	UserEmail string
}

type APIConfig struct {
	Token string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        8000,
			CORSOrigins: "*",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		LLM: LLMConfig{
			Provider:      "mock",
			Temperature:   0.1,
			MaxTokens:     1024,
			Timeout:       "60s",
			RetryAttempts: 3,
		},
		Embed: EmbedConfig{
			Provider:   "mock",
			Model:      "nomic-embed-text",
			Dimensions: 768,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
		},
		Uploads: UploadsConfig{
			MaxSize: 10 * 1024 * 1024,
		},
		Evaluation: EvaluationConfig{
			PassScore: 60,
		},
		Dev: DevConfig{
			UserEmail: "dev@example.com",
		},
	}
}

// Load reads configuration from defaults, the YAML settings file at
// $XDG_CONFIG_HOME/intervue/config.yaml, a .env file in the working
// directory and INTERVUE_* environment variables, in increasing precedence.
//
// Secrets never come from the file backend. LLM API keys fall back to the
// secrets file; the API bearer token is generated on first use and stored there.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	f, err := openYAMLFile(FilePath())
	if err != nil {
		return Config{}, err
	}
	return loadWith(f, fileSecrets{})
}

// secretStore abstracts the secrets file for testing.
type secretStore interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

func loadWith(b Backend, ss secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	for _, s := range specs {
		if !s.secret || s.extract(cfg) != "" {
			continue
		}
		if v, err := ss.Get("intervue", s.key); err == nil && v != "" {
			s.apply(&cfg, v)
		}
	}

	if cfg.API.Token == "" {
		token, err := generateToken()
		if err != nil {
			return Config{}, fmt.Errorf("generating API token: %w", err)
		}
		if err := ss.Set("intervue", "api.token", token); err != nil {
			return Config{}, fmt.Errorf("storing API token: %w", err)
		}
		cfg.API.Token = token
	}

	if cfg.Uploads.Dir == "" {
		cfg.Uploads.Dir = uploadsDir(cfg.Storage.DataDir)
	}

	return cfg, nil
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
