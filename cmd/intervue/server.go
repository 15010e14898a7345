package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/intervue/internal/api"
	"github.com/kalambet/intervue/internal/config"
	"github.com/kalambet/intervue/internal/evaluator"
	"github.com/kalambet/intervue/internal/ingest"
	"github.com/kalambet/intervue/internal/interview"
	"github.com/kalambet/intervue/internal/llm"
	"github.com/kalambet/intervue/internal/ollama"
	"github.com/kalambet/intervue/internal/questionbank"
	"github.com/kalambet/intervue/internal/retrieval"
	"github.com/kalambet/intervue/internal/storage"
	"github.com/kalambet/intervue/internal/upload"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the intervue server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running intervue server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show intervue server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "intervue.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func logLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// llmConfig maps the user-facing settings onto the provider factory's.
func llmConfig(cfg config.Config) llm.Config {
	c := llm.DefaultConfig()
	c.Provider = cfg.LLM.Provider
	c.Model = cfg.LLM.Model
	c.AnthropicAPIKey = cfg.LLM.AnthropicAPIKey
	c.OpenAIAPIKey = cfg.LLM.OpenAIAPIKey
	c.GeminiAPIKey = cfg.LLM.GeminiAPIKey
	c.GroqAPIKey = cfg.LLM.GroqAPIKey
	c.OpenRouterAPIKey = cfg.LLM.OpenRouterAPIKey
	c.OllamaBaseURL = cfg.Ollama.BaseURL
	c.Timeout = cfg.LLM.TimeoutDuration()
	if cfg.LLM.RetryAttempts > 0 {
		c.Retry.MaxAttempts = cfg.LLM.RetryAttempts
	}
	return c
}

func embedConfig(cfg config.Config) retrieval.BackendConfig {
	return retrieval.BackendConfig{
		Provider:      cfg.Embed.Provider,
		Model:         cfg.Embed.Model,
		Dimensions:    cfg.Embed.Dimensions,
		OllamaBaseURL: cfg.Ollama.BaseURL,
		OpenAIAPIKey:  cfg.LLM.OpenAIAPIKey,
		GeminiAPIKey:  cfg.LLM.GeminiAPIKey,
	}
}

// ollamaModels lists the local models the configuration depends on.
func ollamaModels(cfg config.Config) (chat string, models []string) {
	if cfg.LLM.Provider == "ollama" {
		chat = llmConfig(cfg).ModelOrDefault()
	}
	if cfg.Embed.Provider == "ollama" {
		models = append(models, cfg.Embed.Model)
	}
	return chat, models
}

// loadBank returns the configured question bank, or the built-in one.
func loadBank(cfg config.Config) (questionbank.Bank, error) {
	if cfg.Questions.BankPath == "" {
		return questionbank.Default(), nil
	}
	return questionbank.Load(cfg.Questions.BankPath)
}

func runServer() error {
	fmt.Fprintf(stderr, "intervue version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)})))

	// Refuse to start twice against the same port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(serverURL(cfg) + "/health"); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("intervue is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("intervue is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if chat, models := ollamaModels(cfg); chat != "" || len(models) > 0 {
		if err := ollama.EnsureReady(ctx, ollama.New(cfg.Ollama.BaseURL), chat, models, os.Stderr); err != nil {
			return err
		}
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// The mock provider always falls back, so skip it entirely.
	var provider llm.Provider
	if cfg.LLM.Provider != "" && cfg.LLM.Provider != "mock" {
		provider, err = llm.NewProvider(ctx, llmConfig(cfg), store)
		if err != nil {
			return fmt.Errorf("initializing LLM: %w", err)
		}
		slog.Info("LLM evaluation enabled", "provider", cfg.LLM.Provider, "model", provider.ModelID())
	} else {
		slog.Warn("LLM provider is mock, evaluations return fixed mock results")
	}

	backend, err := retrieval.NewBackend(ctx, embedConfig(cfg))
	if err != nil {
		return fmt.Errorf("initializing embeddings: %w", err)
	}
	embedder := retrieval.NewFallbackEmbedder(backend, cfg.Embed.Dimensions)
	index := retrieval.NewQuestionIndex(embedder, retrieval.NewSQLiteStore(store.DB()))

	eval := evaluator.New(provider, evaluator.Config{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		PassScore:   cfg.Evaluation.PassScore,
	})
	svc := interview.New(store, eval, index, interview.Config{AutoEvaluate: cfg.Evaluation.Auto})
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Error("persisting timers", "error", err)
		}
	}()
	if err := svc.RestoreTimers(ctx); err != nil {
		slog.Warn("restoring timers failed", "error", err)
	}

	devUser, err := store.EnsureUser(cfg.Dev.UserEmail, "Developer", true)
	if err != nil {
		return fmt.Errorf("ensuring dev user: %w", err)
	}

	bank, err := loadBank(cfg)
	if err != nil {
		return err
	}
	res, err := questionbank.Seed(ctx, store, bank)
	if err != nil {
		return fmt.Errorf("seeding questions: %w", err)
	}
	slog.Info("question bank seeded", "created", res.Created, "skipped", res.Skipped)

	if cfg.Questions.Watch && cfg.Questions.BankPath != "" {
		w, err := questionbank.NewWatcher(cfg.Questions.BankPath, func(ctx context.Context, b questionbank.Bank) error {
			res, err := questionbank.Seed(ctx, store, b)
			if err == nil {
				slog.Info("question bank reloaded", "created", res.Created, "skipped", res.Skipped)
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("watching question bank: %w", err)
		}
		go func() {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("question bank watcher stopped", "error", err)
			}
		}()
	}

	uploader := upload.New(upload.Config{Dir: cfg.Uploads.Dir, MaxSize: int64(cfg.Uploads.MaxSize)}, store)

	worker := ingest.NewWorker(store, svc, svc, 500*time.Millisecond)
	go worker.Run(ctx)

	handler := api.NewRouter(api.AppDeps{
		Service:     svc,
		Users:       store,
		Uploads:     uploader,
		Token:       cfg.API.Token,
		DevUser:     devUser,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	if cfg.MCP.Stdio {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Service: svc, Actor: devUser})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(stderr, "intervue listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("intervue is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop intervue (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to intervue (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &apiClient{
		baseURL:    serverURL(cfg),
		token:      cfg.API.Token,
		userID:     asUser,
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}
	running := reportStatus(ctx, client)

	if running {
		var sessions []interview.SessionSummary
		resp, err := client.get(ctx, "/api/v1/interview?limit=100")
		if err == nil && decodeJSON(resp, &sessions) == nil {
			printStatus("Sessions", "%s", countLabel(len(sessions), 100))
		}
	}

	printStatus("LLM", "%s", providerLabel(cfg.LLM.Provider, cfg.LLM.Model))
	printStatus("Embeddings", "%s", providerLabel(cfg.Embed.Provider, cfg.Embed.Model))
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// reportStatus prints the server line and reports whether it is healthy.
func reportStatus(ctx context.Context, client *apiClient) bool {
	resp, err := client.get(ctx, "/health")
	if err != nil {
		printStatus("Server", "stopped")
		return false
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		return false
	}
	printStatus("Server", "running at %s", client.baseURL)
	return true
}

func providerLabel(provider, model string) string {
	if model == "" {
		return provider
	}
	return provider + " (" + model + ")"
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
