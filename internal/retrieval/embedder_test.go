package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kalambet/intervue/internal/ollama"
)

// mockBackend implements EmbedBackend for testing.
type mockBackend struct {
	embedFn func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.embedFn(ctx, text)
}

func makeVector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(i) * 0.001
	}
	return v
}

func TestEmbed_ReturnsDimension(t *testing.T) {
	e := NewEmbedder(&mockBackend{
		embedFn: func(context.Context, string) ([]float32, error) { return makeVector(384), nil },
	}, 384)

	vec, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 384 {
		t.Errorf("got %d dimensions, want 384", len(vec))
	}
}

func TestEmbed_BackendError(t *testing.T) {
	e := NewEmbedder(&mockBackend{
		embedFn: func(context.Context, string) ([]float32, error) { return nil, errors.New("connection refused") },
	}, 768)

	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestEmbed_FallbackZeroVector(t *testing.T) {
	e := NewFallbackEmbedder(&mockBackend{
		embedFn: func(context.Context, string) ([]float32, error) { return nil, errors.New("connection refused") },
	}, 768)

	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 768 {
		t.Fatalf("got %d dimensions, want 768", len(vec))
	}
	for _, f := range vec {
		if f != 0 {
			t.Fatal("fallback vector is not zero")
		}
	}
}

func TestEmbed_FallbackKeepsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewFallbackEmbedder(&mockBackend{
		embedFn: func(ctx context.Context, _ string) ([]float32, error) { return nil, ctx.Err() },
	}, 8)

	if _, err := e.Embed(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestEmbedBatch_CountMatches(t *testing.T) {
	var calls atomic.Int32
	e := NewEmbedder(&mockBackend{
		embedFn: func(_ context.Context, text string) ([]float32, error) {
			calls.Add(1)
			return []float32{float32(len(text))}, nil
		},
	}, 1)

	texts := make([]string, EmbedBatchSize*2+5)
	for i := range texts {
		texts[i] = strings.Repeat("x", i)
	}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vecs), len(texts))
	}
	for i, v := range vecs {
		if v[0] != float32(i) {
			t.Errorf("vector %d out of order: %v", i, v)
		}
	}
	if int(calls.Load()) != len(texts) {
		t.Errorf("backend called %d times, want %d", calls.Load(), len(texts))
	}
}

func TestEmbedBatch_BackendError(t *testing.T) {
	e := NewEmbedder(&mockBackend{
		embedFn: func(_ context.Context, text string) ([]float32, error) {
			if text == "b" {
				return nil, errors.New("embedding failed")
			}
			return makeVector(384), nil
		},
	}, 384)

	_, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "embedding failed") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	e := NewEmbedder(&mockBackend{
		embedFn: func(context.Context, string) ([]float32, error) {
			t.Fatal("should not be called for empty input")
			return nil, nil
		},
	}, 384)

	vecs, err := e.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if vecs != nil {
		t.Errorf("got %v, want nil", vecs)
	}
}

func TestNewBackend(t *testing.T) {
	ctx := context.Background()

	b, err := NewBackend(ctx, BackendConfig{Provider: "mock", Dimensions: 12})
	if err != nil {
		t.Fatalf("mock: %v", err)
	}
	vec, _ := b.Embed(ctx, "x")
	if len(vec) != 12 {
		t.Errorf("mock dim = %d, want 12", len(vec))
	}

	if _, err := NewBackend(ctx, BackendConfig{Provider: "openai"}); err == nil {
		t.Error("expected error for openai without key")
	}
	if _, err := NewBackend(ctx, BackendConfig{Provider: "gemini"}); err == nil {
		t.Error("expected error for gemini without key")
	}
	if _, err := NewBackend(ctx, BackendConfig{Provider: "word2vec"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestOllamaBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{0.1, 0.2, 0.3}}})
	}))
	defer srv.Close()

	b := NewOllamaBackend(ollama.New(srv.URL), "nomic-embed-text")
	vec, err := b.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("got %d dimensions, want 3", len(vec))
	}
}

func TestOpenAIBackend(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		gotModel, _ = req["model"].(string)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": []float32{0.5, 0.25}}},
			"model":  "text-embedding-3-small",
			"usage":  map[string]any{"prompt_tokens": 2, "total_tokens": 2},
		})
	}))
	defer srv.Close()

	b, err := NewOpenAIBackend("sk-test", "", 2, srv.URL+"/v1")
	if err != nil {
		t.Fatalf("NewOpenAIBackend: %v", err)
	}
	vec, err := b.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Errorf("vec = %v", vec)
	}
	if gotModel != "text-embedding-3-small" {
		t.Errorf("model = %q, want text-embedding-3-small", gotModel)
	}
}
