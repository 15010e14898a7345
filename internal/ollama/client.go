package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message represents a chat message in the Ollama API format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions are the sampling options forwarded to the model.
type ChatOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// ChatResult is the assistant reply plus the token accounting Ollama reports.
type ChatResult struct {
	Content      string
	InputTokens  int
	OutputTokens int
	DoneReason   string
}

// Client talks to a local Ollama server. Requests are bounded by ctx only.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client targeting the given Ollama base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

type tagsResponse struct {
	Models []modelEntry `json:"models"`
}

type modelEntry struct {
	Name string `json:"name"`
}

// send issues a request with an optional JSON body and returns the response
// when the status is 200. Any other status becomes a *StatusError.
func (c *Client) send(ctx context.Context, op, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{Op: op, Code: resp.StatusCode}
	}
	return resp, nil
}

// call is send followed by decoding the JSON reply into out.
func (c *Client) call(ctx context.Context, op, method, path string, in, out any) error {
	resp, err := c.send(ctx, op, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}

// IsRunning reports whether the server answers GET /api/tags within two seconds.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	resp, err := c.send(ctx, "tags", http.MethodGet, "/api/tags", nil)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// ListModels returns the names of the locally installed models.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var tags tagsResponse
	if err := c.call(ctx, "tags", http.MethodGet, "/api/tags", nil, &tags); err != nil {
		return nil, err
	}
	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

// HasModel reports whether name is installed, with or without a tag suffix
// such as ":latest".
func (c *Client) HasModel(ctx context.Context, name string) bool {
	models, err := c.ListModels(ctx)
	return err == nil && hasModel(models, name)
}

type pullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

// PullProgress is one line of the streamed pull response.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

// PullModel downloads a model and blocks until the stream ends. onProgress
// may be nil.
func (c *Client) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	resp, err := c.send(ctx, "pull "+name, http.MethodPost, "/api/pull", pullRequest{Name: name, Stream: true})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	for {
		var p PullProgress
		if err := dec.Decode(&p); err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("reading pull progress: %w", err)
		}
		if onProgress != nil {
			onProgress(p)
		}
	}
}

type chatRequest struct {
	Model    string       `json:"model"`
	Messages []Message    `json:"messages"`
	Stream   bool         `json:"stream"`
	Format   any          `json:"format,omitempty"`
	Options  *ChatOptions `json:"options,omitempty"`
}

type chatResponse struct {
	Message         Message `json:"message"`
	DoneReason      string  `json:"done_reason,omitempty"`
	PromptEvalCount int     `json:"prompt_eval_count,omitempty"`
	EvalCount       int     `json:"eval_count,omitempty"`
}

// Chat runs a non-streaming chat completion. A non-nil format is passed
// through as Ollama's structured-output format, usually a JSON Schema.
func (c *Client) Chat(ctx context.Context, model string, messages []Message, format any, opts *ChatOptions) (ChatResult, error) {
	var out chatResponse
	err := c.call(ctx, "chat", http.MethodPost, "/api/chat", chatRequest{
		Model:    model,
		Messages: messages,
		Format:   format,
		Options:  opts,
	}, &out)
	if err != nil {
		return ChatResult{}, err
	}
	return ChatResult{
		Content:      out.Message.Content,
		InputTokens:  out.PromptEvalCount,
		OutputTokens: out.EvalCount,
		DoneReason:   out.DoneReason,
	}, nil
}

// StatusError reports a non-200 reply from the Ollama API.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Code)
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the embedding of text under model.
func (c *Client) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	var out embedResponse
	if err := c.call(ctx, "embed", http.MethodPost, "/api/embed", embedRequest{Model: model, Input: text}, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) == 0 {
		return nil, fmt.Errorf("embed: empty embeddings array")
	}
	return out.Embeddings[0], nil
}
