package llm

import (
	"context"
	"errors"
	"net/http"

	"github.com/kalambet/intervue/internal/ollama"
)

// OllamaProvider runs evaluations against a local Ollama model.
type OllamaProvider struct {
	client *ollama.Client
	model  string
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	return &OllamaProvider{client: ollama.New(baseURL), model: model}
}

func (p *OllamaProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var msgs []ollama.Message
	if req.System != "" {
		msgs = append(msgs, ollama.Message{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, ollama.Message{Role: string(m.Role), Content: m.Content})
	}

	var format any
	if req.Schema != nil {
		format = req.Schema.Definition
	}

	res, err := p.client.Chat(ctx, p.model, msgs, format, &ollama.ChatOptions{
		Temperature: req.Temperature,
		NumPredict:  req.MaxTokens,
	})
	if err != nil {
		return nil, mapOllamaError(err)
	}

	stop := "end"
	if res.DoneReason == "length" {
		stop = "max_tokens"
	}
	content, err := finishContent(req, res.Content, stop)
	if err != nil {
		return nil, err
	}

	return &Response{
		Content: content,
		Usage: Usage{
			InputTokens:  res.InputTokens,
			OutputTokens: res.OutputTokens,
			TotalTokens:  res.InputTokens + res.OutputTokens,
		},
		Model:      p.model,
		StopReason: stop,
	}, nil
}

func (p *OllamaProvider) ModelID() string {
	return p.model
}

func mapOllamaError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var se *ollama.StatusError
	if errors.As(err, &se) && se.Code == http.StatusTooManyRequests {
		return &ErrRateLimit{Err: err}
	}
	return &ErrProviderUnavailable{Err: err}
}
