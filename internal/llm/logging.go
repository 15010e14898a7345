package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/kalambet/intervue/internal/storage"
)

// CallRecorder persists LLM call records. *storage.Store satisfies it.
type CallRecorder interface {
	RecordLLMCall(c storage.LLMCall) error
}

// LoggingProvider records every request made through the inner provider.
type LoggingProvider struct {
	inner    Provider
	recorder CallRecorder
}

// WithLogging wraps p so each call is logged at debug level and, when
// recorder is non-nil, stored as an LLMCall.
func WithLogging(p Provider, recorder CallRecorder) Provider {
	return &LoggingProvider{inner: p, recorder: recorder}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)

	call := storage.LLMCall{
		Purpose:   PurposeFrom(ctx),
		Model:     l.inner.ModelID(),
		LatencyMs: time.Since(start).Milliseconds(),
		Success:   err == nil,
	}
	if resp != nil {
		call.InputTokens = resp.Usage.InputTokens
		call.OutputTokens = resp.Usage.OutputTokens
		if resp.Model != "" {
			call.Model = resp.Model
		}
	}
	if err != nil {
		call.Error = err.Error()
	}

	slog.Debug("llm call",
		"purpose", call.Purpose,
		"model", call.Model,
		"latency_ms", call.LatencyMs,
		"input_tokens", call.InputTokens,
		"output_tokens", call.OutputTokens,
		"success", call.Success,
	)

	if l.recorder != nil {
		if recErr := l.recorder.RecordLLMCall(call); recErr != nil {
			slog.Warn("failed to record llm call", "error", recErr)
		}
	}

	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}
