// Package evaluator scores interview answers with an LLM and falls back to a
// fixed mock evaluation whenever the model cannot be used.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/kalambet/intervue/internal/llm"
	"github.com/kalambet/intervue/internal/storage"
)

const (
	mockScore    = 75.0
	mockFeedback = "This is a mock evaluation. Enable the LLM service for real feedback."
)

// Config holds generation settings for evaluations.
type Config struct {
	Temperature float64
	MaxTokens   int
	// PassScore decides IsCorrect when the model does not.
	PassScore float64
}

func DefaultConfig() Config {
	return Config{Temperature: 0.1, MaxTokens: 1024, PassScore: 60}
}

// Evaluator wraps an llm.Provider. A nil provider means every call takes the
// fallback path.
type Evaluator struct {
	provider llm.Provider
	cfg      Config
	now      func() time.Time
}

func New(provider llm.Provider, cfg Config) *Evaluator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	return &Evaluator{provider: provider, cfg: cfg, now: time.Now}
}

// evaluationOutput is the raw model response.
type evaluationOutput struct {
	Score      float64            `json:"score"`
	IsCorrect  *bool              `json:"is_correct"`
	Breakdown  map[string]float64 `json:"breakdown"`
	Feedback   string             `json:"feedback"`
	Reasoning  string             `json:"reasoning"`
	Confidence float64            `json:"confidence"`
	Metadata   map[string]any     `json:"metadata"`
}

// Evaluate scores answer against q. It never fails: provider, parsing and
// schema errors all produce the mock result.
func (e *Evaluator) Evaluate(ctx context.Context, q storage.Question, answer json.RawMessage, evalCtx map[string]any) Result {
	if e.provider == nil {
		return e.mockEvaluation(q, evalCtx)
	}
	res, err := e.evaluate(ctx, q, answer, evalCtx)
	if err != nil {
		slog.Warn("llm evaluation failed, using mock evaluation",
			"question_id", q.ID, "question_type", q.Type, "error", err)
		return e.mockEvaluation(q, evalCtx)
	}
	return res
}

func (e *Evaluator) evaluate(ctx context.Context, q storage.Question, answer json.RawMessage, evalCtx map[string]any) (Result, error) {
	ctx = llm.WithPurpose(ctx, "evaluation")

	prompt, err := render(templateFor(q.Type), newPromptData(q, answer, evalCtx))
	if err != nil {
		return Result{}, err
	}

	resp, err := e.provider.Generate(ctx, llm.Request{
		System:      evaluationSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Schema:      EvaluationSchema,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		return Result{}, err
	}

	var out evaluationOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return Result{}, fmt.Errorf("parsing evaluation: %w", err)
	}

	res := Result{
		Score:      out.Score,
		Breakdown:  out.Breakdown,
		Feedback:   out.Feedback,
		Reasoning:  out.Reasoning,
		Confidence: out.Confidence,
		Metadata:   out.Metadata,
	}
	if out.IsCorrect != nil {
		res.IsCorrect = *out.IsCorrect
	} else {
		res.IsCorrect = res.Score >= e.cfg.PassScore
	}
	if res.Reasoning == "" {
		res.Reasoning = summarizeBreakdown(res.Breakdown)
	}
	if res.Metadata == nil {
		res.Metadata = map[string]any{}
	}
	res.Metadata["is_mock"] = false
	res.Metadata["question_type"] = q.Type
	res.Metadata["model"] = resp.Model
	return res, nil
}

func (e *Evaluator) mockEvaluation(q storage.Question, evalCtx map[string]any) Result {
	slog.Warn("using mock evaluation (LLM not available)", "question_id", q.ID)

	qType := q.Type
	if qType == "" {
		qType = "unknown"
	}
	if evalCtx == nil {
		evalCtx = map[string]any{}
	}
	breakdown := map[string]float64{
		"relevance":    mockScore * 0.9,
		"accuracy":     mockScore * 0.8,
		"clarity":      mockScore * 0.95,
		"completeness": mockScore * 0.85,
	}
	return Result{
		Score:      mockScore,
		IsCorrect:  mockScore >= e.cfg.PassScore,
		Breakdown:  breakdown,
		Feedback:   mockFeedback,
		Reasoning:  summarizeBreakdown(breakdown),
		Confidence: 0.7,
		Metadata: map[string]any{
			"is_mock":       true,
			"question_type": qType,
			"context":       evalCtx,
		},
	}
}

// summarizeBreakdown renders "accuracy 60, clarity 71.25" in key order.
func summarizeBreakdown(b map[string]float64) string {
	if len(b) == 0 {
		return ""
	}
	parts := make([]string, 0, len(b))
	for _, k := range slices.Sorted(maps.Keys(b)) {
		parts = append(parts, fmt.Sprintf("%s %s", k, formatScore(b[k])))
	}
	return "Criteria scores: " + strings.Join(parts, ", ")
}

func formatScore(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
