package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/kalambet/intervue/internal/llm"
	"github.com/kalambet/intervue/internal/storage"
)

// FollowUp proposes a question that builds on answer. Like Evaluate it falls
// back to a canned question when the model cannot be used.
func (e *Evaluator) FollowUp(ctx context.Context, q storage.Question, answer json.RawMessage, evalCtx map[string]any) FollowUpQuestion {
	if e.provider != nil {
		fu, err := e.followUp(ctx, q, answer, evalCtx)
		if err == nil {
			return fu
		}
		slog.Warn("llm follow-up failed, using mock question", "question_id", q.ID, "error", err)
	}
	return e.mockFollowUp(q, answer)
}

func (e *Evaluator) followUp(ctx context.Context, q storage.Question, answer json.RawMessage, evalCtx map[string]any) (FollowUpQuestion, error) {
	ctx = llm.WithPurpose(ctx, "follow_up")

	prompt, err := render(prompts.Lookup("follow_up_question.tmpl"), newPromptData(q, answer, evalCtx))
	if err != nil {
		return FollowUpQuestion{}, err
	}
	resp, err := e.provider.Generate(ctx, llm.Request{
		System:      followUpSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   500,
		Temperature: 0.7,
	})
	if err != nil {
		return FollowUpQuestion{}, err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return FollowUpQuestion{}, fmt.Errorf("empty follow-up question")
	}

	return FollowUpQuestion{
		Text: text,
		Context: map[string]any{
			"original_question_id": q.ID,
			"original_answer":      answer,
			"is_mock":              false,
			"generated_at":         unixSeconds(e.now()),
		},
	}, nil
}

func (e *Evaluator) mockFollowUp(q storage.Question, answer json.RawMessage) FollowUpQuestion {
	slog.Warn("using mock follow-up question (LLM not available)", "question_id", q.ID)

	topic := "your answer"
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(answer, &obj); err == nil && len(obj) > 0 {
		topic = slices.Sorted(maps.Keys(obj))[0]
	}
	return FollowUpQuestion{
		Text: fmt.Sprintf("Can you elaborate more on %s?", topic),
		Context: map[string]any{
			"original_question_id": q.ID,
			"is_mock":              true,
			"generated_at":         unixSeconds(e.now()),
		},
	}
}
