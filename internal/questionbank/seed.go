package questionbank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kalambet/intervue/internal/storage"
)

// Store is the part of storage.Store seeding needs.
type Store interface {
	FindQuestionByPrompt(category, prompt string) (storage.Question, error)
	CreateQuestion(q storage.Question) (storage.Question, error)
	EnqueueJob(job storage.Job) error
}

// SeedResult counts what Seed did.
type SeedResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Seed inserts every question of b that is not stored yet, matching on
// category and prompt, and queues an embedding job for each new question.
// Running it twice with the same bank creates nothing the second time.
func Seed(ctx context.Context, store Store, b Bank) (SeedResult, error) {
	var res SeedResult
	for _, e := range b.Questions {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		_, err := store.FindQuestionByPrompt(e.Category, e.Prompt)
		if err == nil {
			res.Skipped++
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return res, fmt.Errorf("looking up question: %w", err)
		}

		q, err := e.Question()
		if err != nil {
			return res, err
		}
		created, err := store.CreateQuestion(q)
		if err != nil {
			return res, err
		}
		res.Created++

		payload, _ := json.Marshal(map[string]string{"question_id": created.ID})
		if err := store.EnqueueJob(storage.Job{
			ID:          uuid.New().String(),
			Type:        storage.JobEmbedQuestion,
			PayloadJSON: string(payload),
		}); err != nil {
			return res, fmt.Errorf("enqueueing embedding for %s: %w", created.ID, err)
		}
	}
	slog.Info("question bank seeded", "created", res.Created, "skipped", res.Skipped)
	return res, nil
}
