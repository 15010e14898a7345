package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/intervue/internal/storage"
)

// QuestionsCollection holds one document per question.
const QuestionsCollection = "questions"

// QuestionIndex keeps question embeddings in a VectorStore.
type QuestionIndex struct {
	embedder *Embedder
	store    VectorStore
}

func NewQuestionIndex(e *Embedder, s VectorStore) *QuestionIndex {
	return &QuestionIndex{embedder: e, store: s}
}

// questionText is what gets embedded for a question.
func questionText(q storage.Question) string {
	return strings.TrimSpace(q.Prompt + "\n\nCategory: " + q.Category)
}

// IndexQuestion embeds q and stores it under the question's ID, replacing
// any earlier entry. It returns the vector ID.
func (x *QuestionIndex) IndexQuestion(ctx context.Context, q storage.Question) (string, error) {
	vec, err := x.embedder.Embed(ctx, questionText(q))
	if err != nil {
		return "", fmt.Errorf("embedding question %s: %w", q.ID, err)
	}
	ids, err := x.store.Add(ctx, QuestionsCollection, []Document{{
		ID:   q.ID,
		Text: q.Prompt,
		Metadata: map[string]any{
			"category":      q.Category,
			"difficulty":    q.Difficulty,
			"question_type": q.Type,
		},
		Embedding: vec,
	}})
	if err != nil {
		return "", fmt.Errorf("storing question %s: %w", q.ID, err)
	}
	return ids[0], nil
}

// Similar returns up to n questions closest to text. filter matches on
// category, difficulty and question_type metadata.
func (x *QuestionIndex) Similar(ctx context.Context, text string, n int, filter map[string]any) ([]Match, error) {
	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return x.store.Query(ctx, QuestionsCollection, vec, n, filter)
}

// Remove drops a question from the index.
func (x *QuestionIndex) Remove(ctx context.Context, questionID string) error {
	_, err := x.store.Delete(ctx, QuestionsCollection, []string{questionID}, nil)
	return err
}

func (x *QuestionIndex) Stats(ctx context.Context) (CollectionStats, error) {
	return x.store.Stats(ctx, QuestionsCollection)
}
