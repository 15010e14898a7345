package interview

import (
	"context"
	"errors"
	"fmt"

	"github.com/kalambet/intervue/internal/storage"
)

// SimilarQuery asks for questions close to Text. Category and Difficulty
// narrow the search when set.
type SimilarQuery struct {
	Text       string `json:"text"`
	N          int    `json:"n,omitempty"`
	Category   string `json:"category,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

// SimilarQuestion is a search hit with its cosine distance.
type SimilarQuestion struct {
	storage.Question
	Distance float64 `json:"distance"`
}

// CreateQuestion stores a question and queues it for embedding.
func (s *Service) CreateQuestion(ctx context.Context, actor storage.User, q storage.Question) (storage.Question, error) {
	if !actor.IsSuperuser {
		return storage.Question{}, forbidden("Only superusers can create questions")
	}
	if q.MaxScore == 0 {
		q.MaxScore = 100
	}
	if err := q.Validate(); err != nil {
		return storage.Question{}, invalidInput("%s", err)
	}
	q.ID = ""
	q.VectorID = ""
	q.CreatedBy = actor.ID

	created, err := s.store.CreateQuestion(q)
	if err != nil {
		return storage.Question{}, err
	}
	if err := s.enqueue(storage.JobEmbedQuestion, map[string]string{"question_id": created.ID}); err != nil {
		s.logger.Error("enqueueing embedding failed", "question_id", created.ID, "error", err)
	}
	return created, nil
}

func (s *Service) ListQuestions(ctx context.Context, f storage.QuestionFilter) ([]storage.Question, error) {
	if f.Skip < 0 {
		f.Skip = 0
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	qs, err := s.store.ListQuestions(f)
	if err != nil {
		return nil, fmt.Errorf("listing questions: %w", err)
	}
	if qs == nil {
		qs = []storage.Question{}
	}
	return qs, nil
}

func (s *Service) GetQuestion(ctx context.Context, id string) (storage.Question, error) {
	return s.loadQuestion(id)
}

func (s *Service) QuestionStats(ctx context.Context, id string) (storage.QuestionStats, error) {
	st, err := s.store.QuestionStats(id)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.QuestionStats{}, notFound("Question not found")
	}
	return st, err
}

// SimilarQuestions searches the question index. Hits whose question was
// deleted from the store are skipped.
func (s *Service) SimilarQuestions(ctx context.Context, query SimilarQuery) ([]SimilarQuestion, error) {
	if query.Text == "" {
		return nil, invalidInput("text is required")
	}
	if s.index == nil {
		return nil, invalidState("Question search is not configured")
	}

	filter := map[string]any{}
	if query.Category != "" {
		filter["category"] = query.Category
	}
	if query.Difficulty != "" {
		filter["difficulty"] = query.Difficulty
	}
	matches, err := s.index.Similar(ctx, query.Text, query.N, filter)
	if err != nil {
		return nil, fmt.Errorf("searching questions: %w", err)
	}

	out := make([]SimilarQuestion, 0, len(matches))
	for _, m := range matches {
		q, err := s.store.GetQuestion(m.ID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, SimilarQuestion{Question: q, Distance: float64(m.Distance)})
	}
	return out, nil
}

// IndexQuestion embeds a stored question and records its vector ID.
func (s *Service) IndexQuestion(ctx context.Context, id string) error {
	if s.index == nil {
		return errors.New("question index is not configured")
	}
	q, err := s.loadQuestion(id)
	if err != nil {
		return err
	}
	vectorID, err := s.index.IndexQuestion(ctx, q)
	if err != nil {
		return fmt.Errorf("indexing question %s: %w", id, err)
	}
	return s.store.UpdateQuestionVectorID(q.ID, vectorID)
}
