// Package interview holds the business rules of interview sessions: who may
// do what, session status transitions, answer submission and evaluation, and
// the per-question countdowns that auto-submit when time runs out.
package interview

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kalambet/intervue/internal/evaluator"
	"github.com/kalambet/intervue/internal/retrieval"
	"github.com/kalambet/intervue/internal/storage"
	"github.com/kalambet/intervue/internal/timer"
)

// Config tunes a Service.
type Config struct {
	// AutoEvaluate enqueues an evaluate_response job after every submission.
	AutoEvaluate bool
	// Clock drives the question countdowns. nil uses the wall clock.
	Clock timer.Clock
}

// Service implements interview operations on top of the relational store.
type Service struct {
	store  *storage.Store
	eval   *evaluator.Evaluator
	index  *retrieval.QuestionIndex
	timers *timer.Registry
	clock  timer.Clock
	cfg    Config
	logger *slog.Logger

	// mu serialises read-modify-write sequences on sessions and responses,
	// which the countdown callbacks also perform.
	mu sync.Mutex
}

// New creates a Service. index may be nil, in which case similarity search
// reports an error.
func New(store *storage.Store, eval *evaluator.Evaluator, index *retrieval.QuestionIndex, cfg Config) *Service {
	if cfg.Clock == nil {
		cfg.Clock = timer.RealClock{}
	}
	s := &Service{
		clock:  cfg.Clock,
		store:  store,
		eval:   eval,
		index:  index,
		cfg:    cfg,
		logger: slog.Default(),
	}
	s.timers = timer.NewRegistry(cfg.Clock, s.onExpire)
	return s
}

// Close persists every countdown and disarms pending expiries.
func (s *Service) Close() error {
	s.timers.Close()
	return s.PersistTimers()
}

// SessionDetails is a session with everything needed to render it.
type SessionDetails struct {
	storage.Session
	Questions   []storage.Question `json:"questions"`
	Responses   []storage.Response `json:"responses"`
	Candidate   storage.User       `json:"candidate"`
	Interviewer *storage.User      `json:"interviewer,omitempty"`
}

// SessionSummary is the list view of a session.
type SessionSummary struct {
	SessionID         string     `json:"session_id"`
	Title             string     `json:"title"`
	Status            string     `json:"status"`
	TotalQuestions    int        `json:"total_questions"`
	QuestionsAnswered int        `json:"questions_answered"`
	AverageScore      *float64   `json:"average_score,omitempty"`
	TimeSpent         int        `json:"time_spent"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

func isParticipant(u storage.User, sess storage.Session) bool {
	return u.IsSuperuser || u.ID == sess.CandidateID || (sess.InterviewerID != "" && u.ID == sess.InterviewerID)
}

func isManager(u storage.User, sess storage.Session) bool {
	return u.IsSuperuser || (sess.InterviewerID != "" && u.ID == sess.InterviewerID)
}

// loadSession fetches a session and maps a missing row to ErrNotFound.
func (s *Service) loadSession(id string) (storage.Session, error) {
	sess, err := s.store.GetSession(id)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Session{}, notFound("Interview session not found")
	}
	if err != nil {
		return storage.Session{}, fmt.Errorf("loading session %s: %w", id, err)
	}
	return sess, nil
}

func (s *Service) loadQuestion(id string) (storage.Question, error) {
	q, err := s.store.GetQuestion(id)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Question{}, notFound("Question not found")
	}
	if err != nil {
		return storage.Question{}, fmt.Errorf("loading question %s: %w", id, err)
	}
	return q, nil
}

func questionIndex(sess storage.Session, questionID string) int {
	for i, id := range sess.QuestionIDs {
		if id == questionID {
			return i
		}
	}
	return -1
}

// enqueue adds a background job with a JSON payload.
func (s *Service) enqueue(jobType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.store.EnqueueJob(storage.Job{
		ID:          uuid.New().String(),
		Type:        jobType,
		PayloadJSON: string(data),
	})
}
