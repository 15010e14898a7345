package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Question types.
const (
	TypeObjective  = "objective"
	TypeMultiTurn  = "multi_turn"
	TypeAssignment = "assignment"
)

// Difficulty levels.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Session statuses.
const (
	StatusDraft      = "draft"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
}

type Question struct {
	ID            string          `json:"id"`
	Category      string          `json:"category"`
	Difficulty    string          `json:"difficulty"`
	Type          string          `json:"question_type"`
	Prompt        string          `json:"prompt"`
	Options       json.RawMessage `json:"options,omitempty"`
	CorrectAnswer json.RawMessage `json:"correct_answer,omitempty"`
	Explanation   string          `json:"explanation,omitempty"`
	MaxScore      int             `json:"max_score"`
	TimeLimit     int             `json:"time_limit,omitempty"` // seconds
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	VectorID      string          `json:"vector_id,omitempty"`
	CreatedBy     string          `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Validate checks the fields every stored question needs.
func (q Question) Validate() error {
	switch {
	case q.Prompt == "":
		return errors.New("prompt is required")
	case q.Category == "":
		return errors.New("category is required")
	}
	switch q.Type {
	case TypeObjective, TypeMultiTurn, TypeAssignment:
	default:
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	switch q.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return fmt.Errorf("unknown difficulty %q", q.Difficulty)
	}
	if q.MaxScore < 0 || q.TimeLimit < 0 {
		return errors.New("max_score and time_limit must not be negative")
	}
	return nil
}

type Session struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	Status          string          `json:"status"`
	CandidateID     string          `json:"candidate_id"`
	InterviewerID   string          `json:"interviewer_id,omitempty"`
	ScheduledAt     *time.Time      `json:"scheduled_at,omitempty"`
	TimeLimit       int             `json:"time_limit,omitempty"` // minutes
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	Score           *float64        `json:"score,omitempty"`
	Feedback        json.RawMessage `json:"feedback,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	CurrentQuestion int             `json:"current_question"`
	QuestionIDs     []string        `json:"question_ids"`
	CreatedBy       string          `json:"created_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type Response struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"session_id"`
	QuestionID    string          `json:"question_id"`
	Answer        json.RawMessage `json:"answer"`
	IsCorrect     *bool           `json:"is_correct,omitempty"`
	Score         *float64        `json:"score,omitempty"`
	Feedback      json.RawMessage `json:"feedback,omitempty"`
	TimeTaken     int             `json:"time_taken"` // seconds
	Evaluation    json.RawMessage `json:"evaluation_result,omitempty"`
	EvaluatedAt   *time.Time      `json:"evaluated_at,omitempty"`
	AutoSubmitted bool            `json:"auto_submitted"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Draft is an unsubmitted answer kept while the candidate moves between questions.
type Draft struct {
	SessionID  string          `json:"session_id"`
	QuestionID string          `json:"question_id"`
	Answer     json.RawMessage `json:"answer"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TimerState is the persisted snapshot of one question countdown.
type TimerState struct {
	SessionID   string    `json:"session_id"`
	QuestionID  string    `json:"question_id"`
	RemainingMs int64     `json:"remaining_ms"`
	State       string    `json:"state"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Upload struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	QuestionID  string    `json:"question_id"`
	FileName    string    `json:"file_name"`
	Path        string    `json:"-"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Text        string    `json:"text,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// LLMCall records a single provider request.
type LLMCall struct {
	ID           string    `json:"id"`
	Purpose      string    `json:"purpose"`
	Model        string    `json:"model"`
	LatencyMs    int64     `json:"latency_ms"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Job types handled by the background worker.
const (
	JobEmbedQuestion    = "embed_question"
	JobEvaluateResponse = "evaluate_response"
)

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // JobPending, JobRunning, JobCompleted or JobFailed
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

// SessionFilter narrows ListSessions. Zero values mean "any".
type SessionFilter struct {
	Status        string
	CandidateID   string
	InterviewerID string
	Skip          int
	Limit         int
}

// QuestionFilter narrows ListQuestions. Zero values mean "any".
type QuestionFilter struct {
	Category   string
	Difficulty string
	Type       string
	Skip       int
	Limit      int
}

// QuestionStats aggregates responses for a single question.
type QuestionStats struct {
	QuestionID   string   `json:"question_id"`
	Submissions  int      `json:"submissions"`
	Evaluated    int      `json:"evaluated"`
	Correct      int      `json:"correct"`
	AverageScore *float64 `json:"average_score,omitempty"`
}
