// Package ingest runs background jobs from the SQLite job queue: question
// embedding and response evaluation.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/intervue/internal/evaluator"
	"github.com/kalambet/intervue/internal/interview"
	"github.com/kalambet/intervue/internal/storage"
)

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
}

// QuestionIndexer embeds a stored question into the vector index.
type QuestionIndexer interface {
	IndexQuestion(ctx context.Context, id string) error
}

// ResponseEvaluator scores a submitted response.
type ResponseEvaluator interface {
	EvaluateResponse(ctx context.Context, sessionID, questionID string) (evaluator.Result, error)
}

// Worker processes embed_question and evaluate_response jobs.
type Worker struct {
	store   JobStore
	indexer QuestionIndexer
	scorer  ResponseEvaluator
	types   []string
	poll    time.Duration
	logger  *slog.Logger
}

// NewWorker creates a Worker. A nil indexer or scorer leaves the matching
// job type in the queue. If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, indexer QuestionIndexer, scorer ResponseEvaluator, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	var types []string
	if indexer != nil {
		types = append(types, storage.JobEmbedQuestion)
	}
	if scorer != nil {
		types = append(types, storage.JobEvaluateResponse)
	}
	return &Worker{
		store:   store,
		indexer: indexer,
		scorer:  scorer,
		types:   types,
		poll:    pollInterval,
		logger:  slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(w.types)
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		if isPermanent(err) {
			// Retrying cannot succeed: the target is gone or has moved on.
			w.logger.Info("job dropped", "job_id", job.ID, "type", job.Type, "reason", err)
		} else {
			w.logger.Warn("job failed", "job_id", job.ID, "type", job.Type, "error", err)
			if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
				w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
			}
			return true, nil
		}
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

type jobPayload struct {
	QuestionID string `json:"question_id"`
	SessionID  string `json:"session_id"`
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload jobPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	switch job.Type {
	case storage.JobEmbedQuestion:
		if err := w.indexer.IndexQuestion(ctx, payload.QuestionID); err != nil {
			return fmt.Errorf("indexing question %s: %w", payload.QuestionID, err)
		}
		return nil

	case storage.JobEvaluateResponse:
		res, err := w.scorer.EvaluateResponse(ctx, payload.SessionID, payload.QuestionID)
		if err != nil {
			return fmt.Errorf("evaluating %s/%s: %w", payload.SessionID, payload.QuestionID, err)
		}
		w.logger.Debug("response evaluated",
			"session_id", payload.SessionID, "question_id", payload.QuestionID, "score", res.Score, "mock", res.IsMock())
		return nil

	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

func isPermanent(err error) bool {
	return errors.Is(err, interview.ErrNotFound) ||
		errors.Is(err, interview.ErrInvalidState) ||
		errors.Is(err, storage.ErrNotFound)
}
