package interview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/intervue/internal/evaluator"
	"github.com/kalambet/intervue/internal/storage"
)

// AnswerInput is one answer submission. TimeTaken is in seconds; when nil it
// is derived from the question's countdown.
type AnswerInput struct {
	QuestionID string          `json:"question_id"`
	Answer     json.RawMessage `json:"answer"`
	TimeTaken  *int            `json:"time_taken,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

var emptyAnswer = json.RawMessage(`{}`)

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{' && json.Valid(raw)
}

// SubmitAnswer stores the candidate's answer to one question of an
// in-progress session.
func (s *Service) SubmitAnswer(ctx context.Context, actor storage.User, sessionID string, in AnswerInput) (storage.Response, error) {
	if !isObject(in.Answer) {
		return storage.Response{}, invalidInput("answer must be a JSON object")
	}
	if in.TimeTaken != nil && *in.TimeTaken < 0 {
		return storage.Response{}, invalidInput("time_taken must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.loadSession(sessionID)
	if err != nil {
		return storage.Response{}, err
	}
	if !actor.IsSuperuser && actor.ID != sess.CandidateID {
		return storage.Response{}, forbidden("Only the candidate can submit answers")
	}
	if sess.Status != storage.StatusInProgress {
		return storage.Response{}, invalidState("Cannot submit answer to a session that is %s", sess.Status)
	}
	q, err := s.loadQuestion(in.QuestionID)
	if err != nil {
		return storage.Response{}, err
	}
	if questionIndex(sess, q.ID) < 0 {
		return storage.Response{}, invalidInput("Question does not belong to this session")
	}

	timeTaken := 0
	if in.TimeTaken != nil {
		timeTaken = *in.TimeTaken
	} else {
		timeTaken = s.elapsedSeconds(sess.ID, q)
	}

	return s.submitLocked(sess, q, storage.Response{
		Answer:    in.Answer,
		TimeTaken: timeTaken,
		Metadata:  in.Metadata,
	})
}

// submitLocked upserts the response and moves the session forward. The
// caller holds s.mu and has validated the session and question.
func (s *Service) submitLocked(sess storage.Session, q storage.Question, r storage.Response) (storage.Response, error) {
	r.SessionID = sess.ID
	r.QuestionID = q.ID
	saved, created, err := s.store.UpsertResponse(r)
	if err != nil {
		return storage.Response{}, fmt.Errorf("saving response: %w", err)
	}
	if err := s.store.DeleteDraft(sess.ID, q.ID); err != nil {
		s.logger.Warn("deleting draft failed", "session_id", sess.ID, "question_id", q.ID, "error", err)
	}

	responses, err := s.store.ListResponses(sess.ID, false)
	if err != nil {
		return storage.Response{}, err
	}
	answered := make(map[string]bool, len(responses))
	for _, resp := range responses {
		answered[resp.QuestionID] = true
	}

	m := s.timers.Session(sess.ID)
	m.Stop(q.ID)

	if created && len(answered) >= len(sess.QuestionIDs) {
		now := time.Now().UTC()
		sess.Status = storage.StatusCompleted
		sess.CompletedAt = &now
		s.finishTimers(sess.ID)
	} else if next, ok := nextUnanswered(sess, q.ID, answered); ok {
		sess.CurrentQuestion = next
		if err := s.switchTo(sess, next); err != nil {
			s.logger.Warn("starting next countdown failed", "session_id", sess.ID, "error", err)
		}
	}

	if _, err := s.store.UpdateSession(sess); err != nil {
		return storage.Response{}, fmt.Errorf("updating session: %w", err)
	}
	if !created {
		// The resubmission dropped the previous evaluation.
		if err := s.rescoreLocked(sess.ID); err != nil {
			return storage.Response{}, err
		}
	}
	if sess.Status == storage.StatusInProgress {
		s.persistSession(sess.ID)
	}

	if s.cfg.AutoEvaluate {
		payload := map[string]string{"session_id": sess.ID, "question_id": q.ID}
		if err := s.enqueue(storage.JobEvaluateResponse, payload); err != nil {
			s.logger.Error("enqueueing evaluation failed", "session_id", sess.ID, "question_id", q.ID, "error", err)
		}
	}

	s.logger.Info("answer submitted",
		"session_id", sess.ID, "question_id", q.ID, "auto_submitted", saved.AutoSubmitted, "created", created)
	return saved, nil
}

// nextUnanswered returns the position of the first unanswered question after
// questionID, wrapping around to the start of the session.
func nextUnanswered(sess storage.Session, questionID string, answered map[string]bool) (int, bool) {
	start := questionIndex(sess, questionID)
	n := len(sess.QuestionIDs)
	for i := 1; i <= n; i++ {
		pos := (start + i) % n
		if !answered[sess.QuestionIDs[pos]] {
			return pos, true
		}
	}
	return 0, false
}

// onExpire is the countdown callback. It runs without any service lock held.
func (s *Service) onExpire(sessionID, questionID string) {
	if err := s.autoSubmit(sessionID, questionID); err != nil {
		s.logger.Warn("auto-submit failed", "session_id", sessionID, "question_id", questionID, "error", err)
	}
}

// autoSubmit submits the saved draft, or an empty answer, for a question whose
// time ran out. Answered questions and sessions that are no longer in
// progress are skipped.
func (s *Service) autoSubmit(sessionID, questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.loadSession(sessionID)
	if err != nil {
		return err
	}
	if sess.Status != storage.StatusInProgress {
		return nil
	}
	if _, err := s.store.GetResponse(sessionID, questionID); err == nil {
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	q, err := s.loadQuestion(questionID)
	if err != nil {
		return err
	}

	answer := emptyAnswer
	if d, err := s.store.GetDraft(sessionID, questionID); err == nil && isObject(d.Answer) {
		answer = d.Answer
	}

	s.logger.Info("time limit reached, submitting answer", "session_id", sessionID, "question_id", questionID)
	_, err = s.submitLocked(sess, q, storage.Response{
		Answer:        answer,
		TimeTaken:     int(questionLimit(q) / time.Second),
		AutoSubmitted: true,
	})
	return err
}

// EvaluateAnswer scores the stored response to questionID and updates the
// session score.
func (s *Service) EvaluateAnswer(ctx context.Context, actor storage.User, sessionID, questionID string) (evaluator.Result, error) {
	sess, err := s.loadSession(sessionID)
	if err != nil {
		return evaluator.Result{}, err
	}
	if !isParticipant(actor, sess) {
		return evaluator.Result{}, forbidden("Not authorized to evaluate this interview session")
	}
	return s.evaluate(ctx, sess, questionID)
}

// EvaluateResponse is EvaluateAnswer without an acting user, used by the
// background worker.
func (s *Service) EvaluateResponse(ctx context.Context, sessionID, questionID string) (evaluator.Result, error) {
	sess, err := s.loadSession(sessionID)
	if err != nil {
		return evaluator.Result{}, err
	}
	return s.evaluate(ctx, sess, questionID)
}

func (s *Service) evaluate(ctx context.Context, sess storage.Session, questionID string) (evaluator.Result, error) {
	resp, err := s.loadResponse(sess.ID, questionID)
	if err != nil {
		return evaluator.Result{}, err
	}
	q, err := s.loadQuestion(questionID)
	if err != nil {
		return evaluator.Result{}, err
	}

	evalCtx := map[string]any{
		"session_id":     sess.ID,
		"candidate_id":   sess.CandidateID,
		"interviewer_id": sess.InterviewerID,
		"question_type":  q.Type,
		"difficulty":     q.Difficulty,
		"category":       q.Category,
	}
	res := s.eval.Evaluate(ctx, q, resp.Answer, evalCtx)

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadResponse(sess.ID, questionID)
	if err != nil {
		return evaluator.Result{}, err
	}
	if !current.UpdatedAt.Equal(resp.UpdatedAt) {
		return evaluator.Result{}, invalidState("Response changed during evaluation")
	}

	feedback, err := json.Marshal(map[string]string{"detail": res.Feedback, "reasoning": res.Reasoning})
	if err != nil {
		return evaluator.Result{}, err
	}
	evaluation, err := json.Marshal(res)
	if err != nil {
		return evaluator.Result{}, err
	}
	score, correct := res.Score, res.IsCorrect
	current.Score = &score
	current.IsCorrect = &correct
	current.Feedback = feedback
	current.Evaluation = evaluation
	current.EvaluatedAt = nil
	if _, err := s.store.SaveEvaluation(current); err != nil {
		return evaluator.Result{}, fmt.Errorf("saving evaluation: %w", err)
	}

	if err := s.rescoreLocked(sess.ID); err != nil {
		return evaluator.Result{}, err
	}
	s.logger.Info("answer evaluated",
		"session_id", sess.ID, "question_id", questionID, "score", res.Score, "mock", res.IsMock())
	return res, nil
}

// rescoreLocked sets the session score to the mean of evaluated responses and
// completes an in-progress session once every question is evaluated.
func (s *Service) rescoreLocked(sessionID string) error {
	sess, err := s.loadSession(sessionID)
	if err != nil {
		return err
	}
	evaluated, err := s.store.ListResponses(sessionID, true)
	if err != nil {
		return err
	}
	sess.Score = nil
	if len(evaluated) > 0 {
		var total float64
		for _, r := range evaluated {
			if r.Score != nil {
				total += *r.Score
			}
		}
		mean := total / float64(len(evaluated))
		sess.Score = &mean
	}

	if len(evaluated) > 0 && len(evaluated) >= len(sess.QuestionIDs) && sess.Status == storage.StatusInProgress {
		now := time.Now().UTC()
		sess.Status = storage.StatusCompleted
		sess.CompletedAt = &now
		s.finishTimers(sess.ID)
	}
	if _, err := s.store.UpdateSession(sess); err != nil {
		return fmt.Errorf("updating session score: %w", err)
	}
	return nil
}

// FollowUp proposes a follow-up question to the stored answer.
func (s *Service) FollowUp(ctx context.Context, actor storage.User, sessionID, questionID string) (evaluator.FollowUpQuestion, error) {
	sess, err := s.loadSession(sessionID)
	if err != nil {
		return evaluator.FollowUpQuestion{}, err
	}
	if !isParticipant(actor, sess) {
		return evaluator.FollowUpQuestion{}, forbidden("Not authorized to access this interview session")
	}
	resp, err := s.loadResponse(sess.ID, questionID)
	if err != nil {
		return evaluator.FollowUpQuestion{}, err
	}
	q, err := s.loadQuestion(questionID)
	if err != nil {
		return evaluator.FollowUpQuestion{}, err
	}
	evalCtx := map[string]any{"session_id": sess.ID, "category": q.Category}
	return s.eval.FollowUp(ctx, q, resp.Answer, evalCtx), nil
}

// QuickScore grades the stored answer by word count without calling a model.
func (s *Service) QuickScore(ctx context.Context, actor storage.User, sessionID, questionID string) (evaluator.HeuristicResult, error) {
	sess, err := s.loadSession(sessionID)
	if err != nil {
		return evaluator.HeuristicResult{}, err
	}
	if !isParticipant(actor, sess) {
		return evaluator.HeuristicResult{}, forbidden("Not authorized to access this interview session")
	}
	resp, err := s.loadResponse(sess.ID, questionID)
	if err != nil {
		return evaluator.HeuristicResult{}, err
	}
	return evaluator.Heuristic(questionID, evaluator.AnswerText(resp.Answer)), nil
}

func (s *Service) loadResponse(sessionID, questionID string) (storage.Response, error) {
	resp, err := s.store.GetResponse(sessionID, questionID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Response{}, notFound("Response not found")
	}
	if err != nil {
		return storage.Response{}, fmt.Errorf("loading response: %w", err)
	}
	return resp, nil
}

// CheckUpload verifies that actor may upload a file as the answer to an
// assignment question of the session. The file itself is submitted later
// through SubmitAnswer.
func (s *Service) CheckUpload(ctx context.Context, actor storage.User, sessionID, questionID string) error {
	sess, err := s.loadSession(sessionID)
	if err != nil {
		return err
	}
	if !actor.IsSuperuser && actor.ID != sess.CandidateID {
		return forbidden("Only the candidate can submit answers")
	}
	if sess.Status != storage.StatusInProgress {
		return invalidState("Cannot submit answer to a session that is %s", sess.Status)
	}
	q, err := s.loadQuestion(questionID)
	if err != nil {
		return err
	}
	if questionIndex(sess, q.ID) < 0 {
		return invalidInput("Question does not belong to this session")
	}
	if q.Type != storage.TypeAssignment {
		return invalidInput("Uploads are only accepted for assignment questions")
	}
	return nil
}
