package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/intervue/internal/storage"
)

const defaultListLimit = 100

// CreateSessionInput describes a new interview session.
type CreateSessionInput struct {
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	CandidateID   string          `json:"candidate_id"`
	InterviewerID string          `json:"interviewer_id,omitempty"`
	ScheduledAt   *time.Time      `json:"scheduled_at,omitempty"`
	TimeLimit     int             `json:"time_limit,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	QuestionIDs   []string        `json:"question_ids"`
}

// SessionPatch lists the fields UpdateSession may change. nil leaves a field as is.
type SessionPatch struct {
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Status      *string         `json:"status,omitempty"`
	ScheduledAt *time.Time      `json:"scheduled_at,omitempty"`
	TimeLimit   *int            `json:"time_limit,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

func validStatus(s string) bool {
	switch s {
	case storage.StatusDraft, storage.StatusInProgress, storage.StatusCompleted, storage.StatusCancelled:
		return true
	}
	return false
}

func (s *Service) CreateSession(ctx context.Context, actor storage.User, in CreateSessionInput) (storage.Session, error) {
	if in.Title == "" {
		return storage.Session{}, invalidInput("Title is required")
	}
	if in.CandidateID == "" {
		return storage.Session{}, invalidInput("candidate_id is required")
	}
	if in.TimeLimit < 0 {
		return storage.Session{}, invalidInput("time_limit must not be negative")
	}

	if _, err := s.store.GetUser(in.CandidateID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Session{}, notFound("Candidate not found")
		}
		return storage.Session{}, err
	}
	if in.InterviewerID != "" {
		if _, err := s.store.GetUser(in.InterviewerID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return storage.Session{}, notFound("Interviewer not found")
			}
			return storage.Session{}, err
		}
	}
	if len(in.QuestionIDs) > 0 {
		if hasDuplicate(in.QuestionIDs) {
			return storage.Session{}, notFound("One or more questions not found")
		}
		_, missing, err := s.store.GetQuestionsByIDs(in.QuestionIDs)
		if err != nil {
			return storage.Session{}, err
		}
		if len(missing) > 0 {
			return storage.Session{}, notFound("One or more questions not found")
		}
	}

	sess, err := s.store.CreateSession(storage.Session{
		Title:         in.Title,
		Description:   in.Description,
		Status:        storage.StatusDraft,
		CandidateID:   in.CandidateID,
		InterviewerID: in.InterviewerID,
		ScheduledAt:   in.ScheduledAt,
		TimeLimit:     in.TimeLimit,
		Metadata:      in.Metadata,
		QuestionIDs:   in.QuestionIDs,
		CreatedBy:     actor.ID,
	})
	if err != nil {
		return storage.Session{}, fmt.Errorf("creating session: %w", err)
	}
	s.logger.Info("session created", "session_id", sess.ID, "questions", len(sess.QuestionIDs))
	return sess, nil
}

// GetSession returns the session with its questions, responses and participants.
func (s *Service) GetSession(ctx context.Context, actor storage.User, id string) (SessionDetails, error) {
	sess, err := s.loadSession(id)
	if err != nil {
		return SessionDetails{}, err
	}
	if !isParticipant(actor, sess) {
		return SessionDetails{}, forbidden("Not authorized to access this interview session")
	}

	questions, _, err := s.store.GetQuestionsByIDs(sess.QuestionIDs)
	if err != nil {
		return SessionDetails{}, err
	}
	responses, err := s.store.ListResponses(sess.ID, false)
	if err != nil {
		return SessionDetails{}, err
	}
	candidate, err := s.store.GetUser(sess.CandidateID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return SessionDetails{}, err
	}

	details := SessionDetails{
		Session:   sess,
		Questions: questions,
		Responses: responses,
		Candidate: candidate,
	}
	if sess.InterviewerID != "" {
		interviewer, err := s.store.GetUser(sess.InterviewerID)
		switch {
		case err == nil:
			details.Interviewer = &interviewer
		case !errors.Is(err, storage.ErrNotFound):
			return SessionDetails{}, err
		}
	}
	return details, nil
}

func (s *Service) UpdateSession(ctx context.Context, actor storage.User, id string, patch SessionPatch) (storage.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.loadSession(id)
	if err != nil {
		return storage.Session{}, err
	}
	if !isManager(actor, sess) {
		return storage.Session{}, forbidden("Not authorized to update this interview session")
	}

	if patch.Title != nil {
		if *patch.Title == "" {
			return storage.Session{}, invalidInput("Title must not be empty")
		}
		sess.Title = *patch.Title
	}
	if patch.Description != nil {
		sess.Description = *patch.Description
	}
	if patch.Status != nil {
		if !validStatus(*patch.Status) {
			return storage.Session{}, invalidInput("Invalid status %q", *patch.Status)
		}
		sess.Status = *patch.Status
	}
	if patch.ScheduledAt != nil {
		sess.ScheduledAt = patch.ScheduledAt
	}
	if patch.TimeLimit != nil {
		if *patch.TimeLimit < 0 {
			return storage.Session{}, invalidInput("time_limit must not be negative")
		}
		sess.TimeLimit = *patch.TimeLimit
	}
	if len(patch.Metadata) > 0 {
		sess.Metadata = patch.Metadata
	}

	updated, err := s.store.UpdateSession(sess)
	if err != nil {
		return storage.Session{}, fmt.Errorf("updating session: %w", err)
	}
	if updated.Status == storage.StatusCompleted || updated.Status == storage.StatusCancelled {
		s.finishTimers(updated.ID)
	}
	return updated, nil
}

// ListSessions returns summaries of the sessions matching f. Users who are
// not superusers may only filter on themselves and see their own candidate
// sessions when they give no participant filter.
func (s *Service) ListSessions(ctx context.Context, actor storage.User, f storage.SessionFilter) ([]SessionSummary, error) {
	if !actor.IsSuperuser {
		if (f.CandidateID != "" && f.CandidateID != actor.ID) || (f.InterviewerID != "" && f.InterviewerID != actor.ID) {
			return nil, forbidden("Not authorized to view these interview sessions")
		}
		if f.CandidateID == "" && f.InterviewerID == "" {
			f.CandidateID = actor.ID
		}
	}
	if f.Skip < 0 {
		f.Skip = 0
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Status != "" && !validStatus(f.Status) {
		return nil, invalidInput("Invalid status %q", f.Status)
	}

	sessions, err := s.store.ListSessions(f)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	out := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		responses, err := s.store.ListResponses(sess.ID, false)
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(sess, responses))
	}
	return out, nil
}

func summarize(sess storage.Session, responses []storage.Response) SessionSummary {
	sum := SessionSummary{
		SessionID:         sess.ID,
		Title:             sess.Title,
		Status:            sess.Status,
		TotalQuestions:    len(sess.QuestionIDs),
		QuestionsAnswered: len(responses),
		StartedAt:         sess.StartedAt,
		CompletedAt:       sess.CompletedAt,
	}
	var total float64
	var scored int
	for _, r := range responses {
		sum.TimeSpent += r.TimeTaken
		if r.Score != nil {
			total += *r.Score
			scored++
		}
	}
	if scored > 0 {
		avg := total / float64(scored)
		sum.AverageScore = &avg
	}
	return sum
}

// StartSession moves a draft session to in_progress and starts the first
// question's countdown.
func (s *Service) StartSession(ctx context.Context, actor storage.User, id string) (storage.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.loadSession(id)
	if err != nil {
		return storage.Session{}, err
	}
	if !isParticipant(actor, sess) {
		return storage.Session{}, forbidden("Not authorized to start this interview session")
	}
	if sess.Status != storage.StatusDraft {
		return storage.Session{}, invalidState("Interview session is already %s", sess.Status)
	}
	if len(sess.QuestionIDs) == 0 {
		return storage.Session{}, invalidState("Cannot start an interview session with no questions")
	}

	first, err := s.loadQuestion(sess.QuestionIDs[0])
	if err != nil {
		return storage.Session{}, err
	}

	now := time.Now().UTC()
	sess.Status = storage.StatusInProgress
	sess.StartedAt = &now
	sess.CurrentQuestion = 0
	updated, err := s.store.UpdateSession(sess)
	if err != nil {
		return storage.Session{}, fmt.Errorf("starting session: %w", err)
	}

	if err := s.timers.Session(sess.ID).Start(first.ID, questionLimit(first)); err != nil {
		return storage.Session{}, err
	}
	s.persistSession(sess.ID)
	s.logger.Info("session started", "session_id", sess.ID)
	return updated, nil
}

// CancelSession ends a draft or in-progress session without completing it.
func (s *Service) CancelSession(ctx context.Context, actor storage.User, id string) (storage.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.loadSession(id)
	if err != nil {
		return storage.Session{}, err
	}
	if !isManager(actor, sess) {
		return storage.Session{}, forbidden("Not authorized to cancel this interview session")
	}
	if sess.Status != storage.StatusDraft && sess.Status != storage.StatusInProgress {
		return storage.Session{}, invalidState("Cannot cancel a session that is %s", sess.Status)
	}

	sess.Status = storage.StatusCancelled
	updated, err := s.store.UpdateSession(sess)
	if err != nil {
		return storage.Session{}, fmt.Errorf("cancelling session: %w", err)
	}
	s.finishTimers(sess.ID)
	return updated, nil
}

// hasDuplicate reports whether ids names the same question twice.
func hasDuplicate(ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
