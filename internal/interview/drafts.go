package interview

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/kalambet/intervue/internal/storage"
)

// SaveDraft keeps an unsubmitted answer. It is what gets submitted if the
// question's time runs out.
func (s *Service) SaveDraft(ctx context.Context, actor storage.User, sessionID, questionID string, answer json.RawMessage) (storage.Draft, error) {
	if !isObject(answer) {
		return storage.Draft{}, invalidInput("answer must be a JSON object")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.loadSession(sessionID)
	if err != nil {
		return storage.Draft{}, err
	}
	if !actor.IsSuperuser && actor.ID != sess.CandidateID {
		return storage.Draft{}, forbidden("Only the candidate can save drafts")
	}
	if sess.Status != storage.StatusInProgress {
		return storage.Draft{}, invalidState("Cannot save a draft in a session that is %s", sess.Status)
	}
	if questionIndex(sess, questionID) < 0 {
		return storage.Draft{}, invalidInput("Question does not belong to this session")
	}

	return s.store.SaveDraft(storage.Draft{SessionID: sessionID, QuestionID: questionID, Answer: answer})
}

func (s *Service) GetDraft(ctx context.Context, actor storage.User, sessionID, questionID string) (storage.Draft, error) {
	sess, err := s.loadSession(sessionID)
	if err != nil {
		return storage.Draft{}, err
	}
	if !isParticipant(actor, sess) {
		return storage.Draft{}, forbidden("Not authorized to access this interview session")
	}
	d, err := s.store.GetDraft(sessionID, questionID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Draft{}, notFound("Draft not found")
	}
	return d, err
}
