package interview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/intervue/internal/storage"
	"github.com/kalambet/intervue/internal/timer"
)

// QuestionTimer is the countdown of one question as shown to clients.
type QuestionTimer struct {
	QuestionID       string      `json:"question_id"`
	LimitSeconds     int         `json:"limit_seconds"`
	RemainingSeconds float64     `json:"remaining_seconds"`
	State            timer.State `json:"state"`
}

// TimerView lists the countdowns of a session.
type TimerView struct {
	SessionID         string          `json:"session_id"`
	CurrentQuestionID string          `json:"current_question_id,omitempty"`
	Questions         []QuestionTimer `json:"questions"`
}

func questionLimit(q storage.Question) time.Duration {
	if q.TimeLimit <= 0 {
		return timer.DefaultLimit
	}
	return time.Duration(q.TimeLimit) * time.Second
}

// elapsedSeconds is the time spent on q according to its countdown.
func (s *Service) elapsedSeconds(sessionID string, q storage.Question) int {
	m, ok := s.timers.Lookup(sessionID)
	if !ok {
		return 0
	}
	remaining, _, ok := m.Remaining(q.ID)
	if !ok {
		return 0
	}
	elapsed := questionLimit(q) - remaining
	return max(int(elapsed.Round(time.Second)/time.Second), 0)
}

// switchTo makes the question at pos current. An expired target is still
// made current.
func (s *Service) switchTo(sess storage.Session, pos int) error {
	q, err := s.loadQuestion(sess.QuestionIDs[pos])
	if err != nil {
		return err
	}
	err = s.timers.Session(sess.ID).Switch(q.ID, questionLimit(q))
	if errors.Is(err, timer.ErrExpired) {
		return nil
	}
	return err
}

// finishTimers stops the countdowns of a session that has ended and records
// their final state.
func (s *Service) finishTimers(sessionID string) {
	m, ok := s.timers.Lookup(sessionID)
	if !ok {
		return
	}
	m.StopAll()
	s.persistSession(sessionID)
	s.timers.Drop(sessionID)
}

func (s *Service) persistSession(sessionID string) {
	m, ok := s.timers.Lookup(sessionID)
	if !ok {
		return
	}
	if err := s.store.SaveTimerStates(s.toTimerStates(sessionID, m.Snapshot())); err != nil {
		s.logger.Warn("persisting timers failed", "session_id", sessionID, "error", err)
	}
}

func (s *Service) toTimerStates(sessionID string, snaps []timer.Snapshot) []storage.TimerState {
	now := s.clock.Now().UTC()
	out := make([]storage.TimerState, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, storage.TimerState{
			SessionID:   sessionID,
			QuestionID:  snap.QuestionID,
			RemainingMs: snap.Remaining.Milliseconds(),
			State:       string(snap.State),
			UpdatedAt:   now,
		})
	}
	return out
}

// PersistTimers writes the countdowns of every active session to the store.
func (s *Service) PersistTimers() error {
	for sessionID, snaps := range s.timers.Snapshot() {
		if err := s.store.SaveTimerStates(s.toTimerStates(sessionID, snaps)); err != nil {
			return fmt.Errorf("persisting timers of %s: %w", sessionID, err)
		}
	}
	return nil
}

// RestoreTimers reloads the countdowns of in-progress sessions. Time that
// passed while the service was down counts against running countdowns, so a
// question can expire, and be auto-submitted, right after the restore.
func (s *Service) RestoreTimers(ctx context.Context) error {
	sessions, err := s.store.ListSessions(storage.SessionFilter{Status: storage.StatusInProgress})
	if err != nil {
		return fmt.Errorf("listing in-progress sessions: %w", err)
	}

	restored := 0
	for _, sess := range sessions {
		if len(sess.QuestionIDs) == 0 {
			continue
		}
		states, err := s.store.ListTimerStates(sess.ID)
		if err != nil {
			return fmt.Errorf("loading timers of %s: %w", sess.ID, err)
		}
		questions, _, err := s.store.GetQuestionsByIDs(sess.QuestionIDs)
		if err != nil {
			return err
		}
		limits := make(map[string]time.Duration, len(questions))
		for _, q := range questions {
			limits[q.ID] = questionLimit(q)
		}

		current := ""
		if sess.CurrentQuestion >= 0 && sess.CurrentQuestion < len(sess.QuestionIDs) {
			current = sess.QuestionIDs[sess.CurrentQuestion]
		}

		if len(states) == 0 {
			if current != "" {
				if err := s.timers.Session(sess.ID).Start(current, limits[current]); err != nil {
					s.logger.Warn("starting countdown failed", "session_id", sess.ID, "error", err)
				}
			}
			continue
		}

		snaps := make([]timer.Snapshot, 0, len(states))
		var savedAt time.Time
		for _, ts := range states {
			state, err := timer.ParseState(ts.State)
			if err != nil {
				s.logger.Warn("skipping timer with unknown state",
					"session_id", sess.ID, "question_id", ts.QuestionID, "state", ts.State)
				continue
			}
			limit, ok := limits[ts.QuestionID]
			if !ok {
				continue
			}
			snaps = append(snaps, timer.Snapshot{
				QuestionID: ts.QuestionID,
				Limit:      limit,
				Remaining:  time.Duration(ts.RemainingMs) * time.Millisecond,
				State:      state,
				Current:    ts.QuestionID == current,
			})
			if ts.UpdatedAt.After(savedAt) {
				savedAt = ts.UpdatedAt
			}
		}
		s.timers.Session(sess.ID).Restore(snaps, savedAt)
		restored++
	}
	s.logger.Info("timers restored", "sessions", restored)
	return nil
}

// TimerStatus returns the countdowns of a session.
func (s *Service) TimerStatus(ctx context.Context, actor storage.User, sessionID string) (TimerView, error) {
	sess, err := s.loadSession(sessionID)
	if err != nil {
		return TimerView{}, err
	}
	if !isParticipant(actor, sess) {
		return TimerView{}, forbidden("Not authorized to access this interview session")
	}
	return s.timerView(sess.ID), nil
}

func (s *Service) timerView(sessionID string) TimerView {
	view := TimerView{SessionID: sessionID, Questions: []QuestionTimer{}}
	m, ok := s.timers.Lookup(sessionID)
	if !ok {
		return view
	}
	view.CurrentQuestionID = m.Current()
	for _, snap := range m.Snapshot() {
		view.Questions = append(view.Questions, QuestionTimer{
			QuestionID:       snap.QuestionID,
			LimitSeconds:     int(snap.Limit / time.Second),
			RemainingSeconds: snap.Remaining.Seconds(),
			State:            snap.State,
		})
	}
	return view
}

// runningSession loads an in-progress session the actor may drive.
func (s *Service) runningSession(actor storage.User, sessionID string) (storage.Session, error) {
	sess, err := s.loadSession(sessionID)
	if err != nil {
		return storage.Session{}, err
	}
	if !actor.IsSuperuser && actor.ID != sess.CandidateID {
		return storage.Session{}, forbidden("Only the candidate can control the timer")
	}
	if sess.Status != storage.StatusInProgress {
		return storage.Session{}, invalidState("Interview session is %s", sess.Status)
	}
	return sess, nil
}

func timerError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, timer.ErrNoCurrent):
		return invalidState("No question is active")
	case errors.Is(err, timer.ErrExpired):
		return invalidState("Time limit reached for this question")
	}
	return invalidState("%s", err)
}

// PauseTimer freezes the current question's countdown.
func (s *Service) PauseTimer(ctx context.Context, actor storage.User, sessionID string) (TimerView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.runningSession(actor, sessionID)
	if err != nil {
		return TimerView{}, err
	}
	if err := timerError(s.timers.Session(sess.ID).Pause()); err != nil {
		return TimerView{}, err
	}
	s.persistSession(sess.ID)
	return s.timerView(sess.ID), nil
}

// ResumeTimer continues the current question's countdown.
func (s *Service) ResumeTimer(ctx context.Context, actor storage.User, sessionID string) (TimerView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.runningSession(actor, sessionID)
	if err != nil {
		return TimerView{}, err
	}
	if err := timerError(s.timers.Session(sess.ID).Resume()); err != nil {
		return TimerView{}, err
	}
	s.persistSession(sess.ID)
	return s.timerView(sess.ID), nil
}

// SwitchQuestion moves the candidate to another question of the session. The
// countdown of the question being left keeps its remaining time.
func (s *Service) SwitchQuestion(ctx context.Context, actor storage.User, sessionID, questionID string) (TimerView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.runningSession(actor, sessionID)
	if err != nil {
		return TimerView{}, err
	}
	pos := questionIndex(sess, questionID)
	if pos < 0 {
		return TimerView{}, invalidInput("Question does not belong to this session")
	}
	if err := s.switchTo(sess, pos); err != nil {
		return TimerView{}, err
	}
	sess.CurrentQuestion = pos
	if _, err := s.store.UpdateSession(sess); err != nil {
		return TimerView{}, fmt.Errorf("updating current question: %w", err)
	}
	s.persistSession(sess.ID)
	return s.timerView(sess.ID), nil
}
