package storage

import (
	"database/sql"
	"time"
)

// --- Drafts ---

func (s *Store) SaveDraft(d Draft) (Draft, error) {
	d.UpdatedAt = time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO answer_drafts (session_id, question_id, answer, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, question_id) DO UPDATE SET answer = excluded.answer, updated_at = excluded.updated_at`,
		d.SessionID, d.QuestionID, jsonText(d.Answer), formatTime(d.UpdatedAt),
	)
	if err != nil {
		return Draft{}, err
	}
	return d, nil
}

func (s *Store) GetDraft(sessionID, questionID string) (Draft, error) {
	d := Draft{SessionID: sessionID, QuestionID: questionID}
	var answer, updatedAt string
	err := s.db.QueryRow(`SELECT answer, updated_at FROM answer_drafts WHERE session_id = ? AND question_id = ?`,
		sessionID, questionID).Scan(&answer, &updatedAt)
	if err == sql.ErrNoRows {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, err
	}
	d.Answer = rawJSON(answer)
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// DeleteDraft removes a draft. Deleting a missing draft is not an error.
func (s *Store) DeleteDraft(sessionID, questionID string) error {
	_, err := s.db.Exec(`DELETE FROM answer_drafts WHERE session_id = ? AND question_id = ?`, sessionID, questionID)
	return err
}

// --- Timer states ---

// SaveTimerStates upserts countdown snapshots. A zero UpdatedAt is stored as now.
func (s *Store) SaveTimerStates(states []TimerState) error {
	if len(states) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	for _, ts := range states {
		updatedAt := ts.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = now
		}
		_, err := tx.Exec(`
			INSERT INTO timer_states (session_id, question_id, remaining_ms, state, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(session_id, question_id) DO UPDATE SET
				remaining_ms = excluded.remaining_ms, state = excluded.state, updated_at = excluded.updated_at`,
			ts.SessionID, ts.QuestionID, ts.RemainingMs, ts.State, formatTime(updatedAt),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ListTimerStates(sessionID string) ([]TimerState, error) {
	rows, err := s.db.Query(`SELECT session_id, question_id, remaining_ms, state, updated_at
		FROM timer_states WHERE session_id = ? ORDER BY question_id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TimerState
	for rows.Next() {
		var ts TimerState
		var updatedAt string
		if err := rows.Scan(&ts.SessionID, &ts.QuestionID, &ts.RemainingMs, &ts.State, &updatedAt); err != nil {
			return nil, err
		}
		if ts.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}
