package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const sessionColumns = `id, title, description, status, candidate_id, interviewer_id, scheduled_at,
	time_limit, started_at, completed_at, score, feedback, metadata, current_question, created_by,
	created_at, updated_at`

// CreateSession inserts a session and its ordered question list in one transaction.
func (s *Store) CreateSession(sess Session) (Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.Status == "" {
		sess.Status = StatusDraft
	}
	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.UpdatedAt = now

	tx, err := s.db.Begin()
	if err != nil {
		return Session{}, fmt.Errorf("beginning session transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO interview_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Title, sess.Description, sess.Status, sess.CandidateID, sess.InterviewerID,
		formatTimePtr(sess.ScheduledAt), sess.TimeLimit, formatTimePtr(sess.StartedAt),
		formatTimePtr(sess.CompletedAt), nullFloat(sess.Score), jsonText(sess.Feedback),
		objectText(sess.Metadata), sess.CurrentQuestion, sess.CreatedBy,
		formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt),
	)
	if err != nil {
		return Session{}, fmt.Errorf("inserting session: %w", err)
	}

	for i, qid := range sess.QuestionIDs {
		if _, err := tx.Exec(`INSERT INTO session_questions (session_id, question_id, position) VALUES (?, ?, ?)`,
			sess.ID, qid, i); err != nil {
			return Session{}, fmt.Errorf("linking question %s: %w", qid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Session{}, fmt.Errorf("committing session: %w", err)
	}
	return sess, nil
}

func (s *Store) GetSession(id string) (Session, error) {
	sess, err := scanSession(s.db.QueryRow(`SELECT `+sessionColumns+` FROM interview_sessions WHERE id = ?`, id))
	if err != nil {
		return Session{}, err
	}
	if sess.QuestionIDs, err = s.sessionQuestionIDs(id); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// UpdateSession writes every mutable field of sess. The question list is not changed.
func (s *Store) UpdateSession(sess Session) (Session, error) {
	sess.UpdatedAt = time.Now().UTC()
	res, err := s.db.Exec(`UPDATE interview_sessions SET
		title = ?, description = ?, status = ?, interviewer_id = ?, scheduled_at = ?, time_limit = ?,
		started_at = ?, completed_at = ?, score = ?, feedback = ?, metadata = ?, current_question = ?,
		updated_at = ?
		WHERE id = ?`,
		sess.Title, sess.Description, sess.Status, sess.InterviewerID, formatTimePtr(sess.ScheduledAt),
		sess.TimeLimit, formatTimePtr(sess.StartedAt), formatTimePtr(sess.CompletedAt),
		nullFloat(sess.Score), jsonText(sess.Feedback), objectText(sess.Metadata), sess.CurrentQuestion,
		formatTime(sess.UpdatedAt), sess.ID,
	)
	if err != nil {
		return Session{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Session{}, err
	}
	if n == 0 {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// ListSessions returns sessions matching f, newest first.
func (s *Store) ListSessions(f SessionFilter) ([]Session, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.CandidateID != "" {
		where = append(where, "candidate_id = ?")
		args = append(args, f.CandidateID)
	}
	if f.InterviewerID != "" {
		where = append(where, "interviewer_id = ?")
		args = append(args, f.InterviewerID)
	}

	query := `SELECT ` + sessionColumns + ` FROM interview_sessions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?"
	args = append(args, limit, f.Skip)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Question lists are loaded after the cursor is released; the store holds a single connection.
	for i := range out {
		if out[i].QuestionIDs, err = s.sessionQuestionIDs(out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) sessionQuestionIDs(sessionID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT question_id FROM session_questions WHERE session_id = ? ORDER BY position ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanSession(row rowScanner) (Session, error) {
	var sess Session
	var scheduledAt, startedAt, completedAt, feedback, metadata, createdAt, updatedAt string
	var score sql.NullFloat64
	err := row.Scan(&sess.ID, &sess.Title, &sess.Description, &sess.Status, &sess.CandidateID,
		&sess.InterviewerID, &scheduledAt, &sess.TimeLimit, &startedAt, &completedAt, &score,
		&feedback, &metadata, &sess.CurrentQuestion, &sess.CreatedBy, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	if score.Valid {
		v := score.Float64
		sess.Score = &v
	}
	sess.Feedback = rawJSON(feedback)
	sess.Metadata = rawJSON(metadata)
	if sess.ScheduledAt, err = parseTimePtr(scheduledAt); err != nil {
		return Session{}, err
	}
	if sess.StartedAt, err = parseTimePtr(startedAt); err != nil {
		return Session{}, err
	}
	if sess.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return Session{}, err
	}
	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return Session{}, err
	}
	if sess.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
