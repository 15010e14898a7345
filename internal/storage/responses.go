package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const responseColumns = `id, session_id, question_id, answer, is_correct, score, feedback, time_taken,
	evaluation, evaluated_at, auto_submitted, metadata, created_at, updated_at`

// UpsertResponse stores the answer for (SessionID, QuestionID). A resubmission
// replaces the answer and clears any previous evaluation. created reports
// whether a new row was inserted.
func (s *Store) UpsertResponse(r Response) (saved Response, created bool, err error) {
	existing, err := s.GetResponse(r.SessionID, r.QuestionID)
	switch {
	case errors.Is(err, ErrNotFound):
		created = true
	case err != nil:
		return Response{}, false, err
	}

	now := time.Now().UTC()
	if created {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		_, err = s.db.Exec(`INSERT INTO interview_responses (`+responseColumns+`)
			VALUES (?, ?, ?, ?, NULL, NULL, 'null', ?, 'null', '', ?, ?, ?, ?)`,
			r.ID, r.SessionID, r.QuestionID, jsonText(r.Answer), r.TimeTaken,
			boolInt(r.AutoSubmitted), objectText(r.Metadata), formatTime(now), formatTime(now),
		)
		if err != nil {
			return Response{}, false, fmt.Errorf("inserting response: %w", err)
		}
	} else {
		_, err = s.db.Exec(`UPDATE interview_responses SET
			answer = ?, time_taken = ?, auto_submitted = ?, metadata = ?,
			is_correct = NULL, score = NULL, feedback = 'null', evaluation = 'null', evaluated_at = '',
			updated_at = ?
			WHERE id = ?`,
			jsonText(r.Answer), r.TimeTaken, boolInt(r.AutoSubmitted), objectText(r.Metadata),
			formatTime(now), existing.ID,
		)
		if err != nil {
			return Response{}, false, fmt.Errorf("updating response: %w", err)
		}
	}

	saved, err = s.GetResponse(r.SessionID, r.QuestionID)
	if err != nil {
		return Response{}, false, err
	}
	return saved, created, nil
}

func (s *Store) GetResponse(sessionID, questionID string) (Response, error) {
	return scanResponse(s.db.QueryRow(
		`SELECT `+responseColumns+` FROM interview_responses WHERE session_id = ? AND question_id = ?`,
		sessionID, questionID,
	))
}

func (s *Store) GetResponseByID(id string) (Response, error) {
	return scanResponse(s.db.QueryRow(`SELECT `+responseColumns+` FROM interview_responses WHERE id = ?`, id))
}

// SaveEvaluation records the evaluation outcome on an existing response.
func (s *Store) SaveEvaluation(r Response) (Response, error) {
	evaluatedAt := r.EvaluatedAt
	if evaluatedAt == nil {
		now := time.Now().UTC()
		evaluatedAt = &now
	}
	var isCorrect sql.NullBool
	if r.IsCorrect != nil {
		isCorrect = sql.NullBool{Bool: *r.IsCorrect, Valid: true}
	}
	res, err := s.db.Exec(`UPDATE interview_responses SET
		is_correct = ?, score = ?, feedback = ?, evaluation = ?, evaluated_at = ?, updated_at = ?
		WHERE id = ?`,
		isCorrect, nullFloat(r.Score), jsonText(r.Feedback), jsonText(r.Evaluation),
		formatTimePtr(evaluatedAt), formatTime(time.Now()), r.ID,
	)
	if err != nil {
		return Response{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Response{}, err
	}
	if n == 0 {
		return Response{}, ErrNotFound
	}
	return s.GetResponseByID(r.ID)
}

// ListResponses returns the responses of a session in submission order.
func (s *Store) ListResponses(sessionID string, evaluatedOnly bool) ([]Response, error) {
	query := `SELECT ` + responseColumns + ` FROM interview_responses WHERE session_id = ?`
	if evaluatedOnly {
		query += ` AND evaluated_at != ''`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.Query(query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanResponse(row rowScanner) (Response, error) {
	var r Response
	var answer, feedback, evaluation, evaluatedAt, metadata, createdAt, updatedAt string
	var isCorrect sql.NullBool
	var score sql.NullFloat64
	var auto int
	err := row.Scan(&r.ID, &r.SessionID, &r.QuestionID, &answer, &isCorrect, &score, &feedback,
		&r.TimeTaken, &evaluation, &evaluatedAt, &auto, &metadata, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Response{}, ErrNotFound
	}
	if err != nil {
		return Response{}, err
	}
	r.Answer = rawJSON(answer)
	r.Feedback = rawJSON(feedback)
	r.Evaluation = rawJSON(evaluation)
	r.Metadata = rawJSON(metadata)
	r.AutoSubmitted = auto != 0
	if isCorrect.Valid {
		v := isCorrect.Bool
		r.IsCorrect = &v
	}
	if score.Valid {
		v := score.Float64
		r.Score = &v
	}
	if r.EvaluatedAt, err = parseTimePtr(evaluatedAt); err != nil {
		return Response{}, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return Response{}, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Response{}, err
	}
	return r, nil
}
