package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const questionColumns = `id, category, difficulty, question_type, prompt, options, correct_answer,
	explanation, max_score, time_limit, metadata, vector_id, created_by, created_at, updated_at`

func (s *Store) CreateQuestion(q Question) (Question, error) {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = now
	if q.MaxScore == 0 {
		q.MaxScore = 100
	}
	_, err := s.db.Exec(`INSERT INTO questions (`+questionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.Category, q.Difficulty, q.Type, q.Prompt, jsonText(q.Options), jsonText(q.CorrectAnswer),
		q.Explanation, q.MaxScore, q.TimeLimit, objectText(q.Metadata), q.VectorID, q.CreatedBy,
		formatTime(q.CreatedAt), formatTime(q.UpdatedAt),
	)
	if err != nil {
		return Question{}, fmt.Errorf("inserting question: %w", err)
	}
	return q, nil
}

func (s *Store) GetQuestion(id string) (Question, error) {
	return scanQuestion(s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id))
}

// FindQuestionByPrompt looks up a question by its category and exact prompt.
func (s *Store) FindQuestionByPrompt(category, prompt string) (Question, error) {
	return scanQuestion(s.db.QueryRow(
		`SELECT `+questionColumns+` FROM questions WHERE category = ? AND prompt = ? LIMIT 1`,
		category, prompt,
	))
}

// ListQuestions returns questions matching f, oldest first. A zero Limit returns every match.
func (s *Store) ListQuestions(f QuestionFilter) ([]Question, error) {
	var where []string
	var args []any
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Difficulty != "" {
		where = append(where, "difficulty = ?")
		args = append(args, f.Difficulty)
	}
	if f.Type != "" {
		where = append(where, "question_type = ?")
		args = append(args, f.Type)
	}

	query := `SELECT ` + questionColumns + ` FROM questions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, f.Skip)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// GetQuestionsByIDs returns the questions in the order of ids. IDs with no
// matching row are reported in missing.
func (s *Store) GetQuestionsByIDs(ids []string) (found []Question, missing []string, err error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}
	placeholders := strings.Repeat(",?", len(ids)-1)
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.Query(`SELECT `+questionColumns+` FROM questions WHERE id IN (?`+placeholders+`)`, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	byID := make(map[string]Question, len(ids))
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, nil, err
		}
		byID[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	for _, id := range ids {
		q, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		found = append(found, q)
	}
	return found, missing, nil
}

func (s *Store) UpdateQuestionVectorID(id, vectorID string) error {
	res, err := s.db.Exec(`UPDATE questions SET vector_id = ?, updated_at = ? WHERE id = ?`,
		vectorID, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CountQuestions() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&n)
	return n, err
}

// QuestionStats aggregates the responses submitted for a question.
func (s *Store) QuestionStats(questionID string) (QuestionStats, error) {
	if _, err := s.GetQuestion(questionID); err != nil {
		return QuestionStats{}, err
	}
	st := QuestionStats{QuestionID: questionID}
	var avg sql.NullFloat64
	err := s.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN evaluated_at != '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_correct = 1 THEN 1 ELSE 0 END), 0),
			AVG(score)
		FROM interview_responses WHERE question_id = ?`, questionID,
	).Scan(&st.Submissions, &st.Evaluated, &st.Correct, &avg)
	if err != nil {
		return QuestionStats{}, fmt.Errorf("aggregating responses: %w", err)
	}
	if avg.Valid {
		v := avg.Float64
		st.AverageScore = &v
	}
	return st, nil
}

func scanQuestion(row rowScanner) (Question, error) {
	var q Question
	var options, correct, metadata, createdAt, updatedAt string
	err := row.Scan(&q.ID, &q.Category, &q.Difficulty, &q.Type, &q.Prompt, &options, &correct,
		&q.Explanation, &q.MaxScore, &q.TimeLimit, &metadata, &q.VectorID, &q.CreatedBy, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Question{}, ErrNotFound
	}
	if err != nil {
		return Question{}, err
	}
	q.Options = rawJSON(options)
	q.CorrectAnswer = rawJSON(correct)
	q.Metadata = rawJSON(metadata)
	if q.CreatedAt, err = parseTime(createdAt); err != nil {
		return Question{}, err
	}
	if q.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Question{}, err
	}
	return q, nil
}
