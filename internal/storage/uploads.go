package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

func (s *Store) SaveUpload(u Upload) (Upload, error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO uploads (id, session_id, question_id, file_name, path, content_type, size, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.SessionID, u.QuestionID, u.FileName, u.Path, u.ContentType, u.Size, u.Text, formatTime(u.CreatedAt),
	)
	if err != nil {
		return Upload{}, err
	}
	return u, nil
}

func (s *Store) GetUpload(id string) (Upload, error) {
	var u Upload
	var createdAt string
	err := s.db.QueryRow(`SELECT id, session_id, question_id, file_name, path, content_type, size, text, created_at
		FROM uploads WHERE id = ?`, id,
	).Scan(&u.ID, &u.SessionID, &u.QuestionID, &u.FileName, &u.Path, &u.ContentType, &u.Size, &u.Text, &createdAt)
	if err == sql.ErrNoRows {
		return Upload{}, ErrNotFound
	}
	if err != nil {
		return Upload{}, err
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return Upload{}, err
	}
	return u, nil
}

// DeleteUpload removes the upload record. Deleting a missing id is not an error.
func (s *Store) DeleteUpload(id string) error {
	_, err := s.db.Exec(`DELETE FROM uploads WHERE id = ?`, id)
	return err
}
