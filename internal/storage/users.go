package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicate is returned when a unique constraint rejects an insert.
var ErrDuplicate = errors.New("already exists")

const userColumns = `id, email, name, is_superuser, created_at`

func (s *Store) CreateUser(u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?)`,
		u.ID, strings.ToLower(u.Email), u.Name, boolInt(u.IsSuperuser), formatTime(u.CreatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return User{}, fmt.Errorf("user %s: %w", u.Email, ErrDuplicate)
		}
		return User{}, err
	}
	u.Email = strings.ToLower(u.Email)
	return u, nil
}

func (s *Store) GetUser(id string) (User, error) {
	return scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (s *Store) GetUserByEmail(email string) (User, error) {
	return scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email)))
}

// EnsureUser returns the user with the given email, creating it when absent.
func (s *Store) EnsureUser(email, name string, superuser bool) (User, error) {
	u, err := s.GetUserByEmail(email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}
	return s.CreateUser(User{Email: email, Name: name, IsSuperuser: superuser})
}

func scanUser(row rowScanner) (User, error) {
	var u User
	var superuser int
	var createdAt string
	err := row.Scan(&u.ID, &u.Email, &u.Name, &superuser, &createdAt)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.IsSuperuser = superuser != 0
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return User{}, err
	}
	return u, nil
}
