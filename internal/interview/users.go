package interview

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/kalambet/intervue/internal/storage"
)

type UserInput struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	IsSuperuser bool   `json:"is_superuser"`
}

// CreateUser registers a user. Only superusers may create other superusers.
func (s *Service) CreateUser(ctx context.Context, actor storage.User, in UserInput) (storage.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return storage.User{}, invalidInput("A valid email is required")
	}
	if in.IsSuperuser && !actor.IsSuperuser {
		return storage.User{}, forbidden("Only superusers can create superusers")
	}
	u, err := s.store.CreateUser(storage.User{Email: in.Email, Name: in.Name, IsSuperuser: in.IsSuperuser})
	if errors.Is(err, storage.ErrDuplicate) {
		return storage.User{}, invalidInput("The user with this email already exists in the system.")
	}
	return u, err
}

// GetUser returns a user to themselves or to a superuser.
func (s *Service) GetUser(ctx context.Context, actor storage.User, id string) (storage.User, error) {
	if !actor.IsSuperuser && actor.ID != id {
		return storage.User{}, forbidden("Not authorized to view this user")
	}
	u, err := s.store.GetUser(id)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.User{}, notFound("User not found")
	}
	return u, err
}
