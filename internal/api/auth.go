package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/kalambet/intervue/internal/storage"
)

func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) || subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserLookup resolves the acting user named by the X-User-ID header.
type UserLookup interface {
	GetUser(id string) (storage.User, error)
}

type actorKey struct{}

// Actor resolves the acting user for each request. Requests without an
// X-User-ID header act as fallback.
func Actor(users UserLookup, fallback storage.User) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := fallback
			if id := r.Header.Get("X-User-ID"); id != "" {
				u, err := users.GetUser(id)
				if errors.Is(err, storage.ErrNotFound) {
					httpError(w, http.StatusUnauthorized, "authentication_error", "unknown user %q", id)
					return
				}
				if err != nil {
					httpError(w, http.StatusInternalServerError, "api_error", "failed to load user: %v", err)
					return
				}
				actor = u
			}
			if actor.ID == "" {
				httpError(w, http.StatusUnauthorized, "authentication_error", "X-User-ID header is required")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
		})
	}
}

func actorFrom(r *http.Request) storage.User {
	u, _ := r.Context().Value(actorKey{}).(storage.User)
	return u
}
