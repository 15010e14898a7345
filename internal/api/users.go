package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/intervue/internal/interview"
)

func handleCreateUser(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in interview.UserInput
		if !decodeJSON(w, r, &in) {
			return
		}
		u, err := deps.Service.CreateUser(r.Context(), actorFrom(r), in)
		if err != nil {
			serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, u)
	}
}

func handleGetUser(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := deps.Service.GetUser(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}
