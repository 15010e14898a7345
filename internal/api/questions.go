package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/intervue/internal/evaluator"
	"github.com/kalambet/intervue/internal/interview"
	"github.com/kalambet/intervue/internal/storage"
)

func handleCreateQuestion(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q storage.Question
		if !decodeJSON(w, r, &q) {
			return
		}
		created, err := deps.Service.CreateQuestion(r.Context(), actorFrom(r), q)
		if err != nil {
			serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func handleListQuestions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		questions, err := deps.Service.ListQuestions(r.Context(), storage.QuestionFilter{
			Category:   q.Get("category"),
			Difficulty: q.Get("difficulty"),
			Type:       q.Get("type"),
			Skip:       intQuery(r, "skip", 0, 0),
			Limit:      intQuery(r, "limit", 100, 1000),
		})
		if err != nil {
			serviceError(w, r, err)
			return
		}
		if questions == nil {
			questions = []storage.Question{}
		}
		writeJSON(w, http.StatusOK, questions)
	}
}

func handleGetQuestion(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := deps.Service.GetQuestion(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func handleQuestionStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Service.QuestionStats(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleSimilarQuestions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var query interview.SimilarQuery
		if !decodeJSON(w, r, &query) {
			return
		}
		matches, err := deps.Service.SimilarQuestions(r.Context(), query)
		if err != nil {
			serviceError(w, r, err)
			return
		}
		if matches == nil {
			matches = []interview.SimilarQuestion{}
		}
		writeJSON(w, http.StatusOK, matches)
	}
}

func handlePlan(w http.ResponseWriter, r *http.Request) {
	level := r.URL.Query().Get("level")
	if level == "" {
		level = evaluator.LevelIntermediate
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"level": level,
		"items": evaluator.GeneratePlan(level, nil),
	})
}
