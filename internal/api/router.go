// Package api serves the interview REST API and the MCP tool server.
package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kalambet/intervue/internal/interview"
	"github.com/kalambet/intervue/internal/storage"
	"github.com/kalambet/intervue/internal/upload"
)

const apiVersion = "1.0.0"

type AppDeps struct {
	Service *interview.Service
	Users   UserLookup
	Uploads *upload.Uploader // optional; if nil, uploads answer 404
	Token   string
	DevUser storage.User
	// CORSOrigins is a comma-separated allow list; "*" allows any origin.
	CORSOrigins string
}

// NewRouter returns the full HTTP surface: public root and health routes
// plus the authenticated /api/v1 tree.
func NewRouter(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions(deps.CORSOrigins)))

	r.Get("/", handleRoot)
	r.Get("/health", handleHealth)
	r.Get("/api/health", handleHealth)

	r.Mount("/api/v1", NewAppHandler(deps))
	return r
}

// NewAppHandler serves the authenticated API rooted at /api/v1.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(BearerAuth(deps.Token))
	r.Use(Actor(deps.Users, deps.DevUser))

	r.Route("/interview", func(r chi.Router) {
		r.Post("/", handleCreateSession(deps))
		r.Get("/", handleListSessions(deps))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handleGetSession(deps))
			r.Put("/", handleUpdateSession(deps))
			r.Post("/start", handleStartSession(deps))
			r.Post("/cancel", handleCancelSession(deps))
			r.Post("/submit-answer", handleSubmitAnswer(deps))
			r.Post("/evaluate", handleEvaluate(deps))
			r.Post("/follow-up", handleFollowUp(deps))
			r.Post("/quick-score", handleQuickScore(deps))
			r.Post("/upload", handleUpload(deps))
			r.Put("/draft/{question_id}", handleSaveDraft(deps))
			r.Get("/draft/{question_id}", handleGetDraft(deps))
			r.Get("/timer", handleTimerStatus(deps))
			r.Post("/timer/pause", handlePauseTimer(deps))
			r.Post("/timer/resume", handleResumeTimer(deps))
			r.Post("/timer/switch", handleSwitchQuestion(deps))
		})
	})

	r.Route("/questions", func(r chi.Router) {
		r.Post("/", handleCreateQuestion(deps))
		r.Get("/", handleListQuestions(deps))
		r.Post("/similar", handleSimilarQuestions(deps))
		r.Get("/plan", handlePlan)
		r.Get("/{id}", handleGetQuestion(deps))
		r.Get("/{id}/stats", handleQuestionStats(deps))
	})

	r.Post("/users", handleCreateUser(deps))
	r.Get("/users/{id}", handleGetUser(deps))

	return r
}

func corsOptions(origins string) cors.Options {
	var allowed []string
	wildcard := false
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
			wildcard = wildcard || o == "*"
		}
	}
	// Credentials are only sent to an explicit allow list, never to "*".
	return cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-User-ID"},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	}
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to the intervue API",
		"docs":    "/api/v1",
		"version": apiVersion,
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
