package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/intervue/internal/interview"
	"github.com/kalambet/intervue/internal/storage"
)

type questionRequest struct {
	QuestionID string `json:"question_id"`
}

func handleCreateSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in interview.CreateSessionInput
		if !decodeJSON(w, r, &in) {
			return
		}
		sess, err := deps.Service.CreateSession(r.Context(), actorFrom(r), in)
		if err != nil {
			serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, sess)
	}
}

func handleListSessions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := storage.SessionFilter{
			Status:        q.Get("status"),
			CandidateID:   q.Get("candidate_id"),
			InterviewerID: q.Get("interviewer_id"),
			Skip:          intQuery(r, "skip", 0, 0),
			Limit:         intQuery(r, "limit", 100, 1000),
		}
		summaries, err := deps.Service.ListSessions(r.Context(), actorFrom(r), f)
		if err != nil {
			serviceError(w, r, err)
			return
		}
		if summaries == nil {
			summaries = []interview.SessionSummary{}
		}
		writeJSON(w, http.StatusOK, summaries)
	}
}

func handleGetSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		details, err := deps.Service.GetSession(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, details)
	}
}

func handleUpdateSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch interview.SessionPatch
		if !decodeJSON(w, r, &patch) {
			return
		}
		sess, err := deps.Service.UpdateSession(r.Context(), actorFrom(r), chi.URLParam(r, "id"), patch)
		if err != nil {
			serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func handleStartSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := deps.Service.StartSession(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func handleCancelSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := deps.Service.CancelSession(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func handleSubmitAnswer(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in interview.AnswerInput
		if !decodeJSON(w, r, &in) {
			return
		}
		if in.QuestionID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question_id is required")
			return
		}
		resp, err := deps.Service.SubmitAnswer(r.Context(), actorFrom(r), chi.URLParam(r, "id"), in)
		if err != nil {
			serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleEvaluate(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req questionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.QuestionID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question_id is required")
			return
		}
		res, err := deps.Service.EvaluateAnswer(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.QuestionID)
		if err != nil {
			serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleFollowUp(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req questionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.QuestionID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question_id is required")
			return
		}
		fq, err := deps.Service.FollowUp(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.QuestionID)
		if err != nil {
			serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, fq)
	}
}

func handleQuickScore(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req questionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.QuestionID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question_id is required")
			return
		}
		res, err := deps.Service.QuickScore(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.QuestionID)
		if err != nil {
			serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleSaveDraft(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Answer json.RawMessage `json:"answer"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		d, err := deps.Service.SaveDraft(r.Context(), actorFrom(r), chi.URLParam(r, "id"), chi.URLParam(r, "question_id"), body.Answer)
		if err != nil {
			serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func handleGetDraft(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := deps.Service.GetDraft(r.Context(), actorFrom(r), chi.URLParam(r, "id"), chi.URLParam(r, "question_id"))
		if err != nil {
			serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func handleTimerStatus(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := deps.Service.TimerStatus(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handlePauseTimer(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := deps.Service.PauseTimer(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleResumeTimer(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := deps.Service.ResumeTimer(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleSwitchQuestion(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req questionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.QuestionID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question_id is required")
			return
		}
		view, err := deps.Service.SwitchQuestion(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.QuestionID)
		if err != nil {
			serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}
