package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/intervue/internal/interview"
	"github.com/kalambet/intervue/internal/storage"
	"github.com/kalambet/intervue/internal/upload"
)

const multipartMemory = 8 << 20

type uploadResponse struct {
	Upload   storage.Upload   `json:"upload"`
	Response storage.Response `json:"response"`
}

// handleUpload accepts a multipart form with question_id and file, stores
// the file and submits it as the answer to an assignment question.
func handleUpload(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Uploads == nil {
			httpError(w, http.StatusNotFound, "not_found", "uploads are not enabled")
			return
		}
		// Leave room for the form fields around the file.
		r.Body = http.MaxBytesReader(w, r.Body, deps.Uploads.MaxSize()+maxRequestBodySize)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var maxBytes *http.MaxBytesError
			if errors.As(err, &maxBytes) {
				serviceError(w, r, upload.ErrTooLarge)
				return
			}
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart form: %v", err)
			return
		}
		defer r.MultipartForm.RemoveAll()

		questionID := r.FormValue("question_id")
		if questionID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question_id is required")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "file is required")
			return
		}
		defer file.Close()

		var timeTaken *int
		if s := r.FormValue("time_taken"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "time_taken must be an integer")
				return
			}
			timeTaken = &v
		}

		actor := actorFrom(r)
		sessionID := chi.URLParam(r, "id")
		if err := deps.Service.CheckUpload(r.Context(), actor, sessionID, questionID); err != nil {
			serviceError(w, r, err)
			return
		}

		rec, err := deps.Uploads.Save(r.Context(), sessionID, questionID, header.Filename, header.Header.Get("Content-Type"), file)
		if err != nil {
			serviceError(w, r, err)
			return
		}
		resp, err := deps.Service.SubmitAnswer(r.Context(), actor, sessionID, interview.AnswerInput{
			QuestionID: questionID,
			Answer:     upload.Answer(rec),
			TimeTaken:  timeTaken,
		})
		if err != nil {
			if derr := deps.Uploads.Discard(rec); derr != nil {
				slog.Error("discarding rejected upload", "upload_id", rec.ID, "error", derr)
			}
			serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, uploadResponse{Upload: rec, Response: resp})
	}
}
