package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kalambet/intervue/internal/interview"
	"github.com/kalambet/intervue/internal/upload"
)

const maxRequestBodySize = 1 << 20

// errorBody is the {"error":{"message","type"}} envelope every failure uses.
type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	var body errorBody
	body.Error.Message = fmt.Sprintf(format, args...)
	body.Error.Type = errType
	writeJSON(w, code, body)
}

// serviceError maps interview and upload errors to HTTP responses.
// Anything unrecognised is a 500 and is logged.
func serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, interview.ErrInvalidInput), errors.Is(err, interview.ErrInvalidState):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", err.Error())
	case errors.Is(err, interview.ErrForbidden):
		httpError(w, http.StatusForbidden, "permission_error", "%s", err.Error())
	case errors.Is(err, interview.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%s", err.Error())
	case errors.Is(err, upload.ErrTooLarge), errors.As(err, &maxBytes):
		httpError(w, http.StatusRequestEntityTooLarge, "request_too_large", "%s", upload.ErrTooLarge.Error())
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a size-limited JSON body into v and reports a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

// intQuery reads a non-negative integer query parameter, clamped to limit
// when limit > 0. Missing or malformed values give def.
func intQuery(r *http.Request, key string, def, limit int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	switch {
	case err != nil || v < 0:
		return def
	case limit > 0 && v > limit:
		return limit
	}
	return v
}
