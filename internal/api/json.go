package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/kadisync/internal/apperr"
	"github.com/starford/kadisync/internal/kadi"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	// StatusCode is the answer of the remote service when it rejected the request.
	StatusCode int `json:"status_code,omitempty"`
	Response   any `json:"response,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps the sentinel errors to status codes. Anything unknown is
// logged and hidden behind a 500.
func writeError(w http.ResponseWriter, op string, err error) {
	var kerr *kadi.Error
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrNotSynced):
		writeJSON(w, http.StatusNotFound, errorBody(apperr.ErrNotSynced.Error()))
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotConfigured):
		writeJSON(w, http.StatusPreconditionFailed, errorBody(apperr.ErrNotConfigured.Error()))
	case errors.Is(err, apperr.ErrExcluded):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(apperr.ErrExcluded.Error()))
	case errors.Is(err, apperr.ErrSyncInProgress):
		writeJSON(w, http.StatusConflict, errorBody(apperr.ErrSyncInProgress.Error()))
	case errors.As(err, &kerr):
		msg := kerr.Message
		if msg == "" {
			msg = kerr.Error()
		}
		writeJSON(w, http.StatusBadGateway, errResponse{Error: msg, StatusCode: kerr.StatusCode, Response: kerr.Response})
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
