package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fwdesk/fwdesk/internal/directory"
	"github.com/fwdesk/fwdesk/internal/model"
	"github.com/fwdesk/fwdesk/internal/service"
	"github.com/fwdesk/fwdesk/internal/store"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope. The optional ctx map provides additional context fields.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]interface{}) {
	var ctxMap map[string]interface{}
	if len(ctx) > 0 {
		ctxMap = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
			Context: ctxMap,
		},
	})
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeServiceError maps service and store errors to HTTP responses. Error
// messages returned to the client are user-safe; internal detail goes to the
// logger only.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var dup *store.DuplicateError
	switch {
	case errors.Is(err, service.ErrMissingCredentials):
		writeError(w, http.StatusBadRequest, "Username and password are required")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, service.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "Invalid token")
	case errors.Is(err, service.ErrNoGroups):
		writeError(w, http.StatusForbidden, "No directory groups resolved for this account")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "Invalid status value")
	case errors.Is(err, store.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, "Status transition not allowed")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Request not found")
	case errors.As(err, &dup):
		writeError(w, http.StatusConflict, "Duplicate request",
			map[string]interface{}{"duplicateRequestId": dup.ExistingID})
	case errors.Is(err, directory.ErrUnavailable):
		logger.Error("directory error", "error", err)
		writeError(w, http.StatusInternalServerError, "Directory error")
	default:
		logger.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}
