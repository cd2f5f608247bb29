package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cyp0633/recurcal/auth"
	"github.com/cyp0633/recurcal/event"
	"github.com/cyp0633/recurcal/recurrence"
	"github.com/cyp0633/recurcal/storage"
)

// errorResponse is the body of every non-2xx JSON response
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorDetail{Code: code, Message: message}})
}

// writeAuthError renders a rejection from the auth middleware
func writeAuthError(w http.ResponseWriter, _ *http.Request, err *auth.Error) {
	if err.Type == auth.ErrForbidden {
		writeError(w, http.StatusForbidden, string(auth.ErrForbidden), err.Message)
		return
	}
	writeError(w, http.StatusUnauthorized, string(auth.ErrUnauthorized), err.Message)
}

// handleError maps domain errors to HTTP responses and logs unexpected ones
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, event.ErrInvalidJSON):
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON format")
		return
	case errors.Is(err, event.ErrInvalidFormat):
		writeError(w, http.StatusBadRequest, "invalid_format", "Invalid event format")
		return
	case errors.Is(err, recurrence.ErrUnsupportedFrequency),
		errors.Is(err, recurrence.ErrInvalidInterval),
		errors.Is(err, recurrence.ErrInvalidPattern),
		errors.Is(err, recurrence.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid_recurrence", err.Error())
		return
	}

	var authErr *auth.Error
	if errors.As(err, &authErr) {
		status := http.StatusBadRequest
		switch authErr.Type {
		case auth.ErrInvalidCredentials, auth.ErrUnauthorized:
			status = http.StatusUnauthorized
		case auth.ErrForbidden:
			status = http.StatusForbidden
		case auth.ErrUserExists:
			status = http.StatusConflict
		}
		writeError(w, status, string(authErr.Type), authErr.Message)
		return
	}

	var storeErr *storage.Error
	if errors.As(err, &storeErr) {
		status := http.StatusInternalServerError
		switch storeErr.Type {
		case storage.ErrNotFound:
			status = http.StatusNotFound
		case storage.ErrAlreadyExists:
			status = http.StatusConflict
		case storage.ErrInvalidInput:
			status = http.StatusBadRequest
		}
		writeError(w, status, string(storeErr.Type), storeErr.Message)
		return
	}

	s.logger.ErrorContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err)
	writeError(w, http.StatusInternalServerError, "internal", "internal server error")
}
