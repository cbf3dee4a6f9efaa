package web

// errors.go provides unified error responses for the web layer.
//
// Every error is logged server-side with the request ID and returned to the
// client as JSON carrying the coded user message from core.MapError.

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/salesreport/internal/auth"
	"github.com/JonMunkholm/salesreport/internal/core"
	"github.com/JonMunkholm/salesreport/internal/logging"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user-facing form with statusCode.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	log := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		log.Error("request error", args...)
	} else {
		log.Warn("request error", args...)
	}

	writeJSON(w, statusCode, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// statusFor picks the HTTP status for a service or auth error.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case errors.As(err, &maxBytes), strings.Contains(err.Error(), "request body too large"):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrUndefinedStatistic):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNoSource):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidCSV),
		errors.Is(err, core.ErrEmptyFile),
		errors.Is(err, core.ErrMissingColumn):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
