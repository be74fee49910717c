package web

// errors.go maps failures to HTTP responses.
//
// The technical error is logged with the request id; the client gets the
// user-facing message from core.MapError, as JSON or, for HTMX requests, as
// an HTML alert fragment.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/circadian/internal/core"
	"github.com/JonMunkholm/circadian/internal/logging"
	"github.com/JonMunkholm/circadian/internal/service"
	"github.com/JonMunkholm/circadian/internal/web/templates"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

func newErrorResponse(msg core.UserMessage) ErrorResponse {
	return ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrWarehouseDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case strings.HasPrefix(err.Error(), "invalid csv"):
		return http.StatusBadRequest
	}

	switch core.KindOf(err) {
	case core.KindDuplicateKey:
		return http.StatusConflict
	case core.KindIndexError:
		return http.StatusNotFound
	case core.KindIOFailure, "":
		return http.StatusInternalServerError
	case core.KindMissingColumns, core.KindEmptyInput:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

// respondError logs err and writes the user-facing message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	s.respondErrorStatus(w, r, err, statusFor(err))
}

func (s *Server) respondErrorStatus(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logger := logging.WithFields(r.Context(), "path", r.URL.Path, "method", r.Method)
	args := []any{
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= 500 {
		logger.Error("request error", args...)
	} else {
		logger.Info("request rejected", args...)
	}

	if isHTMX(r) {
		renderErrorPartial(w, r, userMsg, statusCode)
		return
	}
	respondErrorJSON(w, userMsg, statusCode)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(newErrorResponse(msg))
}

// renderErrorPartial renders an HTMX-compatible error fragment.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// badRequest builds a classified error for malformed request parameters.
func badRequest(kind core.ErrorKind, message string) error {
	return &core.Error{Kind: kind, Message: message}
}
