package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"livemap/internal/shared/errors"
)

// ErrorResponse represents the JSON error response sent to clients
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

var statusCodes = map[errors.ErrorType]int{
	errors.ErrorTypeNotFound:         http.StatusNotFound,
	errors.ErrorTypeValidation:       http.StatusBadRequest,
	errors.ErrorTypeConflict:         http.StatusConflict,
	errors.ErrorTypeUnauthorized:     http.StatusUnauthorized,
	errors.ErrorTypeMethodNotAllowed: http.StatusMethodNotAllowed,
	errors.ErrorTypeExternal:         http.StatusBadGateway,
	errors.ErrorTypeUnavailable:      http.StatusServiceUnavailable,
	errors.ErrorTypeRateLimited:      http.StatusTooManyRequests,
	errors.ErrorTypeInternal:         http.StatusInternalServerError,
}

// Client mistakes are logged quietly; backend and internal failures loudly.
var logLevels = map[errors.ErrorType]slog.Level{
	errors.ErrorTypeNotFound:         slog.LevelDebug,
	errors.ErrorTypeValidation:       slog.LevelDebug,
	errors.ErrorTypeMethodNotAllowed: slog.LevelDebug,
	errors.ErrorTypeConflict:         slog.LevelInfo,
	errors.ErrorTypeUnavailable:      slog.LevelInfo,
	errors.ErrorTypeUnauthorized:     slog.LevelWarn,
	errors.ErrorTypeRateLimited:      slog.LevelWarn,
	errors.ErrorTypeExternal:         slog.LevelError,
}

// Error logs an error and sends a JSON error response to the client.
// Handlers should not log the errors they pass here.
func Error(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ErrorWithMessage(w, r, logger, err, err.Error())
}

// ErrorWithMessage is Error with a client-facing message that differs from
// the logged error.
func ErrorWithMessage(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, clientMessage string) {
	errorType := errors.GetType(err)
	statusCode := StatusCode(errorType)

	level, ok := logLevels[errorType]
	if !ok {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, "Request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"error_type", errorType,
		"status_code", statusCode,
		"error", err,
	)

	writeJSON(w, statusCode, ErrorResponse{
		Error:   string(errorType),
		Message: clientMessage,
		Code:    statusCode,
	})
}

// StatusCode maps an error type to its HTTP status.
func StatusCode(t errors.ErrorType) int {
	if code, ok := statusCodes[t]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Success sends a JSON success response to the client
func Success(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, data)
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		// The status line is already sent; an encoding failure cannot be reported.
		_ = json.NewEncoder(w).Encode(data)
	}
}
