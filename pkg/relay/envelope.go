package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	StatusOK      = "ok"
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrorEnvelope is the failure body every tier answers with.
type ErrorEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorBody builds the failure envelope for err.
func ErrorBody(err error) ErrorEnvelope {
	return ErrorEnvelope{
		Status:  StatusError,
		Message: MessageFromError(err),
		Code:    string(CategoryFromError(err)),
	}
}

// WriteJSON encodes payload with the given status code.
func WriteJSON(w http.ResponseWriter, log *slog.Logger, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil && log != nil {
		log.Error("Failed to write response", "error", err)
	}
}

// WriteError encodes err as an error envelope with its mapped status code.
func WriteError(w http.ResponseWriter, log *slog.Logger, err error) {
	WriteJSON(w, log, HTTPStatus(err), ErrorBody(err))
}

// DecodeJSON reads a request body into dst. A malformed body is a caller error.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return InvalidInput("request body is required")
	}

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		return InvalidInput("malformed request body: %v", err)
	}

	return nil
}

// Recover converts handler panics into an internal error envelope so nothing
// escapes the tier unhandled.
func Recover(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				if log != nil {
					log.Error("Handler panic", "path", r.URL.Path, "panic", recovered)
				}
				WriteError(w, log, NewError(CategoryInternal, fmt.Sprintf("internal error: %v", recovered)))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// AccessLog logs each request at debug level.
func AccessLog(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		next.ServeHTTP(w, r)
		if log != nil {
			log.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration_ms", time.Since(startedAt).Milliseconds())
		}
	})
}

// NotFound answers unknown routes with an error envelope.
func NotFound(log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, log, http.StatusNotFound, ErrorEnvelope{
			Status:  StatusError,
			Message: fmt.Sprintf("no endpoint for %s %s", r.Method, r.URL.Path),
			Code:    string(CategoryInvalidInput),
		})
	})
}

// ParseIncludeDetails reads the include_details flag. Only an absent value or
// a case-insensitive "true" enables details.
func ParseIncludeDetails(raw string, present bool) bool {
	if !present {
		return true
	}

	return strings.EqualFold(strings.TrimSpace(raw), "true")
}
