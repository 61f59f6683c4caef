package shared

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/taskplan-api/internal/platform/logger"
	"github.com/phrazzld/taskplan-api/internal/redact"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// ResponseOption adjusts how an error response is logged.
type ResponseOption func(*errorLogging)

type errorLogging struct {
	elevated bool
}

// WithElevatedLogLevel logs a 4xx response at WARN instead of DEBUG.
// Authorization refusals use it so that repeated denials stay visible.
func WithElevatedLogLevel() ResponseOption {
	return func(l *errorLogging) { l.elevated = true }
}

func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		requestLogger(r).Error("failed to encode JSON response", "error", err)
	}
}

// RespondWithError writes message as the error body, tagged with the request's trace id.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	traceID := GetTraceID(r.Context())
	requestLogger(r).Debug("sending error response",
		"status_code", status,
		"message", message,
		"trace_id", traceID)

	RespondWithJSON(w, r, status, ErrorResponse{Error: message, TraceID: traceID})
}

// RespondWithErrorAndLog writes userMessage to the client and logs err in
// redacted form. The raw error never reaches the response body.
func RespondWithErrorAndLog(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	userMessage string,
	err error,
	opts ...ResponseOption,
) {
	var cfg errorLogging
	for _, opt := range opts {
		opt(&cfg)
	}

	traceID := GetTraceID(r.Context())
	attrs := []slog.Attr{
		slog.Int("status_code", status),
		slog.String("user_message", userMessage),
		slog.String("trace_id", traceID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("error", redact.Error(err)),
			slog.String("error_type", fmt.Sprintf("%T", err)))
	}
	requestLogger(r).LogAttrs(r.Context(), errorLogLevel(status, cfg.elevated), "API error response", attrs...)

	RespondWithJSON(w, r, status, ErrorResponse{Error: userMessage, TraceID: traceID})
}

// errorLogLevel keeps client mistakes out of production logs while server
// failures and throttling always surface.
func errorLogLevel(status int, elevated bool) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status == http.StatusTooManyRequests:
		return slog.LevelWarn
	case elevated && status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}

func requestLogger(r *http.Request) *slog.Logger {
	return logger.FromContextOrDefault(r.Context(), slog.Default())
}
