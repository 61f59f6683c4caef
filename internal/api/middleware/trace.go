package middleware

import (
	"log/slog"
	"net/http"
	"regexp"

	"github.com/phrazzld/taskplan-api/internal/api/shared"
	"github.com/phrazzld/taskplan-api/internal/platform/logger"
)

// TraceHeader carries the trace ID on requests and responses.
const TraceHeader = "X-Trace-ID"

var traceIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{8,64}$`)

// TraceMiddleware adds a trace ID to the request context and a logger tagged
// with it. A well-formed incoming X-Trace-ID is reused; otherwise a new one
// is generated. The trace ID is echoed in the response header.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if !traceIDPattern.MatchString(traceID) {
			traceID = shared.NewTraceID()
		}
		ctx := shared.WithTraceID(r.Context(), traceID)

		log := logger.FromContextOrDefault(ctx, slog.Default()).
			With(slog.String("trace_id", traceID))
		ctx = logger.WithLogger(ctx, log)

		log.Debug("request started",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr))

		w.Header().Set(TraceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
