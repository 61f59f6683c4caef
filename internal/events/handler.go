package events

import (
	"context"
	"log/slog"

	"github.com/phrazzld/taskplan-api/internal/platform/logger"
)

// LogHandler records every change event at info level. It is the default
// subscriber when no external delivery is configured.
type LogHandler struct {
	logger *slog.Logger
}

var _ EventHandler = (*LogHandler)(nil)

// NewLogHandler creates a LogHandler.
func NewLogHandler(l *slog.Logger) *LogHandler {
	return &LogHandler{logger: l.With(slog.String("component", "change_log"))}
}

// HandleEvent implements EventHandler.
func (h *LogHandler) HandleEvent(ctx context.Context, event *ChangeEvent) error {
	logger.FromContextOrDefault(ctx, h.logger).Info("change notification",
		slog.String("event_id", event.ID.String()),
		slog.String("topic", event.Topic),
		slog.String("action", string(event.Action)),
		slog.String("target", event.Target.String()),
		slog.String("initiator", event.Initiator.String()))
	return nil
}
