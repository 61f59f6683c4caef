package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/taskplan-api/internal/api/shared"
	"github.com/phrazzld/taskplan-api/internal/platform/logger"
	"github.com/phrazzld/taskplan-api/internal/service"
)

// RuleHandler handles task rule HTTP requests
type RuleHandler struct {
	rules  service.RuleService
	logger *slog.Logger
}

// NewRuleHandler creates a new RuleHandler
func NewRuleHandler(rules service.RuleService, logger *slog.Logger) *RuleHandler {
	if rules == nil {
		panic("rules cannot be nil for RuleHandler")
	}
	if logger == nil {
		panic("logger cannot be nil for RuleHandler")
	}
	return &RuleHandler{
		rules:  rules,
		logger: logger.With(slog.String("component", "rule_handler")),
	}
}

// CreateRule handles POST /api/task-rules
func (h *RuleHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := handleUserID(w, r, log)
	if !ok {
		return
	}

	var req CreateRuleRequest
	if !parseAndValidateRequest(w, r, &req) {
		return
	}
	rule, err := req.ToDomain()
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	created, err := h.rules.CreateTaskRule(r.Context(), userID, rule)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create task rule")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, created)
}

// UpdateRule handles PATCH /api/task-rules/{id}
func (h *RuleHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ruleID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req UpdateRuleRequest
	if !parseAndValidateRequest(w, r, &req) {
		return
	}
	patch, err := req.ToPatch()
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	updated, err := h.rules.UpdateTaskRule(r.Context(), userID, ruleID, patch)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update task rule")
		return
	}

	log.Debug("task rule updated", slog.String("rule_id", ruleID.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, updated)
}

// GetRule handles GET /api/task-rules/{id}
func (h *RuleHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ruleID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	rule, err := h.rules.GetTaskRule(r.Context(), userID, ruleID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task rule")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, rule)
}
