package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/api/shared"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/platform/logger"
	"github.com/phrazzld/taskplan-api/internal/service"
)

// PlanningHandler handles task planning HTTP requests
type PlanningHandler struct {
	plannings service.PlanningService
	logger    *slog.Logger
}

// NewPlanningHandler creates a new PlanningHandler
func NewPlanningHandler(plannings service.PlanningService, logger *slog.Logger) *PlanningHandler {
	if plannings == nil {
		panic("plannings cannot be nil for PlanningHandler")
	}
	if logger == nil {
		panic("logger cannot be nil for PlanningHandler")
	}
	return &PlanningHandler{
		plannings: plannings,
		logger:    logger.With(slog.String("component", "planning_handler")),
	}
}

// CreatePlanning handles POST /api/task-plannings
func (h *PlanningHandler) CreatePlanning(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := handleUserID(w, r, log)
	if !ok {
		return
	}

	var req CreatePlanningRequest
	if !parseAndValidateRequest(w, r, &req) {
		return
	}
	input, err := req.ToInput()
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	planning, err := h.plannings.CreateTaskPlanningItem(r.Context(), userID, input)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create task planning")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, planning)
}

// AddFlow handles POST /api/task-plannings/{id}/flows/{flowId}
func (h *PlanningHandler) AddFlow(w http.ResponseWriter, r *http.Request) {
	h.changeFlow(w, r, h.plannings.AddFlowToPlanning, "Failed to add flow to planning")
}

// RemoveFlow handles DELETE /api/task-plannings/{id}/flows/{flowId}
func (h *PlanningHandler) RemoveFlow(w http.ResponseWriter, r *http.Request) {
	h.changeFlow(w, r, h.plannings.RemoveFlowFromPlanning, "Failed to remove flow from planning")
}

type flowChange func(ctx context.Context, actor, planningID, flowID uuid.UUID) (*domain.TaskPlanning, error)

func (h *PlanningHandler) changeFlow(
	w http.ResponseWriter,
	r *http.Request,
	change flowChange,
	failure string,
) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, planningID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}
	flowID, err := getPathUUID(r, "flowId")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	planning, err := change(r.Context(), userID, planningID, flowID)
	if err != nil {
		HandleAPIError(w, r, err, failure)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, planning)
}
