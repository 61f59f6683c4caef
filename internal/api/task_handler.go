package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/api/shared"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/platform/logger"
	"github.com/phrazzld/taskplan-api/internal/service"
	"github.com/phrazzld/taskplan-api/internal/service/task_status"
)

// TaskHandler handles task HTTP requests, including status changes.
type TaskHandler struct {
	tasks    service.TaskService
	statuses task_status.Service
	logger   *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(tasks service.TaskService, statuses task_status.Service, logger *slog.Logger) *TaskHandler {
	if tasks == nil {
		panic("tasks cannot be nil for TaskHandler")
	}
	if statuses == nil {
		panic("statuses cannot be nil for TaskHandler")
	}
	if logger == nil {
		panic("logger cannot be nil for TaskHandler")
	}
	return &TaskHandler{
		tasks:    tasks,
		statuses: statuses,
		logger:   logger.With(slog.String("component", "task_handler")),
	}
}

// CreateTask handles POST /api/tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := handleUserID(w, r, log)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if !parseAndValidateRequest(w, r, &req) {
		return
	}

	created, err := h.tasks.CreateTask(r.Context(), userID, req.ToDomain())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, created)
}

// UpdateTask handles PATCH /api/tasks/{id}
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, taskID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if !parseAndValidateRequest(w, r, &req) {
		return
	}

	updated, err := h.tasks.UpdateTask(r.Context(), userID, taskID, req.ToPatch())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, updated)
}

// UpdateTaskStatus handles PUT /api/tasks/{id}/status
// The response carries the changed task and, when another task was resumed
// as a consequence, that task under "unpaused".
func (h *TaskHandler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, taskID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !parseAndValidateRequest(w, r, &req) {
		return
	}

	result, err := h.statuses.UpdateTaskStatus(r.Context(), userID, taskID, req.ToUpdate())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update task status")
		return
	}

	log.Debug("task status updated",
		slog.String("task_id", taskID.String()),
		slog.String("status", req.Status),
		slog.Bool("resumed_other", result.Unpaused != nil))
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// GetDailyTasks handles GET /api/tasks/daily?from=YYYY-MM-DD&to=YYYY-MM-DD&users=id,id
// Both dates are inclusive. Without users, the acting user's tasks are returned.
func (h *TaskHandler) GetDailyTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := handleUserID(w, r, log)
	if !ok {
		return
	}

	query, err := dailyQueryFrom(r, userID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	tasks, err := h.tasks.GetDailyTasks(r.Context(), userID, query)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get daily tasks")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{Tasks: nonNil(tasks)})
}

// GetBusyTasks handles GET /api/tasks/busy?user=id
// Without user, the acting user's busy tasks are returned.
func (h *TaskHandler) GetBusyTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := handleUserID(w, r, log)
	if !ok {
		return
	}

	target := userID
	if raw := r.URL.Query().Get("user"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			HandleAPIError(w, r, domain.NewValidationError("user has invalid format"), "")
			return
		}
		target = parsed
	}

	tasks, err := h.tasks.GetBusyTasks(r.Context(), userID, target)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get busy tasks")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{Tasks: nonNil(tasks)})
}

func dailyQueryFrom(r *http.Request, actor uuid.UUID) (service.DailyQuery, error) {
	q := r.URL.Query()

	var (
		query service.DailyQuery
		err   error
	)
	if query.From, err = requiredDate(q.Get("from"), "from"); err != nil {
		return query, err
	}
	if query.To, err = requiredDate(q.Get("to"), "to"); err != nil {
		return query, err
	}
	if query.Users, err = parseUUIDList(q.Get("users")); err != nil {
		return query, err
	}
	if len(query.Users) == 0 {
		query.Users = []uuid.UUID{actor}
	}
	return query, nil
}

func requiredDate(raw, name string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, domain.NewValidationError(name + " date is required")
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return time.Time{}, domain.NewValidationError(name + " date must be YYYY-MM-DD")
	}
	return d, nil
}

// nonNil keeps empty results encoding as [] rather than null.
func nonNil(tasks []*domain.Task) []*domain.Task {
	if tasks == nil {
		return []*domain.Task{}
	}
	return tasks
}
