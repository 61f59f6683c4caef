package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/taskplan-api/internal/api"
	apiMiddleware "github.com/phrazzld/taskplan-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)
	ruleHandler := api.NewRuleHandler(app.ruleService, app.logger)
	taskHandler := api.NewTaskHandler(app.taskService, app.statusService, app.logger)
	planningHandler := api.NewPlanningHandler(app.planningService, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Post("/task-rules", ruleHandler.CreateRule)
		r.Get("/task-rules/{id}", ruleHandler.GetRule)
		r.Patch("/task-rules/{id}", ruleHandler.UpdateRule)

		r.Post("/tasks", taskHandler.CreateTask)
		r.Get("/tasks/daily", taskHandler.GetDailyTasks)
		r.Get("/tasks/busy", taskHandler.GetBusyTasks)
		r.Patch("/tasks/{id}", taskHandler.UpdateTask)
		r.Put("/tasks/{id}/status", taskHandler.UpdateTaskStatus)

		r.Post("/task-plannings", planningHandler.CreatePlanning)
		r.Post("/task-plannings/{id}/flows/{flowId}", planningHandler.AddFlow)
		r.Delete("/task-plannings/{id}/flows/{flowId}", planningHandler.RemoveFlow)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
