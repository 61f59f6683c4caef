package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/api/shared"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/mocks"
	"github.com/phrazzld/taskplan-api/internal/service"
	"github.com/phrazzld/taskplan-api/internal/service/task_status"
	"github.com/phrazzld/taskplan-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerDeps struct {
	rules     *mocks.MockRuleService
	tasks     *mocks.MockTaskService
	statuses  *mocks.MockStatusService
	plannings *mocks.MockPlanningService
}

// newTestRouter mounts the handlers the way the server does. A non-nil
// actor is placed in the context in place of the auth middleware.
func newTestRouter(actor uuid.UUID, deps handlerDeps) http.Handler {
	log := slog.Default()
	rules := NewRuleHandler(deps.rules, log)
	tasks := NewTaskHandler(deps.tasks, deps.statuses, log)
	plannings := NewPlanningHandler(deps.plannings, log)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if actor != uuid.Nil {
				req = req.WithContext(shared.WithUserID(req.Context(), actor))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/task-rules", rules.CreateRule)
	r.Patch("/task-rules/{id}", rules.UpdateRule)
	r.Get("/task-rules/{id}", rules.GetRule)
	r.Post("/tasks", tasks.CreateTask)
	r.Get("/tasks/daily", tasks.GetDailyTasks)
	r.Get("/tasks/busy", tasks.GetBusyTasks)
	r.Patch("/tasks/{id}", tasks.UpdateTask)
	r.Put("/tasks/{id}/status", tasks.UpdateTaskStatus)
	r.Post("/task-plannings", plannings.CreatePlanning)
	r.Post("/task-plannings/{id}/flows/{flowId}", plannings.AddFlow)
	r.Delete("/task-plannings/{id}/flows/{flowId}", plannings.RemoveFlow)
	return r
}

func emptyDeps() handlerDeps {
	return handlerDeps{
		rules:     &mocks.MockRuleService{},
		tasks:     &mocks.MockTaskService{},
		statuses:  &mocks.MockStatusService{},
		plannings: &mocks.MockPlanningService{},
	}
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandlerConstructorsPanicOnNilDeps(t *testing.T) {
	log := slog.Default()
	assert.Panics(t, func() { NewRuleHandler(nil, log) })
	assert.Panics(t, func() { NewRuleHandler(&mocks.MockRuleService{}, nil) })
	assert.Panics(t, func() { NewTaskHandler(nil, &mocks.MockStatusService{}, log) })
	assert.Panics(t, func() { NewTaskHandler(&mocks.MockTaskService{}, nil, log) })
	assert.Panics(t, func() { NewPlanningHandler(nil, log) })
}

func TestRuleHandler_CreateRule(t *testing.T) {
	actor := uuid.New()
	validBody := `{
		"title": "Water plants",
		"type": "weekly",
		"weekly_days": ["2024-01-03", "2024-01-01", "2024-01-08"],
		"task_start_time": "09:30",
		"valid_from": "2024-01-01",
		"valid_to": "2024-03-31",
		"task_duration": 15,
		"zone": "Europe/Madrid"
	}`

	t.Run("success", func(t *testing.T) {
		deps := emptyDeps()
		var received *domain.TaskRule
		deps.rules.CreateFn = func(_ context.Context, gotActor uuid.UUID, rule *domain.TaskRule) (*domain.TaskRule, error) {
			assert.Equal(t, actor, gotActor)
			received = rule
			rule.ID = uuid.New()
			return rule, nil
		}

		w := serve(newTestRouter(actor, deps), http.MethodPost, "/task-rules", validBody)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.NotNil(t, received)
		assert.Equal(t, domain.RuleTypeWeekly, received.Type)
		assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, received.WeeklyDays)
		assert.Equal(t, "09:30", received.TaskStartTime.String())
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), received.ValidFrom)
		require.NotNil(t, received.ValidTo)
		assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), *received.ValidTo)
	})

	t.Run("validation failure never reaches the service", func(t *testing.T) {
		w := serve(newTestRouter(actor, emptyDeps()), http.MethodPost, "/task-rules",
			`{"title":"x","type":"hourly","task_start_time":"09:30","valid_from":"2024-01-01","zone":"UTC"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid type: invalid value", decodeError(t, w))
	})

	t.Run("malformed start time", func(t *testing.T) {
		w := serve(newTestRouter(actor, emptyDeps()), http.MethodPost, "/task-rules",
			`{"title":"x","type":"daily","task_start_time":"9h","valid_from":"2024-01-01","zone":"UTC"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		w := serve(newTestRouter(uuid.Nil, emptyDeps()), http.MethodPost, "/task-rules", validBody)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("forbidden", func(t *testing.T) {
		deps := emptyDeps()
		deps.rules.CreateFn = func(context.Context, uuid.UUID, *domain.TaskRule) (*domain.TaskRule, error) {
			return nil, service.ErrForbidden
		}

		w := serve(newTestRouter(actor, deps), http.MethodPost, "/task-rules", validBody)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unexpected error uses fallback message", func(t *testing.T) {
		deps := emptyDeps()
		deps.rules.CreateFn = func(context.Context, uuid.UUID, *domain.TaskRule) (*domain.TaskRule, error) {
			return nil, errors.New("connection refused")
		}

		w := serve(newTestRouter(actor, deps), http.MethodPost, "/task-rules", validBody)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Failed to create task rule", decodeError(t, w))
	})
}

func TestRuleHandler_UpdateRule(t *testing.T) {
	actor, ruleID := uuid.New(), uuid.New()

	t.Run("partial patch", func(t *testing.T) {
		deps := emptyDeps()
		deps.rules.UpdateFn = func(_ context.Context, _, id uuid.UUID, patch domain.RulePatch) (*domain.TaskRule, error) {
			assert.Equal(t, ruleID, id)
			assert.Equal(t, domain.Some("Renamed"), patch.Title)
			assert.True(t, patch.ValidTo.Set)
			assert.True(t, patch.ValidTo.Null)
			assert.False(t, patch.Type.Set)
			return &domain.TaskRule{ID: id, Title: "Renamed"}, nil
		}

		w := serve(newTestRouter(actor, deps), http.MethodPatch, "/task-rules/"+ruleID.String(),
			`{"title":"Renamed","valid_to":null}`)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var rule domain.TaskRule
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rule))
		assert.Equal(t, "Renamed", rule.Title)
	})

	t.Run("malformed date", func(t *testing.T) {
		w := serve(newTestRouter(actor, emptyDeps()), http.MethodPatch, "/task-rules/"+ruleID.String(),
			`{"valid_from":"01/02/2024"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("not found", func(t *testing.T) {
		deps := emptyDeps()
		deps.rules.UpdateFn = func(context.Context, uuid.UUID, uuid.UUID, domain.RulePatch) (*domain.TaskRule, error) {
			return nil, store.ErrRuleNotFound
		}

		w := serve(newTestRouter(actor, deps), http.MethodPatch, "/task-rules/"+ruleID.String(), `{"title":"x"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Task rule not found", decodeError(t, w))
	})

	t.Run("invalid id", func(t *testing.T) {
		w := serve(newTestRouter(actor, emptyDeps()), http.MethodPatch, "/task-rules/abc", `{"title":"x"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRuleHandler_GetRule(t *testing.T) {
	actor, ruleID := uuid.New(), uuid.New()
	deps := emptyDeps()
	deps.rules.GetFn = func(_ context.Context, gotActor, id uuid.UUID) (*domain.TaskRule, error) {
		assert.Equal(t, actor, gotActor)
		return &domain.TaskRule{ID: id, Title: "Daily standup"}, nil
	}

	w := serve(newTestRouter(actor, deps), http.MethodGet, "/task-rules/"+ruleID.String(), "")

	require.Equal(t, http.StatusOK, w.Code)
	var rule domain.TaskRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rule))
	assert.Equal(t, ruleID, rule.ID)
}

func TestTaskHandler_CreateTask(t *testing.T) {
	actor := uuid.New()
	deps := emptyDeps()
	deps.tasks.CreateFn = func(_ context.Context, _ uuid.UUID, task *domain.Task) (*domain.Task, error) {
		assert.Equal(t, domain.TaskStatusNew, task.Status)
		assert.Equal(t, time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC), task.ExpectedStartDate)
		task.ID = uuid.New()
		return task, nil
	}

	w := serve(newTestRouter(actor, deps), http.MethodPost, "/tasks",
		`{"title":"Call supplier","expected_start_date":"2024-05-02T10:00:00+02:00","duration":30}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = serve(newTestRouter(actor, deps), http.MethodPost, "/tasks", `{"duration":30}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaskHandler_UpdateTask(t *testing.T) {
	actor, taskID := uuid.New(), uuid.New()
	deps := emptyDeps()
	deps.tasks.UpdateFn = func(_ context.Context, _, id uuid.UUID, patch domain.TaskPatch) (*domain.Task, error) {
		assert.Equal(t, domain.Some(45), patch.Duration)
		assert.False(t, patch.Title.Set)
		return &domain.Task{ID: id, Duration: 45, Modified: true}, nil
	}

	w := serve(newTestRouter(actor, deps), http.MethodPatch, "/tasks/"+taskID.String(), `{"duration":45}`)

	require.Equal(t, http.StatusOK, w.Code)
	var task domain.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	assert.True(t, task.Modified)
}

func TestTaskHandler_UpdateTaskStatus(t *testing.T) {
	actor, taskID := uuid.New(), uuid.New()

	t.Run("finish resumes another task", func(t *testing.T) {
		resumed := uuid.New()
		deps := emptyDeps()
		deps.statuses.UpdateFn = func(
			_ context.Context,
			_, id uuid.UUID,
			update task_status.StatusUpdate,
		) (*task_status.Result, error) {
			assert.Equal(t, domain.TaskStatusFinished, update.Status)
			return &task_status.Result{
				Result:   &domain.Task{ID: id, Status: domain.TaskStatusFinished},
				Unpaused: &domain.Task{ID: resumed, Status: domain.TaskStatusInProgress},
			}, nil
		}

		w := serve(newTestRouter(actor, deps), http.MethodPut, "/tasks/"+taskID.String()+"/status",
			`{"status":"finished"}`)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var result task_status.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, taskID, result.Result.ID)
		require.NotNil(t, result.Unpaused)
		assert.Equal(t, resumed, result.Unpaused.ID)
	})

	t.Run("unknown status", func(t *testing.T) {
		w := serve(newTestRouter(actor, emptyDeps()), http.MethodPut, "/tasks/"+taskID.String()+"/status",
			`{"status":"done"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejected transition reports the reason", func(t *testing.T) {
		deps := emptyDeps()
		deps.statuses.UpdateFn = func(
			context.Context, uuid.UUID, uuid.UUID, task_status.StatusUpdate,
		) (*task_status.Result, error) {
			return nil, &task_status.TransitionError{
				TaskID: taskID,
				From:   domain.TaskStatusNew,
				To:     domain.TaskStatusPaused,
				Reason: "Only a task in progress can be paused",
				Err:    task_status.ErrInvalidTransition,
			}
		}

		w := serve(newTestRouter(actor, deps), http.MethodPut, "/tasks/"+taskID.String()+"/status",
			`{"status":"paused"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "Only a task in progress can be paused", decodeError(t, w))
	})

	t.Run("not assigned", func(t *testing.T) {
		deps := emptyDeps()
		deps.statuses.UpdateFn = func(
			context.Context, uuid.UUID, uuid.UUID, task_status.StatusUpdate,
		) (*task_status.Result, error) {
			return nil, task_status.ErrNotAssigned
		}

		w := serve(newTestRouter(actor, deps), http.MethodPut, "/tasks/"+taskID.String()+"/status",
			`{"status":"in_progress"}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestTaskHandler_GetDailyTasks(t *testing.T) {
	actor, other := uuid.New(), uuid.New()

	t.Run("explicit users", func(t *testing.T) {
		deps := emptyDeps()
		deps.tasks.DailyFn = func(_ context.Context, _ uuid.UUID, q service.DailyQuery) ([]*domain.Task, error) {
			assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), q.From)
			assert.Equal(t, time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), q.To)
			assert.Equal(t, []uuid.UUID{other}, q.Users)
			return []*domain.Task{{ID: uuid.New()}}, nil
		}

		w := serve(newTestRouter(actor, deps), http.MethodGet,
			"/tasks/daily?from=2024-01-01&to=2024-01-07&users="+other.String(), "")

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp TaskListResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Tasks, 1)
	})

	t.Run("defaults to acting user and encodes empty list", func(t *testing.T) {
		deps := emptyDeps()
		deps.tasks.DailyFn = func(_ context.Context, _ uuid.UUID, q service.DailyQuery) ([]*domain.Task, error) {
			assert.Equal(t, []uuid.UUID{actor}, q.Users)
			return nil, nil
		}

		w := serve(newTestRouter(actor, deps), http.MethodGet, "/tasks/daily?from=2024-01-01&to=2024-01-01", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"tasks":[]}`, w.Body.String())
	})

	t.Run("missing from", func(t *testing.T) {
		w := serve(newTestRouter(actor, emptyDeps()), http.MethodGet, "/tasks/daily?to=2024-01-01", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "from date is required", decodeError(t, w))
	})

	t.Run("bad user list", func(t *testing.T) {
		w := serve(newTestRouter(actor, emptyDeps()), http.MethodGet,
			"/tasks/daily?from=2024-01-01&to=2024-01-02&users=nope", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTaskHandler_GetBusyTasks(t *testing.T) {
	actor, other := uuid.New(), uuid.New()
	deps := emptyDeps()
	deps.tasks.BusyFn = func(_ context.Context, _, userID uuid.UUID) ([]*domain.Task, error) {
		return []*domain.Task{{ID: uuid.New(), AssignedTo: []uuid.UUID{userID}}}, nil
	}
	router := newTestRouter(actor, deps)

	w := serve(router, http.MethodGet, "/tasks/busy?user="+other.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp TaskListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, []uuid.UUID{other}, resp.Tasks[0].AssignedTo)

	w = serve(router, http.MethodGet, "/tasks/busy", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []uuid.UUID{actor}, resp.Tasks[0].AssignedTo)
}

func TestPlanningHandler(t *testing.T) {
	actor, user, flow := uuid.New(), uuid.New(), uuid.New()
	planningID := uuid.New()

	t.Run("create", func(t *testing.T) {
		deps := emptyDeps()
		deps.plannings.CreateFn = func(_ context.Context, _ uuid.UUID, in service.PlanningInput) (*domain.TaskPlanning, error) {
			assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), in.Date)
			assert.Equal(t, user, in.UserID)
			assert.Equal(t, []uuid.UUID{flow}, in.Flows)
			return &domain.TaskPlanning{ID: planningID, Date: in.Date, UserID: in.UserID, Flows: in.Flows}, nil
		}

		body := `{"date":"2024-02-29","user":"` + user.String() + `","flows":["` + flow.String() + `"]}`
		w := serve(newTestRouter(actor, deps), http.MethodPost, "/task-plannings", body)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})

	t.Run("create duplicate", func(t *testing.T) {
		deps := emptyDeps()
		deps.plannings.CreateFn = func(context.Context, uuid.UUID, service.PlanningInput) (*domain.TaskPlanning, error) {
			return nil, store.ErrPlanningExists
		}

		body := `{"date":"2024-02-29","user":"` + user.String() + `","flows":["` + flow.String() + `"]}`
		w := serve(newTestRouter(actor, deps), http.MethodPost, "/task-plannings", body)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("create without flows", func(t *testing.T) {
		body := `{"date":"2024-02-29","user":"` + user.String() + `","flows":[]}`
		w := serve(newTestRouter(actor, emptyDeps()), http.MethodPost, "/task-plannings", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("add and remove flow", func(t *testing.T) {
		deps := emptyDeps()
		deps.plannings.AddFlowFn = func(_ context.Context, _, pid, fid uuid.UUID) (*domain.TaskPlanning, error) {
			return &domain.TaskPlanning{ID: pid, Flows: []uuid.UUID{fid}}, nil
		}
		deps.plannings.RemoveFlowFn = func(_ context.Context, _, pid, fid uuid.UUID) (*domain.TaskPlanning, error) {
			assert.Equal(t, flow, fid)
			return &domain.TaskPlanning{ID: pid, Flows: []uuid.UUID{}}, nil
		}
		router := newTestRouter(actor, deps)
		target := "/task-plannings/" + planningID.String() + "/flows/" + flow.String()

		w := serve(router, http.MethodPost, target, "")
		require.Equal(t, http.StatusOK, w.Code)
		var planning domain.TaskPlanning
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &planning))
		assert.Equal(t, []uuid.UUID{flow}, planning.Flows)

		w = serve(router, http.MethodDelete, target, "")
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invalid flow id", func(t *testing.T) {
		w := serve(newTestRouter(actor, emptyDeps()), http.MethodPost,
			"/task-plannings/"+planningID.String()+"/flows/xyz", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "flowId has invalid format", decodeError(t, w))
	})
}
