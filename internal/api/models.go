package api

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/service"
	"github.com/phrazzld/taskplan-api/internal/service/task_status"
)

// Dates travel as YYYY-MM-DD strings; task timestamps as RFC 3339.

// CreateRuleRequest defines the payload for creating a task rule.
// WeeklyDays lists sample dates; each contributes its weekday.
type CreateRuleRequest struct {
	Title            string      `json:"title"              validate:"required,max=200"`
	Description      string      `json:"description"`
	Remarks          string      `json:"remarks"`
	Type             string      `json:"type"               validate:"required,oneof=daily weekly monthly"`
	DailyType        string      `json:"daily_type"         validate:"omitempty,oneof=workday calendar"`
	WeeklyDays       []string    `json:"weekly_days"        validate:"omitempty,dive,datetime=2006-01-02"`
	MonthlyMonths    []int       `json:"monthly_months"     validate:"omitempty,dive,min=1,max=12"`
	MonthlyOn        int         `json:"monthly_on"         validate:"gte=0,lte=31"`
	MonthlyOnType    string      `json:"monthly_on_type"`
	IsBackgroundTask bool        `json:"is_background_task"`
	IsSharedTask     bool        `json:"is_shared_task"`
	TaskStartTime    string      `json:"task_start_time"    validate:"required,datetime=15:04"`
	ValidFrom        string      `json:"valid_from"         validate:"required,datetime=2006-01-02"`
	ValidTo          *string     `json:"valid_to"           validate:"omitempty,datetime=2006-01-02"`
	TaskDuration     int         `json:"task_duration"      validate:"gte=0"`
	Priority         int         `json:"priority"`
	Zone             string      `json:"zone"               validate:"required"`
	Users            []uuid.UUID `json:"users"`
	Flows            []uuid.UUID `json:"flows"`
}

// ToDomain converts the request into a rule ready for the rule service.
func (r *CreateRuleRequest) ToDomain() (*domain.TaskRule, error) {
	weekdays, err := weekdaysOf(r.WeeklyDays)
	if err != nil {
		return nil, err
	}
	start, err := domain.ParseTimeOfDay(r.TaskStartTime)
	if err != nil {
		return nil, err
	}
	validFrom, err := domain.ParseDate(r.ValidFrom)
	if err != nil {
		return nil, err
	}
	var validTo *time.Time
	if r.ValidTo != nil {
		v, err := domain.ParseDate(*r.ValidTo)
		if err != nil {
			return nil, err
		}
		validTo = &v
	}

	return &domain.TaskRule{
		Title:            r.Title,
		Description:      r.Description,
		Remarks:          r.Remarks,
		Type:             domain.RuleType(r.Type),
		DailyType:        domain.DailyType(r.DailyType),
		WeeklyDays:       weekdays,
		MonthlyMonths:    monthsOf(r.MonthlyMonths),
		MonthlyOn:        r.MonthlyOn,
		MonthlyOnType:    r.MonthlyOnType,
		IsBackgroundTask: r.IsBackgroundTask,
		IsSharedTask:     r.IsSharedTask,
		TaskStartTime:    start,
		ValidFrom:        validFrom,
		ValidTo:          validTo,
		TaskDuration:     r.TaskDuration,
		Priority:         r.Priority,
		Zone:             r.Zone,
		Users:            r.Users,
		Flows:            r.Flows,
	}, nil
}

// UpdateRuleRequest defines the payload for patching a task rule. Absent
// fields are left alone; null clears the fields that may be cleared.
type UpdateRuleRequest struct {
	Title            domain.Optional[string]           `json:"title"`
	Description      domain.Optional[string]           `json:"description"`
	Remarks          domain.Optional[string]           `json:"remarks"`
	Type             domain.Optional[domain.RuleType]  `json:"type"`
	DailyType        domain.Optional[domain.DailyType] `json:"daily_type"`
	WeeklyDays       domain.Optional[[]string]         `json:"weekly_days"`
	MonthlyMonths    domain.Optional[[]int]            `json:"monthly_months"`
	MonthlyOn        domain.Optional[int]              `json:"monthly_on"`
	MonthlyOnType    domain.Optional[string]           `json:"monthly_on_type"`
	IsBackgroundTask domain.Optional[bool]             `json:"is_background_task"`
	IsSharedTask     domain.Optional[bool]             `json:"is_shared_task"`
	TaskStartTime    domain.Optional[domain.TimeOfDay] `json:"task_start_time"`
	ValidFrom        domain.Optional[string]           `json:"valid_from"`
	ValidTo          domain.Optional[string]           `json:"valid_to"`
	TaskDuration     domain.Optional[int]              `json:"task_duration"`
	Priority         domain.Optional[int]              `json:"priority"`
	Zone             domain.Optional[string]           `json:"zone"`
	Users            domain.Optional[[]uuid.UUID]      `json:"users"`
	Flows            domain.Optional[[]uuid.UUID]      `json:"flows"`
}

// ToPatch converts the request into a rule patch. Malformed dates are
// rejected here, before the rule service runs any side effect.
func (r *UpdateRuleRequest) ToPatch() (domain.RulePatch, error) {
	patch := domain.RulePatch{
		Title:            r.Title,
		Description:      r.Description,
		Remarks:          r.Remarks,
		Type:             r.Type,
		DailyType:        r.DailyType,
		MonthlyOn:        r.MonthlyOn,
		MonthlyOnType:    r.MonthlyOnType,
		IsBackgroundTask: r.IsBackgroundTask,
		IsSharedTask:     r.IsSharedTask,
		TaskStartTime:    r.TaskStartTime,
		TaskDuration:     r.TaskDuration,
		Priority:         r.Priority,
		Zone:             r.Zone,
		Users:            r.Users,
		Flows:            r.Flows,
	}

	if r.WeeklyDays.Set {
		days, err := weekdaysOf(r.WeeklyDays.Value)
		if err != nil {
			return domain.RulePatch{}, err
		}
		patch.WeeklyDays = domain.Optional[[]time.Weekday]{Set: true, Null: r.WeeklyDays.Null, Value: days}
	}
	if r.MonthlyMonths.Set {
		patch.MonthlyMonths = domain.Optional[[]time.Month]{
			Set:   true,
			Null:  r.MonthlyMonths.Null,
			Value: monthsOf(r.MonthlyMonths.Value),
		}
	}

	var err error
	if patch.ValidFrom, err = optionalDate(r.ValidFrom); err != nil {
		return domain.RulePatch{}, err
	}
	if patch.ValidTo, err = optionalDate(r.ValidTo); err != nil {
		return domain.RulePatch{}, err
	}
	return patch, nil
}

// CreateTaskRequest defines the payload for creating a task by hand.
type CreateTaskRequest struct {
	RuleID             *uuid.UUID  `json:"rule_id"`
	FlowID             *uuid.UUID  `json:"flow_id"`
	Title              string      `json:"title"                validate:"required,max=200"`
	Description        string      `json:"description"`
	Remarks            string      `json:"remarks"`
	Priority           int         `json:"priority"`
	Zone               string      `json:"zone"`
	ExpectedStartDate  time.Time   `json:"expected_start_date"  validate:"required"`
	ExpectedFinishDate *time.Time  `json:"expected_finish_date"`
	Duration           int         `json:"duration"             validate:"gte=0"`
	AssignedTo         []uuid.UUID `json:"assigned_to"`
	RelatedFlows       []uuid.UUID `json:"related_flows"`
	IsBackgroundTask   bool        `json:"is_background_task"`
}

// ToDomain converts the request into a New task.
func (r *CreateTaskRequest) ToDomain() *domain.Task {
	task := &domain.Task{
		RuleID:            r.RuleID,
		FlowID:            r.FlowID,
		Status:            domain.TaskStatusNew,
		Title:             r.Title,
		Description:       r.Description,
		Remarks:           r.Remarks,
		Priority:          r.Priority,
		Zone:              r.Zone,
		ExpectedStartDate: r.ExpectedStartDate.UTC(),
		Duration:          r.Duration,
		AssignedTo:        r.AssignedTo,
		RelatedFlows:      r.RelatedFlows,
		IsBackgroundTask:  r.IsBackgroundTask,
	}
	if r.ExpectedFinishDate != nil {
		finish := r.ExpectedFinishDate.UTC()
		task.ExpectedFinishDate = &finish
	}
	return task
}

// UpdateTaskRequest defines the payload for editing a task directly.
type UpdateTaskRequest struct {
	Title              domain.Optional[string]      `json:"title"`
	Description        domain.Optional[string]      `json:"description"`
	Remarks            domain.Optional[string]      `json:"remarks"`
	Priority           domain.Optional[int]         `json:"priority"`
	ExpectedStartDate  domain.Optional[time.Time]   `json:"expected_start_date"`
	ExpectedFinishDate domain.Optional[time.Time]   `json:"expected_finish_date"`
	Duration           domain.Optional[int]         `json:"duration"`
	AssignedTo         domain.Optional[[]uuid.UUID] `json:"assigned_to"`
}

// ToPatch converts the request into a task patch.
func (r *UpdateTaskRequest) ToPatch() domain.TaskPatch {
	return domain.TaskPatch{
		Title:              r.Title,
		Description:        r.Description,
		Remarks:            r.Remarks,
		Priority:           r.Priority,
		ExpectedStartDate:  r.ExpectedStartDate,
		ExpectedFinishDate: r.ExpectedFinishDate,
		Duration:           r.Duration,
		AssignedTo:         r.AssignedTo,
	}
}

// UpdateStatusRequest defines the payload for changing a task's status.
type UpdateStatusRequest struct {
	Status           string     `json:"status"             validate:"required,oneof=new in_progress paused finished cancelled"`
	ActualStartDate  *time.Time `json:"actual_start_date"`
	ActualFinishDate *time.Time `json:"actual_finish_date"`
}

// ToUpdate converts the request into a status update.
func (r *UpdateStatusRequest) ToUpdate() task_status.StatusUpdate {
	return task_status.StatusUpdate{
		Status:           domain.TaskStatus(r.Status),
		ActualStartDate:  r.ActualStartDate,
		ActualFinishDate: r.ActualFinishDate,
	}
}

// CreatePlanningRequest defines the payload for a planning item.
type CreatePlanningRequest struct {
	Date  string      `json:"date"  validate:"required,datetime=2006-01-02"`
	User  uuid.UUID   `json:"user"  validate:"required"`
	Flows []uuid.UUID `json:"flows" validate:"required,min=1"`
}

// ToInput converts the request into planning service input.
func (r *CreatePlanningRequest) ToInput() (service.PlanningInput, error) {
	date, err := domain.ParseDate(r.Date)
	if err != nil {
		return service.PlanningInput{}, err
	}
	return service.PlanningInput{Date: date, UserID: r.User, Flows: r.Flows}, nil
}

// TaskListResponse wraps a list of tasks.
type TaskListResponse struct {
	Tasks []*domain.Task `json:"tasks"`
}

func weekdaysOf(dates []string) ([]time.Weekday, error) {
	var out []time.Weekday
	for _, s := range dates {
		d, err := domain.ParseDate(s)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, d.Weekday()) {
			out = append(out, d.Weekday())
		}
	}
	slices.Sort(out)
	return out, nil
}

func monthsOf(months []int) []time.Month {
	if months == nil {
		return nil
	}
	out := make([]time.Month, len(months))
	for i, m := range months {
		out[i] = time.Month(m)
	}
	return out
}

func optionalDate(o domain.Optional[string]) (domain.Optional[time.Time], error) {
	if !o.Set {
		return domain.Optional[time.Time]{}, nil
	}
	if o.Null {
		return domain.Cleared[time.Time](), nil
	}
	d, err := domain.ParseDate(o.Value)
	if err != nil {
		return domain.Optional[time.Time]{}, err
	}
	return domain.Some(d), nil
}
