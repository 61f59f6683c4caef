package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/taskplan-api/internal/api/shared"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/service"
	"github.com/phrazzld/taskplan-api/internal/service/auth"
	"github.com/phrazzld/taskplan-api/internal/service/task_status"
	"github.com/phrazzld/taskplan-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	var verrs validator.ValidationErrors

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrMissingUser),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, service.ErrNotOwned),
		errors.Is(err, service.ErrForbidden),
		errors.Is(err, task_status.ErrUnauthorized),
		errors.Is(err, task_status.ErrNotAssigned):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, task_status.ErrInvalidTransition),
		errors.Is(err, task_status.ErrSameStatus):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidFormat),
		errors.Is(err, domain.ErrInvalidRuleType),
		errors.Is(err, domain.ErrInvalidTaskStatus),
		errors.Is(err, domain.ErrInvalidTimeOfDay),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, shared.ErrEmptyBody),
		errors.As(err, &verrs):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. Messages written by this service's own checks
// (validation failures, rejected status changes) are passed through; anything
// else is replaced by a fixed text.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var (
		validationErr *domain.ValidationError
		transitionErr *task_status.TransitionError
		verrs         validator.ValidationErrors
	)

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrMissingUser),
		errors.Is(err, domain.ErrUnauthorized):
		return "Invalid token"

	case errors.As(err, &transitionErr):
		return transitionErr.Reason
	case errors.Is(err, service.ErrNotOwned):
		return "Resource belongs to another organization"
	case errors.Is(err, service.ErrForbidden):
		return "Operation not permitted"

	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, store.ErrRuleNotFound):
		return "Task rule not found"
	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, store.ErrPlanningNotFound):
		return "Task planning not found"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, store.ErrPlanningExists):
		return "A planning already exists for this user and date"
	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"

	case errors.As(err, &validationErr):
		return validationErr.Message
	case errors.As(err, &verrs):
		return SanitizeValidationError(verrs)
	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"
	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID format"
	case errors.Is(err, domain.ErrInvalidTimeOfDay):
		return "Invalid time of day, expected HH:MM"
	case errors.Is(err, domain.ErrInvalidFormat),
		errors.Is(err, domain.ErrInvalidRuleType),
		errors.Is(err, domain.ErrInvalidTaskStatus),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns validator failures into a message naming the
// first offending field and rule without echoing the submitted value.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}

	first := verrs[0]
	field := first.Field()
	if ns := first.Namespace(); ns != "" {
		// Drop the top-level struct name but keep nesting, e.g. "users[0]".
		if _, rest, ok := strings.Cut(ns, "."); ok {
			field = rest
		}
	}
	return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(first.Tag()))
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required", "required_without":
		return "required field"
	case "min", "gt", "gte":
		return "too small"
	case "max", "lt", "lte":
		return "too large"
	case "oneof":
		return "invalid value"
	case "uuid", "uuid4":
		return "invalid UUID"
	case "datetime":
		return "invalid date format"
	case "dive":
		return "invalid element"
	case "unique":
		return "duplicate values"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the error response for err: the mapped status code
// and a safe message. A non-empty fallback message replaces the generic text
// of unexpected errors. The full error is only logged, redacted.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}

	var opts []shared.ResponseOption
	if status == http.StatusForbidden {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}
