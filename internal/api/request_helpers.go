package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/api/shared"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/platform/logger"
)

// getUserIDFromContext extracts the authenticated user's UUID from the request context.
// The user ID is expected to be placed in the context by the authentication middleware.
func getUserIDFromContext(r *http.Request) (uuid.UUID, bool) {
	return shared.UserIDFromContext(r.Context())
}

// getPathUUID extracts a UUID from the URL path parameters.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName + " is required")
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName + " has invalid format")
	}
	return id, nil
}

// handleUserID extracts the acting user or writes a 401 response.
func handleUserID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, bool) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		log.Warn("user ID not found or invalid in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return uuid.Nil, false
	}
	return userID, true
}

// handleUserIDAndPathUUID is a composite helper that extracts both the user ID from context
// and a UUID from the path parameters. It writes an error response if either extraction fails.
func handleUserIDAndPathUUID(
	w http.ResponseWriter,
	r *http.Request,
	paramName string,
	log *slog.Logger,
) (uuid.UUID, uuid.UUID, bool) {
	if log == nil {
		log = logger.FromContextOrDefault(r.Context(), slog.Default())
	}

	userID, ok := handleUserID(w, r, log)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	pathID, err := getPathUUID(r, paramName)
	if err != nil {
		log.Warn("invalid "+paramName, slog.String("param_name", paramName))
		HandleAPIError(w, r, err, "")
		return uuid.Nil, uuid.Nil, false
	}

	return userID, pathID, true
}

// parseAndValidateRequest decodes the JSON body into req and runs its
// validation. It writes a 400 response and returns false on failure.
func parseAndValidateRequest(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	log := logger.FromContextOrDefault(r.Context(), slog.Default())

	if err := shared.DecodeJSON(r, req); err != nil {
		log.Debug("failed to decode request body", slog.String("error_type", fmt.Sprintf("%T", err)))
		if errors.Is(err, shared.ErrEmptyBody) || MapErrorToStatusCode(err) == http.StatusBadRequest {
			HandleAPIError(w, r, err, "")
			return false
		}
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return false
	}

	if err := shared.ValidateRequest(req); err != nil {
		HandleAPIError(w, r, err, "")
		return false
	}
	return true
}

// parseUUIDList parses a comma separated list of UUIDs. Empty items are skipped.
func parseUUIDList(raw string) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, domain.NewValidationError("users contains an invalid ID")
		}
		out = append(out, id)
	}
	return out, nil
}
