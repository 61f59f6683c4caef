package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when tasks for a rule cannot be expanded,
	// usually because the task store failed. The store error is wrapped.
	ErrGenerationFailed = errors.New("failed to generate tasks from rule")

	// ErrHorizonFailed is returned when a rule's generation horizon cannot be advanced.
	ErrHorizonFailed = errors.New("failed to extend generation horizon")
)
