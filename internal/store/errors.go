package store

import (
	"errors"
	"fmt"
)

// Generic error kinds. Entity-specific errors wrap one of these so callers
// can branch on the kind with errors.Is without knowing the entity.
var (
	ErrNotFound          = errors.New("entity not found")
	ErrDuplicate         = errors.New("entity already exists")
	ErrInvalidEntity     = errors.New("invalid entity")
	ErrTransactionFailed = errors.New("transaction failed")
)

var (
	ErrUserNotFound     = fmt.Errorf("%w: user", ErrNotFound)
	ErrRuleNotFound     = fmt.Errorf("%w: task rule", ErrNotFound)
	ErrTaskNotFound     = fmt.Errorf("%w: task", ErrNotFound)
	ErrPlanningNotFound = fmt.Errorf("%w: task planning", ErrNotFound)

	// ErrPlanningExists is returned when a planning already exists for the
	// same user and date.
	ErrPlanningExists = fmt.Errorf("%w: task planning", ErrDuplicate)
)
