package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidDateRange rejects any period or weekly interval whose end date
// precedes its start date.
var ErrInvalidDateRange = errors.New("end date cannot be before start date")

// MissingRequiredFieldError reports a field that is required outright or
// becomes required under a conditional rule.
type MissingRequiredFieldError struct {
	Field  string
	Reason string
}

func (e MissingRequiredFieldError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s is required: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s is required", e.Field)
}

// ConflictError surfaces the uniqueness backstop when two concurrent
// recordings race for the same (demand, stage) slot.
type ConflictError struct {
	DemandID string
	Stage    string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("stage %s already recorded for demand %s", e.Stage, e.DemandID)
}
