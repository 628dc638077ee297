package reminder

import (
	"errors"
	"fmt"
	"time"
)

// ErrInactive is returned by Remove when the job already fired or was cancelled.
var ErrInactive = errors.New("reminder: job is no longer active")

// Validation failure reasons.
const (
	ReasonFormat   = "format"
	ReasonNegative = "negative"
	ReasonRange    = "range"
	ReasonPast     = "past"
)

// ValidationError reports user input that cannot be turned into a reminder.
type ValidationError struct {
	Field  string
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("reminder: invalid %s %q: %s", e.Field, e.Input, e.Reason)
}

// Code is picked up by the router for the err_code log field.
func (e *ValidationError) Code() string {
	return "invalid_" + e.Field
}

// PastTimeError reports a fire time that is not strictly after now.
type PastTimeError struct {
	FireAt time.Time
	Now    time.Time
}

func (e *PastTimeError) Error() string {
	return fmt.Sprintf("reminder: fire time %s is not after %s",
		e.FireAt.Format(time.RFC3339), e.Now.Format(time.RFC3339))
}

// Code is picked up by the router for the err_code log field.
func (e *PastTimeError) Code() string { return "past_time" }
