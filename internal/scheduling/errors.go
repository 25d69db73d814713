package scheduling

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrValidation       = errors.New("scheduling: validation failed")
	ErrNotFound         = errors.New("scheduling: rendez-vous not found")
	ErrNotEligible      = errors.New("scheduling: not eligible")
	ErrImmutableField   = errors.New("scheduling: field is immutable")
	ErrInvalidDate      = errors.New("scheduling: date is not a candidate")
	ErrAlreadyScheduled = errors.New("scheduling: already scheduled")
	ErrNotEditable      = errors.New("scheduling: rendez-vous can no longer be changed")
)

// FieldViolation is a single field level validation failure.
type FieldViolation struct {
	Field   string
	Message string
}

// ValidationError reports every violated constraint of a request at once so
// a form can highlight all bad fields together.
type ValidationError struct {
	Violations []FieldViolation
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.Violations) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(v.Violations))
	for _, violation := range v.Violations {
		parts = append(parts, violation.Field+": "+violation.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is matches ErrValidation.
func (v *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// HasErrors reports whether any violation was recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.Violations) > 0
}

// Add records a violation.
func (v *ValidationError) Add(field, message string) {
	v.Violations = append(v.Violations, FieldViolation{Field: field, Message: message})
}

// Merge appends the violations of other.
func (v *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	v.Violations = append(v.Violations, other.Violations...)
}

// Fields groups violation messages by field.
func (v *ValidationError) Fields() map[string][]string {
	if v == nil || len(v.Violations) == 0 {
		return nil
	}
	out := make(map[string][]string)
	for _, violation := range v.Violations {
		out[violation.Field] = append(out[violation.Field], violation.Message)
	}
	return out
}

// Err returns v when it holds violations and nil otherwise.
func (v *ValidationError) Err() error {
	if v.HasErrors() {
		return v
	}
	return nil
}

// NotFoundError is returned when an operation targets a missing rendez-vous.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return ErrNotFound.Error()
	}
	return fmt.Sprintf("%s: %s", ErrNotFound, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotEligibleError is returned when a vote names an attendee or date that is
// not part of the rendez-vous.
type NotEligibleError struct {
	Attendee string
	Date     time.Time
	Reason   string
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNotEligible, e.Reason)
}

func (e *NotEligibleError) Is(target error) bool { return target == ErrNotEligible }

// ImmutableFieldError is returned when a patch tries to change id or organizer.
type ImmutableFieldError struct {
	Field string
}

func (e *ImmutableFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrImmutableField, e.Field)
}

func (e *ImmutableFieldError) Is(target error) bool { return target == ErrImmutableField }

// InvalidDateError is returned when a date is not among the candidates.
type InvalidDateError struct {
	Date time.Time
}

func (e *InvalidDateError) Error() string {
	if e.Date.IsZero() {
		return ErrInvalidDate.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidDate, e.Date.UTC().Format(time.RFC3339))
}

func (e *InvalidDateError) Is(target error) bool { return target == ErrInvalidDate }

// AlreadyScheduledError is returned by Confirm when a date was already fixed
// and no reschedule was requested.
type AlreadyScheduledError struct {
	Date time.Time
}

func (e *AlreadyScheduledError) Error() string {
	return fmt.Sprintf("%s for %s", ErrAlreadyScheduled, e.Date.UTC().Format(time.RFC3339))
}

func (e *AlreadyScheduledError) Is(target error) bool { return target == ErrAlreadyScheduled }

// NotEditableError is returned when a cancelled or already started
// rendez-vous is modified.
type NotEditableError struct {
	Status Status
	Reason string
}

func (e *NotEditableError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNotEditable, e.Reason)
}

func (e *NotEditableError) Is(target error) bool { return target == ErrNotEditable }
