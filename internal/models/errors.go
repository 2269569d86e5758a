package models

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrValidation             = stderrors.New("validation error")
	ErrNotFound               = stderrors.New("not found")
	ErrRegressionNotAllowed   = stderrors.New("regression not allowed")
	ErrTerminalState          = stderrors.New("terminal state violation")
	ErrConcurrentModification = stderrors.New("concurrent modification")
	ErrTrackingCodeExhausted  = stderrors.New("tracking code exhaustion")

	// ErrTrackingCodeTaken is returned by stores when the unique constraint on
	// tracking_code rejects an insert.
	ErrTrackingCodeTaken = stderrors.New("tracking code taken")
)

type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TransitionError is a rejected status change. Repair is the record as it was
// before the attempt, unchanged.
type TransitionError struct {
	Code   error
	Repair *Repair
	From   Status
	To     Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", e.Code, e.From, e.To)
}

// Unwrap exposes the code and, for a delivered repair, ErrTerminalState as well.
func (e *TransitionError) Unwrap() []error {
	errs := []error{e.Code}
	if e.From.Terminal() && e.Code != ErrTerminalState {
		errs = append(errs, ErrTerminalState)
	}
	return errs
}
