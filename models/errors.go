package models

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the store, the state machine, the ledger and the
// workflow service. Callers match with errors.Is; messages carry the detail.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidPayload    = errors.New("invalid payload")
	ErrIllegalTransition = errors.New("illegal transition")
	ErrVersionConflict   = errors.New("version conflict")
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrInternal          = errors.New("internal error")
)

// TransitionError describes a rejected approval-state change.
type TransitionError struct {
	Section Section
	From    string
	Action  string
	Rule    string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition: cannot %s %s section in state %q: %s", e.Action, e.Section, e.From, e.Rule)
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// InvalidPayloadf formats a detailed ErrInvalidPayload.
func InvalidPayloadf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}

// NotFoundf formats a detailed ErrNotFound.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
