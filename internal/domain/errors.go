package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrBlankText    = errors.New("please enter text to speak")
	ErrEngineClosed = errors.New("speech engine closed")
)

// ValidationError is a rejected user action. It is reported to the user
// and never changes session state.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }
