package view

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when a submission is already in flight.
var ErrBusy = errors.New("a transaction is already being submitted")

// ValidationError is an input problem caught before anything is sent.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
