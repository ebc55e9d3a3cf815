package workflow

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrActiveRun is returned by StartRun while another run is queued or running.
var ErrActiveRun = errors.New("an autonomous run is already active")

// ActiveRunError carries the run that blocks a new one.
type ActiveRunError struct {
	RunID  uuid.UUID
	Status string
}

func (e *ActiveRunError) Error() string {
	return fmt.Sprintf("autonomous run %s is already %s; stop it before starting a new run", e.RunID, e.Status)
}

func (e *ActiveRunError) Unwrap() error {
	return ErrActiveRun
}

// NotFoundError reports a missing run, job or resume.
type NotFoundError struct {
	Resource string
	IDs      []uuid.UUID
}

func (e *NotFoundError) Error() string {
	if len(e.IDs) == 0 {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s not found: %v", e.Resource, e.IDs)
}

// ValidationError reports an invalid run request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// FatalError aborts a whole run. The run is marked failed with its message.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatal(op string, err error) error {
	return &FatalError{Op: op, Err: err}
}
