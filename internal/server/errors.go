package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/apply-agent/internal/workflow"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrBadRequest indicates a request that could not be decoded.
type ErrBadRequest struct {
	Message string
}

func (e *ErrBadRequest) Error() string {
	return e.Message
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		activeErr   *workflow.ActiveRunError
		notFoundErr *workflow.NotFoundError
		wfValidErr  *workflow.ValidationError
		validErr    *ErrValidation
		badReqErr   *ErrBadRequest
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &activeErr), errors.Is(err, workflow.ErrActiveRun):
		return http.StatusConflict
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &wfValidErr), errors.As(err, &validErr), errors.As(err, &badReqErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
