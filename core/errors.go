package core

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/diamondlightsource/glazed/tiled"
)

var ErrNotFound = errors.New("glazed: not found")

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// CommandError is a startup-time failure: the process was asked to do
// something it doesn't know how to do.
type CommandError struct {
	Command string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("glazed: unknown command %q", e.Command)
}

// RenderError is a template that exists but could not be executed.
type RenderError struct {
	Template string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("glazed: rendering %s: %v", e.Template, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// AccessError is a request for a path outside the served root.
type AccessError struct {
	Path string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("glazed: access to %q denied", e.Path)
}

// HTTPStatus maps a request-scoped error onto the response code it should
// produce. Upstream failures surface as 502 so callers can tell glazed
// problems from Tiled problems.
func HTTPStatus(err error) int {
	var accessErr *AccessError
	var renderErr *RenderError
	var requestErr *tiled.RequestError
	var internalErr *tiled.InternalError
	var responseErr *tiled.ResponseError

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &accessErr):
		return http.StatusForbidden
	case errors.As(err, &renderErr):
		return http.StatusInternalServerError
	case errors.As(err, &requestErr), errors.As(err, &internalErr), errors.As(err, &responseErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
