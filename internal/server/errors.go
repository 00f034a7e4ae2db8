package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/autopublisher/internal/publishing"
	"github.com/jonathan/autopublisher/internal/types"
)

// ErrValidation indicates a malformed request that never reached a service.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// ErrUnavailable indicates an optional backend is not configured.
type ErrUnavailable struct {
	Service string
}

func (e *ErrUnavailable) Error() string {
	return e.Service + " is not available"
}

// ErrNotFound indicates the requested resource does not exist.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return e.Resource + " " + e.ID + " not found"
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		reqErr         *ErrValidation
		validationErr  *types.ValidationError
		notConfigured  *publishing.NotConfiguredError
		unsupported    *publishing.UnsupportedPlatformError
		unavailableErr *ErrUnavailable
		notFoundErr    *ErrNotFound
	)
	switch {
	case errors.As(err, &reqErr), errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &notConfigured), errors.As(err, &unsupported):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &unavailableErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorTitle is the short "error" field for err.
func errorTitle(err error) string {
	var (
		reqErr        *ErrValidation
		validationErr *types.ValidationError
		configErr     *publishing.ConfigError
		deleteErr     *publishing.DeleteError
	)
	switch {
	case errors.As(err, &reqErr), errors.As(err, &validationErr):
		return "validation failed"
	case errors.As(err, &configErr):
		return "platform configuration error"
	case errors.As(err, &deleteErr):
		return "delete failed"
	}
	switch HTTPStatus(err) {
	case http.StatusBadRequest:
		return "invalid platform"
	case http.StatusNotFound:
		return "not found"
	case http.StatusServiceUnavailable:
		return "service unavailable"
	default:
		return "internal error"
	}
}
