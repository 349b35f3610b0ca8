// Package apperr defines the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation failed")
	ErrExternalService      = errors.New("external service failure")
	ErrSignatureInvalid     = errors.New("signature invalid")
	ErrConfigurationMissing = errors.New("configuration missing")
)

// Status maps an error to the HTTP status a handler should answer with.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrExternalService):
		return http.StatusBadGateway
	case errors.Is(err, ErrSignatureInvalid), errors.Is(err, ErrConfigurationMissing):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text safe to show a client. Internal errors are masked.
func Message(err error) string {
	if Status(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}
