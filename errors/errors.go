package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	ErrUnauthenticated     = fmt.Errorf("unauthenticated")
	ErrInvalidCredentials  = fmt.Errorf("invalid credentials")
	ErrInvalidPassword     = fmt.Errorf("invalid password")
	ErrInvalidRegistration = fmt.Errorf("invalid registration")
	ErrTokenGeneration     = fmt.Errorf("token generation failed")
	ErrUserAlreadyExists   = fmt.Errorf("user already exists")
	ErrUserNotFound        = fmt.Errorf("user not found")
	ErrForbidden           = fmt.Errorf("forbidden")

	ErrMessageNotFound = fmt.Errorf("message not found")
	ErrMalformedFrame  = fmt.Errorf("malformed frame")
	ErrEmptyContent    = fmt.Errorf("empty content")
	ErrContentTooLong  = fmt.Errorf("content too long")
	ErrPersistFailed   = fmt.Errorf("message persistence failed")
	ErrInvalidQuery    = fmt.Errorf("invalid query")

	ErrHistoryUnavailable = fmt.Errorf("history unavailable")
	ErrDeliveryFailed     = fmt.Errorf("delivery failed")
)

// MapToHTTPStatus translates a domain error into the HTTP status returned by the REST surface.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidPassword), errors.Is(err, ErrInvalidRegistration), errors.Is(err, ErrInvalidQuery),
		errors.Is(err, ErrEmptyContent), errors.Is(err, ErrContentTooLong),
		errors.Is(err, ErrMalformedFrame):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
