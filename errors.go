package goLearn

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is matched by API errors with status 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is matched by API errors with status 403.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is matched by API errors with status 404.
	ErrNotFound = errors.New("not found")
	// ErrConflict is matched by API errors with status 409.
	ErrConflict = errors.New("conflict")
	// ErrValidation is matched by API errors with status 400 or 422.
	ErrValidation = errors.New("validation failed")
	// ErrRateLimited is matched by API errors with status 429.
	ErrRateLimited = errors.New("rate limited")
	// ErrServer is matched by API errors with a 5xx status.
	ErrServer = errors.New("server error")

	// ErrSessionExpired is returned to every request whose coordinated refresh failed.
	// The client has signed out by the time it is returned.
	ErrSessionExpired = errors.New("session expired")
	// ErrNotAuthenticated is returned when an operation needs a stored token and none exists.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoRefreshToken is the refresh failure cause when no refresh token is stored.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrRefreshFailed wraps the cause of a failed refresh call.
	ErrRefreshFailed = errors.New("token refresh failed")

	ErrClientClosed  = errors.New("client closed")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrUploadFailed  = errors.New("upload failed")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, msg)
}

// Is maps the status code onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrValidation:
		return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrServer:
		return e.StatusCode >= 500
	}
	return false
}
