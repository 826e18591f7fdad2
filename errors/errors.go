package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound             = fmt.Errorf("not found")
	ErrForbidden            = fmt.Errorf("forbidden")
	ErrAlreadyResolved      = fmt.Errorf("request already resolved")
	ErrAlreadyClosed        = fmt.Errorf("conversation already closed")
	ErrInvalidTarget        = fmt.Errorf("invalid request target")
	ErrEmptyContent         = fmt.Errorf("empty content")
	ErrContentTooLong       = fmt.Errorf("content too long")
	ErrConversationClosed   = fmt.Errorf("conversation closed")
	ErrPersistenceFailure   = fmt.Errorf("persistence failure")
	ErrTransportUnavailable = fmt.Errorf("transport unavailable")

	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no censored words loaded")

	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrValidation         = fmt.Errorf("invalid input")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)

// Code returns the short machine-readable code used in error frames
// sent back over the live transport.
func Code(err error) string {
	switch {
	case stderrors.Is(err, ErrNotFound):
		return "not-found"
	case stderrors.Is(err, ErrForbidden):
		return "forbidden"
	case stderrors.Is(err, ErrAlreadyResolved):
		return "already-resolved"
	case stderrors.Is(err, ErrAlreadyClosed):
		return "already-closed"
	case stderrors.Is(err, ErrInvalidTarget):
		return "invalid-target"
	case stderrors.Is(err, ErrEmptyContent):
		return "empty-content"
	case stderrors.Is(err, ErrContentTooLong):
		return "content-too-long"
	case stderrors.Is(err, ErrConversationClosed):
		return "conversation-closed"
	case stderrors.Is(err, ErrUserAlreadyExists):
		return "user-already-exists"
	case stderrors.Is(err, ErrInvalidCredentials):
		return "invalid-credentials"
	case stderrors.Is(err, ErrInvalidPassword):
		return "invalid-password"
	case stderrors.Is(err, ErrValidation):
		return "invalid-input"
	default:
		return "internal"
	}
}

// MapToHTTPStatus translates the error taxonomy at the REST edge.
// Anything unrecognized is a 500: commands fail closed.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case stderrors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case stderrors.Is(err, ErrAlreadyResolved),
		stderrors.Is(err, ErrAlreadyClosed),
		stderrors.Is(err, ErrConversationClosed),
		stderrors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	case stderrors.Is(err, ErrInvalidTarget),
		stderrors.Is(err, ErrEmptyContent),
		stderrors.Is(err, ErrContentTooLong),
		stderrors.Is(err, ErrInvalidPassword),
		stderrors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
