package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kinds. Every error surfaced to a connection or an HTTP caller wraps exactly one of them.
var (
	ErrAuthentication = fmt.Errorf("authentication failed")
	ErrAuthorization  = fmt.Errorf("not authorized")
	ErrNotFound       = fmt.Errorf("not found")
	ErrValidation     = fmt.Errorf("validation failed")
	ErrDelivery       = fmt.Errorf("delivery failed")
	ErrPersistence    = fmt.Errorf("persistence failed")
	ErrConflict       = fmt.Errorf("conflict")
)

var (
	ErrNotAuthenticated  = fmt.Errorf("%w: connection is not authenticated", ErrAuthorization)
	ErrNotMember         = fmt.Errorf("%w: connection has not joined this room", ErrAuthorization)
	ErrAccessDenied      = fmt.Errorf("%w: access denied to this room", ErrAuthorization)
	ErrMissingCredential = fmt.Errorf("%w: credential is missing", ErrAuthentication)
	ErrInvalidToken      = fmt.Errorf("%w: invalid or expired token", ErrAuthentication)

	ErrInvalidRoomID  = fmt.Errorf("%w: room id must be positive", ErrValidation)
	ErrEmptyMessage   = fmt.Errorf("%w: message is empty", ErrValidation)
	ErrMessageTooLong = fmt.Errorf("%w: message is too long", ErrValidation)
	ErrUnknownEvent   = fmt.Errorf("%w: unknown event", ErrValidation)
	ErrMalformedEvent = fmt.Errorf("%w: malformed event payload", ErrValidation)
	ErrRateLimited    = fmt.Errorf("%w: too many events", ErrValidation)

	ErrRoomNotFound = fmt.Errorf("%w: room", ErrNotFound)
	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)
	ErrFileNotFound = fmt.Errorf("%w: file", ErrNotFound)

	ErrConnectionClosed = fmt.Errorf("%w: connection closed", ErrDelivery)
	ErrSendBufferFull   = fmt.Errorf("%w: send buffer full", ErrDelivery)
	ErrUnknownHandle    = fmt.Errorf("%w: unknown handle", ErrDelivery)

	ErrInvalidTransition = fmt.Errorf("invalid connection state transition")
	ErrAlreadyRegistered = fmt.Errorf("connection already authenticated")

	ErrInvalidCredentials   = fmt.Errorf("%w: invalid credentials", ErrAuthentication)
	ErrUserAlreadyExists    = fmt.Errorf("%w: user or email already exists", ErrConflict)
	ErrInvalidPassword      = fmt.Errorf("%w: password does not meet requirements", ErrValidation)
	ErrTokenGeneration      = fmt.Errorf("token generation failed")
	ErrUnsupportedMediaType = fmt.Errorf("%w: unsupported media type", ErrValidation)
	ErrFileTooLarge         = fmt.Errorf("%w: file too large", ErrValidation)

	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")
)

// Is and As are re-exported so callers importing this package as "errors"
// keep the standard helpers at hand.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

// Code returns the wire code sent in "error" events.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrAuthentication):
		return "authentication"
	case Is(err, ErrAuthorization):
		return "authorization"
	case Is(err, ErrNotFound):
		return "not_found"
	case Is(err, ErrValidation):
		return "validation"
	case Is(err, ErrConflict):
		return "conflict"
	case Is(err, ErrPersistence):
		return "persistence"
	case Is(err, ErrDelivery):
		return "delivery"
	default:
		return "internal"
	}
}

// HTTPStatus maps an error kind to the status returned by the HTTP API.
func HTTPStatus(err error) int {
	switch Code(err) {
	case "":
		return http.StatusOK
	case "authentication":
		return http.StatusUnauthorized
	case "authorization":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "validation":
		if Is(err, ErrUnsupportedMediaType) {
			return http.StatusUnsupportedMediaType
		}
		if Is(err, ErrFileTooLarge) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case "conflict":
		return http.StatusConflict
	case "persistence":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
