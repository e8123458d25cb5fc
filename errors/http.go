package errors

import (
	stderrors "errors"
	"net/http"
)

// HTTPStatus maps a service error to the status code returned by the account API.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrInvalidPayload),
		stderrors.Is(err, ErrUsernameTaken),
		stderrors.Is(err, ErrInvalidAvatar):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrInvalidToken), stderrors.Is(err, ErrUnknownUsername):
		return http.StatusUnauthorized
	case stderrors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case stderrors.Is(err, ErrUserNotFound), stderrors.Is(err, ErrUnknownUser):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Code is the stable machine-readable code written in error bodies.
func Code(err error) string {
	switch {
	case stderrors.Is(err, ErrUsernameTaken):
		return "USERNAME_TAKEN"
	case stderrors.Is(err, ErrInvalidAvatar):
		return "INVALID_AVATAR"
	case stderrors.Is(err, ErrInvalidPayload):
		return "INVALID_PAYLOAD"
	case stderrors.Is(err, ErrInvalidToken):
		return "UNAUTHORIZED"
	case stderrors.Is(err, ErrUnknownUsername):
		return "INVALID_CREDENTIALS"
	case stderrors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case stderrors.Is(err, ErrUserNotFound), stderrors.Is(err, ErrUnknownUser):
		return "USER_NOT_FOUND"
	default:
		return "INTERNAL_ERROR"
	}
}
