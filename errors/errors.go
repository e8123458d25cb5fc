package errors

import "fmt"

var (
	ErrWorkerPanic     = fmt.Errorf("worker panic")
	ErrEngineStopped   = fmt.Errorf("engine stopped")
	ErrUnauthenticated = fmt.Errorf("connection is not authenticated")
	ErrUnknownUser     = fmt.Errorf("unknown user")
	ErrUserNotFound    = fmt.Errorf("user not found")
	ErrUsernameTaken   = fmt.Errorf("username already exists")
	ErrInvalidPayload  = fmt.Errorf("invalid payload")
	ErrUnknownEvent    = fmt.Errorf("unknown event")
	ErrInvalidAvatar   = fmt.Errorf("invalid avatar")
	ErrInvalidToken    = fmt.Errorf("invalid or expired token")
	ErrForbidden       = fmt.Errorf("forbidden")
	ErrUnknownUsername = fmt.Errorf("unknown username")
	ErrBufferFull      = fmt.Errorf("connection buffer full")
	ErrConnClosed      = fmt.Errorf("connection closed")
)
