package events

import "errors"

var (
	ErrNotFound        = errors.New("event not found")
	ErrForbidden       = errors.New("not allowed to access this event")
	ErrInvalidLifecycle = errors.New("invalid lifecycle transition")
)
