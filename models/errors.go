package models

import "errors"

// Domain errors returned by the core. Callers compare with errors.Is; store
// failures are wrapped around ErrPersistence.
var (
	ErrUnavailable            = errors.New("no eligible counselor available")
	ErrDuplicateActiveSession = errors.New("an active session already exists")
	ErrAlreadyFinished        = errors.New("session already finished")
	ErrNotFound               = errors.New("not found")
	ErrBlocked                = errors.New("identity is blocked")
	ErrDeliveryFailed         = errors.New("message could not be delivered")
	ErrPersistence            = errors.New("persistence failure")
	ErrHandleSpaceExhausted   = errors.New("anonymous handle space exhausted")
	ErrSessionNotActive       = errors.New("session is not active")
)
