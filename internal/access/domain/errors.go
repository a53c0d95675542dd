package domain

import "errors"

var (
	ErrAttemptNotFound          = errors.New("access attempt not found")
	ErrInvalidCommandTransition = errors.New("invalid device command state transition")
	ErrCorruptData              = errors.New("corrupt data in database")
)
