package domain

import "errors"

var (
	ErrDeviceNotFound  = errors.New("device not found")
	ErrSubjectNotFound = errors.New("subject not found")
	ErrCorruptData     = errors.New("corrupt data in database")
)
