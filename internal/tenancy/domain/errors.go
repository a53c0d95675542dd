package domain

import "errors"

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrAreaNotFound         = errors.New("area not found")
	ErrCorruptData          = errors.New("corrupt data in database")
)
