package domain

import "errors"

var (
	ErrRuleNotFound        = errors.New("rule not found")
	ErrDuplicateRule       = errors.New("a rule with the same matchers and action already exists")
	ErrInvalidDailyWindow  = errors.New("daily window must have both fromLocal and toLocal, and they must differ")
	ErrInvalidWindow       = errors.New("validity window must have both validFromUtc and validToUtc")
	ErrDeviceNotInArea     = errors.New("device does not belong to the rule's area")
	ErrCorruptData         = errors.New("corrupt data in database")
)
