package domain

import "context"

// SendError is returned by Sender.Send on failure. Retryable indicates
// whether the dispatcher should reschedule the event; RetryAfter, when
// non-zero, overrides the dispatcher's base backoff schedule.
type SendError struct {
	Retryable  bool
	Code       string
	HTTPStatus *int
	RetryAfter int64 // nanoseconds; 0 means "use base backoff"
	Cause      error
}

func (e *SendError) Error() string {
	if e.Cause != nil {
		return e.Code + ": " + e.Cause.Error()
	}
	return e.Code
}

func (e *SendError) Unwrap() error { return e.Cause }

// Sender is the transport-specific publish step. Implementations
// classify failures into retryable vs. terminal so the dispatcher knows
// whether to reschedule or give up.
type Sender interface {
	Send(ctx context.Context, event *Event) *SendError
}
