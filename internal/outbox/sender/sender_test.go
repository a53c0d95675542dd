package sender

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/suite"
)

type ClassifySuite struct {
	suite.Suite
}

func TestClassifySuite(t *testing.T) {
	suite.Run(t, new(ClassifySuite))
}

func (s *ClassifySuite) TestClassifyMapsKnownErrors() {
	cases := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{"deadline exceeded", context.DeadlineExceeded, "TIMEOUT", true},
		{"connection closed", nats.ErrConnectionClosed, "CONNECTION", true},
		{"connection draining", nats.ErrConnectionDraining, "CONNECTION", true},
		{"disconnected", nats.ErrDisconnected, "CONNECTION", true},
		{"max payload", nats.ErrMaxPayload, "OVERSIZE_RECORD", false},
		{"stream not found", nats.ErrStreamNotFound, "CONFIGURATION", false},
		{"no stream response", nats.ErrNoStreamResponse, "CONFIGURATION", false},
		{"unknown", errors.New("boom"), "UNKNOWN", true},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			got := classify(tc.err)
			s.Equal(tc.code, got.Code)
			s.Equal(tc.retryable, got.Retryable)
			s.ErrorIs(got.Unwrap(), tc.err)
		})
	}
}

func (s *ClassifySuite) TestClassifyWrapsErrorsIsCompatible() {
	wrapped := errWrap{context.DeadlineExceeded}
	got := classify(wrapped)
	s.Equal("TIMEOUT", got.Code)
}

type errWrap struct{ cause error }

func (e errWrap) Error() string { return "wrapped: " + e.cause.Error() }
func (e errWrap) Unwrap() error { return e.cause }
