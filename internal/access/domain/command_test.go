package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"accessctl/internal/access/domain"
	"accessctl/internal/common/types"
)

type CommandSuite struct {
	suite.Suite
	now time.Time
}

func TestCommandSuite(t *testing.T) {
	suite.Run(t, new(CommandSuite))
}

func (s *CommandSuite) SetupTest() {
	s.now = time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
}

func (s *CommandSuite) TestValidateCommandTransition() {
	legal := []struct{ from, to domain.CommandState }{
		{domain.CommandStateCreated, domain.CommandStateSent},
		{domain.CommandStateSent, domain.CommandStateReceived},
		{domain.CommandStateSent, domain.CommandStateTimeout},
		{domain.CommandStateReceived, domain.CommandStateExecutedOK},
		{domain.CommandStateReceived, domain.CommandStateExecutedError},
		{domain.CommandStateReceived, domain.CommandStateTimeout},
	}
	for _, tc := range legal {
		s.Run(string(tc.from)+"->"+string(tc.to), func() {
			s.NoError(domain.ValidateCommandTransition(tc.from, tc.to))
		})
	}

	illegal := []struct{ from, to domain.CommandState }{
		{domain.CommandStateCreated, domain.CommandStateReceived},
		{domain.CommandStateCreated, domain.CommandStateExecutedOK},
		{domain.CommandStateExecutedOK, domain.CommandStateSent},
		{domain.CommandStateTimeout, domain.CommandStateReceived},
		{domain.CommandStateReceived, domain.CommandStateCreated},
	}
	for _, tc := range illegal {
		s.Run(string(tc.from)+"->"+string(tc.to)+" is rejected", func() {
			err := domain.ValidateCommandTransition(tc.from, tc.to)
			s.ErrorIs(err, domain.ErrInvalidCommandTransition)
		})
	}
}

func (s *CommandSuite) TestTransitionAppliesOnSuccessAndStampsSentAt() {
	cmd := domain.NewDeviceCommand(
		types.CommandID("cmd-1"), types.OrgID("org-1"), types.AttemptID("attempt-1"),
		types.DeviceID("device-1"), domain.CommandOpenDoor, nil, "idem-1", s.now,
	)

	err := cmd.Transition(domain.CommandStateSent, s.now.Add(time.Second))
	s.Require().NoError(err)
	s.Equal(domain.CommandStateSent, cmd.State())
	s.Require().NotNil(cmd.SentAt())
	s.Equal(s.now.Add(time.Second), *cmd.SentAt())
}

func (s *CommandSuite) TestTransitionRejectsIllegalMoveAndLeavesStateUnchanged() {
	cmd := domain.NewDeviceCommand(
		types.CommandID("cmd-1"), types.OrgID("org-1"), types.AttemptID("attempt-1"),
		types.DeviceID("device-1"), domain.CommandOpenDoor, nil, "idem-1", s.now,
	)

	err := cmd.Transition(domain.CommandStateExecutedOK, s.now)
	s.ErrorIs(err, domain.ErrInvalidCommandTransition)
	s.Equal(domain.CommandStateCreated, cmd.State())
}
