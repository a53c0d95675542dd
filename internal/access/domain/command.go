package domain

import (
	"fmt"
	"time"

	"accessctl/internal/common/types"
)

// Command is the device action a decision suggested.
type Command string

const (
	CommandOpenDoor       Command = "OPEN_DOOR"
	CommandDenyWithSignal Command = "DENY_WITH_SIGNAL"
)

// CommandState is a DeviceCommand's lifecycle state. Inbound confirmation
// (the SENT→RECEIVED→EXECUTED_* transitions) is driven by a handler outside
// this repo's scope; only the transition function itself is implemented and
// tested here so that future handler has a concrete contract to call.
type CommandState string

const (
	CommandStateCreated       CommandState = "CREATED"
	CommandStateSent          CommandState = "SENT"
	CommandStateReceived      CommandState = "RECEIVED"
	CommandStateExecutedOK    CommandState = "EXECUTED_OK"
	CommandStateExecutedError CommandState = "EXECUTED_ERROR"
	CommandStateTimeout       CommandState = "TIMEOUT"
)

// legalCommandTransitions enumerates the DeviceCommand state machine:
// CREATED→SENT→RECEIVED→{EXECUTED_OK|EXECUTED_ERROR|TIMEOUT}. TIMEOUT may
// also occur directly from SENT (a confirmation that never arrives).
var legalCommandTransitions = map[CommandState][]CommandState{
	CommandStateCreated:  {CommandStateSent},
	CommandStateSent:     {CommandStateReceived, CommandStateTimeout},
	CommandStateReceived: {CommandStateExecutedOK, CommandStateExecutedError, CommandStateTimeout},
}

// ValidateCommandTransition reports an error if moving from to is not a
// legal DeviceCommand state transition.
func ValidateCommandTransition(from, to CommandState) error {
	for _, allowed := range legalCommandTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidCommandTransition, from, to)
}

// DeviceCommand is the device-directed action emitted alongside a Decision.
type DeviceCommand struct {
	id             types.CommandID
	orgID          types.OrgID
	attemptID      types.AttemptID
	deviceID       types.DeviceID
	command        Command
	message        *string
	state          CommandState
	idempotencyKey string
	sentAt         *time.Time
	createdAt      time.Time
	updatedAt      time.Time
}

// NewDeviceCommand constructs a new DeviceCommand in CREATED state.
func NewDeviceCommand(
	id types.CommandID, orgID types.OrgID, attemptID types.AttemptID, deviceID types.DeviceID,
	command Command, message *string, idempotencyKey string, now time.Time,
) *DeviceCommand {
	return &DeviceCommand{
		id: id, orgID: orgID, attemptID: attemptID, deviceID: deviceID,
		command: command, message: message, state: CommandStateCreated,
		idempotencyKey: idempotencyKey, createdAt: now, updatedAt: now,
	}
}

// ReconstructDeviceCommand rebuilds a DeviceCommand from persisted fields.
func ReconstructDeviceCommand(
	id types.CommandID, orgID types.OrgID, attemptID types.AttemptID, deviceID types.DeviceID,
	command Command, message *string, state CommandState, idempotencyKey string,
	sentAt *time.Time, createdAt, updatedAt time.Time,
) *DeviceCommand {
	return &DeviceCommand{
		id: id, orgID: orgID, attemptID: attemptID, deviceID: deviceID,
		command: command, message: message, state: state, idempotencyKey: idempotencyKey,
		sentAt: sentAt, createdAt: createdAt, updatedAt: updatedAt,
	}
}

func (c *DeviceCommand) ID() types.CommandID        { return c.id }
func (c *DeviceCommand) OrgID() types.OrgID         { return c.orgID }
func (c *DeviceCommand) AttemptID() types.AttemptID { return c.attemptID }
func (c *DeviceCommand) DeviceID() types.DeviceID   { return c.deviceID }
func (c *DeviceCommand) Command() Command           { return c.command }
func (c *DeviceCommand) Message() *string           { return c.message }
func (c *DeviceCommand) State() CommandState        { return c.state }
func (c *DeviceCommand) IdempotencyKey() string     { return c.idempotencyKey }
func (c *DeviceCommand) SentAt() *time.Time         { return c.sentAt }
func (c *DeviceCommand) CreatedAt() time.Time       { return c.createdAt }
func (c *DeviceCommand) UpdatedAt() time.Time       { return c.updatedAt }

// Transition moves the command to a new state, rejecting illegal
// transitions per ValidateCommandTransition.
func (c *DeviceCommand) Transition(to CommandState, now time.Time) error {
	if err := ValidateCommandTransition(c.state, to); err != nil {
		return err
	}
	c.state = to
	c.updatedAt = now
	if to == CommandStateSent {
		c.sentAt = &now
	}
	return nil
}
