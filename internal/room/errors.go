package room

import (
	"errors"
	"fmt"
)

// ErrPrecondition is wrapped by every "not ready yet" failure. Callers
// normally just log it: these are expected during transitions.
var ErrPrecondition = errors.New("room: precondition not met")

var (
	ErrNotConnected     = fmt.Errorf("%w: not connected", ErrPrecondition)
	ErrNoUser           = fmt.Errorf("%w: no current user", ErrPrecondition)
	ErrNoRoom           = fmt.Errorf("%w: not in a room", ErrPrecondition)
	ErrNoParticipant    = fmt.Errorf("%w: no direct message participant", ErrPrecondition)
	ErrDuplicateRequest = fmt.Errorf("%w: request already pending", ErrPrecondition)
)

// ErrContract marks a server message that breaks the protocol.
var ErrContract = errors.New("room: server contract violation")

// contractError carries the offending event name.
type contractError struct {
	event string
	msg   string
}

func (e *contractError) Error() string {
	return fmt.Sprintf("room: %s: %s", e.event, e.msg)
}

func (e *contractError) Unwrap() error { return ErrContract }
