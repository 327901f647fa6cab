package domain

import (
	"errors"
	"fmt"
)

// Structural failures. They are always returned to the caller, never swallowed.
var (
	// ErrIncompatiblePorts is returned when two ports differ in class or share a direction.
	ErrIncompatiblePorts = errors.New("incompatible ports")
	// ErrNotConnected is returned when disconnecting a pair that has no link.
	ErrNotConnected = errors.New("ports are not connected")
	// ErrPortNotOwned is returned when a block is asked to remove a port it does not own.
	ErrPortNotOwned = errors.New("port not owned by block")
	// ErrBlockNotFound is returned for unknown block handles or names.
	ErrBlockNotFound = errors.New("block not found")
	// ErrPortNotFound is returned for unknown port handles or names.
	ErrPortNotFound = errors.New("port not found")
	// ErrSettingNotFound is returned for unknown setting names.
	ErrSettingNotFound = errors.New("setting not found")
)

// Procedure lifecycle failures.
var (
	// ErrNoStartStep is returned when a procedure graph has no start step.
	ErrNoStartStep = errors.New("procedure has no start step")
	// ErrAlreadyRunning is returned when starting an instance that is not idle.
	ErrAlreadyRunning = errors.New("procedure instance already running")
	// ErrInstanceNotFound is returned when an instance ID cannot be found.
	ErrInstanceNotFound = errors.New("procedure instance not found")
	// ErrUnknownProcedure is returned when launching a name that was never registered.
	ErrUnknownProcedure = errors.New("unknown procedure")
)

// StructuralError describes a rejected graph mutation.
type StructuralError struct {
	Op    string // e.g. "connect", "disconnect", "remove port"
	Block BlockID
	Port  PortID
	Err   error
}

func (e *StructuralError) Error() string {
	switch {
	case e.Port != 0 && e.Block != 0:
		return fmt.Sprintf("%s: block %d port %d: %v", e.Op, e.Block, e.Port, e.Err)
	case e.Port != 0:
		return fmt.Sprintf("%s: port %d: %v", e.Op, e.Port, e.Err)
	case e.Block != 0:
		return fmt.Sprintf("%s: block %d: %v", e.Op, e.Block, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *StructuralError) Unwrap() error { return e.Err }

func structural(op string, block BlockID, port PortID, err error) error {
	return &StructuralError{Op: op, Block: block, Port: port, Err: err}
}
