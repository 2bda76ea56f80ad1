package reactor

import (
	"errors"
	"fmt"
)

// Sentinel error codes. Every fallible operation in the kernel returns one
// of these, wrapped with context via WrapError.
var (
	ErrInvalidArg    = errors.New("reactor: invalid argument")
	ErrNoMemory      = errors.New("reactor: no memory")
	ErrQueueFull     = errors.New("reactor: queue full")
	ErrNotFound      = errors.New("reactor: not found")
	ErrInvalidState  = errors.New("reactor: invalid state")
	ErrTimeout       = errors.New("reactor: timeout")
	ErrAlreadyExists = errors.New("reactor: already exists")
	ErrDisabled      = errors.New("reactor: disabled")
)

// WrapError wraps cause with a message, preserving errors.Is/errors.As
// compatibility against cause and against the sentinel it ultimately
// unwraps to.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}

// QueueFullError is returned by Emit/EmitFromISR when an entity's inbox has
// no free slot. It carries the target entity so callers can decide whether
// to retry, escalate, or drop.
type QueueFullError struct {
	Entity EntityID
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("reactor: inbox full for entity %d", e.Entity)
}

func (e *QueueFullError) Unwrap() error { return ErrQueueFull }

// NotFoundError is returned when an entity, state, topic, route, or
// parameter id cannot be resolved.
type NotFoundError struct {
	Kind string
	ID   any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("reactor: %s %v not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// TypeMismatchError is returned by the parameter store when a typed
// accessor is used against a parameter of a different declared type.
type TypeMismatchError struct {
	Param    ParamID
	Want     ParamType
	Got      ParamType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("reactor: parameter %d type mismatch: want %s got %s", e.Param, e.Want, e.Got)
}

func (e *TypeMismatchError) Unwrap() error { return ErrInvalidArg }

// InvalidStateError is returned when a requested state transition targets
// a state id that does not exist on the entity.
type InvalidStateError struct {
	Entity EntityID
	State  StateID
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("reactor: entity %d has no state %d", e.Entity, e.State)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }
