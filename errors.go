package goasio

import (
	"errors"
	"fmt"
)

// Sentinel errors for the runtime. ErrNoRuntime and ErrDoubleParked mark
// programmer-error conditions (§7) and are reported via panic; the
// others are returned to the caller, or matched via [errors.Is].
var (
	// ErrNoRuntime is panicked by [Spawn] when the [Awaiter] it is given
	// carries no runtime handle.
	ErrNoRuntime = errors.New("goasio: spawn called outside a runtime context")

	// ErrDoubleParked is panicked by [parker.park] when a second parker
	// attempts to wait on a parker that is already in the Parked state.
	ErrDoubleParked = errors.New("goasio: two concurrent parkers on one parker")

	// ErrJoinPanicked is returned by [JoinHandle] when the underlying task
	// panicked instead of completing normally.
	ErrJoinPanicked = errors.New("goasio: spawned task panicked")

	// ErrDriverClosed is returned by register when it is attempted after
	// [driver.close].
	ErrDriverClosed = errors.New("goasio: driver closed")

	// ErrTokenNotFound is returned by deregister when the token is not (or
	// is no longer) present in the slab.
	ErrTokenNotFound = errors.New("goasio: token not registered")
)

// PanicError wraps a value recovered from a panicking task, preserving the
// original value for inspection and participating in the [errors.Is] /
// [errors.As] chain both against [ErrJoinPanicked] (so callers can test
// "did this JoinHandle fail because the task panicked" without caring
// about the payload) and, where the panic value is itself an error,
// against that original cause.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("goasio: task panicked: %v", e.Value)
}

// Is reports whether target is [ErrJoinPanicked], making every
// *PanicError match it via [errors.Is].
func (e *PanicError) Is(target error) bool {
	return target == ErrJoinPanicked
}

// Unwrap returns the underlying error if the panic value is an error,
// enabling [errors.Is] / [errors.As] to match the original cause.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// wrapIOError wraps a low-level syscall error with the operation name that
// produced it, preserving the cause for [errors.Is] / [errors.As].
func wrapIOError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("goasio: %s: %w", op, err)
}
