package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalTransition indicates the caller sequenced lifecycle calls
	// incorrectly, e.g. Deactivate while stopped. It is raised as a panic.
	ErrIllegalTransition = errors.New("illegal routing state transition")

	// ErrEngineClosed indicates the engine's control loop has been shut down.
	ErrEngineClosed = errors.New("routing engine closed")

	// ErrNoBluetoothAdapter is returned by platforms that have no adapter.
	// The engine treats it as hardware absence, not as a failure.
	ErrNoBluetoothAdapter = errors.New("no bluetooth adapter")
)

// illegalTransition panics with an error wrapping ErrIllegalTransition.
func illegalTransition(op string, from LifecycleState) {
	panic(fmt.Errorf("%w: %s while %s", ErrIllegalTransition, op, from))
}
