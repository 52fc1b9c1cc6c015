package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when Chat is entered while a turn is active on
	// the same runner.
	ErrBusy = errors.New("runner is busy")

	// ErrAborted is returned when a run was cancelled via Abort.
	ErrAborted = errors.New("run aborted")

	// ErrMaxTurns names the turn cap as an error value. The inner loop
	// does not return it: hitting the cap ends the run with
	// FinishMaxTurns and a nil error.
	ErrMaxTurns = errors.New("max turns reached")
)

// LoopError wraps a failure inside the inner loop with its position.
type LoopError struct {
	Turn  int
	Cause error
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("turn %d: %v", e.Turn, e.Cause)
}

func (e *LoopError) Unwrap() error {
	return e.Cause
}
