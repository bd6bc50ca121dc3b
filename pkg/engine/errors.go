package engine

import (
	"errors"
	"fmt"
)

// ErrScriptInactive is returned when starting a session on a retired script.
var ErrScriptInactive = errors.New("script is not active")

// ErrSessionNotActive is returned when a message arrives for a session that
// already reached done or failed.
var ErrSessionNotActive = errors.New("session is not active")

// SkipCycleError reports a skip-condition chain that revisited a step within
// one evaluation pass. Fatal for the transition: the session stays at its
// last stable step instead of looping.
type SkipCycleError struct {
	StepID string
}

func (e *SkipCycleError) Error() string {
	return fmt.Sprintf("skip conditions cycle back to step %s", e.StepID)
}

// DanglingTargetError reports a transition target that resolves to nothing
// at runtime. Tolerated as a warning at save time, unrecoverable here: the
// session is marked failed.
type DanglingTargetError struct {
	StepID string
	Target string
}

func (e *DanglingTargetError) Error() string {
	return fmt.Sprintf("step %s transitions to unknown target %q", e.StepID, e.Target)
}
