package model

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingReference matches any MissingReferenceError.
	ErrMissingReference = errors.New("score references unknown plan node")
	// ErrStaleData matches any StaleDataError.
	ErrStaleData = errors.New("stale session data")
)

// MissingReferenceError reports a score entry whose node id is absent from the plan.
type MissingReferenceError struct {
	PlanID int
	NodeID int
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("plan %d: node %d: %v", e.PlanID, e.NodeID, ErrMissingReference)
}

// Is implements error comparison against ErrMissingReference.
func (e *MissingReferenceError) Is(target error) bool {
	return target == ErrMissingReference
}

// StaleDataError reports data tagged with a session key that is no longer active.
type StaleDataError struct {
	Want string
	Got  string
}

func (e *StaleDataError) Error() string {
	return fmt.Sprintf("session %s: received data for %s: %v", e.Want, e.Got, ErrStaleData)
}

// Is implements error comparison against ErrStaleData.
func (e *StaleDataError) Is(target error) bool {
	return target == ErrStaleData
}
