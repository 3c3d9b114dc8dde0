package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the planning engine. Callers branch with errors.Is;
// the richer kinds carry detail via their own types below.
var (
	// ErrInvalidInput rejects empty or malformed messages before they
	// reach the state machine.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSessionNotFound means the client referenced a completed or
	// expired session. It is surfaced to the user as "please start a new
	// conversation" and never silently recreated.
	ErrSessionNotFound = errors.New("session not found")

	// ErrGatewayFailure means the model gateway call failed or returned
	// content that could not be parsed, after retries.
	ErrGatewayFailure = errors.New("model gateway failure")

	// ErrMaterializationFailure means the activity/task write failed and
	// rollback succeeded; durable state is unchanged.
	ErrMaterializationFailure = errors.New("materialization failed, changes were not saved")

	// ErrRollbackFailure means rollback itself failed. Durable state may
	// be inconsistent; this is the only unrecoverable error kind.
	ErrRollbackFailure = errors.New("rollback failed, activity may be inconsistent")
)

// MissingSlotsError reports which required slots are absent when
// materialization is refused.
type MissingSlotsError struct {
	Missing []string
}

func (e *MissingSlotsError) Error() string {
	return fmt.Sprintf("missing required slots: %s", strings.Join(e.Missing, ", "))
}

// NewMissingSlotsError builds a MissingSlotsError for the given fields.
func NewMissingSlotsError(missing []string) error {
	return &MissingSlotsError{Missing: missing}
}
