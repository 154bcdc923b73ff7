package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/tillsync/internal/pos"
)

// DispatchError represents a command that ended terminally FAILED during a
// drain pass. It carries structured fields so status output and operator
// tooling can report which command died and why without parsing strings.
type DispatchError struct {
	// Code identifies the failure category.
	Code DispatchErrorCode

	// Message is a human-readable description (the backend's rejection
	// reason, or the last transient cause at the attempt cap).
	Message string

	// Seq identifies the command in the log.
	Seq uint64

	// CmdType is the command's type.
	CmdType pos.CommandType

	// EntityID identifies the affected batch, order, or refund.
	EntityID string

	// Attempts is how many dispatches were made before giving up.
	Attempts int
}

// DispatchErrorCode categorizes terminal dispatch failures.
type DispatchErrorCode string

const (
	// ErrCodeRejected indicates the backend refused the command.
	ErrCodeRejected DispatchErrorCode = "REJECTED"

	// ErrCodeExhausted indicates the transient retry cap was reached.
	ErrCodeExhausted DispatchErrorCode = "EXHAUSTED"

	// ErrCodeOrphaned indicates the command references an entity that no
	// longer exists locally.
	ErrCodeOrphaned DispatchErrorCode = "ORPHANED"
)

// Error implements the error interface.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s: %s (seq=%d, cmd=%s, entity=%s)",
		e.Code, e.Message, e.Seq, e.CmdType, e.EntityID)
}

// IsRejected returns true if the error is a backend business rejection.
// Uses errors.As to handle wrapped errors.
func IsRejected(err error) bool {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Code == ErrCodeRejected
	}
	return false
}

// IsExhausted returns true if the error is a retry-cap exhaustion.
// Uses errors.As to handle wrapped errors.
func IsExhausted(err error) bool {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Code == ErrCodeExhausted
	}
	return false
}
