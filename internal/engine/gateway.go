package engine

import (
	"context"

	"github.com/roach88/tillsync/internal/pos"
)

// Gateway is the boundary to the remote POS backend. One method per command
// type; each carries the client-generated entity id as its idempotency key,
// so redelivering a command the backend already applied is harmless.
//
// Implementations must classify every outcome through Result. Returning a
// plain error is not part of the contract: the drain loop needs to know
// whether an attempt is worth repeating.
type Gateway interface {
	OpenBatch(ctx context.Context, b pos.Batch) Result
	CloseBatch(ctx context.Context, b pos.Batch) Result
	CreateOrder(ctx context.Context, o pos.Order) Result
	CreateRefund(ctx context.Context, r pos.Refund) Result
}

// Outcome is the tri-state classification of a dispatch attempt.
type Outcome int

const (
	// OutcomeSuccess: the backend acknowledged the command.
	OutcomeSuccess Outcome = iota + 1
	// OutcomeBusinessFailure: the backend understood the request and
	// refused it. Retrying cannot help.
	OutcomeBusinessFailure
	// OutcomeTransientFailure: the request may not have reached the
	// backend, or the backend was unavailable. Worth retrying.
	OutcomeTransientFailure
)

// Result is what a Gateway call produces. Exactly one of ServerID, Message,
// or Cause is meaningful, selected by Outcome.
type Result struct {
	Outcome  Outcome
	ServerID string // backend identifier for the entity, on success
	Message  string // rejection reason, on business failure
	Cause    error  // underlying error, on transient failure
}

// Success acknowledges a command with the backend's id for the entity.
func Success(serverID string) Result {
	return Result{Outcome: OutcomeSuccess, ServerID: serverID}
}

// BusinessFailure records a definitive rejection.
func BusinessFailure(msg string) Result {
	return Result{Outcome: OutcomeBusinessFailure, Message: msg}
}

// TransientFailure records a retryable failure.
func TransientFailure(cause error) Result {
	return Result{Outcome: OutcomeTransientFailure, Cause: cause}
}
