package ledger

import "errors"

// Validation failures are programming or operator errors in the calling
// layer, not sync failures: they fail loudly at the call site and nothing
// is recorded or queued.
var (
	// ErrBatchNotFound: the referenced batch does not exist locally.
	ErrBatchNotFound = errors.New("batch not found")

	// ErrBatchClosed: the batch exists but is no longer OPEN.
	ErrBatchClosed = errors.New("batch already closed")

	// ErrOrderNotFound: the referenced order does not exist locally.
	ErrOrderNotFound = errors.New("order not found")

	// ErrEmptyOrder: an order needs at least one line.
	ErrEmptyOrder = errors.New("order has no lines")

	// ErrValidation wraps input problems: a missing register id, a zero
	// quantity, a refund that exceeds the refundable remainder. Callers
	// match it with errors.Is.
	ErrValidation = errors.New("validation failed")
)
