package pos

import "time"

// Cents is a monetary amount in integer cents. All arithmetic in the engine
// is integral; rendering to a display string is the CLI's concern.
type Cents int64

// BatchState is the business lifecycle of a cash-drawer batch.
type BatchState string

const (
	// BatchOpen means the drawer is accepting orders.
	BatchOpen BatchState = "OPEN"
	// BatchClosed means the drawer has been counted and closed.
	BatchClosed BatchState = "CLOSED"
)

// BatchSyncState tracks a batch's progress toward the remote backend,
// independent of its lifecycle state.
//
// The four states form two pairs: LOCAL_OPEN/OPEN_SYNCED track the open
// event, LOCAL_CLOSED/CLOSE_SYNCED track the close event. LOCAL_CLOSED does
// NOT imply the open was synced - a batch opened and closed while offline
// goes OPEN -> LOCAL_OPEN -> LOCAL_CLOSED and both commands remain queued.
type BatchSyncState string

const (
	// BatchLocalOpen: opened locally, open not yet acknowledged remotely.
	BatchLocalOpen BatchSyncState = "LOCAL_OPEN"
	// BatchOpenSynced: the open has been acknowledged by the backend.
	BatchOpenSynced BatchSyncState = "OPEN_SYNCED"
	// BatchLocalClosed: closed locally, close not yet acknowledged remotely.
	BatchLocalClosed BatchSyncState = "LOCAL_CLOSED"
	// BatchCloseSynced: both open and close acknowledged; terminal.
	BatchCloseSynced BatchSyncState = "CLOSE_SYNCED"
)

// RecordSyncState tracks an order or refund toward the backend.
type RecordSyncState string

const (
	// RecordLocalOnly: persisted locally, not yet acknowledged remotely.
	RecordLocalOnly RecordSyncState = "LOCAL_ONLY"
	// RecordSynced: acknowledged by the backend; terminal.
	RecordSynced RecordSyncState = "SYNCED"
)

// Batch is one cash-drawer session on a register, bounded by an open and a
// close event. At most one batch per register is OPEN at any time.
type Batch struct {
	ID           string     `json:"id"` // client-generated, idempotency key
	RegisterID   string     `json:"register_id"`
	StoreID      string     `json:"store_id"`
	LocationID   string     `json:"location_id"`
	UserID       string     `json:"user_id"`
	StartingCash Cents      `json:"starting_cash"`
	ClosingCash  *Cents     `json:"closing_cash,omitempty"`
	OpenedAt     time.Time  `json:"opened_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`

	State     BatchState     `json:"state"`
	SyncState BatchSyncState `json:"sync_state"`

	// ServerID is the backend's identifier, known only after OPEN_BATCH
	// succeeds remotely.
	ServerID string `json:"server_id,omitempty"`
}

// OrderLine is one line item on an order. The engine treats line content as
// opaque except for the amounts needed by refund computation.
type OrderLine struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice Cents  `json:"unit_price"`
}

// Order is a completed sale belonging to exactly one batch.
type Order struct {
	ID        string      `json:"id"` // client-generated order number, idempotency key
	BatchID   string      `json:"batch_id"`
	Lines     []OrderLine `json:"lines"`
	Subtotal  Cents       `json:"subtotal"`
	Discount  Cents       `json:"discount"` // order-level discount, distributed on partial refund
	Tax       Cents       `json:"tax"`
	Total     Cents       `json:"total"`
	CreatedAt time.Time   `json:"created_at"`

	SyncState RecordSyncState `json:"sync_state"`
	ServerID  string          `json:"server_id,omitempty"`
}

// RefundType distinguishes full-order refunds from per-line ones.
type RefundType string

const (
	// RefundFull refunds the order's remaining refundable total.
	RefundFull RefundType = "FULL"
	// RefundPartial refunds selected line quantities with proportional
	// discount and tax distribution.
	RefundPartial RefundType = "PARTIAL"
)

// Refund is a full or partial reversal of an order.
type Refund struct {
	ID        string     `json:"id"` // client-generated, idempotency key
	OrderID   string     `json:"order_id"`
	Type      RefundType `json:"type"`
	Amount    Cents      `json:"amount"`
	Reason    string     `json:"reason,omitempty"`
	CreatedAt time.Time  `json:"created_at"`

	SyncState RecordSyncState `json:"sync_state"`
	ServerID  string          `json:"server_id,omitempty"`
}

// CommandType identifies the remote effect a queued command carries.
type CommandType string

const (
	CmdOpenBatch    CommandType = "OPEN_BATCH"
	CmdCloseBatch   CommandType = "CLOSE_BATCH"
	CmdCreateOrder  CommandType = "CREATE_ORDER"
	CmdCreateRefund CommandType = "CREATE_REFUND"
)

// CommandClass partitions command types for the two-phase drain: all
// eligible batch commands are exhausted before order/refund commands are
// considered, so a batch's open always lands before its dependents.
type CommandClass string

const (
	// ClassBatch covers OPEN_BATCH and CLOSE_BATCH.
	ClassBatch CommandClass = "BATCH"
	// ClassRecord covers CREATE_ORDER and CREATE_REFUND.
	ClassRecord CommandClass = "RECORD"
)

// Class returns the drain class for the command type.
func (t CommandType) Class() CommandClass {
	switch t {
	case CmdOpenBatch, CmdCloseBatch:
		return ClassBatch
	default:
		return ClassRecord
	}
}

// CommandState is the lifecycle of a queued command.
//
// PENDING -> RUNNING -> DONE is the success path. A transient dispatch
// failure under the attempt cap returns the command to PENDING with a
// backoff deadline; at the cap, or on a business rejection, it becomes
// terminal FAILED and is surfaced rather than retried.
type CommandState string

const (
	CommandPending CommandState = "PENDING"
	CommandRunning CommandState = "RUNNING"
	CommandDone    CommandState = "DONE"
	CommandFailed  CommandState = "FAILED"
)

// Command is one durable unit of deferred remote work. Commands are
// append-only: they transition state but are never deleted, forming the
// audit trail of everything the engine has promised the backend.
type Command struct {
	Seq      uint64      `json:"seq"` // total order across all types
	Type     CommandType `json:"type"`
	EntityID string      `json:"entity_id"` // batch, order, or refund id
	// ParentID is the id of the record this command depends on: the owning
	// batch for CREATE_ORDER, the refunded order for CREATE_REFUND. Empty
	// for batch commands, whose dependency is their own entity.
	ParentID       string       `json:"parent_id,omitempty"`
	State          CommandState `json:"state"`
	Attempts       int          `json:"attempts"`
	LastError      string       `json:"last_error,omitempty"`
	IdempotencyKey string       `json:"idempotency_key"`
	CreatedAt      time.Time    `json:"created_at"`
	NextAttemptAt  time.Time    `json:"next_attempt_at"`
}
