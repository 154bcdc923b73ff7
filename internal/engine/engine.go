package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/roach88/tillsync/internal/ledger"
	"github.com/roach88/tillsync/internal/pos"
	"github.com/roach88/tillsync/internal/store"
)

// Engine is the register-facing facade: local-first mutations on one side,
// background synchronization on the other.
//
// Mutations (StartBatch, CloseBatch, PlaceOrder, CreateRefund) commit to the
// local store and return; they never touch the network and never block on
// it. Each one kicks the scheduler so a drain pass follows promptly when the
// backend is reachable.
type Engine struct {
	store   *store.Store
	ids     pos.IDGenerator
	batches *ledger.BatchLedger
	orders  *ledger.OrderLedger
	refunds *ledger.RefundLedger
	coord   *Coordinator
	sched   *Scheduler
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator overrides the UUIDv7 generator. Tests use FixedGenerator
// for deterministic ids.
func WithIDGenerator(ids pos.IDGenerator) Option {
	return func(e *Engine) {
		e.ids = ids
	}
}

// WithClock overrides the wall clock. Tests use a fixed or stepped clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.coord.now = now
	}
}

// WithMaxAttempts sets the transient retry cap per command.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		e.coord.maxAttempts = n
	}
}

// WithBackoff sets the retry schedule.
func WithBackoff(b Backoff) Option {
	return func(e *Engine) {
		e.coord.backoff = b
	}
}

// WithLockStaleAfter sets how long a drain lock claim stays valid before
// another holder may reclaim it.
func WithLockStaleAfter(d time.Duration) Option {
	return func(e *Engine) {
		e.coord.staleAfter = d
	}
}

// WithSyncInterval sets the periodic drain cadence.
func WithSyncInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.sched.interval = d
	}
}

// WithProbe sets the connectivity probe consulted before each drain pass.
func WithProbe(p Probe) Option {
	return func(e *Engine) {
		e.sched.probe = p
	}
}

// WithHolderID sets the lock holder identity. Defaults to hostname-pid.
func WithHolderID(id string) Option {
	return func(e *Engine) {
		e.coord.holder = id
	}
}

// New wires an engine over an open store and a gateway. The ledgers share
// the coordinator's clock, so WithClock makes the whole engine deterministic.
func New(s *store.Store, gw Gateway, opts ...Option) *Engine {
	e := &Engine{
		store: s,
		ids:   pos.UUIDv7Generator{},
		coord: NewCoordinator(s, gw, defaultHolderID()),
	}
	e.sched = NewScheduler(e.coord, AlwaysOnline{}, DefaultSyncInterval)

	for _, opt := range opts {
		opt(e)
	}

	e.batches = ledger.NewBatchLedger(s, e.ids, e.coord.now)
	e.orders = ledger.NewOrderLedger(s, e.ids, e.coord.now)
	e.refunds = ledger.NewRefundLedger(s, e.ids, e.coord.now)
	return e
}

func defaultHolderID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "tillsync"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// StartBatch opens a batch on the register, force-closing any batch still
// open there, and queues the open for sync.
func (e *Engine) StartBatch(ctx context.Context, p ledger.StartParams) (*pos.Batch, error) {
	b, err := e.batches.Start(ctx, p)
	if err != nil {
		return nil, err
	}
	e.sched.Kick()
	return b, nil
}

// CloseBatch records the drawer count and queues the close for sync.
func (e *Engine) CloseBatch(ctx context.Context, batchID string, closingCash pos.Cents) (bool, error) {
	ok, err := e.batches.Close(ctx, batchID, closingCash)
	if err != nil {
		return ok, err
	}
	e.sched.Kick()
	return ok, nil
}

// PlaceOrder records a sale against an open batch and queues it for sync.
func (e *Engine) PlaceOrder(ctx context.Context, batchID string, payload ledger.OrderPayload) (*pos.Order, error) {
	o, err := e.orders.Place(ctx, batchID, payload)
	if err != nil {
		return nil, err
	}
	e.sched.Kick()
	return o, nil
}

// CreateRefund records a refund against an order and queues it for sync.
func (e *Engine) CreateRefund(ctx context.Context, orderID string, req pos.RefundRequest) (*pos.Refund, error) {
	r, err := e.refunds.Create(ctx, orderID, req)
	if err != nil {
		return nil, err
	}
	e.sched.Kick()
	return r, nil
}

// SyncNow runs one drain pass immediately, bypassing the scheduler. Used by
// the `sync` command and by tests.
func (e *Engine) SyncNow(ctx context.Context) (DrainStats, error) {
	return e.coord.Drain(ctx)
}

// Run drives background sync until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	return e.sched.Run(ctx)
}

// Kick requests a background drain pass soon. Safe from any goroutine.
func (e *Engine) Kick() {
	e.sched.Kick()
}

// SyncStatus resolves an entity id (batch, order, or refund) to its sync
// state string, or "" when unknown.
func (e *Engine) SyncStatus(ctx context.Context, entityID string) (string, error) {
	return e.store.SyncStatus(ctx, entityID)
}

// Status is a point-in-time summary of the queue and lock.
type Status struct {
	Commands   map[pos.CommandState]int `json:"commands"`
	LastSeq    uint64                   `json:"last_seq"`
	LockHolder string                   `json:"lock_holder,omitempty"`
	LockedAt   *time.Time               `json:"locked_at,omitempty"`
}

// Status reports queue depth per state, the sequence high-water mark, and
// the current lock holder.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	counts, err := e.store.CommandCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	last, err := e.store.LastSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	holder, at, err := e.store.LockHolder(ctx)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	st := &Status{Commands: counts, LastSeq: last, LockHolder: holder}
	if holder != "" {
		st.LockedAt = &at
	}
	return st, nil
}

// Archive moves DONE commands created before the cutoff to the archive
// table. Returns the number moved.
func (e *Engine) Archive(ctx context.Context, before time.Time) (int64, error) {
	return e.store.ArchiveDone(ctx, before)
}

// Batches exposes the batch ledger for read paths (CLI, HTTP API).
func (e *Engine) Batches() *ledger.BatchLedger { return e.batches }

// Orders exposes the order ledger for read paths.
func (e *Engine) Orders() *ledger.OrderLedger { return e.orders }

// Refunds exposes the refund ledger for read paths.
func (e *Engine) Refunds() *ledger.RefundLedger { return e.refunds }

// Store exposes the underlying store for diagnostics.
func (e *Engine) Store() *store.Store { return e.store }
