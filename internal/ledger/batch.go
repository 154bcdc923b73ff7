package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/tillsync/internal/pos"
	"github.com/roach88/tillsync/internal/store"
)

// BatchLedger records cash-drawer batch lifecycle events.
type BatchLedger struct {
	store *store.Store
	ids   pos.IDGenerator
	now   func() time.Time
}

// NewBatchLedger creates a batch ledger. now supplies timestamps and is
// injectable for deterministic tests.
func NewBatchLedger(s *store.Store, ids pos.IDGenerator, now func() time.Time) *BatchLedger {
	return &BatchLedger{store: s, ids: ids, now: now}
}

// StartParams identifies who opened which drawer with how much cash.
type StartParams struct {
	UserID       string    `json:"user_id"`
	StoreID      string    `json:"store_id"`
	RegisterID   string    `json:"register_id"`
	LocationID   string    `json:"location_id"`
	StartingCash pos.Cents `json:"starting_cash"`
}

// Start opens a new batch on the register and enqueues its OPEN_BATCH
// command. If the register still has an OPEN batch, that batch is
// force-closed first, inheriting the new batch's starting cash as its
// closing amount: the drawer count taken at handover.
//
// Never touches the network and never blocks on it.
func (l *BatchLedger) Start(ctx context.Context, p StartParams) (*pos.Batch, error) {
	if p.RegisterID == "" {
		return nil, fmt.Errorf("start batch: register id is required: %w", ErrValidation)
	}

	now := l.now()
	b := &pos.Batch{
		ID:           l.ids.NewID(),
		RegisterID:   p.RegisterID,
		StoreID:      p.StoreID,
		LocationID:   p.LocationID,
		UserID:       p.UserID,
		StartingCash: p.StartingCash,
		OpenedAt:     now,
		State:        pos.BatchOpen,
		SyncState:    pos.BatchLocalOpen,
	}

	prev, err := l.store.ActiveBatch(ctx, p.RegisterID)
	if err != nil {
		return nil, fmt.Errorf("start batch: %w", err)
	}
	if prev != nil {
		closing := p.StartingCash
		closedAt := now
		prev.State = pos.BatchClosed
		prev.SyncState = pos.BatchLocalClosed
		prev.ClosingCash = &closing
		prev.ClosedAt = &closedAt
		slog.Warn("force closing previous batch",
			"register_id", p.RegisterID,
			"batch_id", prev.ID,
			"closing_cash", int64(closing),
		)
	}

	if err := l.store.StartBatch(ctx, prev, b); err != nil {
		return nil, fmt.Errorf("start batch: %w", err)
	}

	slog.Info("batch started",
		"batch_id", b.ID,
		"register_id", b.RegisterID,
		"starting_cash", int64(b.StartingCash),
	)
	return b, nil
}

// Close records the drawer count and enqueues the CLOSE_BATCH command.
// Returns false with ErrBatchNotFound or ErrBatchClosed when there is
// nothing to close; true on success.
func (l *BatchLedger) Close(ctx context.Context, batchID string, closingCash pos.Cents) (bool, error) {
	b, err := l.store.BatchByID(ctx, batchID)
	if err != nil {
		return false, fmt.Errorf("close batch: %w", err)
	}
	if b == nil {
		return false, ErrBatchNotFound
	}
	if b.State == pos.BatchClosed {
		return false, ErrBatchClosed
	}

	closedAt := l.now()
	b.State = pos.BatchClosed
	b.SyncState = pos.BatchLocalClosed
	b.ClosedAt = &closedAt
	b.ClosingCash = &closingCash

	if err := l.store.CloseBatch(ctx, b); err != nil {
		return false, fmt.Errorf("close batch: %w", err)
	}

	slog.Info("batch closed",
		"batch_id", b.ID,
		"register_id", b.RegisterID,
		"closing_cash", int64(closingCash),
	)
	return true, nil
}

// Active returns the register's OPEN batch, or nil.
func (l *BatchLedger) Active(ctx context.Context, registerID string) (*pos.Batch, error) {
	return l.store.ActiveBatch(ctx, registerID)
}

// Get returns a batch by id, or nil if unknown.
func (l *BatchLedger) Get(ctx context.Context, id string) (*pos.Batch, error) {
	return l.store.BatchByID(ctx, id)
}

// ListByRegister lists a register's batches, most recent first.
func (l *BatchLedger) ListByRegister(ctx context.Context, registerID string) ([]pos.Batch, error) {
	return l.store.BatchesByRegister(ctx, registerID)
}
