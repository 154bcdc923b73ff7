package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/tillsync/internal/pos"
	"github.com/roach88/tillsync/internal/store"
)

// OrderLedger records completed sales against an open batch.
type OrderLedger struct {
	store *store.Store
	ids   pos.IDGenerator
	now   func() time.Time
}

// NewOrderLedger creates an order ledger.
func NewOrderLedger(s *store.Store, ids pos.IDGenerator, now func() time.Time) *OrderLedger {
	return &OrderLedger{store: s, ids: ids, now: now}
}

// OrderPayload is the sale content handed over by the register UI. Totals
// are derived here; the line content itself is opaque to the sync engine.
type OrderPayload struct {
	Lines    []pos.OrderLine `json:"lines"`
	Discount pos.Cents       `json:"discount"`
	Tax      pos.Cents       `json:"tax"`
}

// Place persists an order in LOCAL_ONLY state and enqueues a CREATE_ORDER
// command referencing both the order and its owning batch. The batch must
// exist locally; it does not need to be synced - the eligibility predicate
// holds the order back until the batch's open has reached the server.
func (l *OrderLedger) Place(ctx context.Context, batchID string, payload OrderPayload) (*pos.Order, error) {
	if len(payload.Lines) == 0 {
		return nil, ErrEmptyOrder
	}

	b, err := l.store.BatchByID(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	if b == nil {
		return nil, ErrBatchNotFound
	}
	if b.State == pos.BatchClosed {
		return nil, ErrBatchClosed
	}

	var subtotal pos.Cents
	for i, line := range payload.Lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("place order: line %d: quantity must be positive: %w", i, ErrValidation)
		}
		if line.UnitPrice < 0 {
			return nil, fmt.Errorf("place order: line %d: negative unit price: %w", i, ErrValidation)
		}
		subtotal += pos.Cents(line.Quantity) * line.UnitPrice
	}

	o := &pos.Order{
		ID:        l.ids.NewID(),
		BatchID:   batchID,
		Lines:     payload.Lines,
		Subtotal:  subtotal,
		Discount:  payload.Discount,
		Tax:       payload.Tax,
		Total:     subtotal - payload.Discount + payload.Tax,
		CreatedAt: l.now(),
		SyncState: pos.RecordLocalOnly,
	}

	if err := l.store.CreateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	slog.Info("order placed",
		"order_id", o.ID,
		"batch_id", o.BatchID,
		"total", int64(o.Total),
	)
	return o, nil
}

// Get returns an order by id, or nil if unknown.
func (l *OrderLedger) Get(ctx context.Context, id string) (*pos.Order, error) {
	return l.store.OrderByID(ctx, id)
}

// ListByBatch lists a batch's orders in creation order.
func (l *OrderLedger) ListByBatch(ctx context.Context, batchID string) ([]pos.Order, error) {
	return l.store.OrdersByBatch(ctx, batchID)
}
