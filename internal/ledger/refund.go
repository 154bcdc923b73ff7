package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/tillsync/internal/pos"
	"github.com/roach88/tillsync/internal/store"
)

// RefundLedger records full and partial refunds against local orders.
type RefundLedger struct {
	store *store.Store
	ids   pos.IDGenerator
	now   func() time.Time
}

// NewRefundLedger creates a refund ledger.
func NewRefundLedger(s *store.Store, ids pos.IDGenerator, now func() time.Time) *RefundLedger {
	return &RefundLedger{store: s, ids: ids, now: now}
}

// Create validates the request against the order and its prior refunds,
// computes the amount (pure, at creation time - never during dispatch),
// persists the refund in LOCAL_ONLY state, and enqueues a CREATE_REFUND
// command parented on the order.
func (l *RefundLedger) Create(ctx context.Context, orderID string, req pos.RefundRequest) (*pos.Refund, error) {
	o, err := l.store.OrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}

	refunded, err := l.store.RefundedTotal(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}

	amount, err := pos.ComputeRefundAmount(*o, refunded, req)
	if err != nil {
		return nil, fmt.Errorf("create refund: %w: %w", err, ErrValidation)
	}

	r := &pos.Refund{
		ID:        l.ids.NewID(),
		OrderID:   orderID,
		Type:      req.Type,
		Amount:    amount,
		Reason:    req.Reason,
		CreatedAt: l.now(),
		SyncState: pos.RecordLocalOnly,
	}

	if err := l.store.CreateRefund(ctx, r); err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}

	slog.Info("refund created",
		"refund_id", r.ID,
		"order_id", r.OrderID,
		"type", string(r.Type),
		"amount", int64(r.Amount),
	)
	return r, nil
}

// Get returns a refund by id, or nil if unknown.
func (l *RefundLedger) Get(ctx context.Context, id string) (*pos.Refund, error) {
	return l.store.RefundByID(ctx, id)
}

// ListByOrder lists an order's refunds in creation order.
func (l *RefundLedger) ListByOrder(ctx context.Context, orderID string) ([]pos.Refund, error) {
	return l.store.RefundsByOrder(ctx, orderID)
}
