package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/tillsync/internal/pos"
)

const refundColumns = `id, order_id, refund_type, amount, reason, created_at,
	sync_state, server_id`

// CreateRefund atomically persists a refund and enqueues its CREATE_REFUND
// command, parented on the refunded order.
func (s *Store) CreateRefund(ctx context.Context, r *pos.Refund) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create refund: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO refund
		(id, order_id, refund_type, amount, reason, created_at, sync_state, server_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, '')
	`,
		r.ID,
		r.OrderID,
		string(r.Type),
		int64(r.Amount),
		r.Reason,
		r.CreatedAt,
		string(r.SyncState),
	)
	if err != nil {
		return fmt.Errorf("create refund: insert: %w", err)
	}

	cmd := &pos.Command{
		Type:           pos.CmdCreateRefund,
		EntityID:       r.ID,
		ParentID:       r.OrderID,
		IdempotencyKey: r.ID,
		CreatedAt:      r.CreatedAt,
	}
	if _, err := enqueueCommandTx(ctx, tx, cmd); err != nil {
		return fmt.Errorf("create refund: enqueue: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create refund: commit: %w", err)
	}
	return nil
}

// SetRefundSynced marks a refund acknowledged by the backend.
func (s *Store) SetRefundSynced(ctx context.Context, id, serverID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE refund SET sync_state = ?, server_id = ? WHERE id = ?
	`, string(pos.RecordSynced), serverID, id)
	if err != nil {
		return fmt.Errorf("set refund synced: %w", err)
	}
	return nil
}

// RefundByID returns a refund, or nil if unknown.
func (s *Store) RefundByID(ctx context.Context, id string) (*pos.Refund, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+refundColumns+` FROM refund WHERE id = ?
	`, id)
	r, err := scanRefund(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("refund by id: %w", err)
	}
	return r, nil
}

// RefundsByOrder lists an order's refunds in creation order.
func (s *Store) RefundsByOrder(ctx context.Context, orderID string) ([]pos.Refund, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+refundColumns+` FROM refund
		WHERE order_id = ?
		ORDER BY created_at ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("refunds by order: %w", err)
	}
	defer rows.Close()

	var refunds []pos.Refund
	for rows.Next() {
		r, err := scanRefund(rows)
		if err != nil {
			return nil, fmt.Errorf("refunds by order: scan: %w", err)
		}
		refunds = append(refunds, *r)
	}
	return refunds, rows.Err()
}

// RefundedTotal sums an order's recorded refunds. Local refunds count:
// offline, the local log is the truth the next refund validates against.
func (s *Store) RefundedTotal(ctx context.Context, orderID string) (pos.Cents, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM refund WHERE order_id = ?
	`, orderID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("refunded total: %w", err)
	}
	return pos.Cents(total), nil
}

func scanRefund(row rowScanner) (*pos.Refund, error) {
	var r pos.Refund
	var refundType, syncState string
	err := row.Scan(
		&r.ID,
		&r.OrderID,
		&refundType,
		(*int64)(&r.Amount),
		&r.Reason,
		&r.CreatedAt,
		&syncState,
		&r.ServerID,
	)
	if err != nil {
		return nil, err
	}
	r.Type = pos.RefundType(refundType)
	r.SyncState = pos.RecordSyncState(syncState)
	return &r, nil
}

// SyncStatus resolves an entity id to its sync state, looking across all
// three ledgers. Returns ("", nil) for an unknown id.
func (s *Store) SyncStatus(ctx context.Context, entityID string) (string, error) {
	var state string
	err := s.db.QueryRowContext(ctx, `
		SELECT sync_state FROM batch WHERE id = ?
		UNION ALL
		SELECT sync_state FROM sale_order WHERE id = ?
		UNION ALL
		SELECT sync_state FROM refund WHERE id = ?
		LIMIT 1
	`, entityID, entityID, entityID).Scan(&state)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sync status: %w", err)
	}
	return state, nil
}
