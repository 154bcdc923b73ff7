package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/tillsync/internal/pos"
)

const orderColumns = `id, batch_id, lines, subtotal, discount, tax, total,
	created_at, sync_state, server_id`

// CreateOrder atomically persists an order and enqueues its CREATE_ORDER
// command. The command's parent is the owning batch, which gates dispatch
// until the batch's open has been acknowledged remotely.
func (s *Store) CreateOrder(ctx context.Context, o *pos.Order) error {
	linesJSON, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("create order: marshal lines: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create order: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sale_order
		(id, batch_id, lines, subtotal, discount, tax, total, created_at, sync_state, server_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '')
	`,
		o.ID,
		o.BatchID,
		string(linesJSON),
		int64(o.Subtotal),
		int64(o.Discount),
		int64(o.Tax),
		int64(o.Total),
		o.CreatedAt,
		string(o.SyncState),
	)
	if err != nil {
		return fmt.Errorf("create order: insert: %w", err)
	}

	cmd := &pos.Command{
		Type:           pos.CmdCreateOrder,
		EntityID:       o.ID,
		ParentID:       o.BatchID,
		IdempotencyKey: o.ID,
		CreatedAt:      o.CreatedAt,
	}
	if _, err := enqueueCommandTx(ctx, tx, cmd); err != nil {
		return fmt.Errorf("create order: enqueue: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create order: commit: %w", err)
	}
	return nil
}

// SetOrderSynced marks an order acknowledged by the backend.
func (s *Store) SetOrderSynced(ctx context.Context, id, serverID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sale_order SET sync_state = ?, server_id = ? WHERE id = ?
	`, string(pos.RecordSynced), serverID, id)
	if err != nil {
		return fmt.Errorf("set order synced: %w", err)
	}
	return nil
}

// OrderByID returns an order, or nil if unknown.
func (s *Store) OrderByID(ctx context.Context, id string) (*pos.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+` FROM sale_order WHERE id = ?
	`, id)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("order by id: %w", err)
	}
	return o, nil
}

// OrdersByBatch lists a batch's orders in creation order.
func (s *Store) OrdersByBatch(ctx context.Context, batchID string) ([]pos.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM sale_order
		WHERE batch_id = ?
		ORDER BY created_at ASC
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("orders by batch: %w", err)
	}
	defer rows.Close()

	var orders []pos.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("orders by batch: scan: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func scanOrder(row rowScanner) (*pos.Order, error) {
	var o pos.Order
	var lines string
	var syncState string
	err := row.Scan(
		&o.ID,
		&o.BatchID,
		&lines,
		(*int64)(&o.Subtotal),
		(*int64)(&o.Discount),
		(*int64)(&o.Tax),
		(*int64)(&o.Total),
		&o.CreatedAt,
		&syncState,
		&o.ServerID,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(lines), &o.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal lines: %w", err)
	}
	o.SyncState = pos.RecordSyncState(syncState)
	return &o, nil
}
