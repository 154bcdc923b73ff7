package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/tillsync/internal/pos"
)

const batchColumns = `id, register_id, store_id, location_id, user_id,
	starting_cash, closing_cash, opened_at, closed_at, state, sync_state, server_id`

// StartBatch atomically records a new OPEN batch and its OPEN_BATCH command.
//
// When prev is non-nil it is the register's still-OPEN batch being
// force-closed: its row is updated to CLOSED/LOCAL_CLOSED with the provided
// closing cash and a CLOSE_BATCH command is enqueued ahead of the new
// batch's OPEN_BATCH. All writes - prior close, prior command, new batch,
// new command, both sequence bumps - commit in a single transaction, so a
// crash leaves either both registers' worth of facts or neither.
func (s *Store) StartBatch(ctx context.Context, prev *pos.Batch, b *pos.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start batch: begin tx: %w", err)
	}
	defer tx.Rollback()

	if prev != nil {
		if err := updateBatchCloseTx(ctx, tx, prev); err != nil {
			return fmt.Errorf("start batch: force close %s: %w", prev.ID, err)
		}
		closeCmd := &pos.Command{
			Type:           pos.CmdCloseBatch,
			EntityID:       prev.ID,
			IdempotencyKey: prev.ID,
			CreatedAt:      b.OpenedAt,
		}
		if _, err := enqueueCommandTx(ctx, tx, closeCmd); err != nil {
			return fmt.Errorf("start batch: enqueue force close: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO batch
		(id, register_id, store_id, location_id, user_id, starting_cash, closing_cash,
		 opened_at, closed_at, state, sync_state, server_id)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?, NULL, ?, ?, '')
	`,
		b.ID,
		b.RegisterID,
		b.StoreID,
		b.LocationID,
		b.UserID,
		int64(b.StartingCash),
		b.OpenedAt,
		string(b.State),
		string(b.SyncState),
	)
	if err != nil {
		return fmt.Errorf("start batch: insert: %w", err)
	}

	openCmd := &pos.Command{
		Type:           pos.CmdOpenBatch,
		EntityID:       b.ID,
		IdempotencyKey: b.ID,
		CreatedAt:      b.OpenedAt,
	}
	if _, err := enqueueCommandTx(ctx, tx, openCmd); err != nil {
		return fmt.Errorf("start batch: enqueue open: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("start batch: commit: %w", err)
	}
	return nil
}

// CloseBatch atomically records a batch close and enqueues its CLOSE_BATCH
// command.
func (s *Store) CloseBatch(ctx context.Context, b *pos.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("close batch: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := updateBatchCloseTx(ctx, tx, b); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	var closedAt time.Time
	if b.ClosedAt != nil {
		closedAt = *b.ClosedAt
	}
	cmd := &pos.Command{
		Type:           pos.CmdCloseBatch,
		EntityID:       b.ID,
		IdempotencyKey: b.ID,
		CreatedAt:      closedAt,
	}
	if _, err := enqueueCommandTx(ctx, tx, cmd); err != nil {
		return fmt.Errorf("close batch: enqueue: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("close batch: commit: %w", err)
	}
	return nil
}

func updateBatchCloseTx(ctx context.Context, tx *sql.Tx, b *pos.Batch) error {
	var closingCash any
	if b.ClosingCash != nil {
		closingCash = int64(*b.ClosingCash)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE batch
		SET closing_cash = ?, closed_at = ?, state = ?, sync_state = ?
		WHERE id = ? AND state = 'OPEN'
	`, closingCash, b.ClosedAt, string(b.State), string(b.SyncState), b.ID)
	if err != nil {
		return fmt.Errorf("update close: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update close: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("batch %s not open", b.ID)
	}
	return nil
}

// SetBatchSyncState advances a batch's sync state. Owned by the drain pass.
// serverID is recorded when non-empty (the OPEN_BATCH acknowledgment).
func (s *Store) SetBatchSyncState(ctx context.Context, id string, state pos.BatchSyncState, serverID string) error {
	var err error
	if serverID != "" {
		_, err = s.db.ExecContext(ctx, `
			UPDATE batch SET sync_state = ?, server_id = ? WHERE id = ?
		`, string(state), serverID, id)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE batch SET sync_state = ? WHERE id = ?
		`, string(state), id)
	}
	if err != nil {
		return fmt.Errorf("set batch sync state: %w", err)
	}
	return nil
}

// BatchByID returns a batch, or nil if unknown.
func (s *Store) BatchByID(ctx context.Context, id string) (*pos.Batch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+batchColumns+` FROM batch WHERE id = ?
	`, id)
	b, err := scanBatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("batch by id: %w", err)
	}
	return b, nil
}

// ActiveBatch returns the register's OPEN batch, or nil when the drawer is
// closed. The single-OPEN-batch invariant makes LIMIT 1 exact.
func (s *Store) ActiveBatch(ctx context.Context, registerID string) (*pos.Batch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+batchColumns+` FROM batch
		WHERE register_id = ? AND state = 'OPEN'
		ORDER BY opened_at DESC
		LIMIT 1
	`, registerID)
	b, err := scanBatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active batch: %w", err)
	}
	return b, nil
}

// BatchesByRegister lists a register's batches, most recent first.
func (s *Store) BatchesByRegister(ctx context.Context, registerID string) ([]pos.Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+batchColumns+` FROM batch
		WHERE register_id = ?
		ORDER BY opened_at DESC
	`, registerID)
	if err != nil {
		return nil, fmt.Errorf("batches by register: %w", err)
	}
	defer rows.Close()

	var batches []pos.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("batches by register: scan: %w", err)
		}
		batches = append(batches, *b)
	}
	return batches, rows.Err()
}

func scanBatch(row rowScanner) (*pos.Batch, error) {
	var b pos.Batch
	var closingCash *int64
	var closedAt *time.Time
	var state, syncState string
	err := row.Scan(
		&b.ID,
		&b.RegisterID,
		&b.StoreID,
		&b.LocationID,
		&b.UserID,
		(*int64)(&b.StartingCash),
		&closingCash,
		&b.OpenedAt,
		&closedAt,
		&state,
		&syncState,
		&b.ServerID,
	)
	if err != nil {
		return nil, err
	}
	if closingCash != nil {
		c := pos.Cents(*closingCash)
		b.ClosingCash = &c
	}
	b.ClosedAt = closedAt
	b.State = pos.BatchState(state)
	b.SyncState = pos.BatchSyncState(syncState)
	return &b, nil
}
