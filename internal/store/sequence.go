package store

import (
	"context"
	"database/sql"
	"fmt"
)

// NextSeq atomically increments and returns the persistent sequence counter.
//
// The counter is the single source of the total order across all command
// types. It is strictly increasing and duplicate-free; gaps are acceptable
// (an enqueue deduped by the idempotency constraint burns its number).
//
// Safe under concurrent callers: the increment is one UPDATE on the single
// sync_sequence row inside its own transaction.
func (s *Store) NextSeq(ctx context.Context) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("next seq: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	seq, err := nextSeqTx(ctx, tx)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("next seq: commit: %w", err)
	}
	return seq, nil
}

// nextSeqTx increments the counter inside an existing transaction, so a
// ledger mutation can claim a sequence number atomically with its entity
// write and command enqueue.
func nextSeqTx(ctx context.Context, tx *sql.Tx) (uint64, error) {
	var seq uint64
	err := tx.QueryRowContext(ctx, `
		UPDATE sync_sequence SET last_seq = last_seq + 1 WHERE id = 1
		RETURNING last_seq
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return seq, nil
}

// LastSeq returns the last issued sequence number without incrementing.
// Useful for status output and tests.
func (s *Store) LastSeq(ctx context.Context) (uint64, error) {
	var seq uint64
	err := s.db.QueryRowContext(ctx, `SELECT last_seq FROM sync_sequence WHERE id = 1`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}
