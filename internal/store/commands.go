package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/tillsync/internal/pos"
)

const commandColumns = `seq, cmd_type, entity_id, parent_id, state, attempts,
	last_error, idempotency_key, created_at, next_attempt_at`

// enqueueCommandTx claims a sequence number and inserts a PENDING command
// inside an existing transaction. Sets cmd.Seq and cmd.State on success.
//
// Uses ON CONFLICT(cmd_type, idempotency_key) DO NOTHING: recording the same
// mutation twice is a silent no-op, so at most one command per (type, entity)
// ever reaches the backend. Returns inserted=false on dedupe; the claimed
// sequence number is burned, which the total order tolerates (gaps are fine,
// duplicates are not).
func enqueueCommandTx(ctx context.Context, tx *sql.Tx, cmd *pos.Command) (bool, error) {
	seq, err := nextSeqTx(ctx, tx)
	if err != nil {
		return false, fmt.Errorf("enqueue command: %w", err)
	}
	cmd.Seq = seq
	cmd.State = pos.CommandPending

	res, err := tx.ExecContext(ctx, `
		INSERT INTO sync_command
		(seq, cmd_type, entity_id, parent_id, state, attempts, last_error, idempotency_key, created_at, next_attempt_at)
		VALUES (?, ?, ?, ?, ?, 0, '', ?, ?, ?)
		ON CONFLICT(cmd_type, idempotency_key) DO NOTHING
	`,
		cmd.Seq,
		string(cmd.Type),
		cmd.EntityID,
		cmd.ParentID,
		string(cmd.State),
		cmd.IdempotencyKey,
		cmd.CreatedAt,
		cmd.NextAttemptAt.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("enqueue command: insert: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("enqueue command: rows affected: %w", err)
	}
	return n > 0, nil
}

// EnqueueCommand appends a command to the log in its own transaction,
// returning whether a new command was inserted (false means the
// idempotency constraint deduped it). Ledger mutations enqueue through
// their entity-scoped atomic methods instead; this entry point serves
// recovery tooling and tests.
func (s *Store) EnqueueCommand(ctx context.Context, cmd *pos.Command) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("enqueue command: begin tx: %w", err)
	}
	defer tx.Rollback()

	inserted, err := enqueueCommandTx(ctx, tx, cmd)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("enqueue command: commit: %w", err)
	}
	return inserted, nil
}

// NextEligible returns the lowest-sequence PENDING command of the given
// class whose ordering precondition is satisfied and whose backoff deadline
// has passed, or nil if no command is currently eligible.
//
// The precondition is expressed against the command history (the hot log
// plus the archive, so archiving a DONE dependency cannot strand a
// dependent):
//
//	OPEN_BATCH     always eligible
//	CLOSE_BATCH    the batch's own OPEN_BATCH command is DONE
//	CREATE_ORDER   the owning batch's OPEN_BATCH command is DONE
//	CREATE_REFUND  the refunded order's CREATE_ORDER command is DONE
//
// An ineligible command is skipped, not waited on: a CLOSE_BATCH stuck
// behind its OPEN does not stall a later-sequenced CREATE_ORDER for an
// unrelated batch.
func (s *Store) NextEligible(ctx context.Context, class pos.CommandClass, now time.Time) (*pos.Command, error) {
	var types []any
	switch class {
	case pos.ClassBatch:
		types = []any{string(pos.CmdOpenBatch), string(pos.CmdCloseBatch)}
	case pos.ClassRecord:
		types = []any{string(pos.CmdCreateOrder), string(pos.CmdCreateRefund)}
	default:
		return nil, fmt.Errorf("next eligible: unknown command class %q", class)
	}

	args := append(types, now.UnixMilli())
	row := s.db.QueryRowContext(ctx, `
		SELECT `+commandColumns+`
		FROM sync_command c
		WHERE c.state = 'PENDING'
		  AND c.cmd_type IN (?, ?)
		  AND c.next_attempt_at <= ?
		  AND (
		        c.cmd_type = 'OPEN_BATCH'
		     OR (c.cmd_type = 'CLOSE_BATCH' AND EXISTS (
		            SELECT 1 FROM sync_command_history d
		            WHERE d.cmd_type = 'OPEN_BATCH'
		              AND d.entity_id = c.entity_id
		              AND d.state = 'DONE'))
		     OR (c.cmd_type = 'CREATE_ORDER' AND EXISTS (
		            SELECT 1 FROM sync_command_history d
		            WHERE d.cmd_type = 'OPEN_BATCH'
		              AND d.entity_id = c.parent_id
		              AND d.state = 'DONE'))
		     OR (c.cmd_type = 'CREATE_REFUND' AND EXISTS (
		            SELECT 1 FROM sync_command_history d
		            WHERE d.cmd_type = 'CREATE_ORDER'
		              AND d.entity_id = c.parent_id
		              AND d.state = 'DONE'))
		  )
		ORDER BY c.seq ASC
		LIMIT 1
	`, args...)

	cmd, err := scanCommand(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next eligible: %w", err)
	}
	return cmd, nil
}

// RequeueRunning resets every RUNNING command back to PENDING. A command is
// RUNNING only while a drain pass holds the lock; rows still RUNNING when a
// new pass acquires it were abandoned by an interrupted pass. Idempotency
// keys make redispatching them safe. Returns the number of commands reset.
func (s *Store) RequeueRunning(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_command SET state = 'PENDING' WHERE state = 'RUNNING'
	`)
	if err != nil {
		return 0, fmt.Errorf("requeue running: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("requeue running: rows affected: %w", err)
	}
	return n, nil
}

// MarkRunning transitions a PENDING command to RUNNING. Owned by the drain
// pass; the lock guarantees a single caller.
func (s *Store) MarkRunning(ctx context.Context, seq uint64) error {
	return s.setCommandState(ctx, seq, pos.CommandPending, pos.CommandRunning)
}

// MarkDone transitions a RUNNING command to its terminal DONE state.
func (s *Store) MarkDone(ctx context.Context, seq uint64) error {
	return s.setCommandState(ctx, seq, pos.CommandRunning, pos.CommandDone)
}

func (s *Store) setCommandState(ctx context.Context, seq uint64, from, to pos.CommandState) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_command SET state = ? WHERE seq = ? AND state = ?
	`, string(to), seq, string(from))
	if err != nil {
		return fmt.Errorf("mark command %d %s: %w", seq, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark command %d %s: rows affected: %w", seq, to, err)
	}
	if n == 0 {
		return fmt.Errorf("mark command %d %s: command not in state %s", seq, to, from)
	}
	return nil
}

// MarkFailed records a failed dispatch attempt.
//
// Under maxAttempts the command returns to PENDING with next_attempt_at set
// to retryAt, so a later drain pass picks it up after the backoff window.
// At or above maxAttempts - or when terminal is forced for a business
// rejection - it becomes FAILED and is never retried automatically again.
//
// Returns true when the command ended terminal FAILED.
func (s *Store) MarkFailed(ctx context.Context, seq uint64, cause string, terminal bool, maxAttempts int, retryAt time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("mark failed: begin tx: %w", err)
	}
	defer tx.Rollback()

	var attempts int
	err = tx.QueryRowContext(ctx, `
		UPDATE sync_command SET attempts = attempts + 1, last_error = ?
		WHERE seq = ?
		RETURNING attempts
	`, cause, seq).Scan(&attempts)
	if err != nil {
		return false, fmt.Errorf("mark failed: update: %w", err)
	}

	final := terminal || attempts >= maxAttempts
	if final {
		_, err = tx.ExecContext(ctx, `
			UPDATE sync_command SET state = 'FAILED' WHERE seq = ?
		`, seq)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE sync_command SET state = 'PENDING', next_attempt_at = ? WHERE seq = ?
		`, retryAt.UnixMilli(), seq)
	}
	if err != nil {
		return false, fmt.Errorf("mark failed: transition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("mark failed: commit: %w", err)
	}
	return final, nil
}

// CommandBySeq returns a single command from the log.
func (s *Store) CommandBySeq(ctx context.Context, seq uint64) (*pos.Command, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+commandColumns+` FROM sync_command WHERE seq = ?
	`, seq)
	cmd, err := scanCommand(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("command by seq: %w", err)
	}
	return cmd, nil
}

// CommandsByState lists commands in a given state in sequence order.
func (s *Store) CommandsByState(ctx context.Context, state pos.CommandState) ([]pos.Command, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commandColumns+` FROM sync_command WHERE state = ? ORDER BY seq ASC
	`, string(state))
	if err != nil {
		return nil, fmt.Errorf("commands by state: %w", err)
	}
	defer rows.Close()
	return collectCommands(rows)
}

// CommandsForEntity lists all commands referencing an entity id, in
// sequence order. Used for status output and tests.
func (s *Store) CommandsForEntity(ctx context.Context, entityID string) ([]pos.Command, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commandColumns+` FROM sync_command
		WHERE entity_id = ? OR parent_id = ?
		ORDER BY seq ASC
	`, entityID, entityID)
	if err != nil {
		return nil, fmt.Errorf("commands for entity: %w", err)
	}
	defer rows.Close()
	return collectCommands(rows)
}

// CommandCounts returns the number of commands per state.
func (s *Store) CommandCounts(ctx context.Context) (map[pos.CommandState]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT state, COUNT(*) FROM sync_command GROUP BY state
	`)
	if err != nil {
		return nil, fmt.Errorf("command counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[pos.CommandState]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("command counts: scan: %w", err)
		}
		counts[pos.CommandState(state)] = n
	}
	return counts, rows.Err()
}

// ArchiveDone moves DONE commands created before the cutoff into the archive
// table. The audit trail survives; only the hot log shrinks. Returns the
// number of commands moved.
func (s *Store) ArchiveDone(ctx context.Context, before time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("archive done: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO sync_command_archive
		SELECT `+commandColumns+` FROM sync_command
		WHERE state = 'DONE' AND created_at < ?
	`, before)
	if err != nil {
		return 0, fmt.Errorf("archive done: copy: %w", err)
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive done: rows affected: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM sync_command WHERE state = 'DONE' AND created_at < ?
	`, before); err != nil {
		return 0, fmt.Errorf("archive done: delete: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("archive done: commit: %w", err)
	}
	return moved, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommand(row rowScanner) (*pos.Command, error) {
	var cmd pos.Command
	var cmdType, state string
	var nextAttemptMillis int64
	err := row.Scan(
		&cmd.Seq,
		&cmdType,
		&cmd.EntityID,
		&cmd.ParentID,
		&state,
		&cmd.Attempts,
		&cmd.LastError,
		&cmd.IdempotencyKey,
		&cmd.CreatedAt,
		&nextAttemptMillis,
	)
	if err != nil {
		return nil, err
	}
	cmd.Type = pos.CommandType(cmdType)
	cmd.State = pos.CommandState(state)
	cmd.NextAttemptAt = time.UnixMilli(nextAttemptMillis)
	return &cmd, nil
}

func collectCommands(rows *sql.Rows) ([]pos.Command, error) {
	var cmds []pos.Command
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		cmds = append(cmds, *cmd)
	}
	return cmds, rows.Err()
}
