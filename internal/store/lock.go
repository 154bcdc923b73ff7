package store

import (
	"context"
	"fmt"
	"time"
)

// TryAcquireLock attempts to claim the single drain lock row for holder.
//
// The claim succeeds when the lock is free, already held by this holder
// (re-entry after a crash with the same holder id), or held by another
// holder whose claim is older than staleAfter. It returns false, without
// blocking, when another holder's claim is still fresh - concurrent drain
// triggers coalesce on this row rather than queueing.
//
// The compare-and-swap is a single conditional UPDATE on the seeded row, so
// two racing callers cannot both see success.
func (s *Store) TryAcquireLock(ctx context.Context, holder string, now time.Time, staleAfter time.Duration) (bool, error) {
	cutoff := now.Add(-staleAfter).UnixMilli()

	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_lock
		SET holder = ?, acquired_at = ?
		WHERE id = 1
		  AND (holder IS NULL OR holder = ? OR acquired_at <= ?)
	`, holder, now.UnixMilli(), holder, cutoff)
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lock: rows affected: %w", err)
	}
	return n > 0, nil
}

// ReleaseLock frees the drain lock if held by holder. Releasing a lock that
// was reclaimed by someone else is a silent no-op - the reclaimer owns it now.
func (s *Store) ReleaseLock(ctx context.Context, holder string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_lock
		SET holder = NULL, acquired_at = NULL
		WHERE id = 1 AND holder = ?
	`, holder)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// LockHolder reports the current holder and acquisition time, or ("", zero)
// when the lock is free. Used for status output and tests.
func (s *Store) LockHolder(ctx context.Context) (string, time.Time, error) {
	var holder *string
	var acquiredAt *int64
	err := s.db.QueryRowContext(ctx, `SELECT holder, acquired_at FROM sync_lock WHERE id = 1`).
		Scan(&holder, &acquiredAt)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("lock holder: %w", err)
	}
	if holder == nil {
		return "", time.Time{}, nil
	}
	return *holder, time.UnixMilli(*acquiredAt), nil
}
