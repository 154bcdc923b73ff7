package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/tillsync/internal/pos"
	"github.com/roach88/tillsync/internal/store"
)

// DefaultMaxAttempts is the transient retry cap per command.
const DefaultMaxAttempts = 8

// DefaultLockStaleAfter is how long a drain lock claim stays valid. A holder
// that crashed mid-drain leaves RUNNING commands behind; once its claim goes
// stale another holder may reclaim the lock, requeue those commands, and
// redispatch them safely (entity ids double as idempotency keys).
const DefaultLockStaleAfter = 2 * time.Minute

// Coordinator owns a drain pass: acquire the single-writer lock, walk
// eligible commands in sequence order, dispatch each through the gateway,
// and record the outcome.
//
// All command state transitions happen here and nowhere else. Ledger writes
// only ever append PENDING commands; the coordinator is the sole writer of
// RUNNING, DONE, and FAILED, which is what the lock enforces.
type Coordinator struct {
	store       *store.Store
	gateway     Gateway
	holder      string
	maxAttempts int
	staleAfter  time.Duration
	backoff     Backoff
	now         func() time.Time

	// mu serializes drain passes within this process. The store lock row
	// admits its own holder id (re-entry after a crash), so two goroutines
	// sharing one coordinator would otherwise both pass the CAS.
	mu sync.Mutex
}

// NewCoordinator creates a coordinator. holder identifies this process in
// the lock row; each process (CLI invocation, daemon) should use a stable,
// unique id.
func NewCoordinator(s *store.Store, gw Gateway, holder string) *Coordinator {
	return &Coordinator{
		store:       s,
		gateway:     gw,
		holder:      holder,
		maxAttempts: DefaultMaxAttempts,
		staleAfter:  DefaultLockStaleAfter,
		backoff:     DefaultBackoff,
		now:         time.Now,
	}
}

// DrainStats summarizes one drain pass.
type DrainStats struct {
	// Skipped is true when another holder owned the lock and this pass did
	// nothing. Not an error; the owning pass covers the same work.
	Skipped bool

	// Dispatched counts commands acknowledged by the backend.
	Dispatched int

	// Retried counts commands rescheduled after a transient failure.
	Retried int

	// Failed counts commands that ended terminally FAILED this pass.
	Failed int

	// Failures carries one entry per terminal failure, for surfacing to
	// the operator.
	Failures []DispatchError
}

// Drain runs one pass over the command log.
//
// Batch lifecycle commands are exhausted before order and refund commands.
// Within a class, commands dispatch in strict sequence order among the
// eligible; a command whose ordering precondition or backoff deadline is not
// met is skipped, never waited on. A single pass of the two phases suffices:
// completing a record command can never unblock a batch command.
//
// Returns with Skipped set, and no error, when another pass is already
// running, in this process or elsewhere.
func (c *Coordinator) Drain(ctx context.Context) (DrainStats, error) {
	var stats DrainStats

	if !c.mu.TryLock() {
		stats.Skipped = true
		slog.Debug("drain skipped: pass already running", "holder", c.holder)
		return stats, nil
	}
	defer c.mu.Unlock()

	ok, err := c.store.TryAcquireLock(ctx, c.holder, c.now(), c.staleAfter)
	if err != nil {
		return stats, fmt.Errorf("drain: %w", err)
	}
	if !ok {
		stats.Skipped = true
		slog.Debug("drain skipped: lock held elsewhere", "holder", c.holder)
		return stats, nil
	}
	defer func() {
		if err := c.store.ReleaseLock(context.WithoutCancel(ctx), c.holder); err != nil {
			slog.Error("release drain lock failed", "holder", c.holder, "error", err)
		}
	}()

	// Commands abandoned RUNNING by an interrupted pass go back to PENDING
	// now that this pass owns the lock.
	requeued, err := c.store.RequeueRunning(ctx)
	if err != nil {
		return stats, fmt.Errorf("drain: %w", err)
	}
	if requeued > 0 {
		slog.Warn("requeued commands from an interrupted pass", "count", requeued)
	}

	for _, class := range []pos.CommandClass{pos.ClassBatch, pos.ClassRecord} {
		if err := c.drainClass(ctx, class, &stats); err != nil {
			return stats, err
		}
	}

	slog.Info("drain complete",
		"holder", c.holder,
		"dispatched", stats.Dispatched,
		"retried", stats.Retried,
		"failed", stats.Failed,
	)
	return stats, nil
}

func (c *Coordinator) drainClass(ctx context.Context, class pos.CommandClass, stats *DrainStats) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cmd, err := c.store.NextEligible(ctx, class, c.now())
		if err != nil {
			return fmt.Errorf("drain %s: %w", class, err)
		}
		if cmd == nil {
			return nil
		}

		if err := c.dispatch(ctx, cmd, stats); err != nil {
			return fmt.Errorf("drain %s: %w", class, err)
		}
	}
}

// dispatch sends one command to the backend and records the outcome.
// Returns an error only for local store failures; remote failures are
// outcomes, not errors.
func (c *Coordinator) dispatch(ctx context.Context, cmd *pos.Command, stats *DrainStats) error {
	if err := c.store.MarkRunning(ctx, cmd.Seq); err != nil {
		return err
	}

	res, err := c.send(ctx, cmd)
	if err != nil {
		// The referenced entity is gone locally. Nothing to send, ever.
		return c.markTerminal(ctx, cmd, stats, ErrCodeOrphaned, err.Error())
	}

	switch res.Outcome {
	case OutcomeSuccess:
		if err := c.advance(ctx, cmd, res.ServerID); err != nil {
			return err
		}
		if err := c.store.MarkDone(ctx, cmd.Seq); err != nil {
			return err
		}
		stats.Dispatched++
		slog.Info("command dispatched",
			"seq", cmd.Seq,
			"cmd_type", string(cmd.Type),
			"entity_id", cmd.EntityID,
			"server_id", res.ServerID,
		)
		return nil

	case OutcomeBusinessFailure:
		return c.markTerminal(ctx, cmd, stats, ErrCodeRejected, res.Message)

	case OutcomeTransientFailure:
		cause := "transient failure"
		if res.Cause != nil {
			cause = res.Cause.Error()
		}
		retryAt := c.now().Add(c.backoff.Delay(cmd.Attempts + 1))
		final, err := c.store.MarkFailed(ctx, cmd.Seq, cause, false, c.maxAttempts, retryAt)
		if err != nil {
			return err
		}
		if final {
			stats.Failed++
			stats.Failures = append(stats.Failures, DispatchError{
				Code:     ErrCodeExhausted,
				Message:  cause,
				Seq:      cmd.Seq,
				CmdType:  cmd.Type,
				EntityID: cmd.EntityID,
				Attempts: cmd.Attempts + 1,
			})
			slog.Error("command failed: retries exhausted",
				"seq", cmd.Seq,
				"cmd_type", string(cmd.Type),
				"entity_id", cmd.EntityID,
				"attempts", cmd.Attempts+1,
				"last_error", cause,
			)
			return nil
		}
		stats.Retried++
		slog.Warn("command retry scheduled",
			"seq", cmd.Seq,
			"cmd_type", string(cmd.Type),
			"entity_id", cmd.EntityID,
			"attempt", cmd.Attempts+1,
			"retry_at", retryAt,
			"cause", cause,
		)
		return nil

	default:
		return c.markTerminal(ctx, cmd, stats, ErrCodeRejected,
			fmt.Sprintf("gateway returned unknown outcome %d", res.Outcome))
	}
}

// send resolves the command's entity and calls the matching gateway method.
// Returns an error only when the entity cannot be loaded.
func (c *Coordinator) send(ctx context.Context, cmd *pos.Command) (Result, error) {
	switch cmd.Type {
	case pos.CmdOpenBatch, pos.CmdCloseBatch:
		b, err := c.store.BatchByID(ctx, cmd.EntityID)
		if err != nil {
			return Result{}, err
		}
		if b == nil {
			return Result{}, fmt.Errorf("batch %s not found", cmd.EntityID)
		}
		if cmd.Type == pos.CmdOpenBatch {
			return c.gateway.OpenBatch(ctx, *b), nil
		}
		return c.gateway.CloseBatch(ctx, *b), nil

	case pos.CmdCreateOrder:
		o, err := c.store.OrderByID(ctx, cmd.EntityID)
		if err != nil {
			return Result{}, err
		}
		if o == nil {
			return Result{}, fmt.Errorf("order %s not found", cmd.EntityID)
		}
		return c.gateway.CreateOrder(ctx, *o), nil

	case pos.CmdCreateRefund:
		r, err := c.store.RefundByID(ctx, cmd.EntityID)
		if err != nil {
			return Result{}, err
		}
		if r == nil {
			return Result{}, fmt.Errorf("refund %s not found", cmd.EntityID)
		}
		return c.gateway.CreateRefund(ctx, *r), nil

	default:
		return Result{}, fmt.Errorf("unknown command type %q", cmd.Type)
	}
}

// advance moves the entity's sync state forward after a successful dispatch.
func (c *Coordinator) advance(ctx context.Context, cmd *pos.Command, serverID string) error {
	switch cmd.Type {
	case pos.CmdOpenBatch:
		b, err := c.store.BatchByID(ctx, cmd.EntityID)
		if err != nil {
			return err
		}
		if b == nil {
			return fmt.Errorf("batch %s not found", cmd.EntityID)
		}
		// A batch closed while its open was still queued stays LOCAL_CLOSED;
		// only the server id is recorded. The CLOSE_BATCH dispatch finishes
		// the job.
		state := pos.BatchOpenSynced
		if b.SyncState == pos.BatchLocalClosed {
			state = pos.BatchLocalClosed
		}
		return c.store.SetBatchSyncState(ctx, cmd.EntityID, state, serverID)

	case pos.CmdCloseBatch:
		return c.store.SetBatchSyncState(ctx, cmd.EntityID, pos.BatchCloseSynced, serverID)

	case pos.CmdCreateOrder:
		return c.store.SetOrderSynced(ctx, cmd.EntityID, serverID)

	case pos.CmdCreateRefund:
		return c.store.SetRefundSynced(ctx, cmd.EntityID, serverID)

	default:
		return fmt.Errorf("unknown command type %q", cmd.Type)
	}
}

func (c *Coordinator) markTerminal(ctx context.Context, cmd *pos.Command, stats *DrainStats, code DispatchErrorCode, msg string) error {
	if _, err := c.store.MarkFailed(ctx, cmd.Seq, msg, true, c.maxAttempts, c.now()); err != nil {
		return err
	}
	stats.Failed++
	stats.Failures = append(stats.Failures, DispatchError{
		Code:     code,
		Message:  msg,
		Seq:      cmd.Seq,
		CmdType:  cmd.Type,
		EntityID: cmd.EntityID,
		Attempts: cmd.Attempts + 1,
	})
	slog.Error("command failed terminally",
		"seq", cmd.Seq,
		"cmd_type", string(cmd.Type),
		"entity_id", cmd.EntityID,
		"code", string(code),
		"cause", msg,
	)
	return nil
}
