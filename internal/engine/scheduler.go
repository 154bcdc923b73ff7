package engine

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSyncInterval is the periodic drain cadence. The tick is a safety
// net; mutations and connectivity changes kick a pass immediately, so the
// period only bounds how long a missed trigger can sit.
const DefaultSyncInterval = 15 * time.Minute

// Probe reports whether the backend is reachable. The scheduler consults it
// before each drain pass so an offline register never burns attempts, and so
// the offline-to-online transition can trigger an immediate pass.
type Probe interface {
	Online(ctx context.Context) bool
}

// AlwaysOnline is the default probe: assume reachable and let dispatch
// failures speak for themselves.
type AlwaysOnline struct{}

// Online always reports true.
func (AlwaysOnline) Online(context.Context) bool { return true }

// Scheduler decides when drain passes run: on a periodic tick, when
// connectivity returns, and when a local mutation kicks it.
//
// Thread-safety model:
//   - Kick(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Scheduler struct {
	coord    *Coordinator
	probe    Probe
	interval time.Duration

	// kick coalesces triggers: a buffered size-1 channel means any number
	// of mutations between passes collapse into one extra pass.
	kick chan struct{}
}

// NewScheduler creates a scheduler around a coordinator.
func NewScheduler(coord *Coordinator, probe Probe, interval time.Duration) *Scheduler {
	if probe == nil {
		probe = AlwaysOnline{}
	}
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &Scheduler{
		coord:    coord,
		probe:    probe,
		interval: interval,
		kick:     make(chan struct{}, 1),
	}
}

// Kick requests a drain pass soon. Non-blocking; concurrent kicks coalesce.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Run drives drain passes until the context is cancelled.
//
// Each wakeup consults the probe first. While offline, passes are skipped
// entirely; the first wakeup after connectivity returns drains immediately,
// which is what makes queued work flush as soon as the network is back.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("sync scheduler starting", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	online := false
	for {
		select {
		case <-ctx.Done():
			slog.Info("sync scheduler stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
		case <-s.kick:
		}

		if !s.probe.Online(ctx) {
			if online {
				slog.Info("backend unreachable, pausing sync")
			}
			online = false
			continue
		}
		if !online {
			slog.Info("backend reachable, draining queued work")
		}
		online = true

		stats, err := s.coord.Drain(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("drain pass failed", "error", err)
			continue
		}
		if stats.Retried > 0 {
			// Something is waiting on a backoff deadline; the next tick
			// covers it.
			slog.Debug("drain left retryable work", "retried", stats.Retried)
		}
	}
}
