package engine

import "time"

// Backoff computes retry delays for transiently failed commands: the base
// delay doubles per attempt up to a cap. No jitter; a register talks to its
// own backend tenant, there is no thundering herd to spread.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff is the production schedule: 2s, 4s, 8s, ... capped at 5m.
var DefaultBackoff = Backoff{Base: 2 * time.Second, Max: 5 * time.Minute}

// Delay returns the wait before the given attempt number (1-based, the
// attempt that just failed). Attempt 1 waits Base, attempt 2 waits 2*Base,
// and so on until Max.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}
