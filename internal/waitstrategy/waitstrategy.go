// Package waitstrategy implements the tiered idle behavior hot threads use
// instead of blocking on mutexes or OS primitives: busy-spin, then yield,
// then short sleep, then long sleep. Grounded on the source's
// common/wait_strategy.h thresholds.
package waitstrategy

import (
	"runtime"
	"time"
)

const (
	busySpinIters = 1_000
	yieldIters    = 5_000
	sleepIters    = 50_000

	ultraShortSleep = 50 * time.Microsecond
	longSleep       = 1 * time.Millisecond
)

// Tiered is a per-goroutine idle-backoff counter. It is not safe for
// concurrent use by more than one goroutine — each hot loop owns its own
// instance.
type Tiered struct {
	iter int
}

// Idle blocks the calling goroutine for an amount of time that grows with
// consecutive empty polls, trading latency for CPU usage as contention
// persists.
func (t *Tiered) Idle() {
	switch {
	case t.iter < busySpinIters:
		// Busy-spin: no-op, just don't sleep. Go has no portable pause
		// intrinsic exposed to userland; Gosched would yield the P, which
		// this tier must not do.
	case t.iter < busySpinIters+yieldIters:
		runtime.Gosched()
	case t.iter < busySpinIters+yieldIters+sleepIters:
		time.Sleep(ultraShortSleep)
	default:
		time.Sleep(longSleep)
	}
	t.iter++
}

// Reset clears the backoff counter, called after any successful poll.
func (t *Tiered) Reset() {
	t.iter = 0
}
