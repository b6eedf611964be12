package retry

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// InstantTimer is a backoff.Timer that fires immediately and records the
// requested waits. It lets dry runs and tests exercise a schedule without sleeping.
type InstantTimer struct {
	mu    sync.Mutex
	c     chan time.Time
	waits []time.Duration
}

var _ backoff.Timer = (*InstantTimer)(nil)

func NewInstantTimer() *InstantTimer {
	return &InstantTimer{c: make(chan time.Time, 1)}
}

func (t *InstantTimer) Start(d time.Duration) {
	t.mu.Lock()
	t.waits = append(t.waits, d)
	t.mu.Unlock()
	select {
	case t.c <- time.Now():
	default:
	}
}

func (t *InstantTimer) Stop() {}

func (t *InstantTimer) C() <-chan time.Time { return t.c }

// Waits returns the durations passed to Start, in order.
func (t *InstantTimer) Waits() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.waits...)
}

// Instant returns a Policy.NewTimer func producing InstantTimers.
func Instant() func() backoff.Timer {
	return func() backoff.Timer { return NewInstantTimer() }
}
