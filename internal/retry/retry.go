// Package retry runs external calls with bounded exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	mrerrors "meeting-router-go/internal/errors"
)

// Policy describes a retry schedule. With the defaults an operation gets
// three attempts separated by 1s and 2s waits; intervals never exceed
// MaxInterval.
type Policy struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
	MaxAttempts     int
	// CallTimeout bounds each attempt. Zero means no per-attempt bound.
	CallTimeout time.Duration
	// Retryable decides whether a failed attempt is retried. Nil means
	// mrerrors.IsRetryable (rate-limit and network errors only).
	Retryable func(error) bool
	// NewTimer supplies the wait timer. Nil means a real timer.
	NewTimer func() backoff.Timer
}

func DefaultPolicy() Policy {
	return Policy{
		InitialInterval: time.Second,
		Multiplier:      2,
		MaxInterval:     4 * time.Second,
		MaxAttempts:     3,
		CallTimeout:     30 * time.Second,
	}
}

// Result describes what a Do call spent.
type Result struct {
	Attempts int
	// Waited is the total backoff scheduled between attempts.
	Waited time.Duration
	// LastErr is the error of the final failed attempt, if any.
	LastErr error
}

// Operation is one attempt of an external call.
type Operation func(ctx context.Context) error

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialInterval,
		RandomizationFactor: 0,
		Multiplier:          p.Multiplier,
		MaxInterval:         p.MaxInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	if b.InitialInterval <= 0 {
		b.InitialInterval = time.Second
	}
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.Reset()
	return b
}

// Do runs op until it succeeds, fails with a non-retryable error, runs out
// of attempts, or ctx is done. A wait in progress is interrupted by ctx.
// notify, if non-nil, is called before each wait.
func Do(ctx context.Context, p Policy, op Operation, notify func(err error, wait time.Duration)) (Result, error) {
	retryable := p.Retryable
	if retryable == nil {
		retryable = mrerrors.IsRetryable
	}
	attempts := max(p.MaxAttempts, 1)

	var res Result
	attempt := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		res.Attempts++

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.CallTimeout)
		}
		defer cancel()

		err := op(callCtx)
		if err == nil {
			res.LastErr = nil
			return nil
		}
		res.LastErr = err
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	onWait := func(err error, d time.Duration) {
		res.Waited += d
		if notify != nil {
			notify(err, d)
		}
	}

	var timer backoff.Timer
	if p.NewTimer != nil {
		timer = p.NewTimer()
	}

	b := backoff.WithContext(backoff.WithMaxRetries(p.backOff(), uint64(attempts-1)), ctx)
	err := backoff.RetryNotifyWithTimer(attempt, b, onWait, timer)
	return res, err
}
