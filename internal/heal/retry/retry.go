// Package retry runs an operation under a fixed-delay attempt policy, with an
// optional escalation on the final attempt.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds a retried operation.
type Policy struct {
	// MaxAttempts is the total number of attempts. Values below 1 mean 1.
	MaxAttempts int
	// Delay is the fixed wait between attempts.
	Delay time.Duration
	// EscalateOnLast marks the final attempt as escalated so the operation can
	// switch to a more forceful variant.
	EscalateOnLast bool
}

// Attempt describes one invocation of the operation.
type Attempt struct {
	Number    int // 1-based
	Last      bool
	Escalated bool
}

// Operation is a retried unit of work. Returning a Permanent error stops
// retrying immediately.
type Operation func(ctx context.Context, attempt Attempt) error

// Notify is called after every failed attempt that will be retried.
type Notify func(attempt Attempt, err error, wait time.Duration)

// Permanent wraps err so it is not retried.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) backOff(ctx context.Context) backoff.BackOffContext {
	var b backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	b = backoff.WithMaxRetries(b, uint64(p.attempts()-1))
	return backoff.WithContext(b, ctx)
}

// Do runs op until it succeeds, returns a permanent error, the attempts are
// exhausted or ctx is done. It returns the last error.
func (p Policy) Do(ctx context.Context, op Operation, notify Notify) error {
	total := p.attempts()
	number := 0
	current := func() Attempt {
		last := number == total
		return Attempt{Number: number, Last: last, Escalated: last && p.EscalateOnLast}
	}

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		number++
		return op(ctx, current())
	}
	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, wait time.Duration) { notify(current(), err, wait) }
	}
	return backoff.RetryNotify(operation, p.backOff(ctx), onRetry)
}
