// Package waiter implements bounded, rate-limited polling for element states.
package waiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/xkilldash9x/healer/api/schemas"
)

// ErrTimeout is returned when a condition does not hold within its bound.
var ErrTimeout = errors.New("wait timed out")

// DefaultPollInterval is used when a Waiter is created with a non-positive interval.
const DefaultPollInterval = 50 * time.Millisecond

// Condition is polled until it reports true. An error ends the wait.
type Condition func(ctx context.Context) (bool, error)

// Waiter polls conditions at a fixed cadence.
type Waiter struct {
	interval time.Duration
}

// New creates a Waiter polling every interval.
func New(interval time.Duration) *Waiter {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Waiter{interval: interval}
}

// Until polls cond until it holds, it fails, or timeout elapses. The
// condition is always evaluated at least once.
func (w *Waiter) Until(ctx context.Context, timeout time.Duration, cond Condition) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(w.interval), 1)
	for {
		ok, err := cond(waitCtx)
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return fmt.Errorf("%w after %s", ErrTimeout, timeout)
			}
			return err
		}
		if ok {
			return nil
		}
		// Wait fails early when the next token would land past the deadline.
		if err := limiter.Wait(waitCtx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
	}
}

// check evaluates state for one element.
func check(ctx context.Context, el schemas.Element, state schemas.WaitState) (bool, error) {
	switch state {
	case schemas.StateVisible:
		return el.IsVisible(ctx)
	case schemas.StateHidden:
		visible, err := el.IsVisible(ctx)
		return !visible, err
	case schemas.StateEnabled:
		return el.IsEnabled(ctx)
	case schemas.StateAttached:
		return el.IsAttached(ctx)
	default:
		return false, fmt.Errorf("unknown wait state %q", state)
	}
}

// ForElement waits until el reaches state.
func (w *Waiter) ForElement(ctx context.Context, el schemas.Element, state schemas.WaitState, timeout time.Duration) error {
	err := w.Until(ctx, timeout, func(ctx context.Context) (bool, error) {
		return check(ctx, el, state)
	})
	if err != nil {
		return fmt.Errorf("waiting for element to be %s: %w", state, err)
	}
	return nil
}

// ForSelector waits until the first element matching selector under root
// reaches state and returns it. For StateHidden an absent element counts as
// hidden and the returned element may be nil.
func (w *Waiter) ForSelector(ctx context.Context, root schemas.Root, selector string, state schemas.WaitState, timeout time.Duration) (schemas.Element, error) {
	var found schemas.Element
	err := w.Until(ctx, timeout, func(ctx context.Context) (bool, error) {
		els, err := root.Query(ctx, selector)
		if err != nil {
			return false, err
		}
		if len(els) == 0 {
			found = nil
			return state == schemas.StateHidden, nil
		}
		found = els[0]
		return check(ctx, found, state)
	})
	if err != nil {
		return nil, fmt.Errorf("waiting for %q to be %s: %w", selector, state, err)
	}
	return found, nil
}
