package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errSoft = errors.New("soft failure")

func TestPolicy_Do(t *testing.T) {
	ctx := context.Background()

	t.Run("escalates only the final attempt", func(t *testing.T) {
		var seen []Attempt
		var notified []int
		p := Policy{MaxAttempts: 3, Delay: time.Millisecond, EscalateOnLast: true}
		err := p.Do(ctx, func(_ context.Context, a Attempt) error {
			seen = append(seen, a)
			if !a.Escalated {
				return errSoft
			}
			return nil
		}, func(a Attempt, err error, _ time.Duration) {
			assert.ErrorIs(t, err, errSoft)
			notified = append(notified, a.Number)
		})
		require.NoError(t, err)
		assert.Equal(t, []Attempt{
			{Number: 1},
			{Number: 2},
			{Number: 3, Last: true, Escalated: true},
		}, seen)
		assert.Equal(t, []int{1, 2}, notified)
	})

	t.Run("returns the last error when exhausted", func(t *testing.T) {
		calls := 0
		err := Policy{MaxAttempts: 2, Delay: time.Millisecond}.Do(ctx, func(context.Context, Attempt) error {
			calls++
			return errSoft
		}, nil)
		assert.ErrorIs(t, err, errSoft)
		assert.Equal(t, 2, calls)
	})

	t.Run("zero attempts run once", func(t *testing.T) {
		calls := 0
		err := Policy{}.Do(ctx, func(_ context.Context, a Attempt) error {
			calls++
			assert.True(t, a.Last)
			return errSoft
		}, nil)
		assert.ErrorIs(t, err, errSoft)
		assert.Equal(t, 1, calls)
	})

	t.Run("permanent errors stop immediately", func(t *testing.T) {
		calls := 0
		errFatal := errors.New("fatal")
		err := Policy{MaxAttempts: 5, Delay: time.Millisecond}.Do(ctx, func(context.Context, Attempt) error {
			calls++
			return Permanent(errFatal)
		}, nil)
		assert.ErrorIs(t, err, errFatal)
		assert.Equal(t, 1, calls)
	})

	t.Run("waits the configured delay between attempts", func(t *testing.T) {
		start := time.Now()
		_ = Policy{MaxAttempts: 3, Delay: 20 * time.Millisecond}.Do(ctx, func(context.Context, Attempt) error {
			return errSoft
		}, nil)
		assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	})

	t.Run("context cancellation ends the loop", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		err := Policy{MaxAttempts: 10, Delay: time.Hour}.Do(cctx, func(context.Context, Attempt) error {
			calls++
			cancel()
			return errSoft
		}, nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
