package actions

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/healer/api/schemas"
	"github.com/xkilldash9x/healer/internal/heal/retry"
	"github.com/xkilldash9x/healer/internal/observability"
)

// SelectRandomOption opens a custom dropdown by force-clicking toggle, waits
// for option elements, and force-clicks one picked uniformly at random among
// those with a non-empty box, a display other than none and no disabled
// attribute. The whole sequence is retried. It returns the chosen option.
func (a *Actions) SelectRandomOption(ctx context.Context, toggle, option schemas.Target, opts schemas.RandomSelectOptions) (schemas.Element, error) {
	opts.HealingOptions = a.options(OpSelectRandomOption, opts.HealingOptions)
	retries := opts.Retries
	if retries <= 0 {
		retries = a.cfg.RandomRetries
	}
	policy := retry.Policy{MaxAttempts: retries, Delay: a.cfg.RandomBackoff}

	return boundary(ctx, a, OpSelectRandomOption, toggle, opts.HealingOptions, func(ctx context.Context) (schemas.Element, error) {
		var chosen schemas.Element
		err := policy.Do(ctx, func(ctx context.Context, _ retry.Attempt) error {
			var err error
			chosen, err = a.pickRandom(ctx, toggle, option, opts)
			return err
		}, func(at retry.Attempt, err error, wait time.Duration) {
			a.logger.Debug("Random option selection failed; retrying.",
				observability.Category(observability.CatAttempt),
				zap.Stringer("toggle", toggle),
				zap.Int("attempt", at.Number),
				zap.Duration("backoff", wait),
				zap.Error(err))
		})
		return chosen, err
	})
}

func (a *Actions) pickRandom(ctx context.Context, toggle, option schemas.Target, opts schemas.RandomSelectOptions) (schemas.Element, error) {
	res, err := a.resolver.Resolve(ctx, toggle, opts.HealingOptions)
	if err != nil {
		return nil, err
	}
	if err := res.Element.Click(ctx, schemas.ClickOptions{Force: true}); err != nil {
		return nil, fmt.Errorf("opening toggle: %w", err)
	}

	all, err := a.optionElements(ctx, option, opts.Timeout)
	if err != nil {
		return nil, err
	}
	var valid []schemas.Element
	for _, el := range all {
		ok, err := selectable(ctx, el)
		if err != nil {
			return nil, err
		}
		if ok {
			valid = append(valid, el)
		}
	}
	if len(valid) == 0 {
		return nil, ErrNoOptions
	}

	chosen := valid[a.intn(len(valid))]
	if err := chosen.Click(ctx, schemas.ClickOptions{Force: true}); err != nil {
		return nil, fmt.Errorf("clicking option: %w", err)
	}
	if opts.ShouldTriggerEvents() {
		if err := chosen.SetAttribute(ctx, "aria-selected", "true"); err != nil {
			return nil, err
		}
		for _, event := range []string{"change", "input"} {
			if err := res.Element.DispatchEvent(ctx, event); err != nil {
				return nil, fmt.Errorf("dispatching %s: %w", event, err)
			}
		}
	}
	a.logger.Info("Random option selected.",
		observability.Category(observability.CatSuccess),
		zap.Stringer("toggle", toggle),
		zap.Int("candidates", len(valid)))
	return chosen, nil
}

// optionElements waits for the first option to be visible and returns every
// current match. Option lists are plural, so they bypass healing.
func (a *Actions) optionElements(ctx context.Context, option schemas.Target, timeout time.Duration) ([]schemas.Element, error) {
	switch option.Kind() {
	case schemas.TargetHandle:
		el := option.ResolvedHandle()
		if el == nil {
			return nil, fmt.Errorf("%w: nil option handle", ErrInvalidArguments)
		}
		if err := a.waiter.ForElement(ctx, el, schemas.StateVisible, timeout); err != nil {
			return nil, err
		}
		return []schemas.Element{el}, nil
	default:
		selector := option.RawSelector()
		if _, err := a.waiter.ForSelector(ctx, a.page, selector, schemas.StateVisible, timeout); err != nil {
			return nil, err
		}
		return a.page.Query(ctx, selector)
	}
}

func selectable(ctx context.Context, el schemas.Element) (bool, error) {
	box, err := el.BoundingBox(ctx)
	if err != nil {
		return false, err
	}
	if box == nil || box.Width <= 0 || box.Height <= 0 {
		return false, nil
	}
	display, err := el.ComputedDisplay(ctx)
	if err != nil {
		return false, err
	}
	if display == "none" {
		return false, nil
	}
	disabled, err := el.HasAttribute(ctx, "disabled")
	if err != nil {
		return false, err
	}
	return !disabled, nil
}
