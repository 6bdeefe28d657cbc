// Package actions exposes the healed operation surface: every operation
// resolves its target through the resolver, performs the browser action and
// reports failures through one error boundary.
package actions

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/healer/api/schemas"
	"github.com/xkilldash9x/healer/internal/config"
	"github.com/xkilldash9x/healer/internal/heal/resolver"
	"github.com/xkilldash9x/healer/internal/heal/retry"
	"github.com/xkilldash9x/healer/internal/heal/waiter"
	"github.com/xkilldash9x/healer/internal/observability"
)

// Operation names, as accepted by Do.
const (
	OpClick              = "click"
	OpCheckboxClick      = "checkboxClick"
	OpFill               = "fill"
	OpType               = "type"
	OpIsVisible          = "isVisible"
	OpClear              = "clear"
	OpPress              = "press"
	OpHover              = "hover"
	OpCheck              = "check"
	OpUncheck            = "uncheck"
	OpSelectOption       = "selectOption"
	OpGetText            = "getText"
	OpGetAttribute       = "getAttribute"
	OpScrollIntoView     = "scrollIntoView"
	OpDoubleClick        = "doubleClick"
	OpRightClick         = "rightClick"
	OpDragAndDrop        = "dragAndDrop"
	OpWaitForVisible     = "waitForVisible"
	OpWaitForHidden      = "waitForHidden"
	OpWaitForEnabled     = "waitForEnabled"
	OpScreenshot         = "screenshot"
	OpClickIfVisible     = "clickIfVisible"
	OpFillIfVisible      = "fillIfVisible"
	OpSelectRandomOption = "selectRandomOption"
)

// Operations lists every operation name in surface order.
var Operations = []string{
	OpClick, OpCheckboxClick, OpFill, OpType, OpIsVisible, OpClear, OpPress, OpHover,
	OpCheck, OpUncheck, OpSelectOption, OpGetText, OpGetAttribute, OpScrollIntoView,
	OpDoubleClick, OpRightClick, OpDragAndDrop, OpWaitForVisible, OpWaitForHidden,
	OpWaitForEnabled, OpScreenshot, OpClickIfVisible, OpFillIfVisible, OpSelectRandomOption,
}

// suppressedByDefault operations never surface failures.
var suppressedByDefault = map[string]bool{
	OpIsVisible:      true,
	OpClickIfVisible: true,
	OpFillIfVisible:  true,
}

// ClickOptions tunes Click.
type ClickOptions struct {
	schemas.HealingOptions `yaml:",inline"`
	// Force skips actionability checks on every attempt.
	Force bool `json:"force,omitempty" yaml:"force,omitempty"`
	// Retries is the number of normal attempts. Zero means the configured default.
	Retries int                 `json:"retries,omitempty" yaml:"retries,omitempty"`
	Button  schemas.MouseButton `json:"button,omitempty" yaml:"button,omitempty"`
}

// Actions runs healed operations against the resolver's page.
type Actions struct {
	resolver *resolver.Resolver
	page     schemas.Page
	cfg      config.HealingConfig
	logger   *zap.Logger
	waiter   *waiter.Waiter
	intn     func(n int) int
}

// Option customizes Actions.
type Option func(*Actions)

// WithRandom replaces the source used by SelectRandomOption. intn must return
// a value in [0, n).
func WithRandom(intn func(n int) int) Option {
	return func(a *Actions) {
		if intn != nil {
			a.intn = intn
		}
	}
}

// New creates the action surface on top of r.
func New(r *resolver.Resolver, logger *zap.Logger, opts ...Option) *Actions {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Actions{
		resolver: r,
		page:     r.Page(),
		cfg:      r.Config(),
		logger:   logger.Named("actions"),
		waiter:   r.Waiter(),
		intn:     rand.IntN,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// options applies the per-operation defaults.
func (a *Actions) options(op string, opts schemas.HealingOptions) schemas.HealingOptions {
	if suppressedByDefault[op] {
		opts.SuppressError = true
	}
	if opts.Timeout <= 0 {
		opts.Timeout = a.cfg.Timeout
	}
	if opts.ContextSelector == "" {
		opts.ContextSelector = a.cfg.ContextSelector
	}
	return opts
}

// boundary is the single error boundary every operation goes through.
func boundary[T any](ctx context.Context, a *Actions, op string, target schemas.Target, opts schemas.HealingOptions, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	out, err := fn(ctx)
	if err == nil {
		a.logger.Debug("Action succeeded.",
			observability.Category(observability.CatSuccess),
			zap.String("op", op),
			zap.Stringer("target", target),
			zap.Duration("elapsed", time.Since(start)))
		return out, nil
	}

	var zero T
	if opts.SuppressError {
		a.logger.Warn("Action failure suppressed.",
			observability.Category(observability.CatSuppressed),
			zap.String("op", op),
			zap.Stringer("target", target),
			zap.Error(err))
		return zero, nil
	}
	a.logger.Error("Action failed.",
		observability.Category(observability.CatFailure),
		zap.String("op", op),
		zap.Stringer("target", target),
		zap.Error(err))
	return zero, &ActionFailedError{Op: op, Target: target.String(), Err: err}
}

// perform resolves target and hands the element to fn inside the boundary.
func perform[T any](ctx context.Context, a *Actions, op string, target schemas.Target, opts schemas.HealingOptions, fn func(context.Context, schemas.Element) (T, error)) (T, error) {
	opts = a.options(op, opts)
	return boundary(ctx, a, op, target, opts, func(ctx context.Context) (T, error) {
		res, err := a.resolver.Resolve(ctx, target, opts)
		if err != nil {
			var zero T
			return zero, err
		}
		return fn(ctx, res.Element)
	})
}

// exec is perform for operations without a result.
func (a *Actions) exec(ctx context.Context, op string, target schemas.Target, opts schemas.HealingOptions, fn func(context.Context, schemas.Element) error) error {
	_, err := perform(ctx, a, op, target, opts, func(ctx context.Context, el schemas.Element) (struct{}, error) {
		return struct{}{}, fn(ctx, el)
	})
	return err
}

// Click clicks target, retrying with a fixed backoff. If the final normal
// attempt fails it is followed immediately by a forced click.
func (a *Actions) Click(ctx context.Context, target schemas.Target, opts ClickOptions) error {
	retries := opts.Retries
	if retries <= 0 {
		retries = a.cfg.ClickRetries
	}
	policy := retry.Policy{MaxAttempts: retries, Delay: a.cfg.ClickBackoff, EscalateOnLast: true}

	return a.exec(ctx, OpClick, target, opts.HealingOptions, func(ctx context.Context, el schemas.Element) error {
		return policy.Do(ctx, func(ctx context.Context, at retry.Attempt) error {
			err := el.Click(ctx, schemas.ClickOptions{Force: opts.Force, Button: opts.Button})
			if err == nil || !at.Escalated || opts.Force {
				return err
			}
			a.logger.Info("Final retry with force click.",
				observability.Category(observability.CatDiag),
				zap.Stringer("target", target),
				zap.NamedError("normal_click", err))
			return el.Click(ctx, schemas.ClickOptions{Force: true, Button: opts.Button})
		}, func(at retry.Attempt, err error, wait time.Duration) {
			a.logger.Debug("Click failed; retrying.",
				observability.Category(observability.CatAttempt),
				zap.Stringer("target", target),
				zap.Int("attempt", at.Number),
				zap.Duration("backoff", wait),
				zap.Error(err))
		})
	})
}

// CheckboxClick force-checks checkbox and radio inputs, force-clicks hidden
// elements and clicks everything else normally.
func (a *Actions) CheckboxClick(ctx context.Context, target schemas.Target, opts schemas.HealingOptions) error {
	return a.exec(ctx, OpCheckboxClick, target, opts, func(ctx context.Context, el schemas.Element) error {
		info, err := el.Describe(ctx)
		if err != nil {
			return err
		}
		if info.TagName == "input" && (info.Type == "checkbox" || info.Type == "radio") {
			return el.Check(ctx, true)
		}
		visible, err := el.IsVisible(ctx)
		if err != nil {
			return err
		}
		return el.Click(ctx, schemas.ClickOptions{Force: !visible})
	})
}

func (a *Actions) Fill(ctx context.Context, target schemas.Target, value string, opts schemas.HealingOptions) error {
	return a.exec(ctx, OpFill, target, opts, func(ctx context.Context, el schemas.Element) error {
		return el.Fill(ctx, value)
	})
}

// Type sends text key by key without clearing the field first.
func (a *Actions) Type(ctx context.Context, target schemas.Target, text string, opts schemas.HealingOptions) error {
	return a.exec(ctx, OpType, target, opts, func(ctx context.Context, el schemas.Element) error {
		return el.Type(ctx, text)
	})
}

// IsVisible never fails; an unresolvable target is reported as not visible.
func (a *Actions) IsVisible(ctx context.Context, target schemas.Target, opts schemas.HealingOptions) (bool, error) {
	return perform(ctx, a, OpIsVisible, target, opts, func(ctx context.Context, el schemas.Element) (bool, error) {
		return el.IsVisible(ctx)
	})
}

func (a *Actions) Clear(ctx context.Context, target schemas.Target, opts schemas.HealingOptions) error {
	return a.exec(ctx, OpClear, target, opts, func(ctx context.Context, el schemas.Element) error {
		return el.Fill(ctx, "")
	})
}

func (a *Actions) Press(ctx context.Context, target schemas.Target, key string, opts schemas.HealingOptions) error {
	return a.exec(ctx, OpPress, target, opts, func(ctx context.Context, el schemas.Element) error {
		return el.Press(ctx, key)
	})
}

func (a *Actions) Hover(ctx context.Context, target schemas.Target, opts schemas.HealingOptions) error {
	return a.exec(ctx, OpHover, target, opts, func(ctx context.Context, el schemas.Element) error {
		return el.Hover(ctx)
	})
}

func (a *Actions) Check(ctx context.Context, target schemas.Target, opts schemas.HealingOptions) error {
	return a.exec(ctx, OpCheck, target, opts, func(ctx context.Context, el schemas.Element) error {
		return el.Check(ctx, false)
	})
}

func (a *Actions) Uncheck(ctx context.Context, target schemas.Target, opts schemas.HealingOptions) error {
	return a.exec(ctx, OpUncheck, target, opts, func(ctx context.Context, el schemas.Element) error {
		return el.Uncheck(ctx)
	})
}

// SelectOption selects by value, label or text and returns the selected values.
func (a *Actions) SelectOption(ctx context.Context, target schemas.Target, value string, opts schemas.HealingOptions) ([]string, error) {
	return perform(ctx, a, OpSelectOption, target, opts, func(ctx context.Context, el schemas.Element) ([]string, error) {
		return el.SelectOption(ctx, value)
	})
}

// GetText returns the element's text content, or "" when it has none.
func (a *Actions) GetText(ctx context.Context, target schemas.Target, opts schemas.HealingOptions) (string, error) {
	return perform(ctx, a, OpGetText, target, opts, func(ctx context.Context, el schemas.Element) (string, error) {
		return el.TextContent(ctx)
	})
}

// GetAttribute returns the attribute value and whether it is present.
func (a *Actions) GetAttribute(ctx context.Context, target schemas.Target, name string, opts schemas.HealingOptions) (string, bool, error) {
	type attribute struct {
		value string
		ok    bool
	}
	got, err := perform(ctx, a, OpGetAttribute, target, opts, func(ctx context.Context, el schemas.Element) (attribute, error) {
		v, ok, err := el.GetAttribute(ctx, name)
		return attribute{v, ok}, err
	})
	return got.value, got.ok, err
}

func (a *Actions) ScrollIntoView(ctx context.Context, target schemas.Target, opts schemas.HealingOptions) error {
	return a.exec(ctx, OpScrollIntoView, target, opts, func(ctx context.Context, el schemas.Element) error {
		return el.ScrollIntoView(ctx)
	})
}

func (a *Actions) DoubleClick(ctx context.Context, target schemas.Target, opts schemas.HealingOptions) error {
	return a.exec(ctx, OpDoubleClick, target, opts, func(ctx context.Context, el schemas.Element) error {
		return el.DoubleClick(ctx)
	})
}

// RightClick is a single, unretried right-button click.
func (a *Actions) RightClick(ctx context.Context, target schemas.Target, opts schemas.HealingOptions) error {
	return a.exec(ctx, OpRightClick, target, opts, func(ctx context.Context, el schemas.Element) error {
		return el.Click(ctx, schemas.ClickOptions{Button: schemas.ButtonRight})
	})
}

// DragAndDrop presses the mouse at the centre of source and releases it at the
// centre of dest. Both ends are resolved through the healing pipeline.
func (a *Actions) DragAndDrop(ctx context.Context, source, dest schemas.Target, opts schemas.HealingOptions) error {
	return a.exec(ctx, OpDragAndDrop, source, opts, func(ctx context.Context, from schemas.Element) error {
		res, err := a.resolver.Resolve(ctx, dest, a.options(OpDragAndDrop, opts))
		if err != nil {
			return fmt.Errorf("resolving drop target: %w", err)
		}
		fromBox, err := from.BoundingBox(ctx)
		if err != nil {
			return err
		}
		toBox, err := res.Element.BoundingBox(ctx)
		if err != nil {
			return err
		}
		if fromBox == nil || toBox == nil {
			return errors.New("cannot drag, element box not found")
		}

		mouse := a.page.Mouse()
		x, y := fromBox.Center()
		if err := mouse.Move(ctx, x, y); err != nil {
			return err
		}
		if err := mouse.Down(ctx); err != nil {
			return err
		}
		x, y = toBox.Center()
		if err := mouse.Move(ctx, x, y); err != nil {
			return err
		}
		return mouse.Up(ctx)
	})
}

// WaitForVisible waits up to opts.Timeout for the element to be visible.
func (a *Actions) WaitForVisible(ctx context.Context, target schemas.Target, opts schemas.HealingOptions) error {
	return a.waitFor(ctx, OpWaitForVisible, target, schemas.StateVisible, opts)
}

// WaitForEnabled waits up to opts.Timeout for the element to be enabled,
// whether or not it is visible.
func (a *Actions) WaitForEnabled(ctx context.Context, target schemas.Target, opts schemas.HealingOptions) error {
	return a.waitFor(ctx, OpWaitForEnabled, target, schemas.StateEnabled, opts)
}

func (a *Actions) waitFor(ctx context.Context, op string, target schemas.Target, state schemas.WaitState, opts schemas.HealingOptions) error {
	opts = a.options(op, opts)
	return a.exec(ctx, op, target, opts, func(ctx context.Context, el schemas.Element) error {
		return a.waiter.ForElement(ctx, el, state, opts.Timeout)
	})
}

// WaitForHidden waits for the element to become hidden. A selector that still
// matches is waited on as is. One that matches nothing is healed first, and if
// healing finds nothing the element is already gone, which counts as hidden.
func (a *Actions) WaitForHidden(ctx context.Context, target schemas.Target, opts schemas.HealingOptions) error {
	opts = a.options(OpWaitForHidden, opts)
	_, err := boundary(ctx, a, OpWaitForHidden, target, opts, func(ctx context.Context) (struct{}, error) {
		if target.Kind() == schemas.TargetSelector {
			els, err := a.page.Query(ctx, target.RawSelector())
			if err == nil && len(els) > 0 {
				return struct{}{}, a.waiter.ForElement(ctx, els[0], schemas.StateHidden, opts.Timeout)
			}
		}
		res, err := a.resolver.Resolve(ctx, target, opts)
		if err != nil {
			if errors.Is(err, resolver.ErrHealingExhausted) && target.Kind() == schemas.TargetSelector && ctx.Err() == nil {
				return struct{}{}, nil
			}
			return struct{}{}, err
		}
		return struct{}{}, a.waiter.ForElement(ctx, res.Element, schemas.StateHidden, opts.Timeout)
	})
	return err
}

// Screenshot captures the element. When path is set the image is also written there.
func (a *Actions) Screenshot(ctx context.Context, target schemas.Target, path string, opts schemas.HealingOptions) ([]byte, error) {
	return perform(ctx, a, OpScreenshot, target, opts, func(ctx context.Context, el schemas.Element) ([]byte, error) {
		return el.Screenshot(ctx, path)
	})
}

// ClickIfVisible clicks the element only when it is visible. Failures are suppressed.
func (a *Actions) ClickIfVisible(ctx context.Context, target schemas.Target, opts schemas.HealingOptions) error {
	return a.exec(ctx, OpClickIfVisible, target, opts, func(ctx context.Context, el schemas.Element) error {
		visible, err := el.IsVisible(ctx)
		if err != nil || !visible {
			return err
		}
		return el.Click(ctx, schemas.ClickOptions{})
	})
}

// FillIfVisible fills the element only when it is visible. Failures are suppressed.
func (a *Actions) FillIfVisible(ctx context.Context, target schemas.Target, value string, opts schemas.HealingOptions) error {
	return a.exec(ctx, OpFillIfVisible, target, opts, func(ctx context.Context, el schemas.Element) error {
		visible, err := el.IsVisible(ctx)
		if err != nil || !visible {
			return err
		}
		return el.Fill(ctx, value)
	})
}
