package actions

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/healer/api/schemas"
)

// Do dispatches an operation by name. Positional string arguments come first
// (value, key, attribute name, path); a schemas.Target supplies the second
// element of dragAndDrop and selectRandomOption; an options value of the
// operation's type may appear anywhere. The result is the operation's return
// value, or nil for operations without one.
func (a *Actions) Do(ctx context.Context, op string, target schemas.Target, args ...any) (any, error) {
	p, err := parseArgs(op, args)
	if err != nil {
		return a.reject(ctx, op, target, p.opts, err)
	}

	switch op {
	case OpClick:
		return nil, a.Click(ctx, target, p.click)
	case OpCheckboxClick:
		return nil, a.CheckboxClick(ctx, target, p.opts)
	case OpFill, OpType, OpPress, OpFillIfVisible, OpSelectOption, OpGetAttribute:
		s, err := p.str(0)
		if err != nil {
			return a.reject(ctx, op, target, p.opts, err)
		}
		switch op {
		case OpFill:
			return nil, a.Fill(ctx, target, s, p.opts)
		case OpType:
			return nil, a.Type(ctx, target, s, p.opts)
		case OpPress:
			return nil, a.Press(ctx, target, s, p.opts)
		case OpFillIfVisible:
			return nil, a.FillIfVisible(ctx, target, s, p.opts)
		case OpSelectOption:
			return a.SelectOption(ctx, target, s, p.opts)
		default:
			v, ok, err := a.GetAttribute(ctx, target, s, p.opts)
			if err != nil || !ok {
				return nil, err
			}
			return v, nil
		}
	case OpIsVisible:
		return a.IsVisible(ctx, target, p.opts)
	case OpClear:
		return nil, a.Clear(ctx, target, p.opts)
	case OpHover:
		return nil, a.Hover(ctx, target, p.opts)
	case OpCheck:
		return nil, a.Check(ctx, target, p.opts)
	case OpUncheck:
		return nil, a.Uncheck(ctx, target, p.opts)
	case OpGetText:
		return a.GetText(ctx, target, p.opts)
	case OpScrollIntoView:
		return nil, a.ScrollIntoView(ctx, target, p.opts)
	case OpDoubleClick:
		return nil, a.DoubleClick(ctx, target, p.opts)
	case OpRightClick:
		return nil, a.RightClick(ctx, target, p.opts)
	case OpDragAndDrop:
		dest, err := p.second(0)
		if err != nil {
			return a.reject(ctx, op, target, p.opts, err)
		}
		return nil, a.DragAndDrop(ctx, target, dest, p.opts)
	case OpWaitForVisible:
		return nil, a.WaitForVisible(ctx, target, p.opts)
	case OpWaitForHidden:
		return nil, a.WaitForHidden(ctx, target, p.opts)
	case OpWaitForEnabled:
		return nil, a.WaitForEnabled(ctx, target, p.opts)
	case OpScreenshot:
		path, _ := p.str(0)
		return a.Screenshot(ctx, target, path, p.opts)
	case OpClickIfVisible:
		return nil, a.ClickIfVisible(ctx, target, p.opts)
	case OpSelectRandomOption:
		option, err := p.second(0)
		if err != nil {
			return a.reject(ctx, op, target, p.opts, err)
		}
		return a.SelectRandomOption(ctx, target, option, p.random)
	default:
		return a.reject(ctx, op, target, p.opts, fmt.Errorf("%w: %q", ErrUnknownOperation, op))
	}
}

// reject reports a call that cannot be dispatched the way a failed action is.
func (a *Actions) reject(ctx context.Context, op string, target schemas.Target, opts schemas.HealingOptions, err error) (any, error) {
	return boundary(ctx, a, op, target, opts, func(context.Context) (any, error) {
		return nil, err
	})
}

type parsedArgs struct {
	op      string
	strings []string
	targets []schemas.Target
	opts    schemas.HealingOptions
	click   ClickOptions
	random  schemas.RandomSelectOptions
}

// parseArgs reads every argument before reporting the first bad one, so the
// caller's options apply to the failure too.
func parseArgs(op string, args []any) (parsedArgs, error) {
	p := parsedArgs{op: op}
	var err error
	for i, arg := range args {
		switch v := arg.(type) {
		case string:
			p.strings = append(p.strings, v)
		case schemas.Target:
			p.targets = append(p.targets, v)
		case schemas.HealingOptions:
			p.opts = v
			p.click.HealingOptions = v
			p.random.HealingOptions = v
		case ClickOptions:
			p.click = v
			p.opts = v.HealingOptions
		case schemas.RandomSelectOptions:
			p.random = v
			p.opts = v.HealingOptions
		case nil:
		default:
			if err == nil {
				err = fmt.Errorf("%w: %s argument %d has unsupported type %T", ErrInvalidArguments, op, i, arg)
			}
		}
	}
	return p, err
}

func (p parsedArgs) str(i int) (string, error) {
	if i >= len(p.strings) {
		return "", fmt.Errorf("%w: %s needs string argument %d", ErrInvalidArguments, p.op, i+1)
	}
	return p.strings[i], nil
}

// second returns the i-th secondary target; a bare string is taken as a selector.
func (p parsedArgs) second(i int) (schemas.Target, error) {
	if i < len(p.targets) {
		return p.targets[i], nil
	}
	if s, err := p.str(i); err == nil {
		return schemas.Selector(s), nil
	}
	return schemas.Target{}, fmt.Errorf("%w: %s needs a second target", ErrInvalidArguments, p.op)
}
