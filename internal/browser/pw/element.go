package pw

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/xkilldash9x/healer/api/schemas"
	"github.com/xkilldash9x/healer/internal/browser/jsfunc"
)

// Element wraps a Playwright element handle.
type Element struct {
	handle playwright.ElementHandle
	key    string
}

var _ schemas.Element = (*Element)(nil)

func (e *Element) Key() string { return e.key }

// eval runs a script with the element as its first argument.
func (e *Element) eval(ctx context.Context, fn string, arg ...any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.handle.Evaluate(fn, arg...)
}

func (e *Element) str(ctx context.Context, fn string, arg ...any) (string, error) {
	v, err := e.eval(ctx, fn, arg...)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("script returned %T, want string", v)
	}
	return s, nil
}

func (e *Element) flag(ctx context.Context, fn string) (bool, error) {
	v, err := e.eval(ctx, fn)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("script returned %T, want bool", v)
	}
	return b, nil
}

func (e *Element) Describe(ctx context.Context) (schemas.ElementInfo, error) {
	payload, err := e.str(ctx, jsfunc.Describe)
	if err != nil {
		return schemas.ElementInfo{}, err
	}
	return jsfunc.DecodeInfo(payload)
}

func (e *Element) IsVisible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return e.handle.IsVisible()
}

func (e *Element) IsEnabled(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return e.handle.IsEnabled()
}

func (e *Element) IsAttached(ctx context.Context) (bool, error) {
	return e.flag(ctx, jsfunc.IsAttached)
}

func (e *Element) ShadowChildren(ctx context.Context) ([]schemas.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	array, err := e.handle.EvaluateHandle(jsfunc.ShadowChildren)
	if err != nil {
		return nil, err
	}
	return elements(ctx, array)
}

// ShadowRoot returns a root that queries inside the open shadow root, or nil.
func (e *Element) ShadowRoot(ctx context.Context) (schemas.Root, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	has, err := e.flag(ctx, "(el) => !!el.shadowRoot")
	if err != nil || !has {
		return nil, err
	}
	return &shadow{host: e.handle}, nil
}

func (e *Element) Click(ctx context.Context, opts schemas.ClickOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	button := playwright.MouseButtonLeft
	if opts.Button == schemas.ButtonRight {
		button = playwright.MouseButtonRight
	}
	return e.handle.Click(playwright.ElementHandleClickOptions{
		Button:  button,
		Force:   playwright.Bool(opts.Force),
		Timeout: timeout(ctx),
	})
}

func (e *Element) DoubleClick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.handle.Dblclick(playwright.ElementHandleDblclickOptions{Timeout: timeout(ctx)})
}

func (e *Element) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.handle.Fill(value, playwright.ElementHandleFillOptions{Timeout: timeout(ctx)})
}

func (e *Element) Type(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.handle.Type(text, playwright.ElementHandleTypeOptions{Timeout: timeout(ctx)})
}

func (e *Element) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.handle.Press(key, playwright.ElementHandlePressOptions{Timeout: timeout(ctx)})
}

func (e *Element) Hover(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.handle.Hover(playwright.ElementHandleHoverOptions{Timeout: timeout(ctx)})
}

func (e *Element) Check(ctx context.Context, force bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.handle.Check(playwright.ElementHandleCheckOptions{
		Force:   playwright.Bool(force),
		Timeout: timeout(ctx),
	})
}

func (e *Element) Uncheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.handle.Uncheck(playwright.ElementHandleUncheckOptions{Timeout: timeout(ctx)})
}

// SelectOption selects by value, falling back to the visible label.
func (e *Element) SelectOption(ctx context.Context, value string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := playwright.ElementHandleSelectOptionOptions{Timeout: timeout(ctx)}
	selected, err := e.handle.SelectOption(playwright.SelectOptionValues{Values: &[]string{value}}, opts)
	if err == nil && len(selected) > 0 {
		return selected, nil
	}
	return e.handle.SelectOption(playwright.SelectOptionValues{Labels: &[]string{value}}, opts)
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.handle.ScrollIntoViewIfNeeded(playwright.ElementHandleScrollIntoViewIfNeededOptions{Timeout: timeout(ctx)})
}

func (e *Element) TextContent(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.handle.TextContent()
}

// GetAttribute distinguishes an empty attribute from a missing one, which the
// Playwright accessor does not.
func (e *Element) GetAttribute(ctx context.Context, name string) (string, bool, error) {
	payload, err := e.str(ctx, jsfunc.GetAttribute, name)
	if err != nil {
		return "", false, err
	}
	a, err := jsfunc.DecodeAttribute(payload)
	return a.Value, a.OK, err
}

func (e *Element) SetAttribute(ctx context.Context, name, value string) error {
	_, err := e.eval(ctx, jsfunc.SetAttribute, []string{name, value})
	return err
}

func (e *Element) HasAttribute(ctx context.Context, name string) (bool, error) {
	_, ok, err := e.GetAttribute(ctx, name)
	return ok, err
}

func (e *Element) ComputedDisplay(ctx context.Context) (string, error) {
	return e.str(ctx, jsfunc.ComputedDisplay)
}

func (e *Element) BoundingBox(ctx context.Context) (*schemas.Box, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rect, err := e.handle.BoundingBox()
	if err != nil || rect == nil {
		return nil, err
	}
	if rect.Width == 0 || rect.Height == 0 {
		return nil, nil
	}
	return &schemas.Box{X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height}, nil
}

func (e *Element) DispatchEvent(ctx context.Context, eventType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.handle.DispatchEvent(eventType, map[string]any{"bubbles": true})
}

func (e *Element) Screenshot(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := playwright.ElementHandleScreenshotOptions{Timeout: timeout(ctx)}
	if path != "" {
		opts.Path = playwright.String(path)
	}
	return e.handle.Screenshot(opts)
}
