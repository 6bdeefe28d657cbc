package cdp

import (
	"context"
	"fmt"
	"os"

	"github.com/chromedp/cdproto/input"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/xkilldash9x/healer/api/schemas"
	"github.com/xkilldash9x/healer/internal/browser/jsfunc"
)

// Element is a remote object handle to a DOM element.
type Element struct {
	page *Page
	id   runtime.RemoteObjectID
	key  string
}

var _ schemas.Element = (*Element)(nil)

// Key is stable for the node across queries within one document.
func (e *Element) Key() string { return e.key }

func (e *Element) str(ctx context.Context, fn string, args ...any) (string, error) {
	var s string
	err := e.page.callValue(ctx, e.id, fn, &s, args...)
	return s, err
}

func (e *Element) flag(ctx context.Context, fn string) (bool, error) {
	var b bool
	err := e.page.callValue(ctx, e.id, fn, &b)
	return b, err
}

func (e *Element) Describe(ctx context.Context) (schemas.ElementInfo, error) {
	payload, err := e.str(ctx, jsfunc.Describe)
	if err != nil {
		return schemas.ElementInfo{}, err
	}
	return jsfunc.DecodeInfo(payload)
}

func (e *Element) IsVisible(ctx context.Context) (bool, error) { return e.flag(ctx, jsfunc.IsVisible) }
func (e *Element) IsEnabled(ctx context.Context) (bool, error) { return e.flag(ctx, jsfunc.IsEnabled) }
func (e *Element) IsAttached(ctx context.Context) (bool, error) {
	return e.flag(ctx, jsfunc.IsAttached)
}

func (e *Element) ShadowChildren(ctx context.Context) ([]schemas.Element, error) {
	array, err := e.page.callObject(ctx, e.id, jsfunc.ShadowChildren)
	if err != nil {
		return nil, err
	}
	return e.page.elements(ctx, array)
}

// ShadowRoot returns the open shadow root as a queryable root, or nil.
func (e *Element) ShadowRoot(ctx context.Context) (schemas.Root, error) {
	id, err := e.page.callObject(ctx, e.id, jsfunc.ShadowRoot)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}
	return &root{page: e.page, id: id}, nil
}

// actionable checks attachment, visibility, enablement and that the element
// is the hit target at its centre.
func (e *Element) actionable(ctx context.Context) error {
	checks := []struct {
		fn   string
		what string
	}{
		{jsfunc.IsAttached, "detached"},
		{jsfunc.IsVisible, "not visible"},
		{jsfunc.IsEnabled, "disabled"},
		{jsfunc.HitTarget, "covered by another element"},
	}
	for _, c := range checks {
		ok, err := e.flag(ctx, c.fn)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotActionable, c.what)
		}
	}
	return nil
}

// center scrolls the element into view and returns its viewport centre.
func (e *Element) center(ctx context.Context) (float64, float64, bool, error) {
	if err := e.ScrollIntoView(ctx); err != nil {
		return 0, 0, false, err
	}
	box, err := e.BoundingBox(ctx)
	if err != nil || box == nil {
		return 0, 0, false, err
	}
	x, y := box.Center()
	return x, y, true, nil
}

func mouseButton(b schemas.MouseButton) input.MouseButton {
	if b == schemas.ButtonRight {
		return input.Right
	}
	return input.Left
}

func (e *Element) press(ctx context.Context, x, y float64, button input.MouseButton, clicks int64) error {
	return e.page.run(ctx,
		input.DispatchMouseEvent(input.MouseMoved, x, y),
		input.DispatchMouseEvent(input.MousePressed, x, y).WithButton(button).WithButtons(1).WithClickCount(clicks),
		input.DispatchMouseEvent(input.MouseReleased, x, y).WithButton(button).WithClickCount(clicks),
	)
}

// Click dispatches trusted mouse events at the element centre. A forced click
// on an element without a rendered box falls back to a script click.
func (e *Element) Click(ctx context.Context, opts schemas.ClickOptions) error {
	if !opts.Force {
		if err := e.actionable(ctx); err != nil {
			return err
		}
	}
	x, y, ok, err := e.center(ctx)
	if err != nil {
		return err
	}
	if !ok {
		if !opts.Force {
			return fmt.Errorf("%w: no bounding box", ErrNotActionable)
		}
		if opts.Button == schemas.ButtonRight {
			return e.DispatchEvent(ctx, "contextmenu")
		}
		return e.page.callValue(ctx, e.id, jsfunc.Click, nil)
	}
	return e.press(ctx, x, y, mouseButton(opts.Button), 1)
}

func (e *Element) DoubleClick(ctx context.Context) error {
	if err := e.actionable(ctx); err != nil {
		return err
	}
	x, y, ok, err := e.center(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no bounding box", ErrNotActionable)
	}
	if err := e.press(ctx, x, y, input.Left, 1); err != nil {
		return err
	}
	return e.press(ctx, x, y, input.Left, 2)
}

func (e *Element) editable(ctx context.Context) error {
	for _, fn := range []string{jsfunc.IsAttached, jsfunc.IsVisible, jsfunc.IsEnabled} {
		ok, err := e.flag(ctx, fn)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: not editable", ErrNotActionable)
		}
	}
	return nil
}

func (e *Element) Fill(ctx context.Context, value string) error {
	if err := e.editable(ctx); err != nil {
		return err
	}
	return e.page.callValue(ctx, e.id, jsfunc.Fill, nil, value)
}

// Type focuses the element and sends text as key events.
func (e *Element) Type(ctx context.Context, text string) error {
	if err := e.editable(ctx); err != nil {
		return err
	}
	if err := e.page.callValue(ctx, e.id, jsfunc.Focus, nil); err != nil {
		return err
	}
	return e.page.run(ctx, chromedp.KeyEvent(text))
}

var namedKeys = map[string]string{
	"Enter":      kb.Enter,
	"Tab":        kb.Tab,
	"Escape":     kb.Escape,
	"Backspace":  kb.Backspace,
	"Delete":     kb.Delete,
	"ArrowUp":    kb.ArrowUp,
	"ArrowDown":  kb.ArrowDown,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
	"Home":       kb.Home,
	"End":        kb.End,
	"PageUp":     kb.PageUp,
	"PageDown":   kb.PageDown,
}

// Press focuses the element and presses a single named key or character.
func (e *Element) Press(ctx context.Context, key string) error {
	if err := e.page.callValue(ctx, e.id, jsfunc.Focus, nil); err != nil {
		return err
	}
	if named, ok := namedKeys[key]; ok {
		key = named
	}
	return e.page.run(ctx, chromedp.KeyEvent(key))
}

func (e *Element) Hover(ctx context.Context) error {
	if err := e.actionable(ctx); err != nil {
		return err
	}
	x, y, ok, err := e.center(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no bounding box", ErrNotActionable)
	}
	return e.page.run(ctx, input.DispatchMouseEvent(input.MouseMoved, x, y))
}

func (e *Element) setChecked(ctx context.Context, checked, force bool) error {
	if !force {
		if err := e.editable(ctx); err != nil {
			return err
		}
	}
	var ok bool
	if err := e.page.callValue(ctx, e.id, jsfunc.SetChecked, &ok, checked); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("checked state did not change to %t", checked)
	}
	return nil
}

func (e *Element) Check(ctx context.Context, force bool) error { return e.setChecked(ctx, true, force) }
func (e *Element) Uncheck(ctx context.Context) error           { return e.setChecked(ctx, false, false) }

func (e *Element) SelectOption(ctx context.Context, value string) ([]string, error) {
	if err := e.editable(ctx); err != nil {
		return nil, err
	}
	payload, err := e.str(ctx, jsfunc.SelectOption, value)
	if err != nil {
		return nil, err
	}
	return jsfunc.DecodeStrings(payload)
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	return e.page.callValue(ctx, e.id, jsfunc.ScrollIntoView, nil)
}

func (e *Element) TextContent(ctx context.Context) (string, error) {
	return e.str(ctx, jsfunc.TextContent)
}

func (e *Element) GetAttribute(ctx context.Context, name string) (string, bool, error) {
	payload, err := e.str(ctx, jsfunc.GetAttribute, name)
	if err != nil {
		return "", false, err
	}
	a, err := jsfunc.DecodeAttribute(payload)
	return a.Value, a.OK, err
}

func (e *Element) SetAttribute(ctx context.Context, name, value string) error {
	return e.page.callValue(ctx, e.id, jsfunc.SetAttribute, nil, []string{name, value})
}

func (e *Element) HasAttribute(ctx context.Context, name string) (bool, error) {
	_, ok, err := e.GetAttribute(ctx, name)
	return ok, err
}

func (e *Element) ComputedDisplay(ctx context.Context) (string, error) {
	return e.str(ctx, jsfunc.ComputedDisplay)
}

func (e *Element) rect(ctx context.Context, absolute bool) (*schemas.Box, error) {
	payload, err := e.str(ctx, jsfunc.Rect, absolute)
	if err != nil {
		return nil, err
	}
	return jsfunc.DecodeRect(payload)
}

// BoundingBox returns the box in viewport coordinates, or nil when not rendered.
func (e *Element) BoundingBox(ctx context.Context) (*schemas.Box, error) {
	return e.rect(ctx, false)
}

func (e *Element) DispatchEvent(ctx context.Context, eventType string) error {
	return e.page.callValue(ctx, e.id, jsfunc.DispatchEvent, nil, eventType)
}

// Screenshot captures the element's box as PNG and writes it to path when
// path is not empty.
func (e *Element) Screenshot(ctx context.Context, path string) ([]byte, error) {
	if err := e.ScrollIntoView(ctx); err != nil {
		return nil, err
	}
	box, err := e.rect(ctx, true)
	if err != nil {
		return nil, err
	}
	if box == nil {
		return nil, fmt.Errorf("%w: no bounding box", ErrNotActionable)
	}
	var data []byte
	err = e.page.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		data, err = cdppage.CaptureScreenshot().
			WithFormat(cdppage.CaptureScreenshotFormatPng).
			WithCaptureBeyondViewport(true).
			WithClip(&cdppage.Viewport{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height, Scale: 1}).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if path != "" {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write screenshot: %w", err)
		}
	}
	return data, nil
}
