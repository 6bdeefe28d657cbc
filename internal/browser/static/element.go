package static

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/healer/api/schemas"
)

// Element is a handle to a node of a static document.
type Element struct {
	doc  *Document
	node *html.Node
}

var _ schemas.Element = (*Element)(nil)

var checkable = map[string]bool{"checkbox": true, "radio": true}

func (e *Element) Key() string { return fmt.Sprintf("%p", e.node) }

func (e *Element) String() string { return describeNode(e.node) }

func (e *Element) tag() string { return strings.ToLower(e.node.Data) }

var inputTypes = map[string]bool{
	"button": true, "checkbox": true, "color": true, "date": true, "datetime-local": true,
	"email": true, "file": true, "hidden": true, "image": true, "month": true, "number": true,
	"password": true, "radio": true, "range": true, "reset": true, "search": true,
	"submit": true, "tel": true, "text": true, "time": true, "url": true, "week": true,
}

// inputType is the element's type as a browser reports it: inputs with a
// missing or unknown type are "text".
func (e *Element) inputType() string {
	t, _ := attr(e.node, "type")
	t = strings.ToLower(strings.TrimSpace(t))
	if e.tag() == "input" && !inputTypes[t] {
		return "text"
	}
	return t
}

func (e *Element) Describe(ctx context.Context) (schemas.ElementInfo, error) {
	if err := ctx.Err(); err != nil {
		return schemas.ElementInfo{}, err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	if !e.doc.attached(e.node) {
		return schemas.ElementInfo{}, fmt.Errorf("describe %s: element is detached", describeNode(e.node))
	}
	attrs := make(map[string]string, len(e.node.Attr))
	for _, a := range e.node.Attr {
		attrs[a.Key] = a.Val
	}
	id, _ := attr(e.node, "id")
	name, _ := attr(e.node, "name")
	class, _ := attr(e.node, "class")
	return schemas.ElementInfo{
		TagName:       e.tag(),
		ID:            id,
		Name:          name,
		ClassName:     class,
		Type:          e.inputType(),
		TextContent:   strings.TrimSpace(htmlquery.InnerText(e.node)),
		Attributes:    attrs,
		HasShadowRoot: openShadowRoot(e.node) != nil,
	}, nil
}

func (e *Element) IsVisible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.doc.visible(e.node), nil
}

func (e *Element) IsEnabled(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.doc.enabled(e.node), nil
}

func (e *Element) IsAttached(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.doc.attached(e.node), nil
}

// ShadowChildren returns the elements of the open shadow root in document
// order, excluding the content of nested shadow roots.
func (e *Element) ShadowChildren(ctx context.Context) ([]schemas.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	shadow := openShadowRoot(e.node)
	if shadow == nil {
		return nil, nil
	}
	nodes := e.doc.scoped(shadow, func(n *html.Node) bool { return n.Data != "template" })
	out := make([]schemas.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &Element{doc: e.doc, node: n})
	}
	return out, nil
}

// ShadowRoot returns a root that queries only inside the element's open
// shadow root.
func (e *Element) ShadowRoot(ctx context.Context) (schemas.Root, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	shadow := openShadowRoot(e.node)
	if shadow == nil {
		return nil, nil
	}
	return &shadowRoot{doc: e.doc, node: shadow}, nil
}

// actionable checks the preconditions shared by pointer and keyboard actions.
// Callers hold the write lock.
func (e *Element) actionable(op string, needEnabled bool) error {
	switch {
	case !e.doc.attached(e.node):
		return fmt.Errorf("%w: %s on %s: detached", ErrNotActionable, op, describeNode(e.node))
	case !e.doc.visible(e.node):
		return fmt.Errorf("%w: %s on %s: not visible", ErrNotActionable, op, describeNode(e.node))
	case needEnabled && !e.doc.enabled(e.node):
		return fmt.Errorf("%w: %s on %s: disabled", ErrNotActionable, op, describeNode(e.node))
	}
	return nil
}

func (e *Element) mutate(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return fn()
}

func (e *Element) Click(ctx context.Context, opts schemas.ClickOptions) error {
	return e.mutate(ctx, func() error {
		if !opts.Force {
			if err := e.actionable("click", true); err != nil {
				return err
			}
		} else if !e.doc.attached(e.node) {
			return fmt.Errorf("click on %s: element is detached", describeNode(e.node))
		}
		button := opts.Button
		if button == "" {
			button = schemas.ButtonLeft
		}
		if button == schemas.ButtonLeft && e.tag() == "input" && checkable[e.inputType()] {
			e.toggle()
		}
		if e.tag() == "option" {
			e.selectOption(e.node)
		}
		e.doc.page.record("click", e.node, string(button))
		return nil
	})
}

func (e *Element) DoubleClick(ctx context.Context) error {
	return e.mutate(ctx, func() error {
		if err := e.actionable("dblclick", true); err != nil {
			return err
		}
		e.doc.page.record("dblclick", e.node, "")
		return nil
	})
}

func (e *Element) Hover(ctx context.Context) error {
	return e.mutate(ctx, func() error {
		if err := e.actionable("hover", false); err != nil {
			return err
		}
		e.doc.page.record("hover", e.node, "")
		return nil
	})
}

func (e *Element) editable() bool {
	switch e.tag() {
	case "textarea":
		return true
	case "input":
		switch e.inputType() {
		case "checkbox", "radio", "submit", "button", "reset", "file", "image", "hidden":
			return false
		}
		return true
	}
	v, ok := attr(e.node, "contenteditable")
	return ok && v != "false"
}

func (e *Element) currentValue() string {
	if e.tag() == "input" {
		v, _ := attr(e.node, "value")
		return v
	}
	return htmlquery.InnerText(e.node)
}

func (e *Element) setValue(v string) {
	if e.tag() == "input" {
		setAttr(e.node, "value", v)
		return
	}
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
	if v != "" {
		e.node.AppendChild(&html.Node{Type: html.TextNode, Data: v})
	}
}

func (e *Element) Fill(ctx context.Context, value string) error {
	return e.mutate(ctx, func() error {
		if err := e.actionable("fill", true); err != nil {
			return err
		}
		if !e.editable() {
			return fmt.Errorf("%w: fill on %s: not editable", ErrNotActionable, describeNode(e.node))
		}
		e.setValue(value)
		e.doc.page.record("fill", e.node, value)
		return nil
	})
}

func (e *Element) Type(ctx context.Context, text string) error {
	return e.mutate(ctx, func() error {
		if err := e.actionable("type", true); err != nil {
			return err
		}
		if !e.editable() {
			return fmt.Errorf("%w: type on %s: not editable", ErrNotActionable, describeNode(e.node))
		}
		e.setValue(e.currentValue() + text)
		e.doc.page.record("type", e.node, text)
		return nil
	})
}

func (e *Element) Press(ctx context.Context, key string) error {
	return e.mutate(ctx, func() error {
		if !e.doc.attached(e.node) {
			return fmt.Errorf("%w: press on %s: detached", ErrNotActionable, describeNode(e.node))
		}
		e.doc.page.record("press", e.node, key)
		return nil
	})
}

func (e *Element) toggle() {
	if e.inputType() == "radio" {
		e.setChecked(true)
		return
	}
	_, checked := attr(e.node, "checked")
	e.setChecked(!checked)
}

// setChecked updates the checked state; checking a radio clears the others of
// its group.
func (e *Element) setChecked(checked bool) {
	if !checked {
		removeAttr(e.node, "checked")
		return
	}
	if e.inputType() == "radio" {
		if name, ok := attr(e.node, "name"); ok {
			for _, other := range e.doc.scoped(e.doc.root, func(n *html.Node) bool {
				if n.Data != "input" {
					return false
				}
				t, _ := attr(n, "type")
				nn, _ := attr(n, "name")
				return strings.EqualFold(t, "radio") && nn == name
			}) {
				removeAttr(other, "checked")
			}
		}
	}
	setAttr(e.node, "checked", "")
}

func (e *Element) Check(ctx context.Context, force bool) error {
	return e.mutate(ctx, func() error {
		if e.tag() != "input" || !checkable[e.inputType()] {
			return fmt.Errorf("check on %s: not a checkbox or radio", describeNode(e.node))
		}
		if !force {
			if err := e.actionable("check", true); err != nil {
				return err
			}
		}
		e.setChecked(true)
		e.doc.page.record("check", e.node, "")
		return nil
	})
}

func (e *Element) Uncheck(ctx context.Context) error {
	return e.mutate(ctx, func() error {
		if e.tag() != "input" || e.inputType() != "checkbox" {
			return fmt.Errorf("uncheck on %s: not a checkbox", describeNode(e.node))
		}
		if err := e.actionable("uncheck", true); err != nil {
			return err
		}
		e.setChecked(false)
		e.doc.page.record("uncheck", e.node, "")
		return nil
	})
}

func optionValue(opt *html.Node) string {
	if v, ok := attr(opt, "value"); ok {
		return v
	}
	return strings.TrimSpace(htmlquery.InnerText(opt))
}

// selectOption marks opt selected within its enclosing select.
func (e *Element) selectOption(opt *html.Node) {
	sel := opt.Parent
	for sel != nil && !(sel.Type == html.ElementNode && sel.Data == "select") {
		sel = sel.Parent
	}
	if sel != nil {
		if _, multiple := attr(sel, "multiple"); !multiple {
			for _, o := range htmlquery.Find(sel, ".//option") {
				removeAttr(o, "selected")
			}
		}
	}
	setAttr(opt, "selected", "")
}

func (e *Element) SelectOption(ctx context.Context, value string) ([]string, error) {
	var selected []string
	err := e.mutate(ctx, func() error {
		if e.tag() != "select" {
			return fmt.Errorf("select option on %s: not a select element", describeNode(e.node))
		}
		if err := e.actionable("select", true); err != nil {
			return err
		}
		for _, opt := range htmlquery.Find(e.node, ".//option") {
			label, _ := attr(opt, "label")
			if optionValue(opt) == value || strings.TrimSpace(htmlquery.InnerText(opt)) == value || (label != "" && label == value) {
				e.selectOption(opt)
				selected = []string{optionValue(opt)}
				e.doc.page.record("select", e.node, selected[0])
				return nil
			}
		}
		return fmt.Errorf("select option on %s: no option %q", describeNode(e.node), value)
	})
	return selected, err
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	return e.mutate(ctx, func() error {
		if !e.doc.attached(e.node) {
			return fmt.Errorf("%w: scroll on %s: detached", ErrNotActionable, describeNode(e.node))
		}
		e.doc.page.record("scroll", e.node, "")
		return nil
	})
}

func (e *Element) TextContent(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return htmlquery.InnerText(e.node), nil
}

func (e *Element) GetAttribute(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	v, ok := attr(e.node, name)
	return v, ok, nil
}

func (e *Element) SetAttribute(ctx context.Context, name, value string) error {
	return e.mutate(ctx, func() error {
		setAttr(e.node, name, value)
		return nil
	})
}

// RemoveAttribute deletes an attribute; it has no counterpart in the driver
// contract and exists for tests that mutate the page between resolutions.
func (e *Element) RemoveAttribute(ctx context.Context, name string) error {
	return e.mutate(ctx, func() error {
		removeAttr(e.node, name)
		return nil
	})
}

func (e *Element) HasAttribute(ctx context.Context, name string) (bool, error) {
	_, ok, err := e.GetAttribute(ctx, name)
	return ok, err
}

func (e *Element) ComputedDisplay(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.doc.computedDisplay(e.node), nil
}

// BoundingBox returns nil for elements that are not rendered. Rendered
// elements are stacked vertically in document order; width and height honour
// px values from styles.
func (e *Element) BoundingBox(ctx context.Context) (*schemas.Box, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	if !e.doc.visible(e.node) {
		return nil, nil
	}
	return &schemas.Box{
		X:      0,
		Y:      float64(e.doc.position(e.node)) * defaultBoxHeight,
		Width:  e.doc.length(e.node, "width", defaultBoxWidth),
		Height: e.doc.length(e.node, "height", defaultBoxHeight),
	}, nil
}

func (e *Element) DispatchEvent(ctx context.Context, eventType string) error {
	return e.mutate(ctx, func() error {
		if !e.doc.attached(e.node) {
			return fmt.Errorf("dispatch %s on %s: element is detached", eventType, describeNode(e.node))
		}
		e.doc.page.record(eventType, e.node, "dispatched")
		return nil
	})
}

// Screenshot has no pixels to capture; it returns the element's serialized
// markup and writes it to path when one is given.
func (e *Element) Screenshot(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.doc.mu.RLock()
	var buf bytes.Buffer
	err := html.Render(&buf, e.node)
	e.doc.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", describeNode(e.node), err)
	}
	if path != "" {
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write snapshot: %w", err)
		}
	}
	return buf.Bytes(), nil
}
