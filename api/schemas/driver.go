// File: api/schemas/driver.go
package schemas

import (
	"context"
	"time"
)

// -- Browser Driver Contracts --
//
// The healing engine only ever talks to the browser through these interfaces.
// Selectors handed to Root.Query may be location-path queries (starting with "/",
// "(" or "xpath=") or CSS selectors; implementations decide which engine to use
// from that prefix.

// WaitState is an element state a caller can wait for.
type WaitState string

const (
	StateVisible  WaitState = "visible"
	StateHidden   WaitState = "hidden"
	StateAttached WaitState = "attached"
	// StateEnabled ignores visibility: a hidden control can be enabled.
	StateEnabled WaitState = "enabled"
)

// MouseButton selects the button used for a click.
type MouseButton string

const (
	ButtonLeft  MouseButton = "left"
	ButtonRight MouseButton = "right"
)

// ClickOptions tunes a single click.
type ClickOptions struct {
	// Force skips actionability checks (visibility, enabled, hit testing).
	Force  bool
	Button MouseButton
}

// Box is an element's bounding box in CSS pixels.
type Box struct {
	X, Y, Width, Height float64
}

// Center returns the midpoint of the box.
func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// ElementInfo is the raw description of an element returned by the driver.
type ElementInfo struct {
	TagName       string            `json:"tagName"`
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	ClassName     string            `json:"className"`
	Type          string            `json:"type"`
	TextContent   string            `json:"textContent"`
	Attributes    map[string]string `json:"attributes"`
	HasShadowRoot bool              `json:"hasShadowRoot"`
}

// Root is anything elements can be queried under: a document, a frame or a
// shadow root.
type Root interface {
	// Query returns the elements matching selector in document order.
	Query(ctx context.Context, selector string) ([]Element, error)
}

// Mouse exposes raw pointer primitives used by drag and drop.
type Mouse interface {
	Move(ctx context.Context, x, y float64) error
	Down(ctx context.Context) error
	Up(ctx context.Context) error
}

// Page is the top-level browsing context.
type Page interface {
	Root
	// Frames returns every non-main frame reachable from the page.
	Frames(ctx context.Context) ([]Root, error)
	Mouse() Mouse
	// Sleep pauses for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

// Element is a live, non-owning handle to a DOM element. It is only valid until
// the page mutates and must never be stored beyond a single resolution pass.
type Element interface {
	// Key identifies the underlying node for visited-set bookkeeping.
	Key() string

	Describe(ctx context.Context) (ElementInfo, error)
	IsVisible(ctx context.Context) (bool, error)
	IsEnabled(ctx context.Context) (bool, error)
	IsAttached(ctx context.Context) (bool, error)
	// ShadowChildren returns every element inside the element's open shadow root.
	ShadowChildren(ctx context.Context) ([]Element, error)
	// ShadowRoot returns the element's open shadow root, or nil when it has none.
	ShadowRoot(ctx context.Context) (Root, error)

	Click(ctx context.Context, opts ClickOptions) error
	DoubleClick(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	Type(ctx context.Context, text string) error
	Press(ctx context.Context, key string) error
	Hover(ctx context.Context) error
	Check(ctx context.Context, force bool) error
	Uncheck(ctx context.Context) error
	SelectOption(ctx context.Context, value string) ([]string, error)
	ScrollIntoView(ctx context.Context) error

	TextContent(ctx context.Context) (string, error)
	GetAttribute(ctx context.Context, name string) (string, bool, error)
	SetAttribute(ctx context.Context, name, value string) error
	HasAttribute(ctx context.Context, name string) (bool, error)
	// ComputedDisplay returns the computed CSS display value.
	ComputedDisplay(ctx context.Context) (string, error)
	BoundingBox(ctx context.Context) (*Box, error)
	// DispatchEvent fires a bubbling DOM event of the given type.
	DispatchEvent(ctx context.Context, eventType string) error
	Screenshot(ctx context.Context, path string) ([]byte, error)
}
