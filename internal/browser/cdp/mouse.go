package cdp

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/input"
)

// Mouse dispatches raw pointer events and remembers the last position.
type Mouse struct {
	page *Page

	mu      sync.Mutex
	x, y    float64
	pressed bool
}

func (m *Mouse) Move(ctx context.Context, x, y float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev := input.DispatchMouseEvent(input.MouseMoved, x, y)
	if m.pressed {
		ev = ev.WithButton(input.Left).WithButtons(1)
	}
	if err := m.page.run(ctx, ev); err != nil {
		return err
	}
	m.x, m.y = x, y
	return nil
}

func (m *Mouse) Down(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.page.run(ctx, input.DispatchMouseEvent(input.MousePressed, m.x, m.y).
		WithButton(input.Left).WithButtons(1).WithClickCount(1))
	if err == nil {
		m.pressed = true
	}
	return err
}

func (m *Mouse) Up(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.page.run(ctx, input.DispatchMouseEvent(input.MouseReleased, m.x, m.y).
		WithButton(input.Left).WithClickCount(1))
	if err == nil {
		m.pressed = false
	}
	return err
}
