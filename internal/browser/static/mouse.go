package static

import (
	"context"
	"fmt"
)

// mouse records pointer primitives. Coordinates are not hit-tested.
type mouse struct {
	page *Page
	x, y float64
	down bool
}

func (m *mouse) Move(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.page.eventsMu.Lock()
	m.x, m.y = x, y
	m.page.eventsMu.Unlock()
	m.page.record("mouse.move", nil, fmt.Sprintf("%.0f,%.0f", x, y))
	return nil
}

func (m *mouse) Down(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.page.eventsMu.Lock()
	m.down = true
	m.page.eventsMu.Unlock()
	m.page.record("mouse.down", nil, "")
	return nil
}

func (m *mouse) Up(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.page.eventsMu.Lock()
	wasDown := m.down
	m.down = false
	m.page.eventsMu.Unlock()
	if !wasDown {
		return fmt.Errorf("mouse up without a preceding down")
	}
	m.page.record("mouse.up", nil, "")
	return nil
}
