// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/healer/api/schemas"
	"github.com/xkilldash9x/healer/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Healing() config.HealingConfig {
	args := m.Called()
	return args.Get(0).(config.HealingConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

// --- Setters ---

func (m *MockConfig) SetHealingTimeout(d time.Duration)                { m.Called(d) }
func (m *MockConfig) SetHealingContextSelector(s string)               { m.Called(s) }
func (m *MockConfig) SetHealingCollectionMode(c config.CollectionMode) { m.Called(c) }
func (m *MockConfig) SetHealingDebugLog(b bool)                        { m.Called(b) }
func (m *MockConfig) SetBrowserDriver(d config.DriverKind)             { m.Called(d) }
func (m *MockConfig) SetBrowserHeadless(b bool)                        { m.Called(b) }

// -- Driver Mocks --

// MockElement mocks schemas.Element.
type MockElement struct {
	mock.Mock
}

var _ schemas.Element = (*MockElement)(nil)

func (m *MockElement) Key() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockElement) Describe(ctx context.Context) (schemas.ElementInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(schemas.ElementInfo), args.Error(1)
}

func (m *MockElement) IsVisible(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockElement) IsEnabled(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockElement) IsAttached(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockElement) ShadowChildren(ctx context.Context) ([]schemas.Element, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.Element), args.Error(1)
}

func (m *MockElement) ShadowRoot(ctx context.Context) (schemas.Root, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(schemas.Root), args.Error(1)
}

func (m *MockElement) Click(ctx context.Context, opts schemas.ClickOptions) error {
	return m.Called(ctx, opts).Error(0)
}

func (m *MockElement) DoubleClick(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockElement) Fill(ctx context.Context, value string) error {
	return m.Called(ctx, value).Error(0)
}

func (m *MockElement) Type(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

func (m *MockElement) Press(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockElement) Hover(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockElement) Check(ctx context.Context, force bool) error {
	return m.Called(ctx, force).Error(0)
}

func (m *MockElement) Uncheck(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockElement) SelectOption(ctx context.Context, value string) ([]string, error) {
	args := m.Called(ctx, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockElement) ScrollIntoView(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockElement) TextContent(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockElement) GetAttribute(ctx context.Context, name string) (string, bool, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockElement) SetAttribute(ctx context.Context, name, value string) error {
	return m.Called(ctx, name, value).Error(0)
}

func (m *MockElement) HasAttribute(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockElement) ComputedDisplay(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockElement) BoundingBox(ctx context.Context) (*schemas.Box, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.Box), args.Error(1)
}

func (m *MockElement) DispatchEvent(ctx context.Context, eventType string) error {
	return m.Called(ctx, eventType).Error(0)
}

func (m *MockElement) Screenshot(ctx context.Context, path string) ([]byte, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockMouse mocks schemas.Mouse.
type MockMouse struct {
	mock.Mock
}

var _ schemas.Mouse = (*MockMouse)(nil)

func (m *MockMouse) Move(ctx context.Context, x, y float64) error {
	return m.Called(ctx, x, y).Error(0)
}
func (m *MockMouse) Down(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *MockMouse) Up(ctx context.Context) error   { return m.Called(ctx).Error(0) }
