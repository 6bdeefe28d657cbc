// Package pw implements the browser driver contracts on top of playwright-go.
// Playwright calls do not take a context; each call checks ctx first and
// passes the remaining deadline as the Playwright timeout where one is accepted.
package pw

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/healer/api/schemas"
	"github.com/xkilldash9x/healer/internal/browser/jsfunc"
	"github.com/xkilldash9x/healer/internal/config"
)

const defaultNavigationTimeout = 30 * time.Second

// documentQuery runs the query script against the evaluating frame's document.
var documentQuery = "(sel) => (" + jsfunc.Query + ")(document, sel)"

// Page is a single Playwright page.
type Page struct {
	runtime    *playwright.Playwright
	browser    playwright.Browser
	page       playwright.Page
	logger     *zap.Logger
	navTimeout time.Duration
	mouse      *Mouse
}

var (
	_ schemas.Page  = (*Page)(nil)
	_ schemas.Root  = (*frame)(nil)
	_ schemas.Mouse = (*Mouse)(nil)
)

func launchOptions(cfg config.BrowserConfig) playwright.BrowserTypeLaunchOptions {
	return playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args:     cfg.Args,
		Timeout:  playwright.Float(60000),
	}
}

// Launch starts the Playwright driver, launches the configured browser and
// opens a page.
func Launch(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("playwright")

	runtime, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright driver: %w", err)
	}

	var browserType playwright.BrowserType
	switch cfg.PlaywrightBrowser {
	case "firefox":
		browserType = runtime.Firefox
	case "webkit":
		browserType = runtime.WebKit
	default:
		browserType = runtime.Chromium
	}
	browser, err := browserType.Launch(launchOptions(cfg))
	if err != nil {
		_ = runtime.Stop()
		return nil, fmt.Errorf("failed to launch browser instance: %w", err)
	}
	page, err := browser.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = runtime.Stop()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	p := &Page{
		runtime:    runtime,
		browser:    browser,
		page:       page,
		logger:     logger,
		navTimeout: cfg.NavigationTimeout,
	}
	if p.navTimeout <= 0 {
		p.navTimeout = defaultNavigationTimeout
	}
	p.mouse = &Mouse{mouse: page.Mouse()}
	logger.Info("Browser launched.",
		zap.String("browser", browserType.Name()),
		zap.String("version", browser.Version()))
	return p, nil
}

// Close shuts down the browser and the driver.
func (p *Page) Close() error {
	if err := p.browser.Close(); err != nil {
		p.logger.Warn("Failed to close browser.", zap.Error(err))
	}
	return p.runtime.Stop()
}

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := p.navTimeout
	if remaining, ok := remaining(ctx); ok && remaining < timeout {
		timeout = remaining
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	p.logger.Debug("Navigated.", zap.String("url", url))
	return nil
}

func (p *Page) Query(ctx context.Context, selector string) ([]schemas.Element, error) {
	return (&frame{frame: p.page.MainFrame()}).Query(ctx, selector)
}

// Frames returns every frame except the main one.
func (p *Page) Frames(ctx context.Context) ([]schemas.Root, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	main := p.page.MainFrame()
	var roots []schemas.Root
	for _, f := range p.page.Frames() {
		if f == main {
			continue
		}
		roots = append(roots, &frame{frame: f})
	}
	return roots, nil
}

func (p *Page) Mouse() schemas.Mouse { return p.mouse }

// Sleep pauses for d or until ctx is done.
func (p *Page) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type frame struct {
	frame playwright.Frame
}

func (f *frame) Query(ctx context.Context, selector string) ([]schemas.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	array, err := f.frame.EvaluateHandle(documentQuery, selector)
	if err != nil {
		return nil, fmt.Errorf("query %q failed: %w", selector, err)
	}
	return elements(ctx, array)
}

// shadowQuery runs Query against the host's shadow root.
const shadowQuery = "(el, sel) => el.shadowRoot ? (" + jsfunc.Query + ")(el.shadowRoot, sel) : []"

// shadow queries through its host so the root never needs its own handle.
type shadow struct {
	host playwright.ElementHandle
}

func (s *shadow) Query(ctx context.Context, selector string) ([]schemas.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	array, err := s.host.EvaluateHandle(shadowQuery, selector)
	if err != nil {
		return nil, fmt.Errorf("shadow query %q failed: %w", selector, err)
	}
	return elements(ctx, array)
}

// elements expands a JS array handle into element handles, in index order.
func elements(ctx context.Context, array playwright.JSHandle) ([]schemas.Element, error) {
	defer array.Dispose()
	props, err := array.GetProperties()
	if err != nil {
		return nil, fmt.Errorf("failed to read element list: %w", err)
	}
	type indexed struct {
		i  int
		el playwright.ElementHandle
	}
	items := make([]indexed, 0, len(props))
	for name, prop := range props {
		i, convErr := strconv.Atoi(name)
		el := prop.AsElement()
		if convErr != nil || el == nil {
			continue
		}
		items = append(items, indexed{i: i, el: el})
	}
	sort.Slice(items, func(a, b int) bool { return items[a].i < items[b].i })

	out := make([]schemas.Element, 0, len(items))
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key, err := it.el.Evaluate(jsfunc.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to key element: %w", err)
		}
		out = append(out, &Element{handle: it.el, key: fmt.Sprint(key)})
	}
	return out, nil
}

func remaining(ctx context.Context) (time.Duration, bool) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0, false
	}
	d := time.Until(deadline)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d, true
}

// timeout converts the ctx deadline to a Playwright timeout in milliseconds.
func timeout(ctx context.Context) *float64 {
	d, ok := remaining(ctx)
	if !ok {
		return nil
	}
	return playwright.Float(float64(d.Milliseconds()))
}

// Mouse wraps the page mouse.
type Mouse struct {
	mouse playwright.Mouse
}

func (m *Mouse) Move(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.mouse.Move(x, y)
}

func (m *Mouse) Down(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.mouse.Down()
}

func (m *Mouse) Up(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.mouse.Up()
}
