// Package cdp implements the browser driver contracts on top of chromedp and
// the raw DevTools protocol. Elements are remote object handles; all DOM
// inspection runs through the shared jsfunc functions.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/healer/api/schemas"
	"github.com/xkilldash9x/healer/internal/browser/jsfunc"
	"github.com/xkilldash9x/healer/internal/config"
)

// ErrNotActionable is returned when an unforced action's preconditions fail.
var ErrNotActionable = errors.New("element is not actionable")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultNavigationTimeout = 30 * time.Second

// Page is a single Chrome tab.
type Page struct {
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      *zap.Logger
	navTimeout  time.Duration
	mouse       *Mouse
}

var (
	_ schemas.Page  = (*Page)(nil)
	_ schemas.Root  = (*root)(nil)
	_ schemas.Mouse = (*Mouse)(nil)
)

// allocatorOptions builds the exec allocator flags. Entries of args are
// "--flag" or "--flag=value".
func allocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	for _, arg := range cfg.Args {
		key, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if key == "" {
			continue
		}
		if hasValue {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(key, true))
		}
	}
	return opts
}

// Launch starts a browser and opens one tab. The browser outlives ctx; call
// Close to release it.
func Launch(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Page, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("cdp")

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocatorOptions(cfg)...)
	tab, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Sugar().Debugf))

	p := &Page{
		tab:         tab,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		logger:      logger,
		navTimeout:  cfg.NavigationTimeout,
	}
	if p.navTimeout <= 0 {
		p.navTimeout = defaultNavigationTimeout
	}
	p.mouse = &Mouse{page: p}

	// The first Run starts the browser process.
	if err := p.run(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	logger.Info("Browser launched.", zap.Bool("headless", cfg.Headless))
	return p, nil
}

// Close closes the tab and shuts the browser down.
func (p *Page) Close() error {
	p.cancelTab()
	p.cancelAlloc()
	return nil
}

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()
	if err := p.run(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	p.logger.Debug("Navigated.", zap.String("url", url))
	return nil
}

// run executes actions on the tab, bounded by ctx.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(p.tab)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// callValue runs fn against the object and decodes its by-value result into out.
func (p *Page) callValue(ctx context.Context, id runtime.RemoteObjectID, fn string, out any, args ...any) error {
	decl, err := jsfunc.Bind(fn, args...)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		res, exc, err := runtime.CallFunctionOn(decl).
			WithObjectID(id).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if out == nil || res == nil || len(res.Value) == 0 {
			return nil
		}
		return json.Unmarshal([]byte(res.Value), out)
	}))
}

// callObject runs fn against the object and returns a handle to its result.
func (p *Page) callObject(ctx context.Context, id runtime.RemoteObjectID, fn string, args ...any) (runtime.RemoteObjectID, error) {
	decl, err := jsfunc.Bind(fn, args...)
	if err != nil {
		return "", err
	}
	var out runtime.RemoteObjectID
	err = p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		res, exc, err := runtime.CallFunctionOn(decl).WithObjectID(id).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		out = res.ObjectID
		return nil
	}))
	return out, err
}

// evaluateObject evaluates expr in the main world and returns a handle to the result.
func (p *Page) evaluateObject(ctx context.Context, expr string) (runtime.RemoteObjectID, error) {
	var out runtime.RemoteObjectID
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		res, exc, err := runtime.Evaluate(expr).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		out = res.ObjectID
		return nil
	}))
	return out, err
}

// nodes expands a remote array of nodes into its element object ids, in index order.
func (p *Page) nodes(ctx context.Context, array runtime.RemoteObjectID) ([]runtime.RemoteObjectID, error) {
	type indexed struct {
		i  int
		id runtime.RemoteObjectID
	}
	var items []indexed
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		props, _, _, exc, err := runtime.GetProperties(array).WithOwnProperties(true).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		for _, prop := range props {
			i, convErr := strconv.Atoi(prop.Name)
			if convErr != nil || prop.Value == nil || prop.Value.ObjectID == "" {
				continue
			}
			items = append(items, indexed{i: i, id: prop.Value.ObjectID})
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(a, b int) bool { return items[a].i < items[b].i })
	ids := make([]runtime.RemoteObjectID, len(items))
	for i, it := range items {
		ids[i] = it.id
	}
	return ids, nil
}

// elements expands a remote array of elements into handles.
func (p *Page) elements(ctx context.Context, array runtime.RemoteObjectID) ([]schemas.Element, error) {
	ids, err := p.nodes(ctx, array)
	if err != nil {
		return nil, err
	}
	out := make([]schemas.Element, 0, len(ids))
	for _, id := range ids {
		var key string
		if err := p.callValue(ctx, id, jsfunc.Key, &key); err != nil {
			return nil, fmt.Errorf("failed to key element: %w", err)
		}
		out = append(out, &Element{page: p, id: id, key: key})
	}
	return out, nil
}

// Query runs selector against the main document.
func (p *Page) Query(ctx context.Context, selector string) ([]schemas.Element, error) {
	doc, err := p.evaluateObject(ctx, "document")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve document: %w", err)
	}
	return (&root{page: p, id: doc}).Query(ctx, selector)
}

// Frames returns the documents of every same-origin frame.
func (p *Page) Frames(ctx context.Context) ([]schemas.Root, error) {
	array, err := p.evaluateObject(ctx, "("+jsfunc.Frames+")()")
	if err != nil {
		return nil, fmt.Errorf("failed to list frames: %w", err)
	}
	ids, err := p.nodes(ctx, array)
	if err != nil {
		return nil, err
	}
	roots := make([]schemas.Root, len(ids))
	for i, id := range ids {
		roots[i] = &root{page: p, id: id}
	}
	return roots, nil
}

func (p *Page) Mouse() schemas.Mouse { return p.mouse }

// Sleep pauses for d or until ctx is done.
func (p *Page) Sleep(ctx context.Context, d time.Duration) error {
	return p.run(ctx, chromedp.Sleep(d))
}

// root is a document reachable from the tab.
type root struct {
	page *Page
	id   runtime.RemoteObjectID
}

func (r *root) Query(ctx context.Context, selector string) ([]schemas.Element, error) {
	array, err := r.page.callObject(ctx, r.id, jsfunc.Query, selector)
	if err != nil {
		return nil, fmt.Errorf("query %q failed: %w", selector, err)
	}
	return r.page.elements(ctx, array)
}
