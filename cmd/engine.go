// File: cmd/engine.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/healer/api/schemas"
	"github.com/xkilldash9x/healer/internal/browser/cdp"
	"github.com/xkilldash9x/healer/internal/browser/pw"
	"github.com/xkilldash9x/healer/internal/browser/static"
	"github.com/xkilldash9x/healer/internal/config"
	"github.com/xkilldash9x/healer/internal/heal/actions"
	"github.com/xkilldash9x/healer/internal/heal/resolver"
	"github.com/xkilldash9x/healer/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// livePage is a browser-backed page the CLI can navigate and release.
type livePage interface {
	schemas.Page
	Navigate(ctx context.Context, url string) error
	Close() error
}

// launchBrowser opens a page with the configured driver. Tests replace it.
var launchBrowser = func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (livePage, error) {
	switch cfg.Driver {
	case config.DriverPlaywright:
		p, err := pw.Launch(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		p, err := cdp.Launch(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// openLive launches a browser and navigates to url.
func (a *app) openLive(ctx context.Context, url string) (livePage, error) {
	page, err := launchBrowser(ctx, a.cfg.Browser(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to launch %s browser: %w", a.cfg.Browser().Driver, err)
	}
	if err := page.Navigate(ctx, url); err != nil {
		_ = page.Close()
		return nil, err
	}
	return page, nil
}

// openStatic parses a snapshot from path, or stdin when path is "-".
func openStatic(path string, stdin io.Reader) (*static.Page, error) {
	var (
		markup []byte
		err    error
	)
	if path == "-" {
		markup, err = io.ReadAll(stdin)
	} else {
		markup, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read html snapshot: %w", err)
	}
	return static.NewPage(string(markup))
}

// engine is one resolver and action surface bound to a page.
type engine struct {
	resolver *resolver.Resolver
	actions  *actions.Actions
	close    func() error
}

func (a *app) newEngine(page schemas.Page) *engine {
	return newEngine(a.cfg, a.logger, page)
}

func newEngine(cfg config.Interface, base *zap.Logger, page schemas.Page) *engine {
	healing := cfg.Healing()
	logger, closeFn := observability.NewHealingLogger(base, healing)
	r := resolver.New(page, healing, logger)
	return &engine{resolver: r, actions: actions.New(r, logger), close: closeFn}
}

// report is one line of resolve/check output.
type report struct {
	Selector string  `json:"selector"`
	Strategy string  `json:"strategy,omitempty"`
	Resolved string  `json:"resolved,omitempty"`
	Score    float64 `json:"score,omitempty"`
	Elapsed  string  `json:"elapsed"`
	Error    string  `json:"error,omitempty"`
}

// resolveAll resolves every selector in order, writing one JSON line each.
// The cache is shared, so a repeated selector reports the cached strategy.
func (a *app) resolveAll(ctx context.Context, out io.Writer, page schemas.Page, selectors []string, opts schemas.HealingOptions) error {
	if len(selectors) == 0 {
		return fmt.Errorf("at least one selector is required")
	}
	eng := a.newEngine(page)
	defer eng.close()

	enc := json.NewEncoder(out)
	failed := 0
	for _, sel := range selectors {
		start := time.Now()
		res, err := eng.resolver.Resolve(ctx, schemas.Selector(sel), opts)
		r := report{Selector: sel, Elapsed: time.Since(start).Round(time.Millisecond).String()}
		if err != nil {
			failed++
			r.Error = err.Error()
		} else {
			r.Strategy = string(res.Strategy)
			r.Resolved = res.Selector
			r.Score = res.Score
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d selectors could not be resolved", failed, len(selectors))
	}
	return nil
}
