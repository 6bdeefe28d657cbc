// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/healer/api/schemas"
	"github.com/xkilldash9x/healer/internal/browser/static"
	"github.com/xkilldash9x/healer/internal/config"
	"github.com/xkilldash9x/healer/internal/mocks"
	"github.com/xkilldash9x/healer/internal/observability"
)

const renamedLogin = `
<form>
  <input class="login_username form_input" type="text" placeholder="Username">
  <input id="password" type="password">
  <button id="login-button">Login</button>
</form>
<h1 class="title">Products</h1>`

// fastConfig keeps fuzzy healing quick in tests.
const fastConfig = `
logger:
  level: error
healing:
  timeout: 1s
  short_timeout: 40ms
  medium_timeout: 80ms
  poll_interval: 5ms
  click_backoff: 1ms
`

// fixture writes name under a fresh directory and returns its path.
func fixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// execute runs a fresh root command from an empty working directory.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	dir := t.TempDir()
	t.Chdir(dir)
	cfg := fixture(t, dir, "healer.yaml", fastConfig)

	root, _ := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", cfg}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "healer "+Version+"\n", out)

	out, _, err = execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "healer version "+Version)
}

func TestCheck(t *testing.T) {
	page := fixture(t, t.TempDir(), "login.html", renamedLogin)

	t.Run("direct and healed selectors", func(t *testing.T) {
		out, _, err := execute(t, "check", "--html", page, "-s", "#password", "#user-name", "#user-name")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 3)

		var direct, healed, cached report
		require.NoError(t, json.UnmarshalFromString(lines[0], &direct))
		require.NoError(t, json.UnmarshalFromString(lines[1], &healed))
		require.NoError(t, json.UnmarshalFromString(lines[2], &cached))
		assert.Equal(t, "direct", direct.Strategy)
		assert.Equal(t, "fuzzy", healed.Strategy)
		assert.Equal(t, "input.login_username", healed.Resolved)
		assert.GreaterOrEqual(t, healed.Score, 0.4)
		assert.Equal(t, "cached", cached.Strategy, "the cache is shared across selectors")
	})

	t.Run("unresolvable selectors fail the command", func(t *testing.T) {
		out, _, err := execute(t, "check", "--html", page, "#password", "#qqqzzz")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 2 selectors")
		assert.Contains(t, out, `"error":`)
	})

	t.Run("selectors are required", func(t *testing.T) {
		_, _, err := execute(t, "check", "--html", page)
		assert.ErrorContains(t, err, "at least one selector")
	})

	t.Run("html is required", func(t *testing.T) {
		_, _, err := execute(t, "check", "#a")
		assert.ErrorContains(t, err, `"html" not set`)
	})
}

func TestConfigValidation(t *testing.T) {
	dir := t.TempDir()
	bad := fixture(t, dir, "bad.yaml", "healing:\n  threshold: 2\n")
	page := fixture(t, dir, "p.html", renamedLogin)

	root, _ := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", bad, "check", "--html", page, "#password"})
	err := root.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, "threshold must be between")
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	page := fixture(t, dir, "login.html", renamedLogin)
	steps := fixture(t, dir, "login.yaml", `
name: login
steps:
  - action: fill
    selector: "#user-name"
    args: [standard_user]
  - action: click
    selector: "#login-button"
  - action: getText
    selector: ".title"
    expect: Products
`)

	out, _, err := execute(t, "run", "--script", steps, "--html", page)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	var last stepLine
	require.NoError(t, json.UnmarshalFromString(lines[2], &last))
	assert.Equal(t, 3, last.Step)
	assert.Equal(t, "Products", last.Value)

	t.Run("a page source is required", func(t *testing.T) {
		_, _, err := execute(t, "run", "--script", fixture(t, t.TempDir(), "s.yaml", "steps:\n  - action: click\n    selector: a\n"))
		assert.ErrorContains(t, err, "no page to run against")
	})
}

// fakeBrowser serves a static page in place of a launched browser.
type fakeBrowser struct {
	*static.Page
	visited []string
	closed  bool
}

func (f *fakeBrowser) Navigate(ctx context.Context, url string) error {
	f.visited = append(f.visited, url)
	return nil
}

func (f *fakeBrowser) Close() error {
	f.closed = true
	return nil
}

func TestResolve_LiveDriverSelection(t *testing.T) {
	page, err := static.NewPage(renamedLogin)
	require.NoError(t, err)
	fake := &fakeBrowser{Page: page}

	var gotDriver config.DriverKind
	orig := launchBrowser
	t.Cleanup(func() { launchBrowser = orig })
	launchBrowser = func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (livePage, error) {
		gotDriver = cfg.Driver
		return fake, nil
	}

	out, _, err := execute(t, "--driver", "playwright", "resolve", "--url", "https://shop.example.test/login", "-s", "#login-button")
	require.NoError(t, err)
	assert.Equal(t, config.DriverPlaywright, gotDriver)
	assert.Equal(t, []string{"https://shop.example.test/login"}, fake.visited)
	assert.True(t, fake.closed)
	assert.Contains(t, out, `"strategy":"direct"`)

	t.Run("launch failures are reported with the driver", func(t *testing.T) {
		launchBrowser = func(context.Context, config.BrowserConfig, *zap.Logger) (livePage, error) {
			return nil, errors.New("no chrome")
		}
		_, _, err := execute(t, "resolve", "--url", "https://x.test", "#a")
		assert.ErrorContains(t, err, "failed to launch chromedp browser: no chrome")
	})
}

func TestLogs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "healing-debug.log")
	logger, closeFn := observability.NewHealingLogger(zap.NewNop(), config.HealingConfig{DebugLog: true, DebugLogFile: path})
	logger.Info("Element resolved.", observability.Category(observability.CatSuccess), zap.String("strategy", "fuzzy"))
	logger.Error("Healing exhausted.", observability.Category(observability.CatFailure), zap.String("selector", "#gone"))
	require.NoError(t, closeFn())

	out, _, err := execute(t, "logs", "--file", path, "--category", "failure")
	require.NoError(t, err)
	assert.NotContains(t, out, "Element resolved.")
	assert.Contains(t, out, "Healing exhausted.")
	assert.Contains(t, out, "selector=#gone")

	out, _, err = execute(t, "logs", "--file", path, "--raw")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, `"category":`))

	_, _, err = execute(t, "logs", "--file", filepath.Join(dir, "missing.log"))
	assert.Error(t, err)
}

func TestNewEngine_HealingConfig(t *testing.T) {
	dir := t.TempDir()
	debugLog := filepath.Join(dir, "healing-debug.log")
	cfg := new(mocks.MockConfig)
	cfg.On("Healing").Return(config.HealingConfig{
		Timeout:      time.Second,
		ShortTimeout: 40 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		DebugLog:     true,
		DebugLogFile: debugLog,
	}).Once()

	page, err := static.NewPage(renamedLogin)
	require.NoError(t, err)
	eng := newEngine(cfg, zap.NewNop(), page)
	_, err = eng.resolver.Resolve(context.Background(), schemas.Selector("#password"), schemas.HealingOptions{})
	require.NoError(t, err)
	require.NoError(t, eng.close())
	cfg.AssertExpectations(t)

	content, err := os.ReadFile(debugLog)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"category":"success"`)
}
