package script_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/healer/internal/browser/static"
	"github.com/xkilldash9x/healer/internal/config"
	"github.com/xkilldash9x/healer/internal/heal/actions"
	"github.com/xkilldash9x/healer/internal/heal/resolver"
	"github.com/xkilldash9x/healer/internal/script"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const loginScript = `
name: login
steps:
  - action: fill
    selector: "#user-name"
    args: [standard_user]
  - action: getAttribute
    selector: "#user-name"
    args: [value]
    expect: standard_user
  - action: click
    selector: "#login-button"
    options: {retries: 1, timeout: 500ms}
  - action: getText
    selector: ".title"
    expect: Products
  - action: isVisible
    selector: "#banner"
    expect: "false"
`

const loginPage = `
<input id="user-name" name="user-name" type="text">
<input id="password" type="password">
<button id="login-button">Login</button>
<h1 class="title">Products</h1>
<div id="banner" hidden>Sale</div>`

func newRunner(t *testing.T) (*script.Runner, *static.Page, *observer.ObservedLogs) {
	t.Helper()
	page, err := static.NewPage(loginPage)
	require.NoError(t, err)
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	cfg := config.HealingConfig{
		Timeout:       time.Second,
		ShortTimeout:  40 * time.Millisecond,
		MediumTimeout: 80 * time.Millisecond,
		PollInterval:  5 * time.Millisecond,
		ClickBackoff:  time.Millisecond,
	}
	a := actions.New(resolver.New(page, cfg, logger), logger)
	return script.NewRunner(a, logger), page, logs
}

func TestLoad(t *testing.T) {
	s, err := script.Load(strings.NewReader(loginScript))
	require.NoError(t, err)
	assert.Equal(t, "login", s.Name)
	require.Len(t, s.Steps, 5)
	assert.Equal(t, 500*time.Millisecond, s.Steps[2].Options.Timeout)
	assert.Equal(t, 1, s.Steps[2].Options.Retries)
	require.NotNil(t, s.Steps[3].Expect)
	assert.Equal(t, "Products", *s.Steps[3].Expect)

	invalid := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown key", "steps:\n  - action: click\n    selector: a\n    colour: red\n", "colour"},
		{"unknown action", "steps:\n  - action: smash\n    selector: a\n", "smash"},
		{"missing selector", "steps:\n  - action: click\n", "selector is required"},
		{"missing argument", "steps:\n  - action: fill\n    selector: a\n", "needs an argument"},
		{"missing target", "steps:\n  - action: dragAndDrop\n    selector: a\n", "needs a target"},
		{"empty", "name: nothing\n", "no steps"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := script.Load(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("unknown actions wrap the operation error", func(t *testing.T) {
		_, err := script.Load(strings.NewReader("steps:\n  - action: smash\n    selector: a\n"))
		assert.ErrorIs(t, err, actions.ErrUnknownOperation)
	})
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "login.yaml")
	require.NoError(t, os.WriteFile(path, []byte(loginScript), 0o600))
	s, err := script.LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, s.Steps, 5)

	_, err = script.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRunner_Run(t *testing.T) {
	s, err := script.Load(strings.NewReader(loginScript))
	require.NoError(t, err)
	runner, page, logs := newRunner(t)

	results, err := runner.Run(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, "standard_user", results[1].Value)
	assert.Equal(t, false, results[4].Value)
	assert.Len(t, page.EventsOfType("click"), 1)
	assert.Equal(t, 1, logs.FilterMessage("Script completed.").Len())
}

func TestRunner_StopsAtFirstFailure(t *testing.T) {
	runner, _, logs := newRunner(t)
	s := &script.Script{Steps: []script.Step{
		{Action: actions.OpFill, Selector: "#password", Args: []string{"secret"}},
		{Action: actions.OpGetText, Selector: ".title", Expect: ptr("Inventory")},
		{Action: actions.OpClick, Selector: "#login-button"},
	}}

	results, err := runner.Run(context.Background(), s)
	require.Error(t, err)
	assert.Len(t, results, 1, "completed steps are still reported")

	var stepErr *script.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, 1, stepErr.Index)
	assert.ErrorIs(t, err, script.ErrExpectation)
	assert.Contains(t, err.Error(), `step 2 (getText) failed`)
	assert.Equal(t, 1, logs.FilterMessage("Step failed.").Len())
}

func TestRunner_CancelledContext(t *testing.T) {
	runner, _, _ := newRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx, &script.Script{Steps: []script.Step{{Action: actions.OpClick, Selector: "#login-button"}}})
	assert.ErrorIs(t, err, context.Canceled)
}

func ptr(s string) *string { return &s }
