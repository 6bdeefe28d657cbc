package pw_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/healer/api/schemas"
	"github.com/xkilldash9x/healer/internal/browser/pw"
	"github.com/xkilldash9x/healer/internal/config"
	"github.com/xkilldash9x/healer/internal/heal/actions"
	"github.com/xkilldash9x/healer/internal/heal/resolver"
)

const fixture = `<!DOCTYPE html>
<html><body>
<input class="search_field" type="search" placeholder="Search">
<button id="go" type="button" onclick="document.getElementById('out').textContent = 'clicked'">Go</button>
<p id="out"></p>
<input id="empty" data-flag="">
<iframe srcdoc="<button id='framed'>Framed</button>"></iframe>
</body></html>`

func launch(t *testing.T) (*pw.Page, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, fixture)
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	t.Cleanup(cancel)

	page, err := pw.Launch(ctx, config.BrowserConfig{Headless: true, PlaywrightBrowser: "chromium"}, zaptest.NewLogger(t))
	if err != nil {
		t.Skipf("playwright is not available: %v", err)
	}
	t.Cleanup(func() { _ = page.Close() })
	require.NoError(t, page.Navigate(ctx, server.URL))
	return page, ctx
}

func TestPage_Query(t *testing.T) {
	page, ctx := launch(t)

	a, err := page.Query(ctx, "#go")
	require.NoError(t, err)
	b, err := page.Query(ctx, "xpath=//button[@id='go']")
	require.NoError(t, err)
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].Key(), b[0].Key())

	frames, err := page.Frames(ctx)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	framed, err := frames[0].Query(ctx, "#framed")
	require.NoError(t, err)
	assert.Len(t, framed, 1)

	empty, err := page.Query(ctx, "#empty")
	require.NoError(t, err)
	value, ok, err := empty[0].GetAttribute(ctx, "data-flag")
	require.NoError(t, err)
	assert.True(t, ok, "an empty attribute is present")
	assert.Empty(t, value)
	_, ok, err = empty[0].GetAttribute(ctx, "data-missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestActions_HealAndClick(t *testing.T) {
	page, ctx := launch(t)

	r := resolver.New(page, config.HealingConfig{Timeout: 5 * time.Second}, zaptest.NewLogger(t))
	a := actions.New(r, zaptest.NewLogger(t))

	require.NoError(t, a.Fill(ctx, schemas.Selector("#search"), "boots", schemas.HealingOptions{}))
	require.NoError(t, a.Click(ctx, schemas.Selector("#go"), actions.ClickOptions{}))

	text, err := a.GetText(ctx, schemas.Selector("#out"), schemas.HealingOptions{})
	require.NoError(t, err)
	assert.Equal(t, "clicked", text)
}
