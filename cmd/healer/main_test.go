package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteractive(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(page, []byte(`<button id="go">Go</button>`), 0o600))
	t.Chdir(dir)

	input := strings.Join([]string{
		"",
		"version",
		"check --html " + page + " #go",
		"no-such-command",
		"exit",
		"version",
	}, "\n")
	var out, errOut bytes.Buffer
	require.NoError(t, interactive(context.Background(), strings.NewReader(input), &out, &errOut))

	assert.Equal(t, 1, strings.Count(out.String(), "healer dev"), "input after exit is not executed")
	assert.Contains(t, out.String(), `"strategy":"direct"`)
	assert.Contains(t, errOut.String(), `unknown command "no-such-command"`)
}

func TestInteractive_StopsAtEOF(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, interactive(context.Background(), strings.NewReader("version"), &out, &out))
	assert.Contains(t, out.String(), "healer > ")
	assert.Contains(t, out.String(), "healer dev")
}
