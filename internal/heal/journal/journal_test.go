package journal_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/healer/internal/config"
	"github.com/xkilldash9x/healer/internal/heal/journal"
	"github.com/xkilldash9x/healer/internal/observability"
)

// writeLog produces a debug log the way a healing run does.
func writeLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "healing-debug.log")
	logger, closeFn := observability.NewHealingLogger(zap.NewNop(), config.HealingConfig{DebugLog: true, DebugLogFile: path})
	a := logger.With(zap.String("session", "s-1"))
	b := logger.With(zap.String("session", "s-2"))
	a.Info("Element resolved.", observability.Category(observability.CatSuccess), zap.String("strategy", "direct"))
	a.Warn("Candidate below threshold.", observability.Category(observability.CatLowConfidence))
	b.Error("Healing exhausted.", observability.Category(observability.CatFailure))
	b.Info("Element resolved.", observability.Category(observability.CatSuccess), zap.String("strategy", "fuzzy"))
	require.NoError(t, closeFn())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return path
}

// within runs fn and fails the test if it has not returned after d.
func within(t *testing.T, d time.Duration, fn func() error) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-time.After(d):
		t.Fatal("read did not return")
		return nil
	}
}

func collect(t *testing.T, path string, opts journal.Options) []journal.Entry {
	t.Helper()
	var out []journal.Entry
	err := journal.Read(context.Background(), path, opts, nil, func(e journal.Entry) error {
		out = append(out, e)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestParse(t *testing.T) {
	e, err := journal.Parse(`{"level":"INFO","ts":"2026-10-15T09:30:00.125Z","logger":"healing.resolver","msg":"Element resolved.","category":"success","strategy":"cached"}`)
	require.NoError(t, err)
	assert.Equal(t, "INFO", e.Level)
	assert.Equal(t, "healing.resolver", e.Logger)
	assert.Equal(t, "Element resolved.", e.Message)
	assert.Equal(t, observability.CatSuccess, e.Category)
	assert.Equal(t, map[string]any{"strategy": "cached"}, e.Fields)
	assert.Equal(t, 125*time.Millisecond, time.Duration(e.Time.Nanosecond()))

	_, err = journal.Parse("plain text")
	assert.Error(t, err)
}

func TestRead(t *testing.T) {
	path := writeLog(t)

	t.Run("everything in file order", func(t *testing.T) {
		entries := collect(t, path, journal.Options{})
		require.Len(t, entries, 4, "the malformed line is skipped")
		assert.Equal(t, observability.CatSuccess, entries[0].Category)
		assert.Equal(t, observability.CatFailure, entries[2].Category)
	})

	t.Run("by category", func(t *testing.T) {
		entries := collect(t, path, journal.Options{Filter: journal.Filter{
			Categories: []observability.HealCategory{observability.CatSuccess},
		}})
		require.Len(t, entries, 2)
		assert.Equal(t, "direct", entries[0].Fields["strategy"])
		assert.Equal(t, "fuzzy", entries[1].Fields["strategy"])
	})

	t.Run("by session", func(t *testing.T) {
		entries := collect(t, path, journal.Options{Filter: journal.Filter{Session: "s-2"}})
		require.Len(t, entries, 2)
		assert.Equal(t, "Healing exhausted.", entries[0].Message)
	})

	t.Run("callback errors stop the read", func(t *testing.T) {
		stop := errors.New("stop")
		calls := 0
		err := within(t, 10*time.Second, func() error {
			return journal.Read(context.Background(), path, journal.Options{}, nil, func(journal.Entry) error {
				calls++
				return stop
			})
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancellation with lines still pending", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		err := within(t, 10*time.Second, func() error {
			return journal.Read(ctx, path, journal.Options{Follow: true}, nil, func(journal.Entry) error {
				cancel()
				return nil
			})
		})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("missing file", func(t *testing.T) {
		err := journal.Read(context.Background(), filepath.Join(t.TempDir(), "nope.log"), journal.Options{}, nil, func(journal.Entry) error { return nil })
		assert.Error(t, err)
	})
}

func TestRead_Follow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "healing-debug.log")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan journal.Entry, 1)
	done := make(chan error, 1)
	go func() {
		done <- journal.Read(ctx, path, journal.Options{Follow: true}, nil, func(e journal.Entry) error {
			got <- e
			return nil
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString(`{"level":"WARN","msg":"Evicted.","category":"cache-evict"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case e := <-got:
		assert.Equal(t, observability.CatCacheEvict, e.Category)
	case <-time.After(10 * time.Second):
		t.Fatal("followed line never arrived")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("Read did not return after cancellation")
	}
}
