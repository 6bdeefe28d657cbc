// Package journal reads the healing debug log: one JSON object per line as
// written by the durable healing sink.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/hpcloud/tail"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/healer/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is one decoded log line. Fields holds everything except the well-known keys.
type Entry struct {
	Time     time.Time
	Level    string
	Logger   string
	Message  string
	Category observability.HealCategory
	Fields   map[string]any
	Raw      string
}

// Parse decodes one line.
func Parse(line string) (Entry, error) {
	var fields map[string]any
	if err := json.UnmarshalFromString(line, &fields); err != nil {
		return Entry{}, fmt.Errorf("failed to decode log line: %w", err)
	}
	e := Entry{Raw: line, Fields: fields}
	take := func(key string) string {
		v, _ := fields[key].(string)
		delete(fields, key)
		return v
	}
	e.Level = take("level")
	e.Logger = take("logger")
	e.Message = take("msg")
	e.Category = observability.HealCategory(take(observability.CategoryKey))
	if ts := take("ts"); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.Time = t
		}
	}
	return e, nil
}

// Filter selects entries. Empty fields match everything.
type Filter struct {
	Categories []observability.HealCategory
	Session    string
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Entry) bool {
	if len(f.Categories) > 0 {
		found := false
		for _, c := range f.Categories {
			if c == e.Category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Session != "" {
		if s, _ := e.Fields["session"].(string); s != f.Session {
			return false
		}
	}
	return true
}

// Options configures Read.
type Options struct {
	// Follow keeps reading as the file grows, until ctx is done.
	Follow bool
	Filter Filter
}

// Read streams matching entries from path to fn, in file order. Lines that are
// not JSON are logged and skipped. Without Follow it returns at end of file.
func Read(ctx context.Context, path string, opts Options, logger *zap.Logger, fn func(Entry) error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("journal")

	t, err := tail.TailFile(path, tail.Config{
		Follow:    opts.Follow,
		ReOpen:    opts.Follow,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to open healing log: %w", err)
	}
	defer func() {
		// The tailer blocks sending pending lines and Stop waits for it, so
		// keep draining until it closes the channel.
		go func() {
			for range t.Lines {
			}
		}()
		_ = t.Stop()
		t.Cleanup()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				logger.Warn("Error reading healing log.", zap.Error(line.Err))
				continue
			}
			if line.Text == "" {
				continue
			}
			entry, err := Parse(line.Text)
			if err != nil {
				logger.Debug("Skipping malformed line.", zap.Error(err))
				continue
			}
			if !opts.Filter.Match(entry) {
				continue
			}
			if err := fn(entry); err != nil {
				return err
			}
		}
	}
}
