package observability

import (
	"fmt"
	"sync"

	"go.uber.org/zap/zapcore"
)

// dedupCore drops an entry when it is identical (logger, level, message and
// fields) to the entry written immediately before it. The "last entry" state is
// shared by every core derived through With, so a chain of child loggers
// deduplicates as one stream.
type dedupCore struct {
	zapcore.Core
	state   *dedupState
	context []zapcore.Field
}

type dedupState struct {
	mu   sync.Mutex
	last string
}

// NewDedupCore wraps inner with consecutive-duplicate suppression.
func NewDedupCore(inner zapcore.Core) zapcore.Core {
	return &dedupCore{Core: inner, state: &dedupState{}}
}

func (c *dedupCore) With(fields []zapcore.Field) zapcore.Core {
	ctx := make([]zapcore.Field, 0, len(c.context)+len(fields))
	ctx = append(ctx, c.context...)
	ctx = append(ctx, fields...)
	return &dedupCore{Core: c.Core.With(fields), state: c.state, context: ctx}
}

func (c *dedupCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *dedupCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	key := fingerprint(ent, c.context, fields)

	c.state.mu.Lock()
	if key == c.state.last {
		c.state.mu.Unlock()
		return nil
	}
	c.state.last = key
	c.state.mu.Unlock()

	// Route through the inner core's Check so tee'd cores keep their own levels.
	if inner := c.Core.Check(ent, nil); inner != nil {
		inner.Write(fields...)
	}
	return nil
}

func fingerprint(ent zapcore.Entry, context, fields []zapcore.Field) string {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range context {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	// fmt prints maps with sorted keys, which keeps the key stable.
	return fmt.Sprintf("%s|%s|%s|%v", ent.LoggerName, ent.Level, ent.Message, enc.Fields)
}
