package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/healer/internal/config"
)

// HealCategory tags every diagnostic line emitted by the healing pipeline.
type HealCategory string

const (
	CatAttempt       HealCategory = "attempt"
	CatSuccess       HealCategory = "success"
	CatFailure       HealCategory = "failure"
	CatSanitized     HealCategory = "sanitized"
	CatCacheHit      HealCategory = "cache-hit"
	CatCacheEvict    HealCategory = "cache-evict"
	CatLowConfidence HealCategory = "low-confidence"
	CatSuppressed    HealCategory = "suppressed"
	CatDiag          HealCategory = "diag"
)

// CategoryKey is the structured field name carrying the HealCategory.
const CategoryKey = "category"

// Category returns the zap field for c.
func Category(c HealCategory) zap.Field {
	return zap.String(CategoryKey, string(c))
}

// NewHealingLogger derives the logger used by the resolver and action wrapper.
// Consecutive identical lines are suppressed, and when DebugLog is on every line
// is also appended to DebugLogFile. The returned close func releases the file.
func NewHealingLogger(base *zap.Logger, cfg config.HealingConfig) (*zap.Logger, func() error) {
	if base == nil {
		base = zap.NewNop()
	}
	closer := func() error { return nil }

	core := base.Core()
	if cfg.DebugLog && cfg.DebugLogFile != "" {
		fileCore, sink := newRotatingFileCore(cfg.DebugLogFile,
			config.LoggerConfig{MaxSize: 50, MaxBackups: 3}, zapcore.DebugLevel)
		core = zapcore.NewTee(core, fileCore)
		closer = sink.Close
	}

	return base.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core {
		return NewDedupCore(core)
	})).Named("healing"), closer
}
