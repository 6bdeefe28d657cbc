// Package resolver turns a raw selector into a live element by trying the
// direct, sanitized, cached and fuzzy strategies in that order.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/healer/api/schemas"
	"github.com/xkilldash9x/healer/internal/config"
	"github.com/xkilldash9x/healer/internal/heal/cache"
	"github.com/xkilldash9x/healer/internal/heal/collector"
	"github.com/xkilldash9x/healer/internal/heal/matcher"
	"github.com/xkilldash9x/healer/internal/heal/sanitize"
	"github.com/xkilldash9x/healer/internal/heal/waiter"
	"github.com/xkilldash9x/healer/internal/observability"
)

// Strategy names the step that produced a Resolution.
type Strategy string

const (
	StrategyHandle    Strategy = "handle"
	StrategyDirect    Strategy = "direct"
	StrategySanitized Strategy = "sanitized"
	StrategyCached    Strategy = "cached"
	StrategyFuzzy     Strategy = "fuzzy"
)

// Resolution is the outcome of a successful Resolve. Element is only valid for
// the immediate caller.
type Resolution struct {
	Element  schemas.Element
	Strategy Strategy
	// Selector is the selector that located Element. Empty for handle targets.
	Selector string
	// Score is the similarity of a fuzzy match, or 1 otherwise.
	Score float64
}

// Resolver owns one healing session: its cache, sanitizer, collector and
// matcher all belong to a single page.
type Resolver struct {
	page      schemas.Page
	cfg       config.HealingConfig
	logger    *zap.Logger
	session   string
	cache     *cache.Cache
	sanitizer *sanitize.Sanitizer
	collector *collector.Collector
	matcher   *matcher.Matcher
	waiter    *waiter.Waiter

	// mu keeps resolutions single-flight.
	mu sync.Mutex
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithCache injects a cache instead of creating a fresh one.
func WithCache(c *cache.Cache) Option {
	return func(r *Resolver) {
		if c != nil {
			r.cache = c
		}
	}
}

// WithWaiter replaces the default polling waiter.
func WithWaiter(w *waiter.Waiter) Option {
	return func(r *Resolver) {
		if w != nil {
			r.waiter = w
		}
	}
}

// New creates a Resolver bound to page.
func New(page schemas.Page, cfg config.HealingConfig, logger *zap.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.WithDefaults()
	session := uuid.NewString()
	logger = logger.Named("resolver").With(zap.String("session", session))

	r := &Resolver{
		page:      page,
		cfg:       cfg,
		logger:    logger,
		session:   session,
		sanitizer: sanitize.New(logger, cfg.ShortTimeout/4),
		collector: collector.New(logger, cfg),
		matcher:   matcher.New(cfg.Threshold),
		waiter:    waiter.New(cfg.PollInterval),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = cache.New(logger)
	}
	return r
}

// Page returns the page the resolver is bound to.
func (r *Resolver) Page() schemas.Page { return r.page }

// Cache returns the session cache.
func (r *Resolver) Cache() *cache.Cache { return r.cache }

// Config returns the effective healing configuration.
func (r *Resolver) Config() config.HealingConfig { return r.cfg }

// Waiter returns the polling waiter shared with callers that need the same cadence.
func (r *Resolver) Waiter() *waiter.Waiter { return r.waiter }

// Session returns the id attached to every log line of this resolver.
func (r *Resolver) Session() string { return r.session }

// Resolve locates target. Handle targets are returned as they are. Any
// failure is reported as a *HealingExhaustedError.
func (r *Resolver) Resolve(ctx context.Context, target schemas.Target, opts schemas.HealingOptions) (*Resolution, error) {
	switch target.Kind() {
	case schemas.TargetHandle:
		if target.ResolvedHandle() == nil {
			return nil, &HealingExhaustedError{Selector: target.String(), Cause: errors.New("nil element handle")}
		}
		return &Resolution{Element: target.ResolvedHandle(), Strategy: StrategyHandle, Score: 1}, nil
	case schemas.TargetSelector:
		return r.resolveSelector(ctx, target.RawSelector(), opts)
	default:
		return nil, &HealingExhaustedError{Selector: target.String(), Cause: fmt.Errorf("unknown target kind %d", target.Kind())}
	}
}

func (r *Resolver) resolveSelector(ctx context.Context, raw string, opts schemas.HealingOptions) (*Resolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if opts.Timeout <= 0 {
		opts.Timeout = r.cfg.Timeout
	}
	if opts.ContextSelector == "" {
		opts.ContextSelector = r.cfg.ContextSelector
	}
	log := r.logger.With(zap.String("selector", raw))
	short := min(opts.Timeout, r.cfg.ShortTimeout)
	start := time.Now()

	steps := []func(context.Context, *zap.Logger, string, schemas.HealingOptions, time.Duration) (*Resolution, error){
		r.direct,
		r.sanitized,
		r.cached,
		r.fuzzy,
	}
	var lastErr error
	for _, step := range steps {
		res, err := step(ctx, log, raw, opts, short)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if res == nil {
			continue
		}
		log.Info("Element resolved.",
			observability.Category(observability.CatSuccess),
			zap.String("strategy", string(res.Strategy)),
			zap.String("resolved", res.Selector),
			zap.Float64("score", res.Score),
			zap.Duration("elapsed", time.Since(start)))
		return res, nil
	}

	if ctx.Err() != nil {
		lastErr = ctx.Err()
	}
	log.Error("Healing exhausted.",
		observability.Category(observability.CatFailure),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(lastErr))
	return nil, &HealingExhaustedError{Selector: raw, Cause: lastErr}
}

func (r *Resolver) direct(ctx context.Context, log *zap.Logger, raw string, _ schemas.HealingOptions, bound time.Duration) (*Resolution, error) {
	el, err := r.waiter.ForSelector(ctx, r.page, raw, schemas.StateVisible, bound)
	if err != nil {
		log.Debug("Direct lookup failed.", observability.Category(observability.CatAttempt), zap.Error(err))
		return nil, fmt.Errorf("direct: %w", err)
	}
	return &Resolution{Element: el, Strategy: StrategyDirect, Selector: raw, Score: 1}, nil
}

// sanitized returns (nil, nil) when sanitizing does not change the selector.
func (r *Resolver) sanitized(ctx context.Context, log *zap.Logger, raw string, _ schemas.HealingOptions, bound time.Duration) (*Resolution, error) {
	fixed := r.sanitizer.SanitizeWithDOM(ctx, raw, r.page)
	if fixed == raw {
		return nil, nil
	}
	log.Info("Selector sanitized.", observability.Category(observability.CatSanitized), zap.String("sanitized", fixed))

	el, err := r.waiter.ForSelector(ctx, r.page, fixed, schemas.StateVisible, bound)
	if err != nil {
		log.Debug("Sanitized lookup failed.", observability.Category(observability.CatAttempt), zap.Error(err))
		return nil, fmt.Errorf("sanitized %q: %w", fixed, err)
	}
	return &Resolution{Element: el, Strategy: StrategySanitized, Selector: fixed, Score: 1}, nil
}

// cached revalidates a previous fuzzy result and evicts it when it no longer
// points at a visible, enabled element.
func (r *Resolver) cached(ctx context.Context, log *zap.Logger, raw string, _ schemas.HealingOptions, bound time.Duration) (*Resolution, error) {
	entry, ok := r.cache.Get(raw)
	if !ok {
		return nil, nil
	}

	scope := entry.Scope
	if scope == nil {
		scope = r.page
	}
	el, err := r.revalidate(ctx, scope, entry.Healed, bound)
	if err != nil {
		r.cache.Delete(raw)
		log.Warn("Cached selector failed revalidation; evicted.",
			observability.Category(observability.CatCacheEvict),
			zap.String("healed", entry.Healed),
			zap.Error(err))
		return nil, fmt.Errorf("cached %q: %w", entry.Healed, err)
	}
	r.cache.Hit(raw)
	log.Info("Cache hit.", observability.Category(observability.CatCacheHit), zap.String("healed", entry.Healed))
	return &Resolution{Element: el, Strategy: StrategyCached, Selector: entry.Healed, Score: entry.Score}, nil
}

func (r *Resolver) revalidate(ctx context.Context, scope schemas.Root, selector string, bound time.Duration) (schemas.Element, error) {
	if _, err := r.waiter.ForSelector(ctx, scope, selector, schemas.StateVisible, bound); err != nil {
		return nil, err
	}
	els, err := scope.Query(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, errors.New("no longer matches any element")
	}
	enabled, err := els[0].IsEnabled(ctx)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, errors.New("first match is disabled")
	}
	return els[0], nil
}

// fuzzy collects candidates, ranks them and returns the first synthesized
// selector whose element is interactable. The mapping is cached on success.
func (r *Resolver) fuzzy(ctx context.Context, log *zap.Logger, raw string, opts schemas.HealingOptions, _ time.Duration) (*Resolution, error) {
	log.Debug("Starting fuzzy search.", observability.Category(observability.CatAttempt),
		zap.String("context", opts.ContextSelector))

	sigs, err := r.collector.CollectPage(ctx, r.page, opts.ContextSelector)
	if err != nil {
		return nil, fmt.Errorf("fuzzy: %w", err)
	}

	threshold := r.matcher.Threshold()
	bound := min(opts.Timeout, r.cfg.MediumTimeout)
	lastErr := errors.New("no candidate reached the confidence threshold")
	for _, cand := range r.matcher.Plan(r.matcher.Rank(raw, sigs)) {
		selector := matcher.GenerateSelector(cand.Signature)
		if !cand.Acceptable(threshold, len(sigs)) {
			log.Info("Skipping low-confidence candidate.",
				observability.Category(observability.CatLowConfidence),
				zap.String("candidate", selector),
				zap.Float64("score", cand.Score),
				zap.Float64("threshold", threshold))
			continue
		}

		scope := cand.Signature.Scope
		if scope == nil {
			scope = r.page
		}
		el, err := r.validate(ctx, scope, selector, bound)
		if err != nil {
			lastErr = fmt.Errorf("candidate %q: %w", selector, err)
			log.Debug("Candidate rejected.", observability.Category(observability.CatAttempt),
				zap.String("candidate", selector), zap.Error(err))
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		r.cache.PutScoped(raw, selector, cand.Score, scope)
		return &Resolution{Element: el, Strategy: StrategyFuzzy, Selector: selector, Score: cand.Score}, nil
	}
	return nil, fmt.Errorf("fuzzy: %w", lastErr)
}

// validate requires the synthesized selector's element, looked up under the
// candidate's own scope, to be visible, enabled and attached.
func (r *Resolver) validate(ctx context.Context, scope schemas.Root, selector string, bound time.Duration) (schemas.Element, error) {
	el, err := r.waiter.ForSelector(ctx, scope, selector, schemas.StateVisible, bound)
	if err != nil {
		return nil, err
	}
	checks := []struct {
		name string
		fn   func(context.Context) (bool, error)
	}{
		{"visible", el.IsVisible},
		{"enabled", el.IsEnabled},
		{"attached", el.IsAttached},
	}
	for _, c := range checks {
		ok, err := c.fn(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("element is not %s", c.name)
		}
	}
	return el, nil
}
