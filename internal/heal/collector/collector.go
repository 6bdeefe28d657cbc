// Package collector gathers signatures of plausibly interactive elements from a
// page, its frames and its open shadow roots.
package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/healer/api/schemas"
	"github.com/xkilldash9x/healer/internal/config"
	"github.com/xkilldash9x/healer/internal/observability"
)

// ErrNoCandidates is returned by CollectPage when nothing interactive was found.
var ErrNoCandidates = errors.New("no interactive candidates found")

const (
	defaultMaxDepth    = 8
	defaultConcurrency = 8
)

var (
	allowedTags = map[string]bool{
		"input": true, "textarea": true, "select": true, "button": true, "a": true, "label": true,
	}
	textualTypes = map[string]bool{
		"email": true, "text": true, "password": true, "search": true, "number": true,
	}
	interactiveRoles = []string{"textbox", "combobox", "button", "link"}
	structuralTags   = map[string]bool{
		"div": true, "span": true, "p": true, "section": true, "article": true, "header": true,
		"footer": true, "main": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	}
)

// Collector extracts element signatures. It holds no per-call state.
type Collector struct {
	logger      *zap.Logger
	mode        config.CollectionMode
	maxDepth    int
	concurrency int
}

// New creates a Collector from the healing configuration.
func New(logger *zap.Logger, cfg config.HealingConfig) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger:      logger.Named("collector"),
		mode:        cfg.CollectionMode,
		maxDepth:    cfg.MaxDepth,
		concurrency: cfg.DescribeConcurrency,
	}
	if c.mode == "" {
		c.mode = config.CollectionStrict
	}
	if c.maxDepth <= 0 {
		c.maxDepth = defaultMaxDepth
	}
	if c.concurrency <= 0 {
		c.concurrency = defaultConcurrency
	}
	return c
}

// Interactive reports whether info passes the collection filter for mode.
func Interactive(info schemas.ElementInfo, mode config.CollectionMode) bool {
	tag := strings.ToLower(info.TagName)
	ok := allowedTags[tag] || textualTypes[strings.ToLower(info.Type)] || hasInteractiveRole(info.Attributes)
	if !ok {
		return false
	}
	return mode == config.CollectionPermissive || !structuralTags[tag]
}

func hasInteractiveRole(attrs map[string]string) bool {
	for name, value := range attrs {
		if !strings.EqualFold(name, "role") {
			continue
		}
		value = strings.ToLower(value)
		for _, role := range interactiveRoles {
			if strings.Contains(value, role) {
				return true
			}
		}
	}
	return false
}

type described struct {
	el   schemas.Element
	info schemas.ElementInfo
	err  error
}

// batch is one level of the traversal worklist: a described sibling list and
// a cursor into it.
type batch struct {
	items []described
	next  int
	depth int
	scope schemas.Root
}

// Collect returns the signatures of interactive elements matching
// contextSelector under root, followed in place by those found in their shadow
// roots. Elements that fail to describe are skipped.
func (c *Collector) Collect(ctx context.Context, root schemas.Root, contextSelector string) ([]schemas.ElementSignature, error) {
	if contextSelector == "" {
		contextSelector = schemas.DefaultContextSelector
	}
	top, err := root.Query(ctx, contextSelector)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates with %q: %w", contextSelector, err)
	}

	visited := make(map[string]struct{}, len(top))
	first, err := c.describe(ctx, top, visited)
	if err != nil {
		return nil, err
	}

	var sigs []schemas.ElementSignature
	stack := []*batch{{items: first, scope: root}}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		if b.next >= len(b.items) {
			stack = stack[:len(stack)-1]
			continue
		}
		d := b.items[b.next]
		b.next++

		if d.err != nil {
			c.logger.Debug("Skipping element that could not be described.",
				observability.Category(observability.CatDiag), zap.Error(d.err))
			continue
		}
		if Interactive(d.info, c.mode) {
			sigs = append(sigs, schemas.SignatureFromInfo(d.info, d.el, b.scope))
		}
		if !d.info.HasShadowRoot {
			continue
		}
		if b.depth+1 > c.maxDepth {
			c.logger.Debug("Shadow root depth cap reached.",
				observability.Category(observability.CatDiag), zap.Int("max_depth", c.maxDepth))
			continue
		}
		shadow, err := d.el.ShadowRoot(ctx)
		if err != nil || shadow == nil {
			c.logger.Debug("Skipping unreadable shadow root.",
				observability.Category(observability.CatDiag), zap.Error(err))
			continue
		}
		children, err := d.el.ShadowChildren(ctx)
		if err != nil {
			c.logger.Debug("Skipping unreadable shadow root.",
				observability.Category(observability.CatDiag), zap.Error(err))
			continue
		}
		items, err := c.describe(ctx, children, visited)
		if err != nil {
			return nil, err
		}
		stack = append(stack, &batch{items: items, depth: b.depth + 1, scope: shadow})
	}
	return sigs, nil
}

// describe runs Describe over els concurrently. Results land in slots matching
// the input order; elements already visited are dropped before describing.
func (c *Collector) describe(ctx context.Context, els []schemas.Element, visited map[string]struct{}) ([]described, error) {
	fresh := make([]schemas.Element, 0, len(els))
	for _, el := range els {
		key := el.Key()
		if _, seen := visited[key]; seen {
			continue
		}
		visited[key] = struct{}{}
		fresh = append(fresh, el)
	}

	slots := make([]described, len(fresh))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, el := range fresh {
		g.Go(func() error {
			info, err := el.Describe(gctx)
			slots[i] = described{el: el, info: info, err: err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

// CollectPage merges the main document with every non-main frame. A frame that
// fails is logged and skipped.
func (c *Collector) CollectPage(ctx context.Context, page schemas.Page, contextSelector string) ([]schemas.ElementSignature, error) {
	sigs, err := c.Collect(ctx, page, contextSelector)
	if err != nil {
		return nil, err
	}

	frames, err := page.Frames(ctx)
	if err != nil {
		c.logger.Warn("Could not enumerate frames; using the main document only.",
			observability.Category(observability.CatDiag), zap.Error(err))
	}
	for i, frame := range frames {
		frameSigs, err := c.Collect(ctx, frame, contextSelector)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Debug("Skipping frame.",
				observability.Category(observability.CatDiag), zap.Int("frame", i), zap.Error(err))
			continue
		}
		sigs = append(sigs, frameSigs...)
	}

	if len(sigs) == 0 {
		return nil, ErrNoCandidates
	}
	return sigs, nil
}
