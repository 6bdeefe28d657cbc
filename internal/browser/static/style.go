package static

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/healer/internal/browser/css"
)

var (
	hiddenByDefault = map[string]bool{
		"head": true, "script": true, "style": true, "title": true,
		"meta": true, "link": true, "base": true, "noscript": true,
	}
	blockByDefault = map[string]bool{
		"html": true, "body": true, "div": true, "p": true, "form": true, "section": true,
		"article": true, "header": true, "footer": true, "main": true, "nav": true,
		"ul": true, "ol": true, "fieldset": true, "table": true, "dialog": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	}
	inlineBlockByDefault = map[string]bool{
		"input": true, "button": true, "select": true, "textarea": true,
	}
)

const (
	defaultBoxWidth  = 100.0
	defaultBoxHeight = 20.0
)

type candidateDecl struct {
	value     css.Value
	important bool
	inline    bool
	spec      css.Specificity
	order     int
}

// outranks orders declarations the way the cascade does: importance, then
// inline over author rules, then specificity, then source order.
func (c candidateDecl) outranks(o candidateDecl) bool {
	if c.important != o.important {
		return c.important
	}
	if c.inline != o.inline {
		return c.inline
	}
	if c.spec != o.spec {
		return o.spec.Less(c.spec)
	}
	return c.order > o.order
}

// declared returns the cascaded value of prop for n, if any rule sets it.
// Inheritance is not modelled.
func (d *Document) declared(n *html.Node, prop css.Property) (css.Value, bool) {
	var best *candidateDecl
	order := 0
	consider := func(c candidateDecl) {
		if best == nil || c.outranks(*best) {
			cc := c
			best = &cc
		}
	}

	for _, sheet := range d.sheets {
		for _, rule := range sheet.Rules {
			order++
			spec, ok := css.MatchingSpecificity(n, rule.Selector)
			if !ok {
				continue
			}
			for _, decl := range rule.Declarations {
				if decl.Property == prop {
					consider(candidateDecl{value: decl.Value, important: decl.Important, spec: spec, order: order})
				}
			}
		}
	}
	if style, ok := attr(n, "style"); ok {
		order++
		for _, decl := range css.ParseInline(style) {
			if decl.Property == prop {
				consider(candidateDecl{value: decl.Value, important: decl.Important, inline: true, order: order})
			}
		}
	}
	if best == nil {
		return "", false
	}
	return css.Value(strings.ToLower(strings.TrimSpace(string(best.value)))), true
}

func (d *Document) computedDisplay(n *html.Node) string {
	if v, ok := d.declared(n, "display"); ok {
		return string(v)
	}
	tag := strings.ToLower(n.Data)
	switch {
	case hiddenByDefault[tag]:
		return "none"
	case tag == "template" && !isShadowTemplate(n):
		return "none"
	case blockByDefault[tag]:
		return "block"
	case inlineBlockByDefault[tag]:
		return "inline-block"
	case tag == "li":
		return "list-item"
	default:
		return "inline"
	}
}

func (d *Document) attached(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == d.root {
			return true
		}
	}
	return false
}

// visible walks from n up to the document, through shadow hosts, and fails on
// the first ancestor that removes it from rendering.
func (d *Document) visible(n *html.Node) bool {
	if !d.attached(n) {
		return false
	}
	if strings.EqualFold(n.Data, "input") {
		if t, _ := attr(n, "type"); strings.EqualFold(t, "hidden") {
			return false
		}
	}

	visibilityDecided := false
	for cur := n; cur != nil && cur != d.root; cur = cur.Parent {
		if cur.Type != html.ElementNode || isShadowTemplate(cur) {
			continue
		}
		if _, hidden := attr(cur, "hidden"); hidden {
			return false
		}
		if d.computedDisplay(cur) == "none" {
			return false
		}
		if !visibilityDecided {
			if v, ok := d.declared(cur, "visibility"); ok {
				visibilityDecided = true
				if v == "hidden" || v == "collapse" {
					return false
				}
			}
		}
		if v, ok := d.declared(cur, "opacity"); ok {
			if f, err := strconv.ParseFloat(string(v), 64); err == nil && f <= 0 {
				return false
			}
		}
	}
	return true
}

func (d *Document) enabled(n *html.Node) bool {
	if _, disabled := attr(n, "disabled"); disabled {
		return false
	}
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && cur.Data == "fieldset" {
			if _, disabled := attr(cur, "disabled"); disabled {
				return false
			}
		}
	}
	return true
}

// length reads a px (or unitless) dimension.
func (d *Document) length(n *html.Node, prop css.Property, fallback float64) float64 {
	v, ok := d.declared(n, prop)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(string(v), "px"), 64)
	if err != nil {
		return fallback
	}
	return f
}

// position returns n's pre-order index among the document's elements, which
// stands in for layout when synthesizing bounding boxes.
func (d *Document) position(n *html.Node) int {
	idx, found := 0, false
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		for c := cur.FirstChild; c != nil && !found; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if c == n {
				found = true
				return
			}
			idx++
			walk(c)
		}
	}
	walk(d.root)
	return idx
}

func isShadowTemplate(n *html.Node) bool {
	if n.Type != html.ElementNode || n.Data != "template" {
		return false
	}
	_, ok := attr(n, "shadowrootmode")
	return ok
}

func openShadowRoot(host *html.Node) *html.Node {
	for c := host.FirstChild; c != nil; c = c.NextSibling {
		if isShadowTemplate(c) {
			if mode, _ := attr(c, "shadowrootmode"); strings.EqualFold(mode, "open") {
				return c
			}
		}
	}
	return nil
}
