// Package static implements the browser driver contracts over a parsed HTML
// snapshot. It has no layout engine or script runtime; visibility comes from
// the hidden attribute, inline styles and <style> rules, and actions mutate the
// tree and append to an event log. Frames are read from iframe[srcdoc] and
// shadow roots from declarative template[shadowrootmode] elements.
package static

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/healer/api/schemas"
	"github.com/xkilldash9x/healer/internal/browser/css"
)

// ErrNotActionable is returned when an action's preconditions (attached,
// visible, enabled, editable) are not met and the action was not forced.
var ErrNotActionable = errors.New("element is not actionable")

// Event is one entry of the page's interaction log.
type Event struct {
	Type   string
	Target string
	Detail string
}

// Page is a static browsing context. It is safe for concurrent use.
type Page struct {
	*Document
	mouse *mouse

	eventsMu sync.Mutex
	events   []Event
}

// Document is a parsed document: the main page or one frame.
type Document struct {
	page   *Page
	root   *html.Node
	sheets []css.StyleSheet
	frames []*Document

	// mu guards the node tree of the page and all of its frames.
	mu *sync.RWMutex
}

var (
	_ schemas.Page = (*Page)(nil)
	_ schemas.Root = (*Document)(nil)
)

// NewPage parses markup into a page. Fragments are accepted; the parser
// supplies the html, head and body elements.
func NewPage(markup string) (*Page, error) {
	p := &Page{}
	p.mouse = &mouse{page: p}
	doc, err := parseDocument(p, &sync.RWMutex{}, markup, 0)
	if err != nil {
		return nil, err
	}
	p.Document = doc
	return p, nil
}

// LoadFile reads and parses an HTML file.
func LoadFile(path string) (*Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return NewPage(string(data))
}

const maxFrameDepth = 8

func parseDocument(p *Page, mu *sync.RWMutex, markup string, depth int) (*Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	d := &Document{page: p, root: root, mu: mu}

	for _, n := range d.scoped(root, func(n *html.Node) bool { return n.Data == "style" }) {
		d.sheets = append(d.sheets, css.ParseStyleSheet(htmlquery.InnerText(n)))
	}
	// Styles declared inside shadow roots still apply to their own subtree.
	for _, n := range htmlquery.Find(root, "//template[@shadowrootmode]//style") {
		d.sheets = append(d.sheets, css.ParseStyleSheet(htmlquery.InnerText(n)))
	}

	if depth >= maxFrameDepth {
		return d, nil
	}
	for _, iframe := range d.scoped(root, func(n *html.Node) bool { return n.Data == "iframe" }) {
		srcdoc, ok := attr(iframe, "srcdoc")
		if !ok {
			continue
		}
		frame, err := parseDocument(p, mu, srcdoc, depth+1)
		if err != nil {
			return nil, fmt.Errorf("failed to parse frame: %w", err)
		}
		d.frames = append(d.frames, frame)
	}
	return d, nil
}

// Query evaluates a location-path query (prefix "/", "(" or "xpath=") or a CSS
// selector (optionally prefixed "css=") and returns matches in document order.
// Content of templates, including shadow roots, is never matched.
func (d *Document) Query(ctx context.Context, selector string) ([]schemas.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	nodes, err := d.query(d.root, selector)
	if err != nil {
		return nil, err
	}
	out := make([]schemas.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &Element{doc: d, node: n})
	}
	return out, nil
}

func (d *Document) query(root *html.Node, selector string) ([]*html.Node, error) {
	selector = strings.TrimSpace(selector)
	if isLocationPath(selector) {
		expr := strings.TrimPrefix(selector, "xpath=")
		found, err := htmlquery.QueryAll(root, expr)
		if err != nil {
			return nil, fmt.Errorf("invalid location path %q: %w", selector, err)
		}
		var nodes []*html.Node
		for _, n := range found {
			if n.Type == html.ElementNode && inScope(root, n) {
				nodes = append(nodes, n)
			}
		}
		return nodes, nil
	}

	group, err := css.ParseSelector(strings.TrimPrefix(selector, "css="))
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return d.scoped(root, func(n *html.Node) bool { return css.Matches(n, group) }), nil
}

func isLocationPath(s string) bool {
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "(") || strings.HasPrefix(s, "xpath=")
}

// scoped walks root in document order, not descending into templates, and
// returns the element nodes accepted by keep.
func (d *Document) scoped(root *html.Node, keep func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if keep(c) {
				out = append(out, c)
			}
			if c.Data != "template" {
				walk(c)
			}
		}
	}
	walk(root)
	return out
}

// inScope reports whether n lies under root with no template in between.
func inScope(root, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == root {
			return true
		}
		if p.Type == html.ElementNode && p.Data == "template" {
			return false
		}
	}
	return false
}

// shadowRoot scopes queries to the content of one declarative shadow root.
type shadowRoot struct {
	doc  *Document
	node *html.Node
}

func (s *shadowRoot) Query(ctx context.Context, selector string) ([]schemas.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.doc.mu.RLock()
	defer s.doc.mu.RUnlock()

	nodes, err := s.doc.query(s.node, selector)
	if err != nil {
		return nil, err
	}
	out := make([]schemas.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &Element{doc: s.doc, node: n})
	}
	return out, nil
}

// Frames returns every non-main frame, depth first.
func (p *Page) Frames(ctx context.Context) ([]schemas.Root, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []schemas.Root
	var walk func(*Document)
	walk = func(d *Document) {
		for _, f := range d.frames {
			out = append(out, f)
			walk(f)
		}
	}
	walk(p.Document)
	return out, nil
}

// Mouse returns the page's pointer.
func (p *Page) Mouse() schemas.Mouse { return p.mouse }

// Sleep pauses for d or until ctx is done.
func (p *Page) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Events returns a copy of the interaction log.
func (p *Page) Events() []Event {
	p.eventsMu.Lock()
	defer p.eventsMu.Unlock()
	return append([]Event(nil), p.events...)
}

// EventsOfType filters the interaction log.
func (p *Page) EventsOfType(eventType string) []Event {
	var out []Event
	for _, e := range p.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (p *Page) record(eventType string, target *html.Node, detail string) {
	p.eventsMu.Lock()
	defer p.eventsMu.Unlock()
	p.events = append(p.events, Event{Type: eventType, Target: describeNode(target), Detail: detail})
}

// Remove detaches every element matching selector from the main document and
// returns how many were removed.
func (p *Page) Remove(selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	nodes, err := p.query(p.root, selector)
	if err != nil {
		return 0, err
	}
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
	return len(nodes), nil
}

// HTML renders the main document.
func (p *Page) HTML() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var b strings.Builder
	_ = html.Render(&b, p.root)
	return b.String()
}

// describeNode renders a short tag#id.class label for logs and events.
func describeNode(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(strings.ToLower(n.Data))
	if id, ok := attr(n, "id"); ok && id != "" {
		b.WriteString("#" + id)
	}
	if class, ok := attr(n, "class"); ok {
		for _, c := range strings.Fields(class) {
			b.WriteString("." + c)
		}
	}
	return b.String()
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: strings.ToLower(name), Val: value})
}

func removeAttr(n *html.Node, name string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if !strings.EqualFold(a.Key, name) {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}
