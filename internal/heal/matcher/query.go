// Package matcher scores live element signatures against a failing selector and
// synthesizes replacement selectors for the best candidates.
package matcher

import (
	"regexp"
	"strings"
)

// Kind classifies a single selector condition.
type Kind int

const (
	KindID Kind = iota
	KindClass
	KindName
	KindAttribute
	KindContains
	KindStartsWith
	KindText
	KindTag
	KindOpaque
)

var kindNames = [...]string{"id", "class", "name", "attribute", "contains", "starts-with", "text", "tag", "opaque"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// textSubject is the Attr of a condition that compares against text content.
const textSubject = "text"

// Condition is one structural term of a selector. Attr and Value are lower-case.
type Condition struct {
	Kind    Kind
	Attr    string
	Value   string
	TagHint string
}

// Query is the parsed form of a raw selector. Compound queries are a logical
// AND of their conditions.
type Query struct {
	Raw        string
	Conditions []Condition
	Compound   bool
}

var (
	attrTermRe = regexp.MustCompile(`@([\w-]+)\s*=\s*['"]?([^'"\[\]]+)['"]?`)
	// Matches both the raw and the case-folded form emitted by the sanitizer.
	containsRe    = regexp.MustCompile(`(contains|starts-with)\(\s*(?:translate\(\s*)?(@?[\w-]+|text\(\))(?:\s*,\s*'[^']*'\s*,\s*'[^']*'\s*\))?\s*,\s*['"]([^'"]+)['"]\s*\)`)
	textEqRe      = regexp.MustCompile(`(?:normalize-space\(\s*\)|text\(\))\s*=\s*['"]([^'"]+)['"]`)
	pathTagRe     = regexp.MustCompile(`//([a-zA-Z][\w-]*)`)
	genericAttrRe = regexp.MustCompile(`\[([\w-]+)\s*=\s*['"]?([^'"\]]+)['"]?\]`)
	cssTagRe      = regexp.MustCompile(`^([a-zA-Z][\w-]*)\[`)
	bareWordRe    = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]*$`)
)

var knownTags = map[string]bool{
	"a": true, "article": true, "body": true, "button": true, "div": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "iframe": true, "img": true, "input": true, "label": true, "li": true,
	"main": true, "nav": true, "ol": true, "option": true, "p": true, "section": true,
	"select": true, "span": true, "svg": true, "table": true, "td": true, "textarea": true,
	"th": true, "tr": true, "ul": true,
}

// ExtractSelectorInfo parses selector into conditions. Shapes are recognized
// in priority order: #id, .class, attribute/contains/starts-with/text terms,
// a generic [attr=v] predicate, a bare tag, then opaque normalized text.
func ExtractSelectorInfo(selector string) Query {
	raw := selector
	selector = strings.TrimSpace(selector)
	q := Query{Raw: raw}

	switch {
	case strings.HasPrefix(selector, "#"):
		q.Conditions = []Condition{{Kind: KindID, Attr: "id", Value: cssToken(selector[1:])}}
		return q
	case strings.HasPrefix(selector, "."):
		q.Conditions = []Condition{{Kind: KindClass, Attr: "class", Value: cssToken(selector[1:])}}
		return q
	}

	body := strings.TrimPrefix(strings.TrimPrefix(selector, "xpath="), "css=")
	hint := ""
	if m := pathTagRe.FindStringSubmatch(body); m != nil {
		hint = strings.ToLower(m[1])
	} else if m := cssTagRe.FindStringSubmatch(body); m != nil {
		hint = strings.ToLower(m[1])
	}

	var conds []Condition
	for _, m := range attrTermRe.FindAllStringSubmatch(body, -1) {
		conds = append(conds, attributeCondition(m[1], m[2], hint))
	}
	for _, m := range containsRe.FindAllStringSubmatch(body, -1) {
		kind := KindContains
		if m[1] == "starts-with" {
			kind = KindStartsWith
		}
		subject := strings.ToLower(strings.TrimPrefix(m[2], "@"))
		if subject == "text()" {
			subject = textSubject
		}
		conds = append(conds, Condition{Kind: kind, Attr: subject, Value: strings.ToLower(m[3]), TagHint: hint})
	}
	for _, m := range textEqRe.FindAllStringSubmatch(body, -1) {
		conds = append(conds, Condition{Kind: KindText, Attr: textSubject, Value: strings.ToLower(m[1]), TagHint: hint})
	}

	if len(conds) > 0 {
		q.Conditions = conds
		q.Compound = len(conds) > 1
		return q
	}

	if m := genericAttrRe.FindStringSubmatch(body); m != nil {
		q.Conditions = []Condition{attributeCondition(m[1], m[2], hint)}
		return q
	}

	if hint != "" && strings.HasPrefix(body, "//") && strings.TrimLeft(body, "/") == hint {
		q.Conditions = []Condition{{Kind: KindTag, Attr: "tag", Value: hint, TagHint: hint}}
		return q
	}
	if lower := strings.ToLower(body); bareWordRe.MatchString(body) && knownTags[lower] {
		q.Conditions = []Condition{{Kind: KindTag, Attr: "tag", Value: lower, TagHint: lower}}
		return q
	}

	q.Conditions = []Condition{{Kind: KindOpaque, Value: NormalizeSelector(selector)}}
	return q
}

func attributeCondition(attr, value, hint string) Condition {
	attr = strings.ToLower(attr)
	kind := KindAttribute
	switch attr {
	case "id":
		kind = KindID
	case "name":
		kind = KindName
	case "class":
		kind = KindClass
	}
	return Condition{Kind: kind, Attr: attr, Value: strings.ToLower(strings.TrimSpace(value)), TagHint: hint}
}

// cssToken cuts a #id or .class shorthand at the next simple-selector delimiter.
func cssToken(s string) string {
	if i := strings.IndexAny(s, ".#[: >+~,"); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(s)
}
