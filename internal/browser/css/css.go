// Package css compiles selectors and style sheets for the static driver.
// Selector matching is cascadia's; style sheet syntax is douceur's.
package css

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	dcss "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

// Property is a lower-cased CSS property name such as "display".
type Property string

// Value is a declared CSS value such as "none".
type Value string

// Declaration is one property/value pair.
type Declaration struct {
	Property  Property
	Value     Value
	Important bool
}

// Specificity is the (id, class/attribute, type) triple of a selector.
type Specificity = cascadia.Specificity

// Selector is a compiled, comma-separated selector list.
type Selector = cascadia.SelectorGroup

// Rule is a qualified rule from a style sheet.
type Rule struct {
	Selector     Selector
	Declarations []Declaration
}

// StyleSheet is the parsed content of a <style> block.
type StyleSheet struct {
	Rules []Rule
}

var (
	quoted = regexp.MustCompile(`"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'`)
	// Interaction states have no meaning in a parsed document; cascadia would
	// accept them and never match.
	dynamicPseudo = regexp.MustCompile(`(?i)(?:^|[^:\\]):(hover|active|focus|focus-visible|focus-within|visited|target)(?:$|[^-\w])`)
)

// ParseSelector compiles a selector list such as "input[id='q'], input[name='q']".
// Selectors that depend on user interaction, such as ":hover", are rejected.
func ParseSelector(selector string) (Selector, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, fmt.Errorf("css: empty selector")
	}
	if m := dynamicPseudo.FindStringSubmatch(quoted.ReplaceAllString(selector, `""`)); m != nil {
		return nil, fmt.Errorf("css: unsupported pseudo-class :%s", strings.ToLower(m[1]))
	}
	group, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("css: %w", err)
	}
	return group, nil
}

// Matches reports whether node satisfies any selector in group.
func Matches(node *html.Node, group Selector) bool {
	return node != nil && node.Type == html.ElementNode && group.Match(node)
}

// MatchingSpecificity returns the highest specificity among the selectors in
// group that match node.
func MatchingSpecificity(node *html.Node, group Selector) (Specificity, bool) {
	var best Specificity
	found := false
	if node == nil || node.Type != html.ElementNode {
		return best, false
	}
	for _, sel := range group {
		if !sel.Match(node) {
			continue
		}
		if spec := sel.Specificity(); !found || best.Less(spec) {
			best, found = spec, true
		}
	}
	return best, found
}

// ParseStyleSheet parses a style sheet. At-rules are dropped since their
// conditions are never evaluated, as are rules whose selector cascadia cannot
// compile. A sheet that does not parse at all yields no rules.
func ParseStyleSheet(text string) StyleSheet {
	sheet, err := parser.Parse(text)
	if err != nil {
		return StyleSheet{}
	}
	var out StyleSheet
	for _, rule := range sheet.Rules {
		if rule.Kind != dcss.QualifiedRule || len(rule.Declarations) == 0 {
			continue
		}
		group, err := ParseSelector(rule.Prelude)
		if err != nil {
			continue
		}
		out.Rules = append(out.Rules, Rule{Selector: group, Declarations: convert(rule.Declarations)})
	}
	return out
}

// ParseInline parses the value of a style attribute. Malformed declarations are
// skipped individually.
func ParseInline(styleAttr string) []Declaration {
	var out []Declaration
	for _, part := range strings.Split(styleAttr, ";") {
		if !strings.Contains(part, ":") {
			continue
		}
		// douceur drops the value of a declaration that is not terminated.
		decls, err := parser.ParseDeclarations(part + ";")
		if err != nil {
			continue
		}
		out = append(out, convert(decls)...)
	}
	return out
}

func convert(decls []*dcss.Declaration) []Declaration {
	out := make([]Declaration, 0, len(decls))
	for _, d := range decls {
		out = append(out, Declaration{
			Property:  Property(strings.ToLower(strings.TrimSpace(d.Property))),
			Value:     Value(strings.TrimSpace(d.Value)),
			Important: d.Important,
		})
	}
	return out
}
