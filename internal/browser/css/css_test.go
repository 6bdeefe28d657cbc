// internal/browser/css/css_test.go
package css

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestParseSelector_Rejects(t *testing.T) {
	for _, input := range []string{
		"", "   ", "[=x]", "div[unclosed='x'", "input >",
		"a:hover", "#save, button:FOCUS", "form:focus-within input", "a:visited > span",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseSelector(input)
			assert.Error(t, err)
		})
	}
}

func TestParseSelector_InteractionStateInsideValue(t *testing.T) {
	for _, input := range []string{`a[title=':hover']`, `a[title="x:focus"]`, `input:not([data-s=':active'])`} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseSelector(input)
			assert.NoError(t, err)
		})
	}
}

func TestParseStyleSheet(t *testing.T) {
	sheet := ParseStyleSheet(`
		/* comment */
		@media print { .x { display: none } }
		.hidden, [aria-hidden="true"] { Display: none !important; color: red }
		p { }
	`)

	require.Len(t, sheet.Rules, 1)
	rule := sheet.Rules[0]
	assert.Len(t, rule.Selector, 2)
	assert.Equal(t, []Declaration{
		{Property: "display", Value: "none", Important: true},
		{Property: "color", Value: "red"},
	}, rule.Declarations)
}

func TestParseStyleSheet_SkipsUnsupportedSelectors(t *testing.T) {
	sheet := ParseStyleSheet(`a:no-such-state { color: red } a:hover { color: blue } .b { display: none }`)
	require.Len(t, sheet.Rules, 1)
	assert.Equal(t, Property("display"), sheet.Rules[0].Declarations[0].Property)
}

func TestParseInline(t *testing.T) {
	decls := ParseInline("Display: none; visibility:hidden !important;;bogus")
	assert.Equal(t, []Declaration{
		{Property: "display", Value: "none"},
		{Property: "visibility", Value: "hidden", Important: true},
	}, decls)
}

func TestParseInline_SingleUnterminatedDeclaration(t *testing.T) {
	assert.Equal(t, []Declaration{{Property: "width", Value: "0px"}}, ParseInline("width: 0px"))
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

const form = `
<form id="f" class="login wide">
	<label id="l">User</label>
	<input id="u" name="user" type="text" lang="en-US">
	<div><span id="deep" data-x="alpha beta"></span></div>
</form>`

func TestMatches(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(form))
	require.NoError(t, err)

	tests := []struct {
		selector string
		id       string
		want     bool
	}{
		{"input", "u", true},
		{"#u", "u", true},
		{"form.login.wide", "f", true},
		{"form.login.narrow", "f", false},
		{"input[name='user']", "u", true},
		{"input[name='other']", "u", false},
		{"[lang|='en']", "u", true},
		{"[data-x~='beta']", "deep", true},
		{"[data-x*='pha b']", "deep", true},
		{"form span", "deep", true},
		{"form > span", "deep", false},
		{"label + input", "u", true},
		{"button, input[type='text']", "u", true},
	}
	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			group, err := ParseSelector(tt.selector)
			require.NoError(t, err)
			node := findByID(doc, tt.id)
			require.NotNil(t, node)
			assert.Equal(t, tt.want, Matches(node, group))
		})
	}
}

func TestMatchingSpecificity(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(form))
	require.NoError(t, err)
	input := findByID(doc, "u")

	group, err := ParseSelector("input, form #u.missing, form input#u[name]")
	require.NoError(t, err)
	spec, ok := MatchingSpecificity(input, group)
	require.True(t, ok)
	assert.Equal(t, Specificity{1, 1, 2}, spec)

	_, ok = MatchingSpecificity(findByID(doc, "l"), group)
	assert.False(t, ok)
}
