// Package sanitize rewrites malformed or ambiguous location-path selectors into
// valid, case-insensitive equivalents.
package sanitize

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/healer/api/schemas"
)

const (
	upperAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerAlphabet = "abcdefghijklmnopqrstuvwxyz"
)

var (
	bareAttrEquality = regexp.MustCompile(`\[([a-zA-Z_][a-zA-Z0-9_-]*)\s*=`)
	leadingBracket   = regexp.MustCompile(`^(xpath=)?(//)?\[`)
	sigillessFunc    = regexp.MustCompile(`(contains|starts-with)\(\s*([a-zA-Z_][a-zA-Z0-9_-]*)\s*,`)
	caseSensitiveFn  = regexp.MustCompile(`(?i)(contains|starts-with)\(\s*(?:@([a-zA-Z0-9:_-]+)|(text\(\)))\s*,\s*(?:'([^']+)'|"([^"]+)")\s*\)`)
	repeatedSpace    = regexp.MustCompile(`\s{2,}`)
	firstAttrValue   = regexp.MustCompile(`@[\w-]+\s*=\s*['"]([^'"]+)['"]`)
)

// InferenceTags is the ordered list of tags tried when a wildcard tag is replaced.
var InferenceTags = []string{"input", "button", "select", "textarea", "a", "label", "div", "span"}

// Sanitize applies the pure rewrites. It is idempotent and never fails.
func Sanitize(selector string) (out string) {
	out = strings.TrimSpace(selector)
	defer func() {
		// Regexp replacement does not panic on valid patterns; this only guards
		// the contract that sanitization never raises.
		if r := recover(); r != nil {
			out = strings.TrimSpace(selector)
		}
	}()

	// Each rewrite is idempotent on its own; iterating to a fixpoint also covers
	// literals that happen to contain selector syntax.
	for i := 0; i < maxPasses; i++ {
		next := rewrite(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

const maxPasses = 4

func rewrite(s string) string {
	s = qualifyBareAttributes(s)
	s = qualifyLeadingPredicate(s)
	s = addFunctionSigil(s)
	s = ensurePathPrefix(s)
	s = foldCase(s)
	return strings.TrimSpace(repeatedSpace.ReplaceAllString(s, " "))
}

// qualifyBareAttributes turns [name=val] into [@name=val].
func qualifyBareAttributes(s string) string {
	return bareAttrEquality.ReplaceAllString(s, "[@$1=")
}

// qualifyLeadingPredicate inserts a wildcard tag in front of a leading predicate.
func qualifyLeadingPredicate(s string) string {
	return leadingBracket.ReplaceAllString(s, "$1$2*[")
}

func addFunctionSigil(s string) string {
	return sigillessFunc.ReplaceAllStringFunc(s, func(m string) string {
		sub := sigillessFunc.FindStringSubmatch(m)
		// text and normalize-space are node tests, never attribute names.
		if sub[2] == "text" || sub[2] == "normalize-space" {
			return m
		}
		return fmt.Sprintf("%s(@%s,", sub[1], sub[2])
	})
}

// foldCase wraps contains/starts-with comparisons in translate() and lower-cases
// the literal. A wrapped comparison no longer matches the pattern, which keeps
// this step idempotent.
func foldCase(s string) string {
	return caseSensitiveFn.ReplaceAllStringFunc(s, func(m string) string {
		sub := caseSensitiveFn.FindStringSubmatch(m)
		fn := sub[1]
		subject := "text()"
		if sub[2] != "" {
			subject = "@" + sub[2]
		}
		literal := fmt.Sprintf("'%s'", strings.ToLower(sub[4]))
		if sub[4] == "" {
			literal = fmt.Sprintf(`"%s"`, strings.ToLower(sub[5]))
		}
		return fmt.Sprintf("%s(translate(%s,'%s','%s'),%s)", fn, subject, upperAlphabet, lowerAlphabet, literal)
	})
}

// ensurePathPrefix makes the selector an absolute-anywhere location path unless it
// already is one, is explicitly tagged, or is a CSS id/class shorthand.
func ensurePathPrefix(s string) string {
	if s == "" || IsLocationPath(s) || strings.HasPrefix(s, "#") || strings.HasPrefix(s, ".") {
		return s
	}
	return "//" + s
}

// IsLocationPath reports whether s is addressed as a location-path query.
func IsLocationPath(s string) bool {
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "(") || strings.HasPrefix(s, "xpath=")
}

// Sanitizer adds DOM-assisted tag inference on top of Sanitize.
type Sanitizer struct {
	logger      *zap.Logger
	checkBudget time.Duration
}

// New creates a Sanitizer. checkBudget bounds each visibility check.
func New(logger *zap.Logger, checkBudget time.Duration) *Sanitizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkBudget <= 0 {
		checkBudget = 250 * time.Millisecond
	}
	return &Sanitizer{logger: logger.Named("sanitizer"), checkBudget: checkBudget}
}

// SanitizeWithDOM runs Sanitize and then, if the result still starts with a
// wildcard-tag predicate, replaces the wildcard with the first tag from
// InferenceTags that has a visible element carrying the same id or name.
func (s *Sanitizer) SanitizeWithDOM(ctx context.Context, selector string, root schemas.Root) string {
	fixed := Sanitize(selector)
	if root == nil {
		return fixed
	}

	body := strings.TrimPrefix(fixed, "xpath=")
	if !strings.HasPrefix(body, "//*[") {
		return fixed
	}
	m := firstAttrValue.FindStringSubmatch(body)
	if m == nil {
		return fixed
	}
	value := m[1]

	for _, tag := range InferenceTags {
		if ctx.Err() != nil {
			return fixed
		}
		if s.visibleMatch(ctx, root, fmt.Sprintf("%s[id='%s'], %s[name='%s']", tag, value, tag, value)) {
			improved := strings.Replace(fixed, "//*", "//"+tag, 1)
			s.logger.Debug("Tag inferred from DOM.",
				zap.String("tag", tag),
				zap.String("selector", improved))
			return improved
		}
	}
	return fixed
}

func (s *Sanitizer) visibleMatch(ctx context.Context, root schemas.Root, css string) bool {
	checkCtx, cancel := context.WithTimeout(ctx, s.checkBudget)
	defer cancel()

	els, err := root.Query(checkCtx, css)
	if err != nil || len(els) == 0 {
		return false
	}
	visible, err := els[0].IsVisible(checkCtx)
	return err == nil && visible
}
