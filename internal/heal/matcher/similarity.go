package matcher

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	dynamicRunRe    = regexp.MustCompile(`[-_\d]+`)
	prefixRe        = regexp.MustCompile(`(?i)(text=|role=|css=|xpath=)`)
	punctuationRe   = regexp.MustCompile(`[\[\]@=/*"'():{}]`)
	whitespaceRunRe = regexp.MustCompile(`\s+`)
)

// NormalizeDynamicID strips runs of digits, hyphens and underscores and
// lower-cases, so generated suffixes such as user-42 and user-17 compare equal.
func NormalizeDynamicID(value string) string {
	return strings.ToLower(dynamicRunRe.ReplaceAllString(value, ""))
}

// NormalizeSelector reduces a selector to its bare words: engine prefixes and
// punctuation are dropped, dynamic runs stripped, whitespace collapsed.
func NormalizeSelector(selector string) string {
	s := prefixRe.ReplaceAllString(selector, "")
	s = punctuationRe.ReplaceAllString(s, " ")
	s = dynamicRunRe.ReplaceAllString(s, "")
	s = whitespaceRunRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(strings.ToLower(s))
}

// StringScore compares a target with a candidate: 1.0 when equal, 0.85 scaled
// by the length ratio when one contains the other, otherwise 0.75 of the Dice
// bigram coefficient.
func StringScore(target, candidate string) float64 {
	target = strings.ToLower(target)
	candidate = strings.ToLower(candidate)
	if target == candidate {
		return 1.0
	}
	if strings.Contains(target, candidate) || strings.Contains(candidate, target) {
		lt, lc := len([]rune(target)), len([]rune(candidate))
		shorter, longer := lt, lc
		if lt > lc {
			shorter, longer = lc, lt
		}
		return 0.85 * float64(shorter) / float64(longer)
	}
	return Dice(target, candidate) * 0.75
}

// Dice returns the Sørensen–Dice coefficient over character bigrams, ignoring
// whitespace. Strings shorter than two characters score 0 unless equal.
func Dice(a, b string) float64 {
	a, b = stripSpace(a), stripSpace(b)
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) < 2 || len(rb) < 2 {
		return 0
	}

	bigrams := make(map[[2]rune]int, len(ra)-1)
	for i := 0; i < len(ra)-1; i++ {
		bigrams[[2]rune{ra[i], ra[i+1]}]++
	}
	intersection := 0
	for i := 0; i < len(rb)-1; i++ {
		bg := [2]rune{rb[i], rb[i+1]}
		if bigrams[bg] > 0 {
			bigrams[bg]--
			intersection++
		}
	}
	return 2 * float64(intersection) / float64(len(ra)+len(rb)-2)
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
