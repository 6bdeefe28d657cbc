package matcher

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/xkilldash9x/healer/api/schemas"
)

// Sub-score weights.
const (
	weightID          = 1.0
	weightName        = 0.9
	weightClass       = 0.8
	weightTag         = 0.7
	weightAttribute   = 0.9
	weightTextKind    = 1.0
	weightTextPartial = 0.6
)

// thresholdEpsilon absorbs float error so a score computed as 0.39999999 still
// meets a 0.4 threshold.
const thresholdEpsilon = 1e-9

// ProbeAttributes are consulted for structure-free selectors that score below
// the threshold on their own.
var ProbeAttributes = []string{"data-test", "data-testid", "aria-label", "placeholder", "id", "name"}

// ScoreCondition returns the best weighted sub-score of cond against sig.
func ScoreCondition(cond Condition, sig schemas.ElementSignature) float64 {
	best := 0.0
	keep := func(s float64) {
		if s > best {
			best = s
		}
	}

	switch cond.Kind {
	case KindID, KindName, KindClass:
		// Identity values are compared against every identity field, so an id
		// that became a class (or a name) is still recognized.
		if sig.ID != "" {
			keep(identityScore(cond.Value, sig.ID) * weightID)
		}
		if sig.Name != "" {
			keep(identityScore(cond.Value, sig.Name) * weightName)
		}
		if first := firstClass(sig.ClassName); first != "" {
			keep(identityScore(cond.Value, first) * weightClass)
		}
	}

	if cond.TagHint != "" && sig.TagName != "" {
		keep(StringScore(cond.Value, sig.TagName) * weightTag)
	}

	if cond.Attr != "" && cond.Attr != textSubject {
		for name, value := range sig.Attributes {
			if strings.ToLower(name) == cond.Attr {
				keep(valueScore(cond, strings.ToLower(value)) * weightAttribute)
			}
		}
	}

	if sig.TextContent != "" {
		text := strings.ToLower(sig.TextContent)
		if cond.Attr == textSubject {
			keep(valueScore(cond, text) * weightTextKind)
		}
		keep(StringScore(cond.Value, text) * weightTextPartial)
	}
	return best
}

// valueScore honours contains/starts-with semantics before falling back to
// plain string similarity.
func valueScore(cond Condition, candidate string) float64 {
	switch cond.Kind {
	case KindContains:
		if strings.Contains(candidate, cond.Value) {
			return 1.0
		}
	case KindStartsWith:
		if strings.HasPrefix(candidate, cond.Value) {
			return 1.0
		}
	}
	return StringScore(cond.Value, candidate)
}

func identityScore(value, field string) float64 {
	a, b := NormalizeDynamicID(value), NormalizeDynamicID(field)
	if a == "" || b == "" {
		// Purely numeric identifiers normalize to nothing; compare them as-is.
		return StringScore(value, field)
	}
	return StringScore(a, b)
}

func firstClass(className string) string {
	fields := strings.Fields(className)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Matcher applies a confidence threshold to similarity scores.
type Matcher struct {
	threshold float64
}

// New returns a Matcher. A non-positive threshold selects schemas.DefaultThreshold.
func New(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = schemas.DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

// Threshold returns the acceptance threshold.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Similarity scores a parsed query against a signature. Compound queries
// average their conditions.
func (m *Matcher) Similarity(q Query, sig schemas.ElementSignature) float64 {
	if len(q.Conditions) == 0 {
		return 0
	}
	if q.Compound {
		total := 0.0
		for _, c := range q.Conditions {
			total += ScoreCondition(c, sig)
		}
		return total / float64(len(q.Conditions))
	}

	score := ScoreCondition(q.Conditions[0], sig)
	if score+thresholdEpsilon < m.threshold && !strings.ContainsAny(q.Raw, "/=") {
		if attr := testAttributeScore(q.Raw, sig); attr > score {
			score = attr
		}
	}
	return score
}

// CalculateSimilarity scores a raw selector against sig with the default threshold.
func CalculateSimilarity(selector string, sig schemas.ElementSignature) float64 {
	return New(schemas.DefaultThreshold).Similarity(ExtractSelectorInfo(selector), sig)
}

func testAttributeScore(raw string, sig schemas.ElementSignature) float64 {
	needle := NormalizeSelector(raw)
	if needle == "" {
		return 0
	}
	best := 0.0
	for _, attr := range ProbeAttributes {
		value := sig.Attributes[attr]
		switch attr {
		case "id":
			if sig.ID != "" {
				value = sig.ID
			}
		case "name":
			if sig.Name != "" {
				value = sig.Name
			}
		}
		if value == "" {
			continue
		}
		if s := StringScore(needle, NormalizeSelector(value)); s > best {
			best = s
		}
	}
	return best
}

var cssIdentRe = regexp.MustCompile(`^-?[_a-zA-Z][_a-zA-Z0-9-]*$`)

// GenerateSelector synthesizes a selector for sig by priority: #id, [name],
// tag.class, tag[type], tag, then the universal selector. Values that are not
// valid CSS identifiers are emitted as attribute predicates.
func GenerateSelector(sig schemas.ElementSignature) string {
	tag := strings.ToLower(sig.TagName)
	switch {
	case sig.ID != "":
		if cssIdentRe.MatchString(sig.ID) {
			return "#" + sig.ID
		}
		return fmt.Sprintf("[id=%s]", quote(sig.ID))
	case sig.Name != "":
		return fmt.Sprintf("[name=%s]", quote(sig.Name))
	}
	if class := firstClass(sig.ClassName); class != "" {
		if cssIdentRe.MatchString(class) {
			return tag + "." + class
		}
		return fmt.Sprintf("%s[class~=%s]", tag, quote(class))
	}
	if t := declaredType(sig); t != "" {
		if tag == "" {
			tag = "input"
		}
		return fmt.Sprintf("%s[type=%s]", tag, quote(t))
	}
	if tag != "" {
		return tag
	}
	return "*"
}

// declaredType is the type attribute as written. A typeless input reports
// "text", which [type='text'] would not match.
func declaredType(sig schemas.ElementSignature) string {
	if sig.Attributes == nil {
		return sig.Type
	}
	return sig.Attributes["type"]
}

func quote(v string) string {
	if strings.Contains(v, "'") {
		return `"` + v + `"`
	}
	return "'" + v + "'"
}

// Scored is a signature with its similarity score. Index is the signature's
// position in collection order.
type Scored struct {
	Signature schemas.ElementSignature
	Score     float64
	Index     int
}

// Acceptable reports whether the candidate may be tried: it meets the
// threshold, or it is the only candidate that was collected.
func (s Scored) Acceptable(threshold float64, total int) bool {
	return s.Score+thresholdEpsilon >= threshold || total == 1
}

// Rank scores every signature and sorts descending. Equal scores keep
// collection order.
func (m *Matcher) Rank(selector string, sigs []schemas.ElementSignature) []Scored {
	q := ExtractSelectorInfo(selector)
	scored := make([]Scored, len(sigs))
	for i, sig := range sigs {
		scored[i] = Scored{Signature: sig, Score: m.Similarity(q, sig), Index: i}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored
}

// Plan keeps every candidate at or above the threshold, or only the best one
// when none reaches it.
func (m *Matcher) Plan(scored []Scored) []Scored {
	var kept []Scored
	for _, s := range scored {
		if s.Score+thresholdEpsilon >= m.threshold {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 && len(scored) > 0 {
		return scored[:1]
	}
	return kept
}
