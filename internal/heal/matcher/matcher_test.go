package matcher

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/healer/api/schemas"
)

func TestExtractSelectorInfo(t *testing.T) {
	tests := []struct {
		name     string
		selector string
		want     Query
	}{
		{
			name:     "css id",
			selector: "#Login-Button",
			want:     Query{Conditions: []Condition{{Kind: KindID, Attr: "id", Value: "login-button"}}},
		},
		{
			name:     "css class cut at next token",
			selector: ".btn.primary",
			want:     Query{Conditions: []Condition{{Kind: KindClass, Attr: "class", Value: "btn"}}},
		},
		{
			name:     "attribute term with tag hint",
			selector: "//input[@id='user-name']",
			want:     Query{Conditions: []Condition{{Kind: KindID, Attr: "id", Value: "user-name", TagHint: "input"}}},
		},
		{
			name:     "compound attribute terms",
			selector: "//button[@type='submit' and @data-test='Login']",
			want: Query{Compound: true, Conditions: []Condition{
				{Kind: KindAttribute, Attr: "type", Value: "submit", TagHint: "button"},
				{Kind: KindAttribute, Attr: "data-test", Value: "login", TagHint: "button"},
			}},
		},
		{
			name:     "raw contains",
			selector: "//div[contains(@class,'Foo')]",
			want:     Query{Conditions: []Condition{{Kind: KindContains, Attr: "class", Value: "foo", TagHint: "div"}}},
		},
		{
			name:     "sanitized contains",
			selector: "//div[contains(translate(@class,'ABCDEFGHIJKLMNOPQRSTUVWXYZ','abcdefghijklmnopqrstuvwxyz'),'foo')]",
			want:     Query{Conditions: []Condition{{Kind: KindContains, Attr: "class", Value: "foo", TagHint: "div"}}},
		},
		{
			name:     "starts-with",
			selector: "//a[starts-with(@href,'/cart')]",
			want:     Query{Conditions: []Condition{{Kind: KindStartsWith, Attr: "href", Value: "/cart", TagHint: "a"}}},
		},
		{
			name:     "contains text",
			selector: "//button[contains(text(),'Log')]",
			want:     Query{Conditions: []Condition{{Kind: KindContains, Attr: "text", Value: "log", TagHint: "button"}}},
		},
		{
			name:     "text equality",
			selector: "//span[normalize-space()='Products']",
			want:     Query{Conditions: []Condition{{Kind: KindText, Attr: "text", Value: "products", TagHint: "span"}}},
		},
		{
			name:     "attribute and text make a compound",
			selector: "//button[@name='go'][text()='Go']",
			want: Query{Compound: true, Conditions: []Condition{
				{Kind: KindName, Attr: "name", Value: "go", TagHint: "button"},
				{Kind: KindText, Attr: "text", Value: "go", TagHint: "button"},
			}},
		},
		{
			name:     "generic css attribute",
			selector: "input[name='q']",
			want:     Query{Conditions: []Condition{{Kind: KindName, Attr: "name", Value: "q", TagHint: "input"}}},
		},
		{
			name:     "path tag",
			selector: "//textarea",
			want:     Query{Conditions: []Condition{{Kind: KindTag, Attr: "tag", Value: "textarea", TagHint: "textarea"}}},
		},
		{
			name:     "bare tag",
			selector: "button",
			want:     Query{Conditions: []Condition{{Kind: KindTag, Attr: "tag", Value: "button", TagHint: "button"}}},
		},
		{
			name:     "opaque text",
			selector: "text=Add_To-Cart 42",
			want:     Query{Conditions: []Condition{{Kind: KindOpaque, Value: "addtocart"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractSelectorInfo(tt.selector)
			if diff := cmp.Diff(tt.want, got, cmpopts.IgnoreFields(Query{}, "Raw")); diff != "" {
				t.Errorf("ExtractSelectorInfo(%q) mismatch (-want +got):\n%s", tt.selector, diff)
			}
			assert.Equal(t, tt.selector, got.Raw)
		})
	}
}

func TestStringScore(t *testing.T) {
	assert.Equal(t, 1.0, StringScore("Login", "login"))
	assert.InDelta(t, 0.85*5.0/11.0, StringScore("loginbutton", "login"), 1e-9)
	assert.InDelta(t, 0.85*5.0/11.0, StringScore("login", "loginbutton"), 1e-9)
	assert.Less(t, StringScore("checkout", "username"), 0.4)
	assert.Less(t, StringScore("submit", "password"), 0.4)
	// night/nacht share one bigram ("ht") out of eight.
	assert.InDelta(t, 0.75*0.25, StringScore("night", "nacht"), 1e-9)
}

func TestDice(t *testing.T) {
	assert.Equal(t, 1.0, Dice("a b", "ab"))
	assert.Equal(t, 0.0, Dice("a", "b"))
	assert.InDelta(t, 10.0/11.0, Dice("french", "frenc h!"), 1e-9)
	assert.InDelta(t, 2.0/3.0, Dice("aaa", "aa"), 1e-9, "repeated bigrams are counted once per occurrence")
}

func TestNormalization(t *testing.T) {
	assert.Equal(t, NormalizeDynamicID("user-42"), NormalizeDynamicID("user-17"))
	assert.Equal(t, "username", NormalizeDynamicID("User_Name-3"))
	assert.Equal(t, "datatest addtocart", NormalizeSelector(`css=[data-test="add-to-cart-1"]`))
	assert.Equal(t, "sauce labs backpack", NormalizeSelector("text='Sauce Labs Backpack'"))
}

func TestScoreCondition(t *testing.T) {
	sig := func(mod func(*schemas.ElementSignature)) schemas.ElementSignature {
		s := schemas.ElementSignature{TagName: "input", Attributes: map[string]string{}}
		mod(&s)
		return s
	}

	t.Run("exact id scores 1.0", func(t *testing.T) {
		s := sig(func(s *schemas.ElementSignature) { s.ID = "user-name"; s.Attributes["id"] = "user-name" })
		assert.Equal(t, 1.0, CalculateSimilarity("//input[@id='user-name']", s))
	})

	t.Run("dynamic suffixes score 1.0", func(t *testing.T) {
		s := sig(func(s *schemas.ElementSignature) { s.ID = "user-17" })
		assert.Equal(t, 1.0, CalculateSimilarity("#user-42", s))
	})

	t.Run("id substring of the query value", func(t *testing.T) {
		s := sig(func(s *schemas.ElementSignature) { s.ID = "login" })
		assert.InDelta(t, 0.85*5.0/11.0, CalculateSimilarity("#loginbutton", s), 1e-9)
	})

	t.Run("unrelated strings stay below threshold", func(t *testing.T) {
		s := sig(func(s *schemas.ElementSignature) { s.ID = "password"; s.ClassName = "form_input" })
		assert.Less(t, CalculateSimilarity("//input[@id='checkout']", s), 0.4)
	})

	t.Run("renamed id still matches via first class token", func(t *testing.T) {
		s := sig(func(s *schemas.ElementSignature) { s.ClassName = "login_username form_input"; s.Type = "text" })
		got := CalculateSimilarity("//input[@id='user-name']", s)
		assert.InDelta(t, 0.85*8.0/13.0*0.8, got, 1e-9)
		assert.GreaterOrEqual(t, got, 0.4)
	})

	t.Run("name weighs 0.9", func(t *testing.T) {
		s := sig(func(s *schemas.ElementSignature) { s.Name = "q" })
		assert.InDelta(t, 0.9, ScoreCondition(Condition{Kind: KindID, Attr: "id", Value: "q"}, s), 1e-9)
	})

	t.Run("tag hint compares the value with the tag", func(t *testing.T) {
		s := sig(func(*schemas.ElementSignature) {})
		assert.InDelta(t, 0.7, CalculateSimilarity("//input", s), 1e-9)
		assert.Zero(t, CalculateSimilarity("//input[@id='zz']", s))
	})

	t.Run("contains honours substring semantics on attributes", func(t *testing.T) {
		s := sig(func(s *schemas.ElementSignature) { s.TagName = "div"; s.Attributes["class"] = "foo-bar" })
		assert.InDelta(t, 0.9, CalculateSimilarity("//div[contains(@class,'Foo')]", s), 1e-9)
	})

	t.Run("text kind and partial text", func(t *testing.T) {
		s := sig(func(s *schemas.ElementSignature) { s.TagName = "button"; s.TextContent = "Log In" })
		assert.Equal(t, 1.0, CalculateSimilarity("//button[text()='log in']", s))
		assert.InDelta(t, 0.6, ScoreCondition(Condition{Kind: KindAttribute, Attr: "title", Value: "log in"}, s), 1e-9)
	})

	t.Run("compound averages", func(t *testing.T) {
		s := sig(func(s *schemas.ElementSignature) {
			s.TagName = "button"
			s.Attributes["type"] = "submit"
			s.Attributes["data-test"] = "nothing-alike"
		})
		got := CalculateSimilarity("//button[@type='submit' and @data-test='zzzz']", s)
		assert.InDelta(t, 0.45, got, 1e-9)
	})

	t.Run("structure-free selectors are matched against test attributes", func(t *testing.T) {
		s := sig(func(s *schemas.ElementSignature) { s.Attributes["data-test"] = "username" })
		assert.Equal(t, 1.0, CalculateSimilarity("Username", s))
		assert.Less(t, CalculateSimilarity("[x='Username']", s), 0.4, "selectors with = are not matched against test attributes")
	})
}

func TestGenerateSelector(t *testing.T) {
	tests := []struct {
		name string
		sig  schemas.ElementSignature
		want string
	}{
		{"id wins", schemas.ElementSignature{TagName: "input", ID: "user", Name: "u", ClassName: "c"}, "#user"},
		{"non-identifier id", schemas.ElementSignature{TagName: "input", ID: "1st:field"}, "[id='1st:field']"},
		{"name", schemas.ElementSignature{TagName: "input", Name: "user", ClassName: "c"}, "[name='user']"},
		{"name with quote", schemas.ElementSignature{Name: "it's"}, `[name="it's"]`},
		{"tag and first class", schemas.ElementSignature{TagName: "input", ClassName: "login_username form_input"}, "input.login_username"},
		{"tag and type", schemas.ElementSignature{TagName: "input", Type: "password"}, "input[type='password']"},
		{"type without tag", schemas.ElementSignature{Type: "email"}, "input[type='email']"},
		{"implicit text type", schemas.ElementSignature{TagName: "input", Type: "text", Attributes: map[string]string{}}, "input"},
		{"declared type as written", schemas.ElementSignature{TagName: "input", Type: "email", Attributes: map[string]string{"type": "Email"}}, "input[type='Email']"},
		{"bare tag", schemas.ElementSignature{TagName: "button"}, "button"},
		{"wildcard", schemas.ElementSignature{}, "*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateSelector(tt.sig))
		})
	}
}

func TestRankAndPlan(t *testing.T) {
	m := New(0)
	require.Equal(t, schemas.DefaultThreshold, m.Threshold())

	sigs := []schemas.ElementSignature{
		{TagName: "button", ID: "cancel"},
		{TagName: "input", ID: "user-1"},
		{TagName: "input", ID: "user-2"},
		{TagName: "input", ID: "zzz"},
	}

	t.Run("ties keep collection order", func(t *testing.T) {
		ranked := m.Rank("#user", sigs)
		require.Len(t, ranked, 4)
		assert.Equal(t, []int{1, 2}, []int{ranked[0].Index, ranked[1].Index})
		assert.Equal(t, ranked[0].Score, ranked[1].Score)

		planned := m.Plan(ranked)
		require.Len(t, planned, 2)
		assert.Equal(t, "#user-1", GenerateSelector(planned[0].Signature))
	})

	t.Run("best effort keeps only the top candidate", func(t *testing.T) {
		planned := m.Plan(m.Rank("#qqqq", sigs))
		require.Len(t, planned, 1)
		assert.False(t, planned[0].Acceptable(m.Threshold(), len(sigs)))
	})

	t.Run("threshold boundary", func(t *testing.T) {
		at := Scored{Score: 0.4}
		below := Scored{Score: 0.39}
		assert.True(t, at.Acceptable(0.4, 5))
		assert.False(t, below.Acceptable(0.4, 5))
		assert.True(t, below.Acceptable(0.4, 1), "the sole collected candidate is always tried")

		planned := m.Plan([]Scored{at, below})
		assert.Equal(t, []Scored{at}, planned)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, m.Plan(nil))
		assert.Empty(t, m.Rank("#x", nil))
	})
}
