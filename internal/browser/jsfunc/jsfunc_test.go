package jsfunc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/healer/api/schemas"
	"github.com/xkilldash9x/healer/internal/browser/jsfunc"
)

func TestBind(t *testing.T) {
	decl, err := jsfunc.Bind(jsfunc.SetAttribute, []string{"aria-selected", `say "hi"`})
	require.NoError(t, err)
	assert.Equal(t,
		`function() { return (`+jsfunc.SetAttribute+`)(this, ["aria-selected","say \"hi\""]); }`,
		decl)

	bare, err := jsfunc.Bind(jsfunc.IsVisible)
	require.NoError(t, err)
	assert.Equal(t, "function() { return ("+jsfunc.IsVisible+")(this); }", bare)

	_, err = jsfunc.Bind(jsfunc.Fill, func() {})
	assert.Error(t, err, "functions cannot be embedded")
}

func TestDecodeInfo(t *testing.T) {
	info, err := jsfunc.DecodeInfo(`{"tagName":"input","id":"q","name":"q","className":"a b","type":"search","textContent":"","attributes":{"id":"q","data-test":"search"},"hasShadowRoot":false}`)
	require.NoError(t, err)
	assert.Equal(t, schemas.ElementInfo{
		TagName:    "input",
		ID:         "q",
		Name:       "q",
		ClassName:  "a b",
		Type:       "search",
		Attributes: map[string]string{"id": "q", "data-test": "search"},
	}, info)

	info, err = jsfunc.DecodeInfo(`{"tagName":"div"}`)
	require.NoError(t, err)
	assert.NotNil(t, info.Attributes)

	_, err = jsfunc.DecodeInfo(`{`)
	assert.Error(t, err)
}

func TestDecodeRect(t *testing.T) {
	box, err := jsfunc.DecodeRect(`{"x":10,"y":20,"width":30,"height":40}`)
	require.NoError(t, err)
	require.NotNil(t, box)
	x, y := box.Center()
	assert.Equal(t, 25.0, x)
	assert.Equal(t, 40.0, y)

	box, err = jsfunc.DecodeRect("null")
	require.NoError(t, err)
	assert.Nil(t, box)
}

func TestDecodeAttributeAndStrings(t *testing.T) {
	a, err := jsfunc.DecodeAttribute(`{"value":"","ok":true}`)
	require.NoError(t, err)
	assert.Equal(t, jsfunc.Attribute{OK: true}, a)

	values, err := jsfunc.DecodeStrings(`["fr","de"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"fr", "de"}, values)

	s, err := jsfunc.Unquote([]byte(`"{\"a\":1}"`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, s)
}
