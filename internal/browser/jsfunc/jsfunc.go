// Package jsfunc holds the in-page functions shared by the live browser
// drivers and decodes their JSON results.
//
// Every function takes the element (or document) it runs against as its first
// parameter and at most one JSON-serializable argument as its second. Results
// that carry structure are returned as JSON strings.
package jsfunc

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/healer/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Query returns the elements under root matching a location path (leading "/",
// "(" or "xpath=") or a CSS selector (optional "css=" prefix), in document order.
const Query = `(root, sel) => {
  const doc = root.nodeType === 9 ? root : root.ownerDocument;
  let path = null;
  if (sel.startsWith('xpath=')) path = sel.slice(6);
  else if (sel.startsWith('/') || sel.startsWith('(')) path = sel;
  if (path === null) {
    if (sel.startsWith('css=')) sel = sel.slice(4);
    return Array.from(root.querySelectorAll(sel));
  }
  const snap = doc.evaluate(path, root, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
  const out = [];
  for (let i = 0; i < snap.snapshotLength; i++) {
    const n = snap.snapshotItem(i);
    if (n.nodeType === 1) out.push(n);
  }
  return out;
}`

// Frames returns the documents of every reachable same-origin frame, depth first.
const Frames = `() => {
  const out = [];
  const walk = (doc) => {
    for (const f of doc.querySelectorAll('iframe, frame')) {
      let d = null;
      try { d = f.contentDocument; } catch (e) {}
      if (d) { out.push(d); walk(d); }
    }
  };
  walk(document);
  return out;
}`

// ShadowChildren returns every element of el's open shadow root.
const ShadowChildren = `(el) => el.shadowRoot ? Array.from(el.shadowRoot.querySelectorAll('*')) : []`

// ShadowRoot returns el's open shadow root, or null.
const ShadowRoot = `(el) => el.shadowRoot || null`

// Key returns an identifier that stays stable for the node across queries.
const Key = `(el) => {
  const w = el.ownerDocument.defaultView || window;
  if (!w.__healerKeys) {
    w.__healerKeys = new WeakMap();
    w.__healerNext = 1;
    w.__healerToken = Math.random().toString(36).slice(2, 10);
  }
  let k = w.__healerKeys.get(el);
  if (!k) { k = w.__healerNext++; w.__healerKeys.set(el, k); }
  return w.__healerToken + ':' + k;
}`

// Describe returns the element description as JSON.
const Describe = `(el) => {
  const attributes = {};
  for (const a of el.attributes) attributes[a.name] = a.value;
  const cls = el.getAttribute('class');
  return JSON.stringify({
    tagName: el.tagName.toLowerCase(),
    id: el.id || '',
    name: el.getAttribute('name') || '',
    className: cls || '',
    type: el.tagName === 'INPUT' ? el.type : (el.getAttribute('type') || '').toLowerCase(),
    textContent: (el.textContent || '').trim(),
    attributes,
    hasShadowRoot: !!el.shadowRoot && el.shadowRoot.mode === 'open',
  });
}`

const IsVisible = `(el) => {
  if (!el.isConnected) return false;
  const s = getComputedStyle(el);
  if (s.display === 'none' || s.visibility === 'hidden' || s.visibility === 'collapse') return false;
  if (parseFloat(s.opacity) === 0) return false;
  const r = el.getBoundingClientRect();
  return r.width > 0 && r.height > 0;
}`

const IsEnabled = `(el) => !el.matches(':disabled')`

const IsAttached = `(el) => el.isConnected`

// Rect returns the element's box as JSON, or "null" when it has no rendered
// area. Coordinates are relative to the top-level viewport, with same-origin
// frame offsets added; when absolute is true the top-level scroll offset is
// added as well, giving document coordinates.
const Rect = `(el, absolute) => {
  const r = el.getBoundingClientRect();
  if (!el.isConnected || r.width === 0 || r.height === 0) return 'null';
  let x = r.left, y = r.top;
  let w = el.ownerDocument.defaultView;
  while (w && w.frameElement) {
    const fr = w.frameElement.getBoundingClientRect();
    x += fr.left; y += fr.top;
    w = w.parent;
  }
  if (absolute && w) { x += w.scrollX; y += w.scrollY; }
  return JSON.stringify({ x, y, width: r.width, height: r.height });
}`

// HitTarget reports whether the element receives pointer events at its centre.
const HitTarget = `(el) => {
  const r = el.getBoundingClientRect();
  const hit = el.ownerDocument.elementFromPoint(r.left + r.width / 2, r.top + r.height / 2);
  return !!hit && (hit === el || el.contains(hit));
}`

const ScrollIntoView = `(el) => { el.scrollIntoView({ behavior: 'instant', block: 'center', inline: 'center' }); }`

const Focus = `(el) => { el.focus(); }`

// Fill replaces the value of an input, textarea or contenteditable element and
// fires input and change.
const Fill = `(el, value) => {
  el.focus();
  if (el.isContentEditable) {
    el.textContent = value;
  } else {
    const proto = el.tagName === 'TEXTAREA' ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
    const setter = Object.getOwnPropertyDescriptor(proto, 'value').set;
    setter.call(el, value);
  }
  el.dispatchEvent(new Event('input', { bubbles: true }));
  el.dispatchEvent(new Event('change', { bubbles: true }));
}`

// Click clicks the element without any actionability checks.
const Click = `(el) => { el.click(); }`

// SetChecked sets a checkbox or radio state through a click so listeners run.
const SetChecked = `(el, checked) => {
  if (el.tagName !== 'INPUT' || !['checkbox', 'radio'].includes(el.type)) throw new Error('not a checkbox or radio');
  if (el.checked !== checked) el.click();
  return el.checked === checked;
}`

// SelectOption selects the first option whose value, label or text equals value
// and returns the selected values as JSON.
const SelectOption = `(el, value) => {
  if (el.tagName !== 'SELECT') throw new Error('not a select element');
  const opt = Array.from(el.options).find(o => o.value === value || o.label === value || o.text.trim() === value);
  if (!opt) throw new Error('no option ' + JSON.stringify(value));
  opt.selected = true;
  el.dispatchEvent(new Event('input', { bubbles: true }));
  el.dispatchEvent(new Event('change', { bubbles: true }));
  return JSON.stringify(Array.from(el.selectedOptions).map(o => o.value));
}`

const TextContent = `(el) => el.textContent || ''`

// GetAttribute returns {"value": string, "ok": bool} as JSON.
const GetAttribute = `(el, name) => JSON.stringify({ value: el.getAttribute(name) || '', ok: el.hasAttribute(name) })`

const SetAttribute = `(el, kv) => { el.setAttribute(kv[0], kv[1]); }`

const ComputedDisplay = `(el) => getComputedStyle(el).display`

const DispatchEvent = `(el, type) => { el.dispatchEvent(new Event(type, { bubbles: true })); }`

// Attribute is the decoded result of GetAttribute.
type Attribute struct {
	Value string `json:"value"`
	OK    bool   `json:"ok"`
}

// DecodeInfo decodes a Describe result.
func DecodeInfo(payload string) (schemas.ElementInfo, error) {
	var info schemas.ElementInfo
	if err := json.UnmarshalFromString(payload, &info); err != nil {
		return schemas.ElementInfo{}, fmt.Errorf("failed to decode element description: %w", err)
	}
	if info.Attributes == nil {
		info.Attributes = map[string]string{}
	}
	return info, nil
}

// DecodeRect decodes a Rect result. A nil box means the element is not rendered.
func DecodeRect(payload string) (*schemas.Box, error) {
	if payload == "" || payload == "null" {
		return nil, nil
	}
	var box schemas.Box
	var raw struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	if err := json.UnmarshalFromString(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode bounding box: %w", err)
	}
	box = schemas.Box{X: raw.X, Y: raw.Y, Width: raw.Width, Height: raw.Height}
	return &box, nil
}

// DecodeAttribute decodes a GetAttribute result.
func DecodeAttribute(payload string) (Attribute, error) {
	var a Attribute
	if err := json.UnmarshalFromString(payload, &a); err != nil {
		return Attribute{}, fmt.Errorf("failed to decode attribute: %w", err)
	}
	return a, nil
}

// DecodeStrings decodes a JSON string array.
func DecodeStrings(payload string) ([]string, error) {
	var out []string
	if err := json.UnmarshalFromString(payload, &out); err != nil {
		return nil, fmt.Errorf("failed to decode string list: %w", err)
	}
	return out, nil
}

// Bind turns fn into a function declaration that runs with the element as
// `this`, for protocols that call a declaration on a remote object. args are
// embedded as JSON literals.
func Bind(fn string, args ...any) (string, error) {
	var b strings.Builder
	b.WriteString("function() { return (")
	b.WriteString(fn)
	b.WriteString(")(this")
	for _, arg := range args {
		encoded, err := json.MarshalToString(arg)
		if err != nil {
			return "", fmt.Errorf("failed to encode function argument: %w", err)
		}
		b.WriteString(", ")
		b.WriteString(encoded)
	}
	b.WriteString("); }")
	return b.String(), nil
}

// Unquote decodes a JSON string literal, as returned by value from an in-page function
// that produces a string.
func Unquote(raw []byte) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("failed to decode function result: %w", err)
	}
	return s, nil
}
