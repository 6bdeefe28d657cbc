// File: api/schemas/healing.go
package schemas

import (
	"fmt"
	"time"
)

// Defaults shared by the resolver and the action wrapper.
const (
	DefaultTimeout         = 5 * time.Second
	DefaultContextSelector = "*"
	DefaultThreshold       = 0.4
)

// ElementSignature is a snapshot of an element's addressable characteristics.
type ElementSignature struct {
	TagName     string            `json:"tagName"`
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name,omitempty"`
	ClassName   string            `json:"className,omitempty"`
	Type        string            `json:"type,omitempty"`
	TextContent string            `json:"textContent,omitempty"`
	Attributes  map[string]string `json:"attributes"`

	// Handle points back at the live element for the current collection pass only.
	Handle Element `json:"-"`
	// Scope is the document, frame or shadow root the element was collected
	// under. A selector synthesized from the signature is resolved against it.
	Scope Root `json:"-"`
}

// SignatureFromInfo builds a signature from a driver description.
func SignatureFromInfo(info ElementInfo, handle Element, scope Root) ElementSignature {
	attrs := info.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	return ElementSignature{
		TagName:     info.TagName,
		ID:          info.ID,
		Name:        info.Name,
		ClassName:   info.ClassName,
		Type:        info.Type,
		TextContent: info.TextContent,
		Attributes:  attrs,
		Handle:      handle,
		Scope:       scope,
	}
}

// HealingOptions configures a single resolution or action.
type HealingOptions struct {
	// Timeout bounds every wait of the attempt. Zero means DefaultTimeout.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// ContextSelector is the root under which fuzzy candidates are collected.
	ContextSelector string `json:"contextSelector,omitempty" yaml:"context_selector,omitempty"`
	// SuppressError turns a final failure into an absent result.
	SuppressError bool `json:"suppressError,omitempty" yaml:"suppress_error,omitempty"`
}

// WithDefaults fills zero fields.
func (o HealingOptions) WithDefaults() HealingOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.ContextSelector == "" {
		o.ContextSelector = DefaultContextSelector
	}
	return o
}

// RandomSelectOptions extends HealingOptions for SelectRandomOption.
type RandomSelectOptions struct {
	HealingOptions `yaml:",inline"`
	// Retries is the total number of attempts. Zero means 3.
	Retries int `json:"retries,omitempty" yaml:"retries,omitempty"`
	// TriggerEvents dispatches change/input after picking. Nil means true.
	TriggerEvents *bool `json:"triggerEvents,omitempty" yaml:"trigger_events,omitempty"`
}

// ShouldTriggerEvents reports the effective TriggerEvents value.
func (o RandomSelectOptions) ShouldTriggerEvents() bool {
	return o.TriggerEvents == nil || *o.TriggerEvents
}

// TargetKind discriminates Target.
type TargetKind int

const (
	TargetSelector TargetKind = iota
	TargetHandle
)

// Target is either a raw selector string or an already resolved element.
type Target struct {
	kind     TargetKind
	selector string
	handle   Element
}

// Selector wraps a raw selector.
func Selector(s string) Target { return Target{kind: TargetSelector, selector: s} }

// Handle wraps a resolved element.
func Handle(el Element) Target { return Target{kind: TargetHandle, handle: el} }

func (t Target) Kind() TargetKind        { return t.kind }
func (t Target) RawSelector() string     { return t.selector }
func (t Target) ResolvedHandle() Element { return t.handle }

// String renders the target for log lines.
func (t Target) String() string {
	switch t.kind {
	case TargetSelector:
		return t.selector
	case TargetHandle:
		if t.handle == nil {
			return "<nil handle>"
		}
		return fmt.Sprintf("<handle %s>", t.handle.Key())
	default:
		return "<invalid target>"
	}
}
