// Package script loads YAML interaction scripts and runs them through the
// healed action surface.
//
// A script looks like:
//
//	name: login
//	url: https://example.test/login
//	steps:
//	  - action: fill
//	    selector: "#user-name"
//	    args: ["standard_user"]
//	  - action: click
//	    selector: "#login-button"
//	    options: {retries: 3}
//	  - action: getText
//	    selector: ".title"
//	    expect: Products
package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/healer/api/schemas"
	"github.com/xkilldash9x/healer/internal/heal/actions"
)

// ErrExpectation is returned when a step's result does not match its expect value.
var ErrExpectation = errors.New("unexpected step result")

// Script is an ordered list of steps against one page.
type Script struct {
	Name  string `yaml:"name"`
	URL   string `yaml:"url"`
	Steps []Step `yaml:"steps"`
}

// Step is one operation.
type Step struct {
	Action   string   `yaml:"action"`
	Selector string   `yaml:"selector"`
	Args     []string `yaml:"args,omitempty"`
	// Target is the second selector of dragAndDrop and selectRandomOption.
	Target  string  `yaml:"target,omitempty"`
	Options Options `yaml:"options,omitempty"`
	Expect  *string `yaml:"expect,omitempty"`
}

// Options is the union of every operation's options; fields that do not apply
// to the step's action are ignored.
type Options struct {
	Timeout         time.Duration       `yaml:"timeout,omitempty"`
	ContextSelector string              `yaml:"context_selector,omitempty"`
	SuppressError   bool                `yaml:"suppress_error,omitempty"`
	Retries         int                 `yaml:"retries,omitempty"`
	Force           bool                `yaml:"force,omitempty"`
	Button          schemas.MouseButton `yaml:"button,omitempty"`
	TriggerEvents   *bool               `yaml:"trigger_events,omitempty"`
}

func (o Options) healing() schemas.HealingOptions {
	return schemas.HealingOptions{
		Timeout:         o.Timeout,
		ContextSelector: o.ContextSelector,
		SuppressError:   o.SuppressError,
	}
}

// forAction returns the options value Do expects for action.
func (o Options) forAction(action string) any {
	switch action {
	case actions.OpClick:
		return actions.ClickOptions{HealingOptions: o.healing(), Force: o.Force, Retries: o.Retries, Button: o.Button}
	case actions.OpSelectRandomOption:
		return schemas.RandomSelectOptions{HealingOptions: o.healing(), Retries: o.Retries, TriggerEvents: o.TriggerEvents}
	default:
		return o.healing()
	}
}

// Load decodes and validates a script. Unknown keys are rejected.
func Load(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile reads a script from disk.
func LoadFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return Load(bytes.NewReader(data))
}

// Validate checks every step names a known action and carries the arguments
// that action needs.
func (s *Script) Validate() error {
	if len(s.Steps) == 0 {
		return errors.New("script has no steps")
	}
	for i, step := range s.Steps {
		if !slices.Contains(actions.Operations, step.Action) {
			return fmt.Errorf("step %d: %w: %q", i+1, actions.ErrUnknownOperation, step.Action)
		}
		if step.Selector == "" {
			return fmt.Errorf("step %d: selector is required", i+1)
		}
		if (step.Action == actions.OpDragAndDrop || step.Action == actions.OpSelectRandomOption) && step.Target == "" {
			return fmt.Errorf("step %d: %s needs a target", i+1, step.Action)
		}
		switch step.Action {
		case actions.OpFill, actions.OpType, actions.OpPress, actions.OpFillIfVisible,
			actions.OpSelectOption, actions.OpGetAttribute:
			if len(step.Args) == 0 {
				return fmt.Errorf("step %d: %s needs an argument", i+1, step.Action)
			}
		}
	}
	return nil
}

// StepResult records one executed step.
type StepResult struct {
	Index    int
	Action   string
	Selector string
	Value    any
	Elapsed  time.Duration
}

// StepError wraps the failure of one step.
type StepError struct {
	Index  int
	Action string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %v", e.Index+1, e.Action, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Runner executes scripts.
type Runner struct {
	actions *actions.Actions
	logger  *zap.Logger
}

// NewRunner creates a Runner over a, logging under "script".
func NewRunner(a *actions.Actions, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{actions: a, logger: logger.Named("script")}
}

// Run executes the steps in order and stops at the first failure. The results
// of the steps that completed are always returned.
func (r *Runner) Run(ctx context.Context, s *Script) ([]StepResult, error) {
	results := make([]StepResult, 0, len(s.Steps))
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return results, &StepError{Index: i, Action: step.Action, Err: err}
		}
		start := time.Now()
		value, err := r.actions.Do(ctx, step.Action, schemas.Selector(step.Selector), step.args()...)
		if err == nil && step.Expect != nil {
			if got := render(value); got != *step.Expect {
				err = fmt.Errorf("%w: got %q, want %q", ErrExpectation, got, *step.Expect)
			}
		}
		if err != nil {
			r.logger.Error("Step failed.",
				zap.Int("step", i+1),
				zap.String("action", step.Action),
				zap.String("selector", step.Selector),
				zap.Error(err))
			return results, &StepError{Index: i, Action: step.Action, Err: err}
		}
		res := StepResult{Index: i, Action: step.Action, Selector: step.Selector, Value: value, Elapsed: time.Since(start)}
		results = append(results, res)
		r.logger.Debug("Step completed.",
			zap.Int("step", i+1),
			zap.String("action", step.Action),
			zap.Duration("elapsed", res.Elapsed))
	}
	r.logger.Info("Script completed.", zap.String("name", s.Name), zap.Int("steps", len(results)))
	return results, nil
}

func (s Step) args() []any {
	args := make([]any, 0, len(s.Args)+2)
	for _, a := range s.Args {
		args = append(args, a)
	}
	if s.Target != "" {
		args = append(args, schemas.Selector(s.Target))
	}
	return append(args, s.Options.forAction(s.Action))
}

func render(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case schemas.Element:
		return t.Key()
	default:
		return fmt.Sprint(t)
	}
}
