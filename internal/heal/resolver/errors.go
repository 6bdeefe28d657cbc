package resolver

import (
	"errors"
	"fmt"
)

// ErrHealingExhausted matches every HealingExhaustedError via errors.Is.
var ErrHealingExhausted = errors.New("healing exhausted")

// HealingExhaustedError reports that no strategy produced a usable element.
type HealingExhaustedError struct {
	Selector string
	// Cause is the failure of the last strategy that ran.
	Cause error
}

func (e *HealingExhaustedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("all healing strategies failed for %q", e.Selector)
	}
	return fmt.Sprintf("all healing strategies failed for %q: %v", e.Selector, e.Cause)
}

func (e *HealingExhaustedError) Unwrap() error { return e.Cause }

func (e *HealingExhaustedError) Is(target error) bool { return target == ErrHealingExhausted }
