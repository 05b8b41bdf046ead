package browser

import (
	"errors"
	"fmt"

	"github.com/playwright-community/playwright-go"
)

var (
	// ErrElementNotFound means an anchor did not become present within its timeout
	ErrElementNotFound = errors.New("element not found")

	// ErrElementNotInteractable means an anchor was present but could not be
	// clicked or filled within its timeout
	ErrElementNotInteractable = errors.New("element not interactable")
)

// ElementError reports which anchor failed and why.
type ElementError struct {
	Kind   error
	Anchor Anchor
	Action string
	Err    error
}

func (e *ElementError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s %s", e.Kind, e.Action, e.Anchor)
	}
	return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.Action, e.Anchor, e.Err)
}

// Unwrap exposes both the sentinel kind and the underlying driver error.
func (e *ElementError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsTimeout reports whether err is a Playwright timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, playwright.ErrTimeout)
}

// classify converts a driver error for anchor into an ElementError. present tells
// whether the element was found in the DOM when the action failed.
func classify(err error, anchor Anchor, action string, present bool) error {
	if err == nil {
		return nil
	}
	kind := ErrElementNotFound
	if present {
		kind = ErrElementNotInteractable
	}
	return &ElementError{Kind: kind, Anchor: anchor, Action: action, Err: err}
}
