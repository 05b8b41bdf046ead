package browser

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// AnchorState is the condition an anchor must reach before it is acted on.
type AnchorState string

const (
	// StateAttached means the element is present in the DOM
	StateAttached AnchorState = "attached"

	// StateVisible means the element is present and rendered
	StateVisible AnchorState = "visible"

	// StateClickable means the element is visible, enabled and stable
	StateClickable AnchorState = "clickable"
)

// Anchor identifies one interactive element on a page of the remote workflow.
// It is a lookup key only: every use resolves Selector against the live DOM.
type Anchor struct {
	// Name is a human label used in logs and errors
	Name string

	// Selector is any Playwright selector; XPath selectors start with "//"
	Selector string

	// State to wait for before acting
	State AnchorState
}

func (a Anchor) String() string {
	return fmt.Sprintf("%s (%s)", a.Name, a.Selector)
}

// waitState maps an anchor state onto the Playwright selector state.
func (a Anchor) waitState() playwright.WaitForSelectorState {
	switch a.State {
	case StateAttached:
		return playwright.WaitForSelectorState("attached")
	default:
		return playwright.WaitForSelectorState("visible")
	}
}

// SessionOptions configures a new browser session.
type SessionOptions struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// DownloadDir is where the browser materialises downloads
	DownloadDir string

	// Viewport sets the initial viewport size
	Viewport *Viewport

	// Timeout is the default bound for every wait
	Timeout time.Duration
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// Default values for sessions
const (
	DefaultTimeout        = 10 * time.Second
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
)

// launchArgs keeps notification prompts from blocking the flow.
var launchArgs = []string{
	"--disable-notifications",
	"--start-maximized",
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
