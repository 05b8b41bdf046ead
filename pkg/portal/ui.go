package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/winona/pkg/browser"
)

// UI is the set of browser primitives the portal steps drive.
// *browser.Session implements it.
type UI interface {
	Navigate(url string) error
	WaitFor(anchor browser.Anchor, timeout time.Duration) error
	Click(anchor browser.Anchor, timeout time.Duration) error
	SetValue(anchor browser.Anchor, value string, timeout time.Duration) error
	Evaluate(script string, arg interface{}) (interface{}, error)
	ExpectDownload(trigger func() error, dir string, timeout time.Duration) (string, error)
}

var _ UI = (*browser.Session)(nil)

// ErrLoginVerificationFailed means the post-login marker never appeared.
var ErrLoginVerificationFailed = errors.New("login verification failed")

// Pauses are unconditional settle delays between UI transitions.
// A zero value skips the pause.
type Pauses struct {
	AfterToken     time.Duration
	AfterSubmit    time.Duration
	AfterLogin     time.Duration
	ReportPageLoad time.Duration
	ReportCompute  time.Duration
	Download       time.Duration
}

// DefaultPauses returns the delays the portal has been observed to need.
func DefaultPauses() Pauses {
	return Pauses{
		AfterToken:     2 * time.Second,
		AfterSubmit:    5 * time.Second,
		AfterLogin:     5 * time.Second,
		ReportPageLoad: 5 * time.Second,
		ReportCompute:  3 * time.Second,
		Download:       5 * time.Second,
	}
}

// settle sleeps for d unless ctx ends first.
func settle(ctx context.Context, d time.Duration, what string) error {
	if d <= 0 {
		return ctx.Err()
	}

	debugLog.Debugf("Settling %s for %s", what, d)
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("interrupted while settling %s: %w", what, ctx.Err())
	}
}
