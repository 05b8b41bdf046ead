package browser

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Session is one browser process with its context and page. It belongs to a
// single workflow run and is closed when the run ends.
type Session struct {
	// Browser is the Playwright browser instance
	Browser playwright.Browser

	// Context is the browser context (isolated session)
	Context playwright.BrowserContext

	// Page is the only page the workflow drives
	Page playwright.Page

	// Headless indicates if the browser is running in headless mode
	Headless bool

	// DownloadDir is the absolute directory downloads are saved into
	DownloadDir string

	// Timeout bounds every wait that does not pass its own
	Timeout time.Duration

	CreatedAt time.Time

	closeOnce sync.Once
}

func (s *Session) bound(timeout time.Duration) *float64 {
	if timeout <= 0 {
		timeout = s.Timeout
	}
	ms := millis(timeout)
	return &ms
}

// Navigate navigates the session's page to url and waits for the load event.
func (s *Session) Navigate(url string) error {
	waitUntil := playwright.WaitUntilState("load")
	_, err := s.Page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: &waitUntil,
	})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// WaitFor blocks until anchor reaches its state or timeout elapses.
func (s *Session) WaitFor(anchor Anchor, timeout time.Duration) error {
	state := anchor.waitState()
	err := s.Page.Locator(anchor.Selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   &state,
		Timeout: s.bound(timeout),
	})
	if err != nil {
		return classify(err, anchor, "wait for", false)
	}
	return nil
}

// Click waits for anchor to be actionable and clicks it.
func (s *Session) Click(anchor Anchor, timeout time.Duration) error {
	locator := s.Page.Locator(anchor.Selector).First()
	if err := locator.Click(playwright.LocatorClickOptions{Timeout: s.bound(timeout)}); err != nil {
		return classify(err, anchor, "click", s.present(locator))
	}
	return nil
}

// SetValue clears anchor and types value into it.
func (s *Session) SetValue(anchor Anchor, value string, timeout time.Duration) error {
	locator := s.Page.Locator(anchor.Selector).First()
	state := anchor.waitState()
	if err := locator.WaitFor(playwright.LocatorWaitForOptions{State: &state, Timeout: s.bound(timeout)}); err != nil {
		return classify(err, anchor, "wait for", false)
	}
	if err := locator.Clear(playwright.LocatorClearOptions{Timeout: s.bound(timeout)}); err != nil {
		return classify(err, anchor, "clear", true)
	}
	if err := locator.Fill(value, playwright.LocatorFillOptions{Timeout: s.bound(timeout)}); err != nil {
		return classify(err, anchor, "fill", true)
	}
	return nil
}

// Evaluate runs a JavaScript expression or function in the page.
func (s *Session) Evaluate(script string, arg interface{}) (interface{}, error) {
	result, err := s.Page.Evaluate(script, arg)
	if err != nil {
		return nil, fmt.Errorf("JavaScript execution failed: %w", err)
	}
	return result, nil
}

// ExpectDownload runs trigger and waits for the download it starts, saving the
// file into dir under the server-suggested name. It returns the saved path.
func (s *Session) ExpectDownload(trigger func() error, dir string, timeout time.Duration) (string, error) {
	if dir == "" {
		dir = s.DownloadDir
	}

	download, err := s.Page.ExpectDownload(trigger, playwright.PageExpectDownloadOptions{
		Timeout: s.bound(timeout),
	})
	if err != nil {
		return "", fmt.Errorf("download did not start: %w", err)
	}

	if failure := download.Failure(); failure != nil {
		return "", fmt.Errorf("download failed: %w", failure)
	}

	name := filepath.Base(download.SuggestedFilename())
	if name == "." || name == string(filepath.Separator) {
		name = "download"
	}
	target := filepath.Join(dir, name)
	if err := download.SaveAs(target); err != nil {
		return "", fmt.Errorf("failed to save download: %w", err)
	}

	debugLog.Infof("Download saved: %s (from %s)", target, download.URL())
	return target, nil
}

// Close closes page, context and browser. It never fails the caller: errors are
// logged, and repeated calls are no-ops.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.Page != nil {
			if err := s.Page.Close(); err != nil {
				debugLog.Warnf("Failed to close page: %v", err)
			}
		}
		if s.Context != nil {
			if err := s.Context.Close(); err != nil {
				debugLog.Warnf("Failed to close browser context: %v", err)
			}
		}
		if s.Browser != nil {
			if err := s.Browser.Close(); err != nil {
				debugLog.Errorf("Failed to terminate browser: %v", err)
				return
			}
		}
		debugLog.Infof("Browser terminated after %s", time.Since(s.CreatedAt).Round(time.Millisecond))
	})
}

// present reports whether locator currently matches at least one element.
func (s *Session) present(locator playwright.Locator) bool {
	n, err := locator.Count()
	return err == nil && n > 0
}
