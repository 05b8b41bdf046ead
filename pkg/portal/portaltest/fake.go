// Package portaltest provides a scripted stand-in for the Magis5 UI.
package portaltest

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/entrhq/winona/pkg/browser"
	"github.com/entrhq/winona/pkg/portal"
)

// Call records one primitive invoked on the fake.
type Call struct {
	Method string
	Anchor browser.Anchor
	Value  string
}

// FakeUI behaves like the portal for a single account. Login succeeds only when
// the submitted username, password and token match the accepted ones. Picking
// the Excel export writes DownloadName into the download directory, through
// ExpectDownload when one is pending and straight into DownloadDir otherwise.
type FakeUI struct {
	AcceptUsername string
	AcceptPassword string
	AcceptToken    string

	// DownloadDir receives the export when no directory is passed to ExpectDownload
	DownloadDir     string
	DownloadName    string
	DownloadContent []byte

	// NavigateErr is returned by Navigate
	NavigateErr error

	// PanicOn makes the named method panic
	PanicOn string

	mu         sync.Mutex
	calls      []Call
	fields     map[string]string
	token      string
	loggedIn   bool
	missing    map[string]bool
	failures   map[string]error
	downloads  int
	expecting  bool
	closeCount int
	url        string
}

// New returns a fake accepting username, password and token that exports
// report.xls into downloadDir.
func New(username, password, token, downloadDir string) *FakeUI {
	return &FakeUI{
		AcceptUsername:  username,
		AcceptPassword:  password,
		AcceptToken:     token,
		DownloadDir:     downloadDir,
		DownloadName:    "report.xls",
		DownloadContent: []byte("Produto\tQuantidade\tTotal\nWidget\t3\t29.97\n"),
		fields:          make(map[string]string),
		missing:         make(map[string]bool),
		failures:        make(map[string]error),
	}
}

// Remove makes anchor absent from every page.
func (f *FakeUI) Remove(anchor browser.Anchor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.missing[anchor.Selector] = true
}

// FailOn makes every action on anchor return err.
func (f *FakeUI) FailOn(anchor browser.Anchor, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[anchor.Selector] = err
}

func (f *FakeUI) record(method string, anchor browser.Anchor, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Method: method, Anchor: anchor, Value: value})
	if f.PanicOn == method {
		panic(fmt.Sprintf("portaltest: %s exploded", method))
	}
}

func (f *FakeUI) check(anchor browser.Anchor, action string, kind error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failures[anchor.Selector]; ok {
		return err
	}
	absent := f.missing[anchor.Selector]
	if anchor.Selector == portal.LoggedInMarker.Selector && !f.loggedIn {
		absent = true
	}
	if absent {
		return &browser.ElementError{Kind: kind, Anchor: anchor, Action: action}
	}
	return nil
}

// Navigate implements portal.UI.
func (f *FakeUI) Navigate(url string) error {
	f.record("Navigate", browser.Anchor{}, url)
	if f.NavigateErr != nil {
		return f.NavigateErr
	}
	f.mu.Lock()
	f.url = url
	f.mu.Unlock()
	return nil
}

// WaitFor implements portal.UI.
func (f *FakeUI) WaitFor(anchor browser.Anchor, timeout time.Duration) error {
	f.record("WaitFor", anchor, "")
	return f.check(anchor, "wait for", browser.ErrElementNotFound)
}

// Click implements portal.UI.
func (f *FakeUI) Click(anchor browser.Anchor, timeout time.Duration) error {
	f.record("Click", anchor, "")
	if err := f.check(anchor, "click", browser.ErrElementNotFound); err != nil {
		return err
	}

	switch anchor.Selector {
	case portal.LoginSubmit.Selector:
		f.mu.Lock()
		f.loggedIn = f.fields[portal.UsernameField.Selector] == f.AcceptUsername &&
			f.fields[portal.PasswordField.Selector] == f.AcceptPassword &&
			f.token == f.AcceptToken
		f.mu.Unlock()
	case portal.ExcelExportOption.Selector:
		f.mu.Lock()
		f.downloads++
		blind := !f.expecting
		f.mu.Unlock()
		if blind {
			if _, err := f.writeDownload(f.DownloadDir); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetValue implements portal.UI.
func (f *FakeUI) SetValue(anchor browser.Anchor, value string, timeout time.Duration) error {
	f.record("SetValue", anchor, value)
	if err := f.check(anchor, "fill", browser.ErrElementNotFound); err != nil {
		return err
	}
	f.mu.Lock()
	f.fields[anchor.Selector] = value
	f.mu.Unlock()
	return nil
}

// Evaluate implements portal.UI. It understands the token injection call.
func (f *FakeUI) Evaluate(script string, arg interface{}) (interface{}, error) {
	f.record("Evaluate", browser.Anchor{}, fmt.Sprint(arg))

	args, ok := arg.([]interface{})
	if !ok || len(args) != 2 {
		return nil, nil
	}
	id, _ := args[0].(string)
	if id != portal.TokenFieldID {
		return false, nil
	}
	token, _ := args[1].(string)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[portal.TokenField.Selector] {
		return false, nil
	}
	f.token = token
	return true, nil
}

// ExpectDownload implements portal.UI. The trigger must pick the Excel export.
func (f *FakeUI) ExpectDownload(trigger func() error, dir string, timeout time.Duration) (string, error) {
	f.record("ExpectDownload", browser.Anchor{}, dir)

	f.mu.Lock()
	before := f.downloads
	f.expecting = true
	f.mu.Unlock()

	err := trigger()

	f.mu.Lock()
	f.expecting = false
	started := f.downloads > before
	f.mu.Unlock()

	if err != nil {
		return "", err
	}
	if !started {
		return "", fmt.Errorf("portaltest: no download started within %s", timeout)
	}

	if dir == "" {
		dir = f.DownloadDir
	}
	return f.writeDownload(dir)
}

// Snapshot returns a minimal page describing the fake's login state.
func (f *FakeUI) Snapshot(maxBytes int) (*browser.PageSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body := "<p>signed out</p>"
	if f.loggedIn {
		body = "<p>signed in</p>"
	}
	return &browser.PageSnapshot{
		URL:     f.url,
		Title:   "portaltest",
		HTML:    "<html><body>" + body + "</body></html>",
		TakenAt: time.Now(),
	}, nil
}

// Close records teardown.
func (f *FakeUI) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCount++
}

func (f *FakeUI) writeDownload(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", err
	}
	path := filepath.Join(dir, f.DownloadName)
	if err := os.WriteFile(path, f.DownloadContent, 0600); err != nil {
		return "", err
	}
	return path, nil
}

// Calls returns every call made so far.
func (f *FakeUI) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Methods returns the method names of every call in order.
func (f *FakeUI) Methods() []string {
	var out []string
	for _, c := range f.Calls() {
		out = append(out, c.Method)
	}
	return out
}

// LoggedIn reports whether the last login submit was accepted.
func (f *FakeUI) LoggedIn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loggedIn
}

// Value returns the last value set on anchor.
func (f *FakeUI) Value(anchor browser.Anchor) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields[anchor.Selector]
}

// CloseCount returns how many times Close ran.
func (f *FakeUI) CloseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCount
}
