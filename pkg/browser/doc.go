// Package browser owns the browser process lifecycle for one report run.
//
// A Launcher starts the Playwright driver once per process and opens a
// Session per workflow run. A Session wraps one Chromium instance configured
// to save downloads into a fixed directory without prompting, and exposes the
// small set of UI primitives the portal workflow needs:
//
//   - Navigate: load a URL
//   - WaitFor: block until an Anchor is present or visible
//   - Click, SetValue: act on an Anchor once it is actionable
//   - Evaluate: run JavaScript in the page
//   - ExpectDownload: run a trigger and save the download it starts
//
// Every wait is bounded. A wait that expires surfaces as ErrElementNotFound
// or ErrElementNotInteractable wrapped in an ElementError naming the anchor.
//
// Session.Close must run on every exit path of a run. It never returns an
// error; failures to terminate the browser are logged.
//
// # Example Usage
//
//	launcher := browser.NewLauncher(false)
//	if err := launcher.Initialize(); err != nil {
//	    return err
//	}
//	defer launcher.Shutdown()
//
//	session, err := launcher.Open(browser.SessionOptions{
//	    DownloadDir: "data",
//	    Timeout:     10 * time.Second,
//	})
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
package browser
