package browser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/winona/pkg/logging"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("browser")
	if err != nil {
		debugLog.Warnf("Failed to initialize browser logger, using stderr fallback: %v", err)
	}
}

// Launcher owns the Playwright driver and launches one browser per session.
type Launcher struct {
	mu          sync.Mutex
	playwright  *playwright.Playwright
	install     bool
	initialized bool
}

// NewLauncher creates a launcher. When install is true, Initialize downloads the
// Playwright driver and Chromium first.
func NewLauncher(install bool) *Launcher {
	return &Launcher{install: install}
}

// Initialize starts the Playwright driver.
// This must be called before opening any sessions.
func (l *Launcher) Initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return nil
	}

	// Keep driver chatter off the console reporter
	opts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}

	if l.install {
		if err := playwright.Install(opts); err != nil {
			return fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	l.playwright = pw
	l.initialized = true
	return nil
}

// Open launches a browser that saves downloads into opts.DownloadDir without prompting.
func (l *Launcher) Open(opts SessionOptions) (*Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized {
		return nil, fmt.Errorf("launcher not initialized")
	}

	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download directory is required")
	}
	downloadDir, err := filepath.Abs(opts.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("invalid download directory: %w", err)
	}
	if err := os.MkdirAll(downloadDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	// Set defaults
	if opts.Viewport == nil || opts.Viewport.Width <= 0 || opts.Viewport.Height <= 0 {
		opts.Viewport = &Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless:      &opts.Headless,
		Args:          launchArgs,
		DownloadsPath: &downloadDir,
	}
	browser, err := l.playwright.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	acceptDownloads := true
	contextOpts := playwright.BrowserNewContextOptions{
		AcceptDownloads: &acceptDownloads,
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
	}
	context, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.SetDefaultTimeout(millis(opts.Timeout))

	session := &Session{
		Browser:     browser,
		Context:     context,
		Page:        page,
		Headless:    opts.Headless,
		DownloadDir: downloadDir,
		Timeout:     opts.Timeout,
		CreatedAt:   time.Now(),
	}

	debugLog.Infof("Browser launched (headless=%v, downloads=%s, timeout=%s)", opts.Headless, downloadDir, opts.Timeout)
	return session, nil
}

// Shutdown stops the Playwright driver. Sessions must be closed first.
func (l *Launcher) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized && l.playwright != nil {
		if err := l.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		l.initialized = false
	}

	return nil
}
