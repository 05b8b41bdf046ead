// Package portal drives the Magis5 admin UI: logging in and exporting the
// per-product financial report.
package portal

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/winona/pkg/browser"
	"github.com/entrhq/winona/pkg/credentials"
	"github.com/entrhq/winona/pkg/logging"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("portal")
	if err != nil {
		debugLog.Warnf("Failed to initialize portal logger, using stderr fallback: %v", err)
	}
}

// Authenticator performs the username/password login with an injected
// challenge token. It never retries.
type Authenticator struct {
	LoginURL string
	Timeout  time.Duration
	Pauses   Pauses

	// Solver supplies the challenge bypass token. When nil a StaticSolver
	// over the token carried in the credentials is used.
	Solver credentials.ChallengeSolver
}

// NewAuthenticator creates an authenticator with default pauses and timeout.
func NewAuthenticator(loginURL string) *Authenticator {
	if loginURL == "" {
		loginURL = DefaultLoginURL
	}
	return &Authenticator{
		LoginURL: loginURL,
		Timeout:  browser.DefaultTimeout,
		Pauses:   DefaultPauses(),
	}
}

// Login signs in and reports whether the session is authenticated. A nil
// error means the logged-in marker was observed.
func (a *Authenticator) Login(ctx context.Context, ui UI, creds credentials.Credentials) (err error) {
	defer func() {
		// The browser driver must not take the run down with it.
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: login panicked: %v", ErrLoginVerificationFailed, r)
		}
		if err != nil {
			debugLog.Errorf("Login failed for %s: %v", creds.Username, err)
		}
	}()

	debugLog.Infof("Logging in as %s at %s", creds.Username, a.LoginURL)

	if err := ui.Navigate(a.LoginURL); err != nil {
		return fmt.Errorf("failed to open login page: %w", err)
	}

	if err := ui.WaitFor(UsernameField, a.Timeout); err != nil {
		return err
	}
	if err := ui.SetValue(UsernameField, creds.Username, a.Timeout); err != nil {
		return err
	}
	if err := ui.SetValue(PasswordField, creds.Password, a.Timeout); err != nil {
		return err
	}

	token, err := a.token(ctx, creds)
	if err != nil {
		return err
	}
	if err := a.injectToken(ui, token); err != nil {
		return err
	}

	if err := settle(ctx, a.Pauses.AfterToken, "after token injection"); err != nil {
		return err
	}

	if err := ui.Click(LoginSubmit, a.Timeout); err != nil {
		return err
	}

	if err := settle(ctx, a.Pauses.AfterSubmit, "after login submit"); err != nil {
		return err
	}

	if err := ui.WaitFor(LoggedInMarker, a.Timeout); err != nil {
		return fmt.Errorf("%w: %w", ErrLoginVerificationFailed, err)
	}

	debugLog.Infof("Login verified for %s", creds.Username)
	return nil
}

func (a *Authenticator) token(ctx context.Context, creds credentials.Credentials) (string, error) {
	solver := a.Solver
	if solver == nil {
		solver = credentials.StaticSolver{Token: creds.BypassToken}
	}
	token, err := solver.Solve(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to obtain challenge token: %w", err)
	}
	return token, nil
}

func (a *Authenticator) injectToken(ui UI, token string) error {
	result, err := ui.Evaluate(injectTokenScript, []interface{}{TokenFieldID, token})
	if err != nil {
		return fmt.Errorf("failed to inject challenge token: %w", err)
	}
	if ok, _ := result.(bool); !ok {
		// The field is missing; the server decides whether that matters.
		debugLog.Warnf("Challenge response field #%s not found, submitting without token", TokenFieldID)
	}
	return nil
}
