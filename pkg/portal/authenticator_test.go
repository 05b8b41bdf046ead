package portal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/winona/pkg/browser"
	"github.com/entrhq/winona/pkg/credentials"
	"github.com/entrhq/winona/pkg/portal"
	"github.com/entrhq/winona/pkg/portal/portaltest"
)

const testLoginURL = "https://portal.test/login.php"

func newAuthenticator() *portal.Authenticator {
	return &portal.Authenticator{
		LoginURL: testLoginURL,
		Timeout:  time.Second,
	}
}

func validCreds() credentials.Credentials {
	return credentials.Credentials{Username: "u", Password: "p", BypassToken: "tok"}
}

func TestLogin_Success(t *testing.T) {
	ui := portaltest.New("u", "p", "tok", t.TempDir())

	err := newAuthenticator().Login(context.Background(), ui, validCreds())
	require.NoError(t, err)

	assert.True(t, ui.LoggedIn())
	assert.Equal(t, "u", ui.Value(portal.UsernameField))
	assert.Equal(t, "p", ui.Value(portal.PasswordField))
	assert.Equal(t, []string{"Navigate", "WaitFor", "SetValue", "SetValue", "Evaluate", "Click", "WaitFor"}, ui.Methods())

	calls := ui.Calls()
	assert.Equal(t, testLoginURL, calls[0].Value)
	assert.Equal(t, portal.LoginSubmit, calls[5].Anchor)
	assert.Equal(t, portal.LoggedInMarker, calls[6].Anchor)
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name       string
		creds      credentials.Credentials
		setup      func(ui *portaltest.FakeUI)
		wantErr    error
		notErr     error
		wantSubmit bool
	}{
		{
			name:       "wrong password leaves marker absent",
			creds:      credentials.Credentials{Username: "u", Password: "wrong", BypassToken: "tok"},
			wantErr:    portal.ErrLoginVerificationFailed,
			wantSubmit: true,
		},
		{
			name:       "rejected token",
			creds:      credentials.Credentials{Username: "u", Password: "p", BypassToken: "stale"},
			wantErr:    portal.ErrLoginVerificationFailed,
			wantSubmit: true,
		},
		{
			name:       "token field missing",
			creds:      validCreds(),
			setup:      func(ui *portaltest.FakeUI) { ui.Remove(portal.TokenField) },
			wantErr:    portal.ErrLoginVerificationFailed,
			wantSubmit: true,
		},
		{
			name:    "username field never appears",
			creds:   validCreds(),
			setup:   func(ui *portaltest.FakeUI) { ui.Remove(portal.UsernameField) },
			wantErr: browser.ErrElementNotFound,
			notErr:  portal.ErrLoginVerificationFailed,
		},
		{
			name:  "submit not interactable",
			creds: validCreds(),
			setup: func(ui *portaltest.FakeUI) {
				ui.FailOn(portal.LoginSubmit, &browser.ElementError{
					Kind:   browser.ErrElementNotInteractable,
					Anchor: portal.LoginSubmit,
					Action: "click",
				})
			},
			wantErr:    browser.ErrElementNotInteractable,
			notErr:     portal.ErrLoginVerificationFailed,
			wantSubmit: true,
		},
		{
			name:    "login page unreachable",
			creds:   validCreds(),
			setup:   func(ui *portaltest.FakeUI) { ui.NavigateErr = errors.New("net::ERR_NAME_NOT_RESOLVED") },
			wantErr: nil,
		},
		{
			name:       "driver panic is contained",
			creds:      validCreds(),
			setup:      func(ui *portaltest.FakeUI) { ui.PanicOn = "Click" },
			wantErr:    portal.ErrLoginVerificationFailed,
			wantSubmit: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ui := portaltest.New("u", "p", "tok", t.TempDir())
			if tt.setup != nil {
				tt.setup(ui)
			}

			var err error
			require.NotPanics(t, func() {
				err = newAuthenticator().Login(context.Background(), ui, tt.creds)
			})
			require.Error(t, err)
			assert.False(t, ui.LoggedIn())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.notErr != nil {
				assert.NotErrorIs(t, err, tt.notErr)
			}
			assert.Equal(t, tt.wantSubmit, submitted(ui))
		})
	}
}

func submitted(ui *portaltest.FakeUI) bool {
	for _, c := range ui.Calls() {
		if c.Method == "Click" && c.Anchor == portal.LoginSubmit {
			return true
		}
	}
	return false
}

func TestLogin_SolverSuppliesToken(t *testing.T) {
	ui := portaltest.New("u", "p", "minted", t.TempDir())
	auth := newAuthenticator()
	auth.Solver = credentials.StaticSolver{Token: "minted"}

	require.NoError(t, auth.Login(context.Background(), ui, validCreds()))
	assert.True(t, ui.LoggedIn())
}

func TestLogin_SolverError(t *testing.T) {
	ui := portaltest.New("u", "p", "tok", t.TempDir())
	auth := newAuthenticator()
	auth.Solver = credentials.SolverFunc(func(ctx context.Context) (string, error) {
		return "", errors.New("solver offline")
	})

	err := auth.Login(context.Background(), ui, validCreds())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "solver offline")
	assert.False(t, submitted(ui))
}

func TestLogin_DefaultSolverRejectsEmptyToken(t *testing.T) {
	ui := portaltest.New("u", "p", "tok", t.TempDir())
	auth := newAuthenticator()
	creds := validCreds()
	creds.BypassToken = ""

	err := auth.Login(context.Background(), ui, creds)
	assert.ErrorIs(t, err, credentials.ErrMissingCredentials)
	assert.False(t, submitted(ui))
}

func TestUsernameFieldOnlyNeedsPresence(t *testing.T) {
	assert.Equal(t, browser.StateAttached, portal.UsernameField.State)
}

func TestLogin_CancelledDuringSettle(t *testing.T) {
	ui := portaltest.New("u", "p", "tok", t.TempDir())
	auth := newAuthenticator()
	auth.Pauses.AfterToken = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := auth.Login(ctx, ui, validCreds())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, submitted(ui))
}

func TestNewAuthenticator_Defaults(t *testing.T) {
	auth := portal.NewAuthenticator("")
	assert.Equal(t, portal.DefaultLoginURL, auth.LoginURL)
	assert.Equal(t, browser.DefaultTimeout, auth.Timeout)
	assert.Equal(t, 2*time.Second, auth.Pauses.AfterToken)
	assert.Equal(t, 5*time.Second, auth.Pauses.AfterSubmit)
}
