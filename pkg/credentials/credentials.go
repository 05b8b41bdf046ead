// Package credentials supplies the portal login and the pre-solved bot challenge token.
//
// Credentials are read once per run from the environment (optionally seeded
// from a .env file) and are never persisted. The challenge token is exposed
// through the ChallengeSolver interface so the way it is acquired can change
// without touching the login sequence.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names read by EnvProvider.
const (
	EnvUsername    = "MAGIS5_USERNAME"
	EnvPassword    = "MAGIS5_PASSWORD"
	EnvBypassToken = "MAGIS5_RECAPTCHA_TOKEN"
)

// ErrMissingCredentials is returned when any credential is absent. It is a fatal
// precondition: no browser action may happen after it.
var ErrMissingCredentials = errors.New("missing credentials")

// Credentials holds one run's login material.
type Credentials struct {
	Username    string
	Password    string
	BypassToken string
}

// String redacts secrets so credentials can be logged safely.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %q, Password: %s, BypassToken: %s}",
		c.Username, redact(c.Password), redact(c.BypassToken))
}

func redact(s string) string {
	if s == "" {
		return "<empty>"
	}
	return "<redacted>"
}

// Provider supplies credentials for a run.
type Provider interface {
	Credentials() (Credentials, error)
}

// EnvProvider reads credentials from environment variables.
type EnvProvider struct {
	// Lookup defaults to os.LookupEnv
	Lookup func(key string) (string, bool)
}

// NewEnvProvider creates a provider backed by the process environment.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{Lookup: os.LookupEnv}
}

// Credentials returns the credentials or ErrMissingCredentials naming every
// absent variable.
func (p *EnvProvider) Credentials() (Credentials, error) {
	lookup := p.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	creds := Credentials{
		Username:    get(EnvUsername),
		Password:    get(EnvPassword),
		BypassToken: get(EnvBypassToken),
	}

	var missing []string
	if creds.Username == "" {
		missing = append(missing, EnvUsername)
	}
	if creds.Password == "" {
		missing = append(missing, EnvPassword)
	}
	if creds.BypassToken == "" {
		missing = append(missing, EnvBypassToken)
	}
	if len(missing) > 0 {
		return Credentials{}, fmt.Errorf("%w: %s not set", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	return creds, nil
}

// LoadDotEnv loads variables from path into the process environment without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ChallengeSolver yields a token proving the bot challenge was solved out-of-band.
// The login flow injects whatever it returns without validating it.
type ChallengeSolver interface {
	Solve(ctx context.Context) (string, error)
}

// StaticSolver returns a pre-minted token, typically from MAGIS5_RECAPTCHA_TOKEN.
type StaticSolver struct {
	Token string
}

// Solve returns the static token.
func (s StaticSolver) Solve(ctx context.Context) (string, error) {
	if s.Token == "" {
		return "", fmt.Errorf("%w: empty bypass token", ErrMissingCredentials)
	}
	return s.Token, nil
}

// SolverFunc adapts a function to ChallengeSolver.
type SolverFunc func(ctx context.Context) (string, error)

// Solve calls f.
func (f SolverFunc) Solve(ctx context.Context) (string, error) {
	return f(ctx)
}
