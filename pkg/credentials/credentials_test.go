package credentials

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestEnvProvider_Credentials(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		wantErr     bool
		wantMissing []string
	}{
		{
			name: "all present",
			env: map[string]string{
				EnvUsername:    "u",
				EnvPassword:    "p",
				EnvBypassToken: "tok",
			},
		},
		{
			name: "username unset",
			env: map[string]string{
				EnvPassword:    "p",
				EnvBypassToken: "tok",
			},
			wantErr:     true,
			wantMissing: []string{EnvUsername},
		},
		{
			name: "whitespace counts as missing",
			env: map[string]string{
				EnvUsername:    "u",
				EnvPassword:    "   ",
				EnvBypassToken: "tok",
			},
			wantErr:     true,
			wantMissing: []string{EnvPassword},
		},
		{
			name:        "nothing set",
			env:         map[string]string{},
			wantErr:     true,
			wantMissing: []string{EnvUsername, EnvPassword, EnvBypassToken},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &EnvProvider{Lookup: mapLookup(tt.env)}
			creds, err := p.Credentials()
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, Credentials{Username: "u", Password: "p", BypassToken: "tok"}, creds)
				return
			}
			require.ErrorIs(t, err, ErrMissingCredentials)
			for _, name := range tt.wantMissing {
				assert.Contains(t, err.Error(), name)
			}
			assert.Equal(t, Credentials{}, creds)
		})
	}
}

func TestCredentials_StringRedacts(t *testing.T) {
	c := Credentials{Username: "alice", Password: "hunter2", BypassToken: "03AGdBq2"}
	s := c.String()
	assert.Contains(t, s, "alice")
	assert.NotContains(t, s, "hunter2")
	assert.NotContains(t, s, "03AGdBq2")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("WINONA_TEST_DOTENV=from-file\nWINONA_TEST_DOTENV_KEEP=file\n"), 0600))

	t.Setenv("WINONA_TEST_DOTENV_KEEP", "process")
	// registers cleanup for the key loaded from the file
	t.Setenv("WINONA_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("WINONA_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("WINONA_TEST_DOTENV"))
	assert.Equal(t, "process", os.Getenv("WINONA_TEST_DOTENV_KEEP"), "existing variables must not be overridden")
}

func TestLoadDotEnv_MissingFileIgnored(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
	assert.NoError(t, LoadDotEnv(""))
}

func TestStaticSolver(t *testing.T) {
	tok, err := StaticSolver{Token: "tok"}.Solve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)

	_, err = StaticSolver{}.Solve(context.Background())
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestSolverFunc(t *testing.T) {
	var s ChallengeSolver = SolverFunc(func(ctx context.Context) (string, error) {
		return "solved-elsewhere", nil
	})
	tok, err := s.Solve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "solved-elsewhere", tok)
}
