package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the configuration for one report retrieval run
type Config struct {
	// Portal targets the remote UI
	Portal PortalConfig `yaml:"portal" json:"portal"`

	// Browser session settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Settle pauses between UI transitions
	Pauses PauseConfig `yaml:"pauses" json:"pauses"`

	// Artifact capture settings
	Artifact ArtifactConfig `yaml:"artifact" json:"artifact"`

	// Metrics export
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Run reports
	Reports ReportConfig `yaml:"reports" json:"reports"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Path this config was loaded from, empty for defaults
	FilePath string `yaml:"-" json:"-"`
}

// PortalConfig describes where the portal lives and which report to request
type PortalConfig struct {
	LoginURL string `yaml:"login_url" json:"login_url"`

	// ReportDate in YYYY-MM-DD; empty means today
	ReportDate string `yaml:"report_date" json:"report_date"`

	// EnvFile is loaded before credentials are read; missing files are ignored
	EnvFile string `yaml:"env_file" json:"env_file"`
}

// BrowserConfig defines how the browser session is launched
type BrowserConfig struct {
	Headless    bool          `yaml:"headless" json:"headless"`
	DownloadDir string        `yaml:"download_dir" json:"download_dir"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`

	// DownloadTimeout bounds the wait for the export download to start
	DownloadTimeout time.Duration `yaml:"download_timeout" json:"download_timeout"`

	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`

	// Install downloads the Playwright driver and Chromium before launch
	Install bool `yaml:"install" json:"install"`
}

// PauseConfig holds the unconditional settle pauses. Zero disables a pause.
type PauseConfig struct {
	AfterToken     time.Duration `yaml:"after_token" json:"after_token"`
	AfterSubmit    time.Duration `yaml:"after_submit" json:"after_submit"`
	AfterLogin     time.Duration `yaml:"after_login" json:"after_login"`
	ReportPageLoad time.Duration `yaml:"report_page_load" json:"report_page_load"`
	ReportCompute  time.Duration `yaml:"report_compute" json:"report_compute"`
	Download       time.Duration `yaml:"download" json:"download"`
}

// ArtifactConfig defines how the downloaded file is identified and renamed
type ArtifactConfig struct {
	Prefix    string `yaml:"prefix" json:"prefix"`
	Extension string `yaml:"extension" json:"extension"`

	// IgnorePatterns are glob patterns of directory entries never treated as artifacts
	IgnorePatterns []string `yaml:"ignore_patterns" json:"ignore_patterns"`

	// DownloadEvents captures the file from the browser download event instead of
	// scanning the directory for the newest entry
	DownloadEvents bool `yaml:"download_events" json:"download_events"`
}

// MetricsConfig defines where run metrics are written
type MetricsConfig struct {
	// TextfilePath is a node_exporter textfile collector target; empty disables export
	TextfilePath string `yaml:"textfile_path" json:"textfile_path"`
}

// ReportConfig defines run report generation
type ReportConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls console output: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`
}

const (
	// DefaultLoginURL is the Magis5 admin login page
	DefaultLoginURL = "https://app.magis5.com.br/v2/admin/autenticacao/login.php"

	// ReportDateLayout is the layout accepted for PortalConfig.ReportDate
	ReportDateLayout = "2006-01-02"
)

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Portal.LoginURL == "" {
		return fmt.Errorf("portal login_url is required")
	}

	if c.Portal.ReportDate != "" {
		if _, err := time.Parse(ReportDateLayout, c.Portal.ReportDate); err != nil {
			return fmt.Errorf("invalid report_date %q (want YYYY-MM-DD): %w", c.Portal.ReportDate, err)
		}
	}

	if c.Browser.DownloadDir == "" {
		return fmt.Errorf("browser download_dir is required")
	}

	if c.Browser.Timeout <= 0 {
		return fmt.Errorf("browser timeout must be positive")
	}

	if c.Browser.DownloadTimeout <= 0 {
		return fmt.Errorf("browser download_timeout must be positive")
	}

	if c.Browser.Width < 0 || c.Browser.Height < 0 {
		return fmt.Errorf("browser viewport cannot be negative")
	}

	pauses := map[string]time.Duration{
		"after_token":      c.Pauses.AfterToken,
		"after_submit":     c.Pauses.AfterSubmit,
		"after_login":      c.Pauses.AfterLogin,
		"report_page_load": c.Pauses.ReportPageLoad,
		"report_compute":   c.Pauses.ReportCompute,
		"download":         c.Pauses.Download,
	}
	for name, d := range pauses {
		if d < 0 {
			return fmt.Errorf("pause %s cannot be negative", name)
		}
	}

	if c.Artifact.Prefix == "" {
		return fmt.Errorf("artifact prefix is required")
	}
	if c.Artifact.Extension == "" {
		return fmt.Errorf("artifact extension is required")
	}

	if c.Reports.Enabled && c.Reports.OutputDir == "" {
		return fmt.Errorf("reports output_dir is required when reports are enabled")
	}

	// Set default verbosity if not specified
	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}

	validLevels := map[string]bool{
		"quiet":   true,
		"normal":  true,
		"verbose": true,
		"debug":   true,
	}
	if !validLevels[c.Logging.Verbosity] {
		return fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	return nil
}

// ReportDay returns the configured report date, or today's date in loc when unset.
func (c *Config) ReportDay(now time.Time) (time.Time, error) {
	if c.Portal.ReportDate == "" {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), nil
	}
	return time.ParseInLocation(ReportDateLayout, c.Portal.ReportDate, now.Location())
}

// DefaultConfig returns the configuration matching the portal's observed timings
func DefaultConfig() *Config {
	return &Config{
		Portal: PortalConfig{
			LoginURL: DefaultLoginURL,
			EnvFile:  ".env",
		},
		Browser: BrowserConfig{
			Headless:        false,
			DownloadDir:     "data",
			Timeout:         10 * time.Second,
			DownloadTimeout: 60 * time.Second,
			Width:           1280,
			Height:          720,
		},
		Pauses: PauseConfig{
			AfterToken:     2 * time.Second,
			AfterSubmit:    5 * time.Second,
			AfterLogin:     5 * time.Second,
			ReportPageLoad: 5 * time.Second,
			ReportCompute:  3 * time.Second,
			Download:       5 * time.Second,
		},
		Artifact: ArtifactConfig{
			Prefix:         "orders",
			Extension:      "xls",
			IgnorePatterns: []string{"*.crdownload", "*.part", "*.tmp", ".*"},
			DownloadEvents: true,
		},
		Reports: ReportConfig{
			Enabled:   false,
			OutputDir: ".winona/runs",
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
	}
}

// Load reads a YAML configuration file on top of DefaultConfig.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.FilePath = path
	return cfg, nil
}

// Save writes the configuration as YAML, replacing path atomically.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	// Create temp file for atomic write
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp config file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
