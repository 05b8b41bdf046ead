package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entrhq/winona/pkg/artifact"
	"github.com/entrhq/winona/pkg/browser"
	"github.com/entrhq/winona/pkg/config"
	"github.com/entrhq/winona/pkg/credentials"
	"github.com/entrhq/winona/pkg/logging"
	"github.com/entrhq/winona/pkg/workflow"
)

// errRunFailed marks a run that completed with Success=false. Its details have
// already been printed by the reporter.
var errRunFailed = errors.New("run failed")

// exitCode maps a command error to a process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, credentials.ErrMissingCredentials):
		return 2
	default:
		return 1
	}
}

type runOptions struct {
	configFile  string
	headless    bool
	downloadDir string
	date        string
	verbosity   string
	install     bool
	metricsFile string
	reportDir   string
}

// NewRootCommand creates the root cobra command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "winona",
		Short: "Download the Magis5 per-product financial report",
		Long: `winona signs in to the Magis5 admin portal with the credentials in
MAGIS5_USERNAME, MAGIS5_PASSWORD and MAGIS5_RECAPTCHA_TOKEN (read from the
environment or a .env file), exports the per-product financial report to Excel
and stores it as orders_<YYYYMMDD_HHMMSS>.xls in the download directory.

Examples:
  winona run                          # Today's report into ./data
  winona run --date 2025-04-01        # A specific day
  winona run --config winona.yaml     # Settings from a file
  winona capture ./data               # Rename the newest file in ./data`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newRunCommand(), newCaptureCommand(), newConfigCommand(), newVersionCommand())
	return rootCmd
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Log in, export the report and capture the file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(cmd, opts)
			if err != nil {
				return err
			}

			if err := credentials.LoadDotEnv(cfg.Portal.EnvFile); err != nil {
				return err
			}

			launcher := browser.NewLauncher(cfg.Browser.Install)
			defer func() {
				if err := launcher.Shutdown(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to stop playwright: %v\n", err)
				}
			}()

			reporter := workflow.NewReporter(workflow.ParseLevel(cfg.Logging.Verbosity), cmd.OutOrStdout())
			orch, err := workflow.New(cfg, openWith(launcher), reporter)
			if err != nil {
				return err
			}

			if dir, err := logging.GetLogDirectory(); err == nil {
				reporter.Verbosef("Debug logs in %s", dir)
			}

			result := orch.Run(cmd.Context())
			if !result.Success {
				if result.Err != nil {
					return fmt.Errorf("%w: %w", errRunFailed, result.Err)
				}
				return errRunFailed
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.ArtifactPath)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "Path to configuration file (YAML)")
	flags.BoolVar(&opts.headless, "headless", false, "Run the browser without a window")
	flags.StringVarP(&opts.downloadDir, "download-dir", "d", "", "Directory the report is downloaded into")
	flags.StringVar(&opts.date, "date", "", "Report date as YYYY-MM-DD (default today)")
	flags.StringVarP(&opts.verbosity, "verbosity", "v", "", "Console verbosity: quiet, normal, verbose or debug")
	flags.BoolVar(&opts.install, "install", false, "Install the Playwright driver and Chromium before running")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "Write run metrics to this node_exporter textfile")
	flags.StringVar(&opts.reportDir, "report-dir", "", "Write run.json and summary.md under this directory")

	return cmd
}

// openWith starts the driver on first use so a run that fails before launch
// never spawns it.
func openWith(launcher *browser.Launcher) workflow.Opener {
	open := workflow.LauncherOpener(launcher)
	return func(opts browser.SessionOptions) (workflow.Session, error) {
		if err := launcher.Initialize(); err != nil {
			return nil, err
		}
		return open(opts)
	}
}

// loadRunConfig loads the config file and applies flags the user set.
func loadRunConfig(cmd *cobra.Command, opts *runOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("headless") {
		cfg.Browser.Headless = opts.headless
	}
	if flags.Changed("download-dir") {
		cfg.Browser.DownloadDir = opts.downloadDir
	}
	if flags.Changed("date") {
		cfg.Portal.ReportDate = opts.date
	}
	if flags.Changed("verbosity") {
		cfg.Logging.Verbosity = opts.verbosity
	}
	if flags.Changed("install") {
		cfg.Browser.Install = opts.install
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.TextfilePath = opts.metricsFile
	}
	if flags.Changed("report-dir") {
		cfg.Reports.Enabled = opts.reportDir != ""
		cfg.Reports.OutputDir = opts.reportDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newCaptureCommand() *cobra.Command {
	var (
		prefix string
		ext    string
		ignore []string
	)

	cmd := &cobra.Command{
		Use:   "capture [dir]",
		Short: "Rename the newest file in a directory to its timestamped name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := config.DefaultConfig().Browser.DownloadDir
			if len(args) == 1 {
				dir = args[0]
			}

			capturer, err := artifact.NewCapturer(dir, ignore)
			if err != nil {
				return err
			}
			capturer.Prefix = prefix
			capturer.Extension = ext

			path, err := capturer.CaptureLatest()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	defaults := config.DefaultConfig().Artifact
	cmd.Flags().StringVar(&prefix, "prefix", defaults.Prefix, "Name prefix")
	cmd.Flags().StringVar(&ext, "ext", defaults.Extension, "File extension")
	cmd.Flags().StringSliceVar(&ignore, "ignore", defaults.IgnorePatterns, "Glob patterns of entries to skip")
	return cmd
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "winona.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.DefaultConfig().Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	})

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "winona v%s\n", version)
		},
	}
}
