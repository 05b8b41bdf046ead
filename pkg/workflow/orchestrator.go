// Package workflow runs one end-to-end retrieval of the Magis5 order report:
// credentials, browser launch, login, report request, export, capture and
// teardown. A run never retries; the first failing stage ends it.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/winona/pkg/artifact"
	"github.com/entrhq/winona/pkg/browser"
	"github.com/entrhq/winona/pkg/config"
	"github.com/entrhq/winona/pkg/credentials"
	"github.com/entrhq/winona/pkg/logging"
	"github.com/entrhq/winona/pkg/portal"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("workflow")
	if err != nil {
		debugLog.Warnf("Failed to initialize workflow logger, using stderr fallback: %v", err)
	}
}

// Stage names one step of a run.
type Stage string

const (
	StageCredentials Stage = "credentials"
	StageLaunch      Stage = "launch"
	StageLogin       Stage = "login"
	StageRequest     Stage = "request_report"
	StageExport      Stage = "export"
	StageCapture     Stage = "capture"
)

// stageTargets is the state a stage moves the run into on success.
var stageTargets = map[Stage]State{
	StageLogin:   StateAuthenticated,
	StageRequest: StateReportRequested,
	StageExport:  StateExportTriggered,
	StageCapture: StateArtifactCaptured,
}

// StageError is a failure caught at a stage boundary.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageResult is the outcome of one stage.
type StageResult struct {
	Stage    Stage         `json:"stage"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Result is the outcome of a run.
type Result struct {
	RunID        string        `json:"run_id"`
	Success      bool          `json:"success"`
	ReportDate   string        `json:"report_date"`
	ArtifactPath string        `json:"artifact_path,omitempty"`
	FinalState   State         `json:"final_state"`
	States       []State       `json:"states"`
	FailedStage  Stage         `json:"failed_stage,omitempty"`
	Error        string        `json:"error,omitempty"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Duration     time.Duration `json:"duration"`
	Stages       []StageResult `json:"stages"`

	// FailurePage is the page as it looked when a browser stage failed
	FailurePage *browser.PageSnapshot `json:"failure_page,omitempty"`

	// Err is the *StageError that ended the run, nil on success
	Err error `json:"-"`
}

// Session is a browser session the workflow can drive and tear down.
// *browser.Session implements it.
type Session interface {
	portal.UI
	Close()
}

// snapshotter is implemented by sessions that can record the page on failure.
type snapshotter interface {
	Snapshot(maxBytes int) (*browser.PageSnapshot, error)
}

// Opener starts a session.
type Opener func(opts browser.SessionOptions) (Session, error)

// LauncherOpener opens sessions from a started Launcher.
func LauncherOpener(l *browser.Launcher) Opener {
	return func(opts browser.SessionOptions) (Session, error) {
		s, err := l.Open(opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Orchestrator wires the components of a run together.
type Orchestrator struct {
	Credentials    credentials.Provider
	Open           Opener
	SessionOptions browser.SessionOptions

	Authenticator *portal.Authenticator
	Driver        *portal.ReportDriver
	Capturer      portal.Capturer
	ReportDate    time.Time

	Reporter *Reporter
	Metrics  *Metrics
	Reports  *RunReportWriter

	// MetricsPath is the textfile the metrics are written to after the run
	MetricsPath string

	Now func() time.Time
}

// New builds an orchestrator from cfg. The caller supplies the session opener
// so tests can substitute the browser.
func New(cfg *config.Config, open Opener, reporter *Reporter) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if open == nil {
		return nil, errors.New("session opener is required")
	}

	date, err := cfg.ReportDay(time.Now())
	if err != nil {
		return nil, fmt.Errorf("invalid report date: %w", err)
	}

	capturer, err := artifact.NewCapturer(cfg.Browser.DownloadDir, cfg.Artifact.IgnorePatterns)
	if err != nil {
		return nil, err
	}
	capturer.Prefix = cfg.Artifact.Prefix
	capturer.Extension = cfg.Artifact.Extension

	pauses := portal.Pauses{
		AfterToken:     cfg.Pauses.AfterToken,
		AfterSubmit:    cfg.Pauses.AfterSubmit,
		AfterLogin:     cfg.Pauses.AfterLogin,
		ReportPageLoad: cfg.Pauses.ReportPageLoad,
		ReportCompute:  cfg.Pauses.ReportCompute,
		Download:       cfg.Pauses.Download,
	}

	authenticator := portal.NewAuthenticator(cfg.Portal.LoginURL)
	authenticator.Timeout = cfg.Browser.Timeout
	authenticator.Pauses = pauses

	driver := portal.NewReportDriver(cfg.Browser.DownloadDir)
	driver.Timeout = cfg.Browser.Timeout
	driver.Pauses = pauses
	driver.DownloadEvents = cfg.Artifact.DownloadEvents
	driver.DownloadTimeout = cfg.Browser.DownloadTimeout

	if reporter == nil {
		reporter = NewReporter(ParseLevel(cfg.Logging.Verbosity), nil)
	}

	o := &Orchestrator{
		Credentials: credentials.NewEnvProvider(),
		Open:        open,
		SessionOptions: browser.SessionOptions{
			Headless:    cfg.Browser.Headless,
			DownloadDir: cfg.Browser.DownloadDir,
			Viewport:    &browser.Viewport{Width: cfg.Browser.Width, Height: cfg.Browser.Height},
			Timeout:     cfg.Browser.Timeout,
		},
		Authenticator: authenticator,
		Driver:        driver,
		Capturer:    capturer,
		ReportDate:  date,
		Reporter:    reporter,
		Metrics:     NewMetrics(),
		MetricsPath: cfg.Metrics.TextfilePath,
		Now:         time.Now,
	}

	if cfg.Reports.Enabled {
		o.Reports = NewRunReportWriter(cfg.Reports.OutputDir)
	}

	return o, nil
}

func (o *Orchestrator) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// Run performs one retrieval. It always returns a Result; failures are
// recorded in it rather than returned. When a browser was opened it is
// closed exactly once before Run returns.
func (o *Orchestrator) Run(ctx context.Context) *Result {
	if o.Reporter == nil {
		o.Reporter = NewReporter(LevelQuiet, nil)
	}

	result := &Result{
		RunID:      logging.GetRunID(),
		ReportDate: o.ReportDate.Format(config.ReportDateLayout),
		StartTime:  o.now(),
	}
	machine := NewMachine()

	o.Reporter.Header("Magis5 order report")
	o.Reporter.Infof("Run %s, report date %s", result.RunID, result.ReportDate)
	debugLog.Infof("Starting run %s for %s", result.RunID, result.ReportDate)

	o.Reporter.Section("Workflow")
	o.execute(ctx, machine, result)

	machine.Close()
	result.FinalState = machine.State()
	result.States = machine.History()
	result.EndTime = o.now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Success = result.Err == nil && result.ArtifactPath != ""

	if result.Success {
		debugLog.Infof("Run %s captured %s in %s", result.RunID, result.ArtifactPath, result.Duration)
	} else {
		debugLog.Errorf("Run %s failed at %s: %s", result.RunID, result.FailedStage, result.Error)
	}

	o.Metrics.ObserveRun(result)
	if err := o.Metrics.WriteTextfile(o.MetricsPath); err != nil {
		o.Reporter.Warningf("%v", err)
	}

	if o.Reports != nil {
		if err := o.Reports.WriteAll(result); err != nil {
			o.Reporter.Warningf("Failed to write run report: %v", err)
		} else {
			o.Reporter.Verbosef("Run report written to %s", o.Reports.Dir(result))
		}
	}

	o.Reporter.Summary(result)
	return result
}

func (o *Orchestrator) execute(ctx context.Context, machine *Machine, result *Result) {
	var creds credentials.Credentials
	if !o.runStage(machine, result, StageCredentials, "Loading credentials", func() error {
		var err error
		creds, err = o.Credentials.Credentials()
		return err
	}) {
		return
	}

	var session Session
	if !o.runStage(machine, result, StageLaunch, "Launching browser", func() error {
		var err error
		session, err = o.Open(o.SessionOptions)
		if err == nil && session == nil {
			err = errors.New("opener returned no session")
		}
		return err
	}) {
		return
	}
	defer o.teardown(session)
	defer o.snapshotOnFailure(session, result)

	if !o.runStage(machine, result, StageLogin, "Logging in", func() error {
		return o.Authenticator.Login(ctx, session, creds)
	}) {
		return
	}

	if !o.runStage(machine, result, StageRequest, "Requesting report", func() error {
		return o.Driver.RequestReport(ctx, session, o.ReportDate)
	}) {
		return
	}

	var downloaded string
	if !o.runStage(machine, result, StageExport, "Exporting to Excel", func() error {
		var err error
		downloaded, err = o.Driver.Export(ctx, session)
		return err
	}) {
		return
	}

	o.runStage(machine, result, StageCapture, "Capturing artifact", func() error {
		path, err := o.Driver.Capture(o.Capturer, downloaded)
		if err != nil {
			return err
		}
		result.ArtifactPath = path
		return nil
	})
}

// runStage executes fn as stage, records its outcome and advances the machine
// on success. It reports whether the run may continue.
func (o *Orchestrator) runStage(machine *Machine, result *Result, stage Stage, title string, fn func() error) bool {
	o.Reporter.Step(title)
	start := o.now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}()

	if err == nil {
		if target, ok := stageTargets[stage]; ok {
			err = machine.Advance(target)
		}
	}

	elapsed := o.now().Sub(start)
	record := StageResult{Stage: stage, Duration: elapsed}

	if err != nil {
		record.Error = err.Error()
		result.Stages = append(result.Stages, record)
		result.Err = &StageError{Stage: stage, Err: err}
		result.FailedStage = stage
		result.Error = err.Error()

		o.Metrics.ObserveStage(stage, "failed", elapsed)
		o.Metrics.IncStageFailure(stage, failureReason(err))
		o.Reporter.Errorf("%s failed: %v", stage, err)
		debugLog.Errorf("Stage %s failed after %s: %v", stage, elapsed, err)
		return false
	}

	result.Stages = append(result.Stages, record)
	o.Metrics.ObserveStage(stage, "success", elapsed)
	o.Reporter.Successf("%s (%s)", title, elapsed.Round(time.Millisecond))
	debugLog.Infof("Stage %s completed in %s, state %s", stage, elapsed, machine.State())
	return true
}

// snapshotOnFailure records the page a failed run ended on, before teardown.
func (o *Orchestrator) snapshotOnFailure(session Session, result *Result) {
	if result.Err == nil {
		return
	}
	snap, ok := session.(snapshotter)
	if !ok {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			debugLog.Warnf("Page snapshot panicked: %v", r)
		}
	}()

	page, err := snap.Snapshot(browser.DefaultSnapshotBytes)
	if err != nil {
		debugLog.Warnf("Failed to snapshot page after %s failure: %v", result.FailedStage, err)
		return
	}
	result.FailurePage = page
	o.Reporter.Verbosef("Failed on %s (%s)", page.URL, page.Title)
}

func (o *Orchestrator) teardown(session Session) {
	defer func() {
		if r := recover(); r != nil {
			debugLog.Errorf("Browser teardown panicked: %v", r)
		}
	}()
	session.Close()
	o.Reporter.Verbosef("Browser closed")
}

// failureReason maps an error onto a low-cardinality metric label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, credentials.ErrMissingCredentials):
		return "missing_credentials"
	case errors.Is(err, portal.ErrLoginVerificationFailed):
		return "login_verification"
	case errors.Is(err, browser.ErrElementNotFound):
		return "element_not_found"
	case errors.Is(err, browser.ErrElementNotInteractable):
		return "element_not_interactable"
	case browser.IsTimeout(err):
		return "timeout"
	case errors.Is(err, artifact.ErrNoArtifactProduced):
		return "no_artifact"
	case errors.Is(err, artifact.ErrRenameFailed):
		return "rename_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}
