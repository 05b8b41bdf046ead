package portal

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/winona/pkg/browser"
)

// Capturer gives a downloaded file its durable name.
// *artifact.Capturer implements it.
type Capturer interface {
	Capture(path string) (string, error)
	CaptureLatest() (string, error)
}

// ReportDriver walks the authenticated UI to the per-product financial report
// and exports it as a spreadsheet. Steps run strictly in order and the first
// failure aborts the rest.
type ReportDriver struct {
	Timeout time.Duration
	Pauses  Pauses

	// DownloadDir is where the export lands. Empty uses the session default.
	DownloadDir string

	// DownloadEvents saves the export from the browser download event. When
	// false the click is issued blind and capture falls back to a directory scan.
	DownloadEvents  bool
	DownloadTimeout time.Duration
}

// NewReportDriver creates a driver with default pauses and timeouts.
func NewReportDriver(downloadDir string) *ReportDriver {
	return &ReportDriver{
		Timeout:         browser.DefaultTimeout,
		Pauses:          DefaultPauses(),
		DownloadDir:     downloadDir,
		DownloadEvents:  true,
		DownloadTimeout: 60 * time.Second,
	}
}

// RequestReport opens the report page and submits it for date.
func (d *ReportDriver) RequestReport(ctx context.Context, ui UI, date time.Time) error {
	if err := settle(ctx, d.Pauses.AfterLogin, "after login"); err != nil {
		return err
	}

	if err := ui.Click(FinanceMenu, d.Timeout); err != nil {
		return err
	}
	if err := ui.Click(ReportSubmenu, d.Timeout); err != nil {
		return err
	}

	if err := settle(ctx, d.Pauses.ReportPageLoad, "report page load"); err != nil {
		return err
	}

	value := date.Format(ReportDateLayout)
	if err := ui.SetValue(DateField, value, d.Timeout); err != nil {
		return err
	}
	if err := ui.Click(ReportSubmit, d.Timeout); err != nil {
		return err
	}
	debugLog.Infof("Requested report for %s", value)

	return settle(ctx, d.Pauses.ReportCompute, "report computation")
}

// Export opens the export options and picks Excel. It returns the path of the
// saved download, or "" when download events are disabled.
func (d *ReportDriver) Export(ctx context.Context, ui UI) (string, error) {
	if err := ui.Click(ExportOptions, d.Timeout); err != nil {
		return "", err
	}

	var path string
	if d.DownloadEvents {
		var err error
		path, err = ui.ExpectDownload(func() error {
			return ui.Click(ExcelExportOption, d.Timeout)
		}, d.DownloadDir, d.DownloadTimeout)
		if err != nil {
			return "", fmt.Errorf("excel export failed: %w", err)
		}
		debugLog.Infof("Export downloaded to %s", path)
	} else if err := ui.Click(ExcelExportOption, d.Timeout); err != nil {
		return "", err
	}

	if err := settle(ctx, d.Pauses.Download, "download"); err != nil {
		return "", err
	}
	return path, nil
}

// Capture renames the exported file, scanning the download directory when its
// path is unknown.
func (d *ReportDriver) Capture(capturer Capturer, downloaded string) (string, error) {
	if downloaded != "" {
		return capturer.Capture(downloaded)
	}
	return capturer.CaptureLatest()
}

// GenerateReport requests, exports and captures the report for date. It must
// only be called on a UI that has completed Login.
func (d *ReportDriver) GenerateReport(ctx context.Context, ui UI, capturer Capturer, date time.Time) (string, error) {
	if err := d.RequestReport(ctx, ui, date); err != nil {
		return "", err
	}
	downloaded, err := d.Export(ctx, ui)
	if err != nil {
		return "", err
	}
	return d.Capture(capturer, downloaded)
}
