package portal_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/winona/pkg/artifact"
	"github.com/entrhq/winona/pkg/browser"
	"github.com/entrhq/winona/pkg/portal"
	"github.com/entrhq/winona/pkg/portal/portaltest"
)

var reportDate = time.Date(2025, 4, 8, 0, 0, 0, 0, time.UTC)

func newDriver(dir string) *portal.ReportDriver {
	return &portal.ReportDriver{
		Timeout:         time.Second,
		DownloadDir:     dir,
		DownloadEvents:  true,
		DownloadTimeout: time.Second,
	}
}

func clicked(ui *portaltest.FakeUI) []browser.Anchor {
	var out []browser.Anchor
	for _, c := range ui.Calls() {
		if c.Method == "Click" {
			out = append(out, c.Anchor)
		}
	}
	return out
}

func TestRequestReport(t *testing.T) {
	ui := portaltest.New("u", "p", "tok", t.TempDir())

	require.NoError(t, newDriver(ui.DownloadDir).RequestReport(context.Background(), ui, reportDate))

	assert.Equal(t, "08/04/2025", ui.Value(portal.DateField))
	assert.Equal(t, []browser.Anchor{portal.FinanceMenu, portal.ReportSubmenu, portal.ReportSubmit}, clicked(ui))
}

func TestRequestReport_AbortsOnFirstFailure(t *testing.T) {
	ui := portaltest.New("u", "p", "tok", t.TempDir())
	ui.FailOn(portal.ReportSubmenu, &browser.ElementError{
		Kind:   browser.ErrElementNotInteractable,
		Anchor: portal.ReportSubmenu,
		Action: "click",
	})

	err := newDriver(ui.DownloadDir).RequestReport(context.Background(), ui, reportDate)
	require.ErrorIs(t, err, browser.ErrElementNotInteractable)

	assert.Empty(t, ui.Value(portal.DateField))
	assert.Equal(t, []browser.Anchor{portal.FinanceMenu, portal.ReportSubmenu}, clicked(ui))
}

func TestRequestReport_MissingDateField(t *testing.T) {
	ui := portaltest.New("u", "p", "tok", t.TempDir())
	ui.Remove(portal.DateField)

	err := newDriver(ui.DownloadDir).RequestReport(context.Background(), ui, reportDate)
	assert.ErrorIs(t, err, browser.ErrElementNotFound)
	assert.NotContains(t, clicked(ui), portal.ReportSubmit)
}

func TestExport_DownloadEvent(t *testing.T) {
	dir := t.TempDir()
	ui := portaltest.New("u", "p", "tok", dir)

	path, err := newDriver(dir).Export(context.Background(), ui)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "report.xls"), path)
	assert.FileExists(t, path)
	assert.Equal(t, []browser.Anchor{portal.ExportOptions, portal.ExcelExportOption}, clicked(ui))
}

func TestExport_WithoutDownloadEvents(t *testing.T) {
	dir := t.TempDir()
	ui := portaltest.New("u", "p", "tok", dir)
	driver := newDriver(dir)
	driver.DownloadEvents = false

	path, err := driver.Export(context.Background(), ui)
	require.NoError(t, err)

	assert.Empty(t, path)
	assert.FileExists(t, filepath.Join(dir, "report.xls"))
	assert.NotContains(t, ui.Methods(), "ExpectDownload")
}

func TestExport_MissingExportControl(t *testing.T) {
	dir := t.TempDir()
	ui := portaltest.New("u", "p", "tok", dir)
	ui.Remove(portal.ExcelExportOption)

	_, err := newDriver(dir).Export(context.Background(), ui)
	require.ErrorIs(t, err, browser.ErrElementNotFound)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerateReport(t *testing.T) {
	for _, events := range []bool{true, false} {
		name := "download event"
		if !events {
			name = "directory scan"
		}
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			ui := portaltest.New("u", "p", "tok", dir)
			driver := newDriver(dir)
			driver.DownloadEvents = events

			capturer, err := artifact.NewCapturer(dir, nil)
			require.NoError(t, err)

			path, err := driver.GenerateReport(context.Background(), ui, capturer, reportDate)
			require.NoError(t, err)

			assert.Regexp(t, artifact.CanonicalPattern, filepath.Base(path))
			assert.NoFileExists(t, filepath.Join(dir, "report.xls"))

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, filepath.Base(path), entries[0].Name())
		})
	}
}

func TestGenerateReport_CancelledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	ui := portaltest.New("u", "p", "tok", dir)
	driver := newDriver(dir)
	driver.Pauses.AfterLogin = time.Hour

	capturer, err := artifact.NewCapturer(dir, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = driver.GenerateReport(ctx, ui, capturer, reportDate)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ui.Calls())
}
