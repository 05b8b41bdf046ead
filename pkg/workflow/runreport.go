package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunReportWriter writes a per-run record of what happened.
type RunReportWriter struct {
	outputDir string
}

// NewRunReportWriter creates a writer rooted at outputDir. Each run gets its
// own subdirectory named after the run id.
func NewRunReportWriter(outputDir string) *RunReportWriter {
	return &RunReportWriter{outputDir: outputDir}
}

// Dir returns the directory the report for result is written to.
func (w *RunReportWriter) Dir(result *Result) string {
	return filepath.Join(w.outputDir, result.RunID)
}

// WriteAll writes run.json and summary.md, plus failure.html when the run
// recorded the page it failed on.
func (w *RunReportWriter) WriteAll(result *Result) error {
	if err := os.MkdirAll(w.Dir(result), 0750); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	if err := w.WriteJSON(result); err != nil {
		return err
	}

	if err := w.WriteSummaryMarkdown(result); err != nil {
		return err
	}

	if result.FailurePage != nil && result.FailurePage.HTML != "" {
		path := filepath.Join(w.Dir(result), "failure.html")
		if err := os.WriteFile(path, []byte(result.FailurePage.HTML), 0600); err != nil {
			return fmt.Errorf("failed to write failure page: %w", err)
		}
	}

	return nil
}

// WriteJSON writes the full result as JSON
func (w *RunReportWriter) WriteJSON(result *Result) error {
	path := filepath.Join(w.Dir(result), "run.json")

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run result: %w", err)
	}

	if writeErr := os.WriteFile(path, data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write run JSON: %w", writeErr)
	}

	return nil
}

// WriteSummaryMarkdown writes a human-readable markdown summary
func (w *RunReportWriter) WriteSummaryMarkdown(result *Result) error {
	path := filepath.Join(w.Dir(result), "summary.md")

	var md strings.Builder

	status := "success"
	if !result.Success {
		status = "failed"
	}

	md.WriteString("# Order Report Run\n\n")
	md.WriteString(fmt.Sprintf("**Run:** %s\n\n", result.RunID))
	md.WriteString(fmt.Sprintf("**Status:** %s\n\n", status))
	md.WriteString(fmt.Sprintf("**Report date:** %s\n\n", result.ReportDate))
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", result.StartTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Completed:** %s\n\n", result.EndTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", result.Duration))
	md.WriteString(fmt.Sprintf("**Final state:** %s\n\n", result.FinalState))

	if result.ArtifactPath != "" {
		md.WriteString("## Artifact\n\n")
		md.WriteString(fmt.Sprintf("`%s`\n\n", result.ArtifactPath))
	}

	if len(result.Stages) > 0 {
		md.WriteString("## Stages\n\n")
		md.WriteString("| Stage | Duration | Outcome |\n")
		md.WriteString("|---|---|---|\n")
		for _, s := range result.Stages {
			outcome := "ok"
			if s.Error != "" {
				outcome = s.Error
			}
			md.WriteString(fmt.Sprintf("| %s | %s | %s |\n", s.Stage, s.Duration.Round(time.Millisecond), outcome))
		}
		md.WriteString("\n")
	}

	if result.Error != "" {
		md.WriteString("## Error\n\n")
		md.WriteString(fmt.Sprintf("Failed at `%s`:\n\n```\n%s\n```\n", result.FailedStage, result.Error))
		if page := result.FailurePage; page != nil {
			md.WriteString(fmt.Sprintf("\nLast page: %s (%s), saved as `failure.html`\n", page.URL, page.Title))
		}
	}

	if err := os.WriteFile(path, []byte(md.String()), 0600); err != nil {
		return fmt.Errorf("failed to write summary markdown: %w", err)
	}

	return nil
}
