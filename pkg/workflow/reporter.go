package workflow

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Level is the console verbosity.
type Level int

const (
	// LevelQuiet shows only errors, warnings and the final summary
	LevelQuiet Level = iota
	// LevelNormal shows stage progress (default)
	LevelNormal
	// LevelVerbose adds per-step detail
	LevelVerbose
	// LevelDebug shows everything
	LevelDebug
)

// ParseLevel converts a verbosity name to a Level. Unknown names are normal.
func ParseLevel(level string) Level {
	switch level {
	case "quiet":
		return LevelQuiet
	case "verbose":
		return LevelVerbose
	case "debug":
		return LevelDebug
	default:
		return LevelNormal
	}
}

var (
	salmonPink = lipgloss.Color("#FFB3BA")
	mintGreen  = lipgloss.Color("#A8E6CF")
	amber      = lipgloss.Color("#FFD580")
	mutedGray  = lipgloss.Color("#6B7280")
	brightRed  = lipgloss.Color("#FF6B6B")

	headerStyle  = lipgloss.NewStyle().Bold(true)
	sectionStyle = lipgloss.NewStyle().Foreground(salmonPink)
	successStyle = lipgloss.NewStyle().Foreground(mintGreen).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(salmonPink)
	warnStyle    = lipgloss.NewStyle().Foreground(amber)
	errorStyle   = lipgloss.NewStyle().Foreground(brightRed).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedGray)
)

// Reporter prints run progress for a human watching the terminal.
type Reporter struct {
	level  Level
	writer io.Writer

	stepCount int
}

// NewReporter creates a reporter writing to w, or stdout when w is nil.
func NewReporter(level Level, w io.Writer) *Reporter {
	if w == nil {
		w = os.Stdout
	}
	return &Reporter{level: level, writer: w}
}

// Header prints a prominent header message
func (r *Reporter) Header(message string) {
	if r.level >= LevelNormal {
		rule := strings.Repeat("=", 70)
		fmt.Fprintf(r.writer, "\n%s\n%s\n%s\n", headerStyle.Render(rule), headerStyle.Render("  "+message), headerStyle.Render(rule))
	}
}

// Section prints a section divider
func (r *Reporter) Section(title string) {
	if r.level >= LevelNormal {
		fmt.Fprintln(r.writer)
		fmt.Fprintln(r.writer, sectionStyle.Render("▶ "+title))
		fmt.Fprintln(r.writer, mutedStyle.Render(strings.Repeat("─", 50)))
	}
}

// Step prints a numbered step
func (r *Reporter) Step(message string) {
	if r.level >= LevelNormal {
		r.stepCount++
		fmt.Fprintln(r.writer, sectionStyle.Render(fmt.Sprintf("[%d] %s", r.stepCount, message)))
	}
}

// Successf prints a success message with checkmark
func (r *Reporter) Successf(format string, args ...interface{}) {
	if r.level >= LevelNormal {
		fmt.Fprintln(r.writer, successStyle.Render("✓ "+fmt.Sprintf(format, args...)))
	}
}

// Infof prints an informational message
func (r *Reporter) Infof(format string, args ...interface{}) {
	if r.level >= LevelNormal {
		fmt.Fprintln(r.writer, infoStyle.Render(fmt.Sprintf(format, args...)))
	}
}

// Warningf prints a warning message
func (r *Reporter) Warningf(format string, args ...interface{}) {
	fmt.Fprintln(r.writer, warnStyle.Render("⚠ Warning: "+fmt.Sprintf(format, args...)))
}

// Errorf prints an error message
func (r *Reporter) Errorf(format string, args ...interface{}) {
	fmt.Fprintln(r.writer, errorStyle.Render("✗ Error: "+fmt.Sprintf(format, args...)))
}

// Verbosef prints detail in verbose mode
func (r *Reporter) Verbosef(format string, args ...interface{}) {
	if r.level >= LevelVerbose {
		fmt.Fprintln(r.writer, mutedStyle.Render("→ "+fmt.Sprintf(format, args...)))
	}
}

// Debugf prints debug information
func (r *Reporter) Debugf(format string, args ...interface{}) {
	if r.level >= LevelDebug {
		fmt.Fprintln(r.writer, mutedStyle.Render("[DEBUG] "+fmt.Sprintf(format, args...)))
	}
}

// Summary prints the outcome of a run. It is shown at every level.
func (r *Reporter) Summary(result *Result) {
	rule := headerStyle.Render(strings.Repeat("=", 70))

	fmt.Fprintln(r.writer)
	fmt.Fprintln(r.writer, rule)
	fmt.Fprintln(r.writer, headerStyle.Render("  RUN SUMMARY"))
	fmt.Fprintln(r.writer, rule)

	fmt.Fprint(r.writer, "  Status: ")
	if result.Success {
		fmt.Fprintln(r.writer, successStyle.Render("✓ SUCCESS"))
	} else {
		fmt.Fprintln(r.writer, errorStyle.Render("✗ FAILED"))
	}

	fmt.Fprintf(r.writer, "  Run: %s\n", result.RunID)
	fmt.Fprintf(r.writer, "  Duration: %s\n", result.Duration.Round(time.Second))
	fmt.Fprintf(r.writer, "  Final state: %s\n", result.FinalState)
	if result.ArtifactPath != "" {
		fmt.Fprintf(r.writer, "  Artifact: %s\n", result.ArtifactPath)
	}

	if r.level >= LevelVerbose && len(result.Stages) > 0 {
		fmt.Fprintln(r.writer, "\n  Stages:")
		for _, s := range result.Stages {
			mark := successStyle.Render("✓")
			if s.Error != "" {
				mark = errorStyle.Render("✗")
			}
			fmt.Fprintf(r.writer, "    %s %s (%s)\n", mark, s.Stage, s.Duration.Round(time.Millisecond))
		}
	}

	if result.Error != "" {
		fmt.Fprintln(r.writer)
		fmt.Fprintln(r.writer, errorStyle.Render("  Error Details:"))
		fmt.Fprintf(r.writer, "    failed at %s: %s\n", result.FailedStage, result.Error)
	}

	fmt.Fprintln(r.writer, rule)
	fmt.Fprintln(r.writer)
}
