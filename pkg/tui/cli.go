// Package tui provides styled terminal output for tracedump.
// Simple, streaming, no complex TUI - just clean status lines.
package tui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
)

// Errorf writes a styled error line to stderr.
func Errorf(format string, args ...any) {
	fmt.Fprintln(os.Stderr, accentStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// Successf writes a styled success line to stderr.
func Successf(format string, args ...any) {
	fmt.Fprintln(os.Stderr, successStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Infof writes a muted key/value status line to stderr.
func Infof(key, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", mutedStyle.Render(key+":"), titleStyle.Render(fmt.Sprintf(format, args...)))
}

// IsTerminal reports whether stderr is an interactive terminal.
func IsTerminal() bool {
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

// NewProgress returns a row-count progress bar on stderr, or nil when
// stderr is not a terminal. max <= 0 renders a spinner.
func NewProgress(max int64, description string) *progressbar.ProgressBar {
	if !IsTerminal() {
		return nil
	}
	if max <= 0 {
		max = -1
	}
	return progressbar.NewOptions64(max,
		progressbar.OptionSetDescription(mutedStyle.Render(description)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// ClearLine clears the current terminal line on stderr.
func ClearLine() {
	if IsTerminal() {
		fmt.Fprint(os.Stderr, "\r\033[K")
	}
}

// FormatBytes renders a byte count in human units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
