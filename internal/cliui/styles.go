// Package cliui holds the terminal rendering wrkflw uses to present run
// progress: a semantic color palette and a progress.Reporter that writes
// styled status lines instead of structured log records.
package cliui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

const (
	ColorSuccess = "42"  // green
	ColorError   = "203" // red
	ColorWarning = "214" // orange
	ColorMuted   = "240" // dark gray
	ColorAccent  = "45"  // cyan
	ColorPrimary = "255" // white
)

// Package-level styles for one-off CLI output (e.g. `config show`), bound
// to the default renderer's auto-detected color profile.
var (
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSuccess))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorError))
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWarning))
	MutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorMuted))
	AccentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent))
	PrimaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorPrimary)).Bold(true)
)

// palette binds the semantic colors to one lipgloss.Renderer scoped to a
// specific writer, so a long-running TermReporter renders plain ASCII when
// its destination isn't a terminal instead of leaking escape codes into
// redirected output or CI logs.
type palette struct {
	success, errorS, warning, muted, accent, primary lipgloss.Style
}

func newPalette(out io.Writer, color bool) palette {
	r := lipgloss.NewRenderer(out)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	return palette{
		success: r.NewStyle().Foreground(lipgloss.Color(ColorSuccess)),
		errorS:  r.NewStyle().Foreground(lipgloss.Color(ColorError)),
		warning: r.NewStyle().Foreground(lipgloss.Color(ColorWarning)),
		muted:   r.NewStyle().Foreground(lipgloss.Color(ColorMuted)),
		accent:  r.NewStyle().Foreground(lipgloss.Color(ColorAccent)),
		primary: r.NewStyle().Foreground(lipgloss.Color(ColorPrimary)).Bold(true),
	}
}

// statusIcon renders a conclusion as a colored glyph.
func (p palette) statusIcon(conclusion string) string {
	switch conclusion {
	case "success":
		return p.success.Render("✓")
	case "skipped":
		return p.muted.Render("○")
	case "cancelled":
		return p.warning.Render("−")
	default:
		return p.errorS.Render("✗")
	}
}

func (p palette) bullet() string {
	return p.muted.Render("·")
}
