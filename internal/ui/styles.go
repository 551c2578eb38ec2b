// Package ui renders CLI output and interactive prompts.
package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/tasksync/tasks/internal/tasks/schema"
)

func init() {
	if !ShouldUseColor() {
		SetColorEnabled(false)
	}
}

// Adaptive colors pick a shade for light or dark terminals.
var (
	ColorPass   = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#7ee787"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#b26a00", Dark: "#f2cc60"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ff7b72"}
	ColorAccent = lipgloss.AdaptiveColor{Light: "#1f5fbf", Dark: "#79c0ff"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#6e7781", Dark: "#8b949e"}
)

var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	DoneStyle   = lipgloss.NewStyle().Foreground(ColorMuted).Strikethrough(true)
)

var priorityStyles = map[schema.Priority]lipgloss.Style{
	schema.PriorityCritical: lipgloss.NewStyle().Foreground(ColorFail).Bold(true),
	schema.PriorityHigh:     lipgloss.NewStyle().Foreground(ColorWarn),
	schema.PriorityNormal:   lipgloss.NewStyle().Foreground(ColorAccent),
	schema.PriorityLow:      lipgloss.NewStyle().Foreground(ColorMuted),
}

// Icons
const (
	IconPass    = "✓"
	IconWarn    = "⚠"
	IconFail    = "✗"
	IconPending = "○"
)

// ShouldUseColor reports whether stdout should get ANSI colors.
// NO_COLOR disables and CLICOLOR_FORCE enables regardless of the terminal.
func ShouldUseColor() bool {
	if termenv.EnvNoColor() {
		return false
	}
	if os.Getenv("CLICOLOR_FORCE") != "" && os.Getenv("CLICOLOR_FORCE") != "0" {
		return true
	}
	return IsTerminal()
}

// IsTerminal reports whether stdout is an interactive terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// IsInteractive reports whether both stdin and stdout are terminals, which
// forms need to run in their full mode.
func IsInteractive() bool {
	return IsTerminal() && term.IsTerminal(int(os.Stdin.Fd()))
}

// SetColorEnabled switches colored output on or off for the process.
func SetColorEnabled(enabled bool) {
	if enabled {
		lipgloss.SetColorProfile(termenv.EnvColorProfile())
		return
	}
	lipgloss.SetColorProfile(termenv.Ascii)
}

// RenderPass renders text as a success.
func RenderPass(s string) string {
	return PassStyle.Render(s)
}

// RenderWarn renders text as a warning.
func RenderWarn(s string) string {
	return WarnStyle.Render(s)
}

// RenderFail renders text as an error.
func RenderFail(s string) string {
	return FailStyle.Render(s)
}

// RenderAccent renders text in the accent color.
func RenderAccent(s string) string {
	return AccentStyle.Render(s)
}

// RenderMuted renders secondary text.
func RenderMuted(s string) string {
	return MutedStyle.Render(s)
}

// RenderPriority renders a priority label in its color.
func RenderPriority(p schema.Priority) string {
	style, ok := priorityStyles[p]
	if !ok {
		return string(p)
	}
	return style.Render(string(p))
}

// RenderHeader renders a section heading.
func RenderHeader(s string) string {
	return HeaderStyle.Render(s)
}

// ShortID returns the first block of an identifier.
func ShortID(t *schema.Task) string {
	id := schema.FormatID(t.ID)
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// RenderTaskLine renders one task as a single list line.
func RenderTaskLine(t *schema.Task) string {
	var b strings.Builder

	if t.Complete {
		b.WriteString(RenderPass(IconPass))
		b.WriteString(" ")
		b.WriteString(DoneStyle.Render(t.Name))
	} else {
		b.WriteString(RenderMuted(IconPending))
		b.WriteString(" ")
		b.WriteString(t.Name)
	}

	b.WriteString(" ")
	b.WriteString(RenderMuted("(" + ShortID(t) + ")"))

	if notes := t.NotesText(); notes != "" {
		first, _, _ := strings.Cut(notes, "\n")
		b.WriteString("  ")
		b.WriteString(RenderMuted(first))
	}
	return b.String()
}
