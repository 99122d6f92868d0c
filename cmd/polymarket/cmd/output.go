package cmd

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const (
	colorMuted   = lipgloss.Color("#6B7280")
	colorSuccess = lipgloss.Color("#10B981")
	colorError   = lipgloss.Color("#EF4444")
	colorWarning = lipgloss.Color("#F59E0B")
	colorCommand = lipgloss.Color("#3B82F6")
)

//nolint:gochecknoglobals // Shared styles.
var (
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(colorSuccess)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	commandStyle = lipgloss.NewStyle().Foreground(colorCommand)
)

// printer renders styled text only when writing to a terminal.
type printer struct {
	out    io.Writer
	styled bool
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, styled: isTerminal(out)}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)

	return ok && term.IsTerminal(int(file.Fd())) //nolint:gosec // Descriptors fit in int.
}

func (p *printer) render(style lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}

	return style.Render(text)
}

func (p *printer) line(style lipgloss.Style, text string) {
	_, _ = io.WriteString(p.out, p.render(style, text)+"\n")
}

func (p *printer) plain(text string) {
	_, _ = io.WriteString(p.out, text+"\n")
}
