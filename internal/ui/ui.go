// Package ui styles terminal output for the CLI.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/dbvcapital/statusboard/internal/schema"
)

var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#1F6F5C", Dark: "#5FD7AF"}
	colorPass   = lipgloss.AdaptiveColor{Light: "#1E7B34", Dark: "#73D98C"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#A15C00", Dark: "#F2C14E"}
	colorFail   = lipgloss.AdaptiveColor{Light: "#B3261E", Dark: "#FF6B6B"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	colorBlue   = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#7AA2F7"}
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Printer writes styled text to w. Colors are dropped when w is not a
// terminal or NO_COLOR is set.
type Printer struct {
	w io.Writer
	r *lipgloss.Renderer

	accent, pass, warn, fail, muted, bold lipgloss.Style
}

// NewPrinter creates a printer for w.
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	f, isFile := w.(*os.File)
	if !isFile || !IsTerminal(f) || os.Getenv("NO_COLOR") != "" {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Printer{
		w:      w,
		r:      r,
		accent: r.NewStyle().Foreground(colorAccent).Bold(true),
		pass:   r.NewStyle().Foreground(colorPass),
		warn:   r.NewStyle().Foreground(colorWarn),
		fail:   r.NewStyle().Foreground(colorFail).Bold(true),
		muted:  r.NewStyle().Foreground(colorMuted),
		bold:   r.NewStyle().Bold(true),
	}
}

// Stdout is a printer for os.Stdout.
func Stdout() *Printer {
	return NewPrinter(os.Stdout)
}

func (p *Printer) RenderAccent(s string) string { return p.accent.Render(s) }
func (p *Printer) RenderPass(s string) string   { return p.pass.Render(s) }
func (p *Printer) RenderWarn(s string) string   { return p.warn.Render(s) }
func (p *Printer) RenderFail(s string) string   { return p.fail.Render(s) }
func (p *Printer) RenderMuted(s string) string  { return p.muted.Render(s) }
func (p *Printer) RenderBold(s string) string   { return p.bold.Render(s) }

// RenderStatus colors a status by its meaning and shows its display label.
func (p *Printer) RenderStatus(s schema.Status) string {
	style := p.r.NewStyle()
	switch s {
	case schema.StatusDone:
		style = style.Foreground(colorPass)
	case schema.StatusInProgress:
		style = style.Foreground(colorBlue)
	case schema.StatusBlocked:
		style = style.Foreground(colorFail)
	default:
		style = style.Foreground(colorMuted)
	}
	return style.Render(s.Label())
}

// Printf writes formatted text.
func (p *Printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

// Success prints a check line.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.RenderPass("✓")+" "+fmt.Sprintf(format, args...))
}

// Warning prints a warning line.
func (p *Printer) Warning(format string, args ...any) {
	fmt.Fprintln(p.w, p.RenderWarn("!")+" "+fmt.Sprintf(format, args...))
}

// Failure prints a failure line.
func (p *Printer) Failure(format string, args ...any) {
	fmt.Fprintln(p.w, p.RenderFail("✗")+" "+fmt.Sprintf(format, args...))
}
