// Package render formats validation reports for the terminal. Plain
// mode strips all styling for CI logs.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"phio/internal/contract"
	"phio/internal/diff"
)

// Semantic colors, same in light and dark terminals.
var (
	Breaking = lipgloss.Color("#e53935") // Red
	Success  = lipgloss.Color("#8BC34A") // Lime Green
	Warn     = lipgloss.Color("#FFC107") // Yellow
	Info     = lipgloss.Color("#2196F3") // Blue
	Muted    = lipgloss.Color("#888888")
)

var (
	breakingStyle = lipgloss.NewStyle().Foreground(Breaking).Bold(true)
	successStyle  = lipgloss.NewStyle().Foreground(Success).Bold(true)
	warnStyle     = lipgloss.NewStyle().Foreground(Warn)
	infoStyle     = lipgloss.NewStyle().Foreground(Info)
	mutedStyle    = lipgloss.NewStyle().Foreground(Muted)
	headerStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
)

// Renderer formats changes and warnings. Plain mode emits unstyled
// text suitable for CI logs and golden files.
type Renderer struct {
	plain bool
}

// New creates a renderer. plain disables all styling.
func New(plain bool) *Renderer {
	return &Renderer{plain: plain}
}

func (r *Renderer) styled(s lipgloss.Style, text string) string {
	if r.plain {
		return text
	}
	return s.Render(text)
}

func severityStyle(sev contract.Severity) lipgloss.Style {
	switch sev {
	case contract.SeverityBreaking:
		return breakingStyle
	case contract.SeverityInformational:
		return infoStyle
	default:
		return successStyle
	}
}

// Changes renders the classified change list, one line per change.
func (r *Renderer) Changes(changes []contract.Change) string {
	if len(changes) == 0 {
		return r.styled(successStyle, "no contract changes") + "\n"
	}
	var b strings.Builder
	b.WriteString(r.styled(headerStyle, "Contract changes"))
	b.WriteString("\n")
	for _, ch := range changes {
		label := fmt.Sprintf("[%s]", ch.Severity)
		b.WriteString(fmt.Sprintf("  %s %s %s",
			r.styled(severityStyle(ch.Severity), label), ch.Kind, ch.Path))
		switch ch.Kind {
		case contract.ChangeModified:
			b.WriteString(fmt.Sprintf(": %v -> %v", ch.Old, ch.New))
		case contract.ChangeRemoved:
			if ch.Old != nil {
				b.WriteString(fmt.Sprintf(": was %v", ch.Old))
			}
		case contract.ChangeAdded:
			if ch.New != nil {
				b.WriteString(fmt.Sprintf(": %v", ch.New))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Warnings renders the lint report.
func (r *Renderer) Warnings(warnings []contract.Warning) string {
	if len(warnings) == 0 {
		return r.styled(successStyle, "no warnings") + "\n"
	}
	var b strings.Builder
	b.WriteString(r.styled(headerStyle, fmt.Sprintf("Warnings (%d)", len(warnings))))
	b.WriteString("\n")
	for _, w := range warnings {
		line := fmt.Sprintf("  %s %s", r.styled(warnStyle, w.Code), w.Message)
		if w.Path != "" {
			line += " " + r.styled(mutedStyle, "("+w.Path+")")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// Summary renders the per-severity counts and the verdict line.
func (r *Renderer) Summary(s diff.Summary, verdict string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s breaking, %s non-breaking, %s informational\n",
		r.styled(breakingStyle, fmt.Sprintf("%d", s.Breaking)),
		r.styled(successStyle, fmt.Sprintf("%d", s.NonBreaking)),
		r.styled(infoStyle, fmt.Sprintf("%d", s.Informational))))
	switch verdict {
	case "pass":
		b.WriteString(r.styled(successStyle, "PASS"))
	default:
		b.WriteString(r.styled(breakingStyle, strings.ToUpper(verdict)))
	}
	b.WriteString("\n")
	return b.String()
}
