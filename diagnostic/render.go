package diagnostic

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// ColorMode selects whether the Renderer emits ANSI styling.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

func ParseColorMode(s string) (ColorMode, error) {
	switch mode := ColorMode(strings.ToLower(s)); mode {
	case ColorAuto, ColorAlways, ColorNever:
		return mode, nil
	case "":
		return ColorAuto, nil
	}
	return "", fmt.Errorf("unknown color mode %q", s)
}

// Renderer prints diagnostics as a header followed by the offending source line with the
// reported span underlined:
//
//	prog.pas:3:6: error: Variable 'y' not found
//	   3 | x := y + 1;
//	     |      ^
type Renderer struct {
	out io.Writer

	errorStyle    lipgloss.Style
	warningStyle  lipgloss.Style
	locationStyle lipgloss.Style
	gutterStyle   lipgloss.Style
	markStyle     lipgloss.Style
}

func NewRenderer(out io.Writer, mode ColorMode) *Renderer {
	renderer := lipgloss.NewRenderer(out)
	switch mode {
	case ColorAlways:
		renderer.SetColorProfile(termenv.ANSI256)
	case ColorNever:
		renderer.SetColorProfile(termenv.Ascii)
	}
	return &Renderer{
		out:           out,
		errorStyle:    renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		warningStyle:  renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		locationStyle: renderer.NewStyle().Bold(true),
		gutterStyle:   renderer.NewStyle().Foreground(lipgloss.Color("12")),
		markStyle:     renderer.NewStyle().Foreground(lipgloss.Color("10")),
	}
}

func (r *Renderer) Report(d Diagnostic) {
	fmt.Fprint(r.out, r.Render(d))
}

func (r *Renderer) Render(d Diagnostic) string {
	severity := r.errorStyle.Render(d.Severity() + ":")
	if d.Warning {
		severity = r.warningStyle.Render(d.Severity() + ":")
	}
	location := r.locationStyle.Render(fmt.Sprintf("%s:%d:%d:", d.Path, d.Line, d.Column()))

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("%s %s %s\n", location, severity, d.Message))

	line := d.SourceLine()
	number := strconv.Itoa(d.Line)
	gutter := strings.Repeat(" ", len(number))
	builder.WriteString(r.gutterStyle.Render(fmt.Sprintf(" %s | ", number)))
	builder.WriteString(expandTabs(line))
	builder.WriteString("\n")
	builder.WriteString(r.gutterStyle.Render(fmt.Sprintf(" %s | ", gutter)))
	builder.WriteString(r.markStyle.Render(underline(line, d.Column(), d.Length)))
	builder.WriteString("\n")
	return builder.String()
}

// underline builds a "^~~~" marker under columns [column, column+length) of line. Tabs
// before the marker keep their width so the caret stays aligned.
func underline(line string, column, length int) string {
	if length < 1 {
		length = 1
	}
	start := column - 1
	if start > len(line) {
		start = len(line)
	}
	if start+length > len(line) && start < len(line) {
		length = len(line) - start
	}
	padding := expandTabs(line[:start])
	return strings.Repeat(" ", len(padding)) + "^" + strings.Repeat("~", length-1)
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "    ")
}
